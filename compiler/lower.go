package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Lowering: typed AST -> IR
// ---------------------------------------------------------------------------

// Lower converts a checked file into an IR program. The checker must have
// run without errors.
func Lower(c *Checker, name string, diags *Diagnostics) *Program {
	p := &Program{Name: name}
	for _, def := range c.structs {
		p.Structs = append(p.Structs, def)
	}
	for _, def := range c.enums {
		p.Enums = append(p.Enums, def)
	}
	sortStructs(p.Structs)
	sortEnums(p.Enums)

	lw := &lowerer{c: c, diags: diags, program: p, instances: make(map[string]bool)}
	for _, def := range c.Funcs() {
		// @macro and @comptime functions exist only for the evaluator.
		if hasAttr(def.Decl.Attrs, AttrMacro) || hasAttr(def.Decl.Attrs, AttrComptime) {
			continue
		}
		// Generic functions are lowered per instantiation, on demand.
		if len(def.Generics) > 0 {
			continue
		}
		lw.lowerFunc(def)
	}
	for len(lw.pending) > 0 {
		inst := lw.pending[0]
		lw.pending = lw.pending[1:]
		lw.lowerFuncInst(inst.def, inst.name, inst.subst)
	}
	return p
}

func sortStructs(defs []*StructDef) {
	for i := 1; i < len(defs); i++ {
		for j := i; j > 0 && defs[j].Sym.Name < defs[j-1].Sym.Name; j-- {
			defs[j], defs[j-1] = defs[j-1], defs[j]
		}
	}
}

func sortEnums(defs []*EnumDef) {
	for i := 1; i < len(defs); i++ {
		for j := i; j > 0 && defs[j].Sym.Name < defs[j-1].Sym.Name; j-- {
			defs[j], defs[j-1] = defs[j-1], defs[j]
		}
	}
}

type lowerer struct {
	c       *Checker
	diags   *Diagnostics
	program *Program

	fn       *Func
	vars     map[*Symbol]Reg
	captured map[*Symbol]bool // bindings captured by value in this closure
	subst    map[string]*Type // generic-parameter bindings for the current instantiation
	breakTo  []Label
	contTo   []Label

	// consts tracks registers holding known constants for folding.
	consts map[Reg]*Instr

	// instances records monomorphized generic functions by IR name;
	// pending holds the ones not yet lowered.
	instances map[string]bool
	pending   []pendingInst

	closureSeq int
}

// pendingInst is one requested instantiation of a generic function.
type pendingInst struct {
	def   *FuncDef
	name  string
	subst map[string]*Type
}

// irName builds the flat IR name for a function definition.
func irName(def *FuncDef) string {
	if def.Receiver != "" {
		return def.Receiver + "." + def.Decl.Name
	}
	return def.Decl.Name
}

func (lw *lowerer) lowerFunc(def *FuncDef) {
	lw.lowerFuncInst(def, irName(def), nil)
}

func (lw *lowerer) lowerFuncInst(def *FuncDef, name string, subst map[string]*Type) {
	fn := &Func{
		Name:     name,
		Ret:      def.Type.Ret,
		RegTypes: []*Type{nil}, // register 0 is reserved
		Extern:   def.Extern,
		Simd:     hasAttr(def.Decl.Attrs, AttrSimd),
		Export:   hasAttr(def.Decl.Attrs, AttrExport) || def.Decl.Name == "main",
	}
	lw.program.Funcs = append(lw.program.Funcs, fn)
	if def.Extern != "" {
		for i := range def.Decl.Params {
			r := lw.newRegIn(fn, def.Type.Elems[i])
			fn.Params = append(fn.Params, r)
		}
		return
	}

	prevFn, prevVars, prevConsts, prevSubst := lw.fn, lw.vars, lw.consts, lw.subst
	lw.fn = fn
	lw.vars = make(map[*Symbol]Reg)
	lw.consts = make(map[Reg]*Instr)
	lw.subst = subst
	fn.Ret = lw.subType(def.Type.Ret)
	defer func() { lw.fn, lw.vars, lw.consts, lw.subst = prevFn, prevVars, prevConsts, prevSubst }()

	for i := range def.Decl.Params {
		sym := lw.c.Defs[&def.Decl.Params[i]]
		r := lw.newReg(def.Type.Elems[i])
		fn.Params = append(fn.Params, r)
		if sym != nil {
			lw.vars[sym] = r
		}
	}

	lw.emit(Instr{Op: OpRegionPush})
	retReg := lw.block(def.Decl.Body)
	lw.emit(Instr{Op: OpRegionPop})
	if Resolve(fn.Ret).Kind == KindVoid {
		lw.emit(Instr{Op: OpReturnVoid})
	} else if retReg != 0 {
		lw.emit(Instr{Op: OpReturn, A: retReg})
	} else {
		// Every path already returned; a trailing return keeps the
		// generated code well-formed after labels.
		zero := lw.zeroValue(fn.Ret)
		lw.emit(Instr{Op: OpReturn, A: zero})
	}
}

func (lw *lowerer) newReg(t *Type) Reg {
	return lw.newRegIn(lw.fn, t)
}

func (lw *lowerer) newRegIn(fn *Func, t *Type) Reg {
	fn.RegTypes = append(fn.RegTypes, lw.subType(t))
	return Reg(len(fn.RegTypes) - 1)
}

// subType resolves a type and applies the current instantiation's
// generic-parameter bindings.
func (lw *lowerer) subType(t *Type) *Type {
	t = lw.c.ts.resolveDeep(t)
	if lw.subst != nil {
		t = lw.c.ts.instantiate(t, lw.subst)
	}
	return t
}

func (lw *lowerer) newLabel() Label {
	lw.fn.NumLabel++
	return Label(lw.fn.NumLabel - 1)
}

func (lw *lowerer) emit(in Instr) {
	lw.fn.Instrs = append(lw.fn.Instrs, in)
	if isConstOp(in.Op) {
		stored := in
		lw.consts[in.Dst] = &stored
	} else if in.Dst != 0 {
		delete(lw.consts, in.Dst)
	}
}

func (lw *lowerer) mark(lbl Label) {
	lw.emit(Instr{Op: OpLabel, Target: lbl})
}

func isConstOp(op Op) bool {
	switch op {
	case OpConstInt, OpConstFloat, OpConstBool, OpConstString, OpConstChar, OpConstNull:
		return true
	}
	return false
}

func (lw *lowerer) unsupported(span Span, format string, args ...interface{}) Reg {
	lw.diags.Addf(CategoryCodegen, CodeUnsupportedConstruct, span, format, args...)
	return lw.zeroValue(lw.c.ts.Int)
}

// zeroValue materializes the zero of a type.
func (lw *lowerer) zeroValue(t *Type) Reg {
	t = Resolve(t)
	dst := lw.newReg(t)
	switch t.Kind {
	case KindFloat:
		lw.emit(Instr{Op: OpConstFloat, Dst: dst})
	case KindBool:
		lw.emit(Instr{Op: OpConstBool, Dst: dst})
	case KindString:
		lw.emit(Instr{Op: OpConstString, Dst: dst})
	case KindChar:
		lw.emit(Instr{Op: OpConstChar, Dst: dst})
	case KindArray, KindStruct, KindEnum, KindFunc, KindNull:
		lw.emit(Instr{Op: OpConstNull, Dst: dst})
	default:
		lw.emit(Instr{Op: OpConstInt, Dst: dst})
	}
	return dst
}

// constValue materializes a compile-time value as constants.
func (lw *lowerer) constValue(v Value, t *Type, span Span) Reg {
	switch v.Kind {
	case ValInt:
		dst := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: v.Int})
		return dst
	case ValFloat:
		dst := lw.newReg(lw.c.ts.Float)
		lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: v.Float})
		return dst
	case ValBool:
		dst := lw.newReg(lw.c.ts.Bool)
		imm := int64(0)
		if v.Bool {
			imm = 1
		}
		lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: imm})
		return dst
	case ValString:
		dst := lw.newReg(lw.c.ts.String)
		lw.emit(Instr{Op: OpConstString, Dst: dst, SImm: v.Str})
		return dst
	case ValChar:
		dst := lw.newReg(lw.c.ts.Char)
		lw.emit(Instr{Op: OpConstChar, Dst: dst, Imm: int64(v.Char)})
		return dst
	case ValNull, ValVoid:
		dst := lw.newReg(lw.c.ts.Null)
		lw.emit(Instr{Op: OpConstNull, Dst: dst})
		return dst
	case ValArray:
		t = Resolve(t)
		elemT := lw.c.ts.Int
		if t.Kind == KindArray {
			elemT = t.Elem
		}
		args := make([]Reg, len(v.Elems))
		for i, e := range v.Elems {
			args[i] = lw.constValue(e, elemT, span)
		}
		dst := lw.newReg(t)
		lw.emit(Instr{Op: OpNewArray, Dst: dst, Args: args})
		return dst
	case ValStruct:
		def := lw.c.structs[v.Name]
		if def == nil {
			return lw.unsupported(span, "cannot materialize struct %s", v.Name)
		}
		args := make([]Reg, len(v.Elems))
		for i, e := range v.Elems {
			args[i] = lw.constValue(e, def.Fields[i].Type, span)
		}
		dst := lw.newReg(lw.c.ts.Struct(v.Name, nil))
		lw.emit(Instr{Op: OpNewStruct, Dst: dst, SImm: v.Name, Args: args})
		return dst
	case ValEnum:
		defs := lw.c.variantEnums[v.Name]
		if len(defs) != 1 {
			return lw.unsupported(span, "cannot materialize variant %s", v.Name)
		}
		def := defs[0]
		vd := def.Variants[v.Variant]
		args := make([]Reg, len(v.Elems))
		for i, e := range v.Elems {
			pt := lw.c.ts.Int
			if i < len(vd.Payload) {
				pt = vd.Payload[i]
			}
			args[i] = lw.constValue(e, pt, span)
		}
		dst := lw.newReg(Resolve(t))
		lw.emit(Instr{Op: OpNewEnum, Dst: dst, SImm: def.Sym.Name, Imm: int64(v.Variant), Args: args})
		return dst
	}
	return lw.unsupported(span, "compile-time value cannot be lowered")
}

// ---------------------------------------------------------------------------
// Blocks and statements
// ---------------------------------------------------------------------------

// block lowers a block and returns the register holding its tail value, or
// 0 for void blocks.
func (lw *lowerer) block(b *BlockExpr) Reg {
	for _, s := range b.Stmts {
		lw.stmt(s)
	}
	if b.Tail != nil {
		return lw.expr(b.Tail)
	}
	return 0
}

func (lw *lowerer) stmt(s Stmt) {
	switch n := s.(type) {
	case *LetStmt:
		val := lw.expr(n.Value)
		sym := lw.c.Defs[n]
		if sym == nil {
			return
		}
		if hasAttr(n.Attrs, AttrAtomic) {
			dst := lw.newReg(sym.Type)
			lw.emit(Instr{Op: OpAtomicNew, Dst: dst, A: val})
			lw.vars[sym] = dst
			return
		}
		if hasAttr(n.Attrs, AttrPinned) {
			lw.markPinned(val)
		}
		dst := lw.newReg(sym.Type)
		lw.emit(Instr{Op: OpMove, Dst: dst, A: val})
		lw.vars[sym] = dst

	case *AssignStmt:
		lw.assign(n)

	case *ExprStmt:
		lw.expr(n.Expr)

	case *ForStmt:
		lw.forStmt(n)

	case *WhileStmt:
		start := lw.newLabel()
		end := lw.newLabel()
		lw.mark(start)
		cond := lw.expr(n.Cond)
		lw.emit(Instr{Op: OpBranch, A: cond, Target: end})
		lw.pushLoop(end, start)
		lw.block(n.Body)
		lw.popLoop()
		lw.emit(Instr{Op: OpJump, Target: start})
		lw.mark(end)

	case *LoopStmt:
		start := lw.newLabel()
		end := lw.newLabel()
		lw.mark(start)
		lw.pushLoop(end, start)
		lw.block(n.Body)
		lw.popLoop()
		lw.emit(Instr{Op: OpJump, Target: start})
		lw.mark(end)

	case *ReturnStmt:
		if n.Value == nil {
			lw.emit(Instr{Op: OpRegionPop})
			lw.emit(Instr{Op: OpReturnVoid})
			return
		}
		// The value is materialized before the region is released so that
		// allocations in the return expression land in a live region.
		val := lw.expr(n.Value)
		lw.emit(Instr{Op: OpRegionPop})
		lw.emit(Instr{Op: OpReturn, A: val})

	case *BreakStmt:
		if len(lw.breakTo) > 0 {
			lw.emit(Instr{Op: OpJump, Target: lw.breakTo[len(lw.breakTo)-1]})
		}

	case *ContinueStmt:
		if len(lw.contTo) > 0 {
			lw.emit(Instr{Op: OpJump, Target: lw.contTo[len(lw.contTo)-1]})
		}

	case *FreeStmt:
		sym := lw.c.Defs[n]
		if sym == nil {
			return
		}
		if r, ok := lw.vars[sym]; ok {
			lw.emit(Instr{Op: OpRegionFree, A: r})
		}
	}
}

func (lw *lowerer) pushLoop(brk, cont Label) {
	lw.breakTo = append(lw.breakTo, brk)
	lw.contTo = append(lw.contTo, cont)
}

func (lw *lowerer) popLoop() {
	lw.breakTo = lw.breakTo[:len(lw.breakTo)-1]
	lw.contTo = lw.contTo[:len(lw.contTo)-1]
}

func (lw *lowerer) assign(n *AssignStmt) {
	switch target := n.Target.(type) {
	case *Ident:
		sym := lw.c.Uses[target]
		if sym == nil {
			return
		}
		r, ok := lw.vars[sym]
		if !ok {
			lw.unsupported(target.SpanVal, "cannot assign to %s here", target.Name)
			return
		}
		if lw.captured != nil && lw.captured[sym] && !hasAttr(sym.Attrs, AttrAtomic) {
			lw.unsupported(target.SpanVal,
				"%s is captured by the closure and cannot be reassigned; use @atomic for shared counters", target.Name)
			return
		}
		if hasAttr(sym.Attrs, AttrAtomic) {
			// c = c + d becomes one read-modify-write so concurrent
			// increments never lose updates.
			if delta, ok := lw.atomicDelta(sym, n.Value); ok {
				lw.emit(Instr{Op: OpAtomicAdd, Dst: r, A: delta})
				return
			}
			val := lw.expr(n.Value)
			lw.emit(Instr{Op: OpAtomicStore, Dst: r, A: val})
			return
		}
		val := lw.expr(n.Value)
		lw.emit(Instr{Op: OpMove, Dst: r, A: val})

	case *Index:
		val := lw.expr(n.Value)
		arr := lw.expr(target.Target)
		idx := lw.expr(target.Idx)
		lw.emit(Instr{Op: OpArraySet, Dst: arr, A: idx, B: val})

	case *Field:
		val := lw.expr(n.Value)
		obj := lw.expr(target.Target)
		lw.emit(Instr{Op: OpFieldSet, Dst: obj, SImm: target.Name, A: val})
	}
}

// atomicDelta recognizes `c + e` and `c - e` with atomic c and returns the
// register holding the signed delta.
func (lw *lowerer) atomicDelta(sym *Symbol, value Expr) (Reg, bool) {
	b, ok := value.(*Binary)
	if !ok || (b.Op != TokenPlus && b.Op != TokenMinus) {
		return 0, false
	}
	id, ok := b.Left.(*Ident)
	if !ok || lw.c.Uses[id] != sym {
		return 0, false
	}
	d := lw.expr(b.Right)
	if b.Op == TokenMinus {
		neg := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpNeg, Dst: neg, A: d})
		d = neg
	}
	return d, true
}

func (lw *lowerer) forStmt(n *ForStmt) {
	if hasAttr(n.Attrs, AttrParallel) {
		lw.parallelFor(n)
		return
	}

	iterT := lw.subType(lw.c.TypeOf(n.Iter))
	iter := lw.expr(n.Iter)
	sym := lw.c.Defs[n]

	// Counter loop shared by both forms.
	idx := lw.newReg(lw.c.ts.Int)
	lw.emit(Instr{Op: OpConstInt, Dst: idx, Imm: 0})
	limit := lw.newReg(lw.c.ts.Int)
	switch iterT.Kind {
	case KindArray:
		lw.emit(Instr{Op: OpArrayLen, Dst: limit, A: iter})
	default:
		lw.emit(Instr{Op: OpMove, Dst: limit, A: iter})
	}

	start := lw.newLabel()
	cont := lw.newLabel()
	end := lw.newLabel()
	lw.mark(start)
	cond := lw.newReg(lw.c.ts.Bool)
	lw.emit(Instr{Op: OpLt, Dst: cond, A: idx, B: limit})
	lw.emit(Instr{Op: OpBranch, A: cond, Target: end})

	if sym != nil {
		elem := lw.newReg(sym.Type)
		if iterT.Kind == KindArray {
			lw.emit(Instr{Op: OpArrayGet, Dst: elem, A: iter, B: idx})
		} else {
			lw.emit(Instr{Op: OpMove, Dst: elem, A: idx})
		}
		lw.vars[sym] = elem
	}

	lw.pushLoop(end, cont)
	lw.block(n.Body)
	lw.popLoop()

	lw.mark(cont)
	one := lw.newReg(lw.c.ts.Int)
	lw.emit(Instr{Op: OpConstInt, Dst: one, Imm: 1})
	lw.emit(Instr{Op: OpAdd, Dst: idx, A: idx, B: one})
	lw.emit(Instr{Op: OpJump, Target: start})
	lw.mark(end)
}

// parallelFor lowers @parallel for by packaging the body as a closure and
// dispatching through the scheduler.
func (lw *lowerer) parallelFor(n *ForStmt) {
	iterT := lw.subType(lw.c.TypeOf(n.Iter))
	if iterT.Kind != KindArray {
		lw.unsupported(n.Iter.Span(), "@parallel for requires an array")
		return
	}
	iter := lw.expr(n.Iter)
	sym := lw.c.Defs[n]

	elemT := iterT.Elem
	body := &BlockExpr{SpanVal: n.Body.SpanVal, Stmts: n.Body.Stmts, Tail: n.Body.Tail}
	closureReg := lw.lowerBodyClosure(n, sym, elemT, body)
	lw.emit(Instr{Op: OpParFor, A: iter, B: closureReg})
}

// lowerBodyClosure materializes a loop body as a one-parameter closure
// function over the element type.
func (lw *lowerer) lowerBodyClosure(at Node, sym *Symbol, elemT *Type, body *BlockExpr) Reg {
	free := lw.freeVars(body, map[*Symbol]bool{sym: true})
	name := fmt.Sprintf("%s.body%d", lw.fn.Name, lw.closureSeq)
	lw.closureSeq++

	inner := &Func{
		Name:     name,
		Ret:      lw.c.ts.Void,
		RegTypes: []*Type{nil},
	}
	lw.program.Funcs = append(lw.program.Funcs, inner)

	outerFn, outerVars, outerConsts, outerCaptured := lw.fn, lw.vars, lw.consts, lw.captured
	lw.fn = inner
	lw.vars = make(map[*Symbol]Reg)
	lw.consts = make(map[Reg]*Instr)
	lw.captured = make(map[*Symbol]bool)

	var capRegs []Reg
	for _, capSym := range free {
		r := lw.newReg(capSym.Type)
		inner.Params = append(inner.Params, r)
		lw.vars[capSym] = r
		lw.captured[capSym] = true
		capRegs = append(capRegs, outerVars[capSym])
	}
	if sym != nil {
		r := lw.newReg(elemT)
		inner.Params = append(inner.Params, r)
		lw.vars[sym] = r
	} else {
		r := lw.newReg(elemT)
		inner.Params = append(inner.Params, r)
	}

	lw.emit(Instr{Op: OpRegionPush})
	lw.block(body)
	lw.emit(Instr{Op: OpRegionPop})
	lw.emit(Instr{Op: OpReturnVoid})

	lw.fn, lw.vars, lw.consts, lw.captured = outerFn, outerVars, outerConsts, outerCaptured

	dst := lw.newReg(lw.c.ts.Func([]*Type{elemT}, lw.c.ts.Void))
	lw.emit(Instr{Op: OpMakeClosure, Dst: dst, SImm: name, Args: capRegs})
	return dst
}

// freeVars collects bindings referenced in a subtree but defined outside it,
// in first-use order.
func (lw *lowerer) freeVars(n Node, bound map[*Symbol]bool) []*Symbol {
	var out []*Symbol
	seen := make(map[*Symbol]bool)
	inner := make(map[*Symbol]bool)
	for k := range bound {
		inner[k] = true
	}
	walkExprs(n, func(e Expr) {
		if id, ok := e.(*Ident); ok {
			sym := lw.c.Uses[id]
			if sym == nil || sym.Kind != SymVar || inner[sym] || seen[sym] {
				return
			}
			if _, isLocal := lw.vars[sym]; !isLocal {
				return
			}
			seen[sym] = true
			out = append(out, sym)
		}
	})
	// Bindings created inside the subtree are not captures.
	var filtered []*Symbol
	defined := subtreeDefs(lw.c, n)
	for _, sym := range out {
		if !defined[sym] {
			filtered = append(filtered, sym)
		}
	}
	return filtered
}

func subtreeDefs(c *Checker, n Node) map[*Symbol]bool {
	out := make(map[*Symbol]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case *BlockExpr:
			for _, s := range x.Stmts {
				walk(s)
			}
			if x.Tail != nil {
				walk(x.Tail)
			}
		case *LetStmt:
			if sym := c.Defs[x]; sym != nil {
				out[sym] = true
			}
		case *ForStmt:
			if sym := c.Defs[x]; sym != nil {
				out[sym] = true
			}
			walk(x.Body)
		case *WhileStmt:
			walk(x.Body)
		case *LoopStmt:
			walk(x.Body)
		case *ExprStmt:
			walk(x.Expr)
		case *If:
			walk(x.Then)
			if x.Else != nil {
				walk(x.Else)
			}
		case *Match:
			for i := range x.Arms {
				walk(x.Arms[i].Body)
			}
		}
	}
	walk(n)
	return out
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (lw *lowerer) expr(e Expr) Reg {
	switch n := e.(type) {
	case *IntLit:
		t := lw.c.TypeOf(n)
		if t.Kind == KindFloat {
			dst := lw.newReg(lw.c.ts.Float)
			lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: float64(n.Value)})
			return dst
		}
		dst := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: n.Value})
		return dst

	case *FloatLit:
		dst := lw.newReg(lw.c.ts.Float)
		lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: n.Value})
		return dst

	case *BoolLit:
		dst := lw.newReg(lw.c.ts.Bool)
		imm := int64(0)
		if n.Value {
			imm = 1
		}
		lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: imm})
		return dst

	case *StringLit:
		return lw.stringLit(n)

	case *CharLit:
		dst := lw.newReg(lw.c.ts.Char)
		lw.emit(Instr{Op: OpConstChar, Dst: dst, Imm: int64(n.Value)})
		return dst

	case *NullLit:
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpConstNull, Dst: dst})
		return dst

	case *ArrayLit:
		args := make([]Reg, len(n.Elements))
		for i, el := range n.Elements {
			args[i] = lw.expr(el)
		}
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpNewArray, Dst: dst, Args: args})
		return dst

	case *Ident:
		return lw.ident(n)

	case *Unary:
		operand := lw.expr(n.Operand)
		dst := lw.newReg(lw.c.TypeOf(n))
		op := OpNeg
		if n.Op == TokenBang {
			op = OpNot
		}
		if folded, ok := lw.foldUnary(op, operand, dst); ok {
			return folded
		}
		lw.emit(Instr{Op: op, Dst: dst, A: operand})
		return dst

	case *Binary:
		return lw.binary(n)

	case *Call:
		return lw.call(n)

	case *Index:
		target := lw.expr(n.Target)
		idx := lw.expr(n.Idx)
		dst := lw.newReg(lw.c.TypeOf(n))
		op := OpArrayGet
		if lw.c.TypeOf(n.Target).Kind == KindString {
			op = OpStrIndex
		}
		lw.emit(Instr{Op: op, Dst: dst, A: target, B: idx})
		return dst

	case *Field:
		obj := lw.expr(n.Target)
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpFieldGet, Dst: dst, A: obj, SImm: n.Name})
		return dst

	case *StructLit:
		return lw.structLit(n)

	case *Closure:
		return lw.closure(n)

	case *If:
		return lw.ifExpr(n)

	case *Match:
		return lw.match(n)

	case *BlockExpr:
		return lw.block(n)

	case *BadExpr:
		return lw.unsupported(n.SpanVal, "cannot generate code for a malformed expression")
	}
	return lw.unsupported(e.Span(), "cannot generate code for this expression")
}

func (lw *lowerer) ident(n *Ident) Reg {
	sym := lw.c.Uses[n]
	if sym == nil {
		// Unit variant value.
		if defs := lw.c.variantEnums[n.Name]; len(defs) == 1 {
			def := defs[0]
			dst := lw.newReg(lw.c.TypeOf(n))
			lw.emit(Instr{Op: OpNewEnum, Dst: dst, SImm: def.Sym.Name, Imm: int64(def.VariantIndex(n.Name))})
			return dst
		}
		return lw.unsupported(n.SpanVal, "unresolved name %s", n.Name)
	}
	switch sym.Kind {
	case SymConst:
		if v, ok := lw.c.ConstVals[sym.Name]; ok {
			return lw.constValue(v, sym.Type, n.SpanVal)
		}
		return lw.unsupported(n.SpanVal, "constant %s has no value", n.Name)
	case SymFunc:
		// A named function used as a value becomes a closure with no
		// captures.
		def := lw.c.funcs[sym.Name]
		if def == nil {
			return lw.unsupported(n.SpanVal, "unresolved function %s", n.Name)
		}
		if len(def.Generics) > 0 {
			return lw.unsupported(n.SpanVal,
				"generic function %s must be called directly", n.Name)
		}
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpMakeClosure, Dst: dst, SImm: irName(def)})
		return dst
	}
	r, ok := lw.vars[sym]
	if !ok {
		return lw.unsupported(n.SpanVal, "%s is not available here", n.Name)
	}
	if hasAttr(sym.Attrs, AttrAtomic) {
		dst := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpAtomicLoad, Dst: dst, A: r})
		return dst
	}
	return r
}

func (lw *lowerer) stringLit(n *StringLit) Reg {
	if n.Parts == nil {
		dst := lw.newReg(lw.c.ts.String)
		lw.emit(Instr{Op: OpConstString, Dst: dst, SImm: n.Value})
		return dst
	}
	var acc Reg
	for _, part := range n.Parts {
		var piece Reg
		if part.Expr == nil {
			piece = lw.newReg(lw.c.ts.String)
			lw.emit(Instr{Op: OpConstString, Dst: piece, SImm: part.Text})
		} else {
			val := lw.expr(part.Expr)
			if lw.c.TypeOf(part.Expr).Kind == KindString {
				piece = val
			} else {
				piece = lw.newReg(lw.c.ts.String)
				lw.emit(Instr{Op: OpToString, Dst: piece, A: val})
			}
		}
		if acc == 0 {
			acc = piece
			continue
		}
		next := lw.newReg(lw.c.ts.String)
		lw.emit(Instr{Op: OpConcat, Dst: next, A: acc, B: piece})
		acc = next
	}
	if acc == 0 {
		acc = lw.newReg(lw.c.ts.String)
		lw.emit(Instr{Op: OpConstString, Dst: acc})
	}
	return acc
}

func (lw *lowerer) binary(n *Binary) Reg {
	// Short-circuit operators lower to branches.
	if n.Op == TokenAndAnd || n.Op == TokenOrOr {
		dst := lw.newReg(lw.c.ts.Bool)
		left := lw.expr(n.Left)
		lw.emit(Instr{Op: OpMove, Dst: dst, A: left})
		skip := lw.newLabel()
		if n.Op == TokenAndAnd {
			// dst false -> done
			lw.emit(Instr{Op: OpBranch, A: dst, Target: skip})
			right := lw.expr(n.Right)
			lw.emit(Instr{Op: OpMove, Dst: dst, A: right})
		} else {
			// dst true -> done
			inv := lw.newReg(lw.c.ts.Bool)
			lw.emit(Instr{Op: OpNot, Dst: inv, A: dst})
			lw.emit(Instr{Op: OpBranch, A: inv, Target: skip})
			right := lw.expr(n.Right)
			lw.emit(Instr{Op: OpMove, Dst: dst, A: right})
		}
		lw.mark(skip)
		return dst
	}

	left := lw.expr(n.Left)
	right := lw.expr(n.Right)
	resultT := lw.c.TypeOf(n)
	operandT := lw.c.TypeOf(n.Left)

	var op Op
	switch n.Op {
	case TokenPlus:
		if operandT.Kind == KindString {
			op = OpConcat
		} else {
			op = OpAdd
		}
	case TokenMinus:
		op = OpSub
	case TokenStar:
		op = OpMul
	case TokenSlash:
		op = OpDiv
	case TokenPercent:
		op = OpMod
	case TokenEq:
		op = OpEq
	case TokenNotEq:
		op = OpNe
	case TokenLess:
		op = OpLt
	case TokenLessEq:
		op = OpLe
	case TokenGreater:
		op = OpGt
	case TokenGreaterEq:
		op = OpGe
	default:
		return lw.unsupported(n.SpanVal, "operator %s cannot be lowered", tokenNames[n.Op])
	}

	dst := lw.newReg(resultT)
	if folded, ok := lw.foldBinary(op, left, right, dst); ok {
		return folded
	}
	lw.emit(Instr{Op: op, Dst: dst, A: left, B: right})
	return dst
}

// foldBinary replaces an arithmetic op on two constants with the computed
// constant.
func (lw *lowerer) foldBinary(op Op, a, b Reg, dst Reg) (Reg, bool) {
	ca, okA := lw.consts[a]
	cb, okB := lw.consts[b]
	if !okA || !okB {
		return 0, false
	}
	if ca.Op == OpConstInt && cb.Op == OpConstInt {
		x, y := ca.Imm, cb.Imm
		switch op {
		case OpAdd:
			lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: x + y})
		case OpSub:
			lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: x - y})
		case OpMul:
			lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: x * y})
		case OpDiv:
			if y == 0 {
				return 0, false
			}
			lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: x / y})
		case OpMod:
			if y == 0 {
				return 0, false
			}
			lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: x % y})
		case OpEq:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x == y)})
		case OpNe:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x != y)})
		case OpLt:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x < y)})
		case OpLe:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x <= y)})
		case OpGt:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x > y)})
		case OpGe:
			lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: boolImm(x >= y)})
		default:
			return 0, false
		}
		return dst, true
	}
	if ca.Op == OpConstFloat && cb.Op == OpConstFloat {
		x, y := ca.FImm, cb.FImm
		switch op {
		case OpAdd:
			lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: x + y})
		case OpSub:
			lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: x - y})
		case OpMul:
			lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: x * y})
		case OpDiv:
			lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: x / y})
		default:
			return 0, false
		}
		return dst, true
	}
	if ca.Op == OpConstString && cb.Op == OpConstString && op == OpConcat {
		lw.emit(Instr{Op: OpConstString, Dst: dst, SImm: ca.SImm + cb.SImm})
		return dst, true
	}
	return 0, false
}

func (lw *lowerer) foldUnary(op Op, a Reg, dst Reg) (Reg, bool) {
	ca, ok := lw.consts[a]
	if !ok {
		return 0, false
	}
	switch {
	case op == OpNeg && ca.Op == OpConstInt:
		lw.emit(Instr{Op: OpConstInt, Dst: dst, Imm: -ca.Imm})
		return dst, true
	case op == OpNeg && ca.Op == OpConstFloat:
		lw.emit(Instr{Op: OpConstFloat, Dst: dst, FImm: -ca.FImm})
		return dst, true
	case op == OpNot && ca.Op == OpConstBool:
		lw.emit(Instr{Op: OpConstBool, Dst: dst, Imm: 1 - ca.Imm})
		return dst, true
	}
	return 0, false
}

func boolImm(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (lw *lowerer) structLit(n *StructLit) Reg {
	def := lw.c.LitDefs[n]
	if def == nil {
		return lw.unsupported(n.SpanVal, "unresolved struct literal %s", n.Name)
	}
	args := make([]Reg, len(def.Fields))
	for _, f := range n.Fields {
		i := def.FieldIndex(f.Name)
		if i < 0 {
			continue
		}
		args[i] = lw.expr(f.Value)
	}
	dst := lw.newReg(lw.c.ts.Struct(n.Name, nil))
	lw.emit(Instr{Op: OpNewStruct, Dst: dst, SImm: n.Name, Args: args})
	return dst
}

func (lw *lowerer) closure(n *Closure) Reg {
	fnT := lw.subType(lw.c.TypeOf(n))
	free := lw.freeVars(n.Body, paramSyms(lw.c, n))
	name := fmt.Sprintf("%s.closure%d", lw.fn.Name, lw.closureSeq)
	lw.closureSeq++

	inner := &Func{
		Name:     name,
		Ret:      fnT.Ret,
		RegTypes: []*Type{nil},
	}
	lw.program.Funcs = append(lw.program.Funcs, inner)

	outerFn, outerVars, outerConsts, outerCaptured := lw.fn, lw.vars, lw.consts, lw.captured
	lw.fn = inner
	lw.vars = make(map[*Symbol]Reg)
	lw.consts = make(map[Reg]*Instr)
	lw.captured = make(map[*Symbol]bool)

	var capRegs []Reg
	for _, capSym := range free {
		r := lw.newReg(capSym.Type)
		inner.Params = append(inner.Params, r)
		lw.vars[capSym] = r
		lw.captured[capSym] = true
		capRegs = append(capRegs, outerVars[capSym])
	}
	for i := range n.Params {
		sym := lw.c.Defs[&n.Params[i]]
		t := lw.c.ts.Int
		if i < len(fnT.Elems) {
			t = fnT.Elems[i]
		}
		r := lw.newReg(t)
		inner.Params = append(inner.Params, r)
		if sym != nil {
			lw.vars[sym] = r
		}
	}

	lw.emit(Instr{Op: OpRegionPush})
	var result Reg
	if b, ok := n.Body.(*BlockExpr); ok {
		result = lw.block(b)
	} else {
		result = lw.expr(n.Body)
	}
	lw.emit(Instr{Op: OpRegionPop})
	if Resolve(fnT.Ret).Kind == KindVoid || result == 0 {
		lw.emit(Instr{Op: OpReturnVoid})
	} else {
		lw.emit(Instr{Op: OpReturn, A: result})
	}

	lw.fn, lw.vars, lw.consts, lw.captured = outerFn, outerVars, outerConsts, outerCaptured

	dst := lw.newReg(fnT)
	lw.emit(Instr{Op: OpMakeClosure, Dst: dst, SImm: name, Args: capRegs})
	return dst
}

func paramSyms(c *Checker, n *Closure) map[*Symbol]bool {
	out := make(map[*Symbol]bool, len(n.Params))
	for i := range n.Params {
		if sym := c.Defs[&n.Params[i]]; sym != nil {
			out[sym] = true
		}
	}
	return out
}

func (lw *lowerer) ifExpr(n *If) Reg {
	resultT := lw.c.TypeOf(n)
	var result Reg
	if resultT.Kind != KindVoid && resultT.Kind != KindError {
		result = lw.newReg(resultT)
	}

	elseLbl := lw.newLabel()
	endLbl := lw.newLabel()

	cond := lw.expr(n.Cond)
	lw.emit(Instr{Op: OpBranch, A: cond, Target: elseLbl})

	thenVal := lw.block(n.Then)
	if result != 0 && thenVal != 0 {
		lw.emit(Instr{Op: OpMove, Dst: result, A: thenVal})
	}
	lw.emit(Instr{Op: OpJump, Target: endLbl})

	lw.mark(elseLbl)
	if n.Else != nil {
		var elseVal Reg
		switch el := n.Else.(type) {
		case *BlockExpr:
			elseVal = lw.block(el)
		default:
			elseVal = lw.expr(el)
		}
		if result != 0 && elseVal != 0 {
			lw.emit(Instr{Op: OpMove, Dst: result, A: elseVal})
		}
	}
	lw.mark(endLbl)
	return result
}

func (lw *lowerer) match(n *Match) Reg {
	resultT := lw.c.TypeOf(n)
	var result Reg
	if resultT.Kind != KindVoid && resultT.Kind != KindError {
		result = lw.newReg(resultT)
	}

	subj := lw.expr(n.Subject)
	endLbl := lw.newLabel()
	armEnums := lw.c.PatEnums[n]

	for i := range n.Arms {
		arm := &n.Arms[i]
		nextLbl := lw.newLabel()

		var def *EnumDef
		if i < len(armEnums) {
			def = armEnums[i]
		}
		lw.matchArmTest(&arm.Pattern, subj, def, nextLbl)
		lw.bindArm(&arm.Pattern, subj, def)

		val := lw.expr(arm.Body)
		if result != 0 && val != 0 {
			lw.emit(Instr{Op: OpMove, Dst: result, A: val})
		}
		lw.emit(Instr{Op: OpJump, Target: endLbl})
		lw.mark(nextLbl)
	}
	lw.mark(endLbl)
	return result
}

// matchArmTest emits the branch to nextLbl when the pattern does not match.
func (lw *lowerer) matchArmTest(pat *Pattern, subj Reg, def *EnumDef, nextLbl Label) {
	switch {
	case pat.Wildcard:
		// always matches
	case pat.Lit != nil:
		lit := lw.expr(pat.Lit)
		eq := lw.newReg(lw.c.ts.Bool)
		lw.emit(Instr{Op: OpEq, Dst: eq, A: subj, B: lit})
		lw.emit(Instr{Op: OpBranch, A: eq, Target: nextLbl})
	case pat.Variant && def != nil:
		idx := def.VariantIndex(pat.Name)
		tag := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpEnumTag, Dst: tag, A: subj})
		want := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpConstInt, Dst: want, Imm: int64(idx)})
		eq := lw.newReg(lw.c.ts.Bool)
		lw.emit(Instr{Op: OpEq, Dst: eq, A: tag, B: want})
		lw.emit(Instr{Op: OpBranch, A: eq, Target: nextLbl})
	default:
		// name binding matches anything
	}
}

// bindArm materializes pattern bindings into registers.
func (lw *lowerer) bindArm(pat *Pattern, subj Reg, def *EnumDef) {
	switch {
	case pat.Variant && def != nil:
		for i := range pat.Binds {
			sym := lw.c.PatSyms[patternBindKey{pat, i}]
			if sym == nil || pat.Binds[i] == "_" {
				continue
			}
			dst := lw.newReg(sym.Type)
			lw.emit(Instr{Op: OpEnumField, Dst: dst, A: subj, Imm: int64(i)})
			lw.vars[sym] = dst
		}
	case !pat.Wildcard && pat.Lit == nil && pat.Name != "":
		if sym := lw.c.PatSyms[patternBindKey{pat, -1}]; sym != nil {
			lw.vars[sym] = subj
		}
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (lw *lowerer) call(n *Call) Reg {
	// Folded @comptime result.
	if v, ok := lw.c.Comptime[n]; ok {
		return lw.constValue(v, lw.c.TypeOf(n), n.SpanVal)
	}
	if n.Comptime {
		// Evaluation failed and was already reported.
		return lw.zeroValue(lw.c.TypeOf(n))
	}

	// Builtins
	if id, ok := n.Callee.(*Ident); ok {
		if sym := lw.c.Uses[id]; sym != nil && sym.Kind == SymBuiltin {
			return lw.builtinCall(n, id.Name)
		}
		// Variant construction
		if lw.c.Uses[id] == nil {
			if defs := lw.c.variantEnums[id.Name]; len(defs) == 1 {
				def := defs[0]
				args := make([]Reg, len(n.Args))
				for i, a := range n.Args {
					args[i] = lw.expr(a)
				}
				dst := lw.newReg(lw.c.TypeOf(n))
				lw.emit(Instr{Op: OpNewEnum, Dst: dst, SImm: def.Sym.Name,
					Imm: int64(def.VariantIndex(id.Name)), Args: args})
				return dst
			}
		}
	}

	if field, ok := n.Callee.(*Field); ok {
		if id, isIdent := field.Target.(*Ident); isIdent {
			if sym := lw.c.Uses[id]; sym != nil && sym.Kind == SymBuiltin && id.Name == "parallel" {
				return lw.parallelCall(n, field.Name)
			}
		}
		if sym := lw.c.atomicSym(field.Target); sym != nil {
			if r, handled := lw.atomicCall(n, sym, field.Name); handled {
				return r
			}
		}
	}

	// Resolved direct call (function or method).
	if def, ok := lw.c.CallDefs[n]; ok {
		if hasAttr(def.Decl.Attrs, AttrMacro) || hasAttr(def.Decl.Attrs, AttrComptime) {
			return lw.unsupported(n.SpanVal,
				"%s only runs at compile time; prefix the call with @comptime", def.Decl.Name)
		}
		var args []Reg
		if field, isMethod := n.Callee.(*Field); isMethod && def.Receiver != "" {
			args = append(args, lw.expr(field.Target))
		}
		for _, a := range n.Args {
			args = append(args, lw.expr(a))
		}
		dst := Reg(0)
		if Resolve(def.Type.Ret).Kind != KindVoid {
			dst = lw.newReg(lw.c.TypeOf(n))
		}
		op := OpCall
		if def.Extern != "" {
			op = OpCallExtern
		}
		name := irName(def)
		if len(def.Generics) > 0 {
			name = lw.requestInstance(def, n)
		}
		lw.emit(Instr{Op: op, Dst: dst, SImm: name, Args: args})
		return dst
	}

	// Closure-valued callee.
	callee := lw.expr(n.Callee)
	args := make([]Reg, len(n.Args))
	for i, a := range n.Args {
		args[i] = lw.expr(a)
	}
	dst := Reg(0)
	if lw.c.TypeOf(n).Kind != KindVoid {
		dst = lw.newReg(lw.c.TypeOf(n))
	}
	lw.emit(Instr{Op: OpCallClosure, Dst: dst, A: callee, Args: args})
	return dst
}

// requestInstance derives the generic-parameter bindings for a call to a
// generic function from the checked argument and result types, queues the
// instantiation if it is new, and returns its IR name.
func (lw *lowerer) requestInstance(def *FuncDef, n *Call) string {
	subst := make(map[string]*Type)
	params := def.Type.Elems
	argAt := 0
	if _, isMethod := n.Callee.(*Field); isMethod && def.Receiver != "" {
		argAt = 1
	}
	for i, a := range n.Args {
		if argAt+i < len(params) {
			matchParams(params[argAt+i], lw.subType(lw.c.TypeOf(a)), subst)
		}
	}
	matchParams(def.Type.Ret, lw.subType(lw.c.TypeOf(n)), subst)
	for _, g := range def.Generics {
		if _, ok := subst[g]; !ok {
			// The checker reports unresolved generics; fall back to int
			// so lowering can continue.
			subst[g] = lw.c.ts.Int
		}
	}

	name := irName(def)
	for _, g := range def.Generics {
		name += "$" + subst[g].String()
	}
	if !lw.instances[name] {
		lw.instances[name] = true
		lw.pending = append(lw.pending, pendingInst{def: def, name: name, subst: subst})
	}
	return name
}

// matchParams structurally matches a declared type containing generic
// parameters against a concrete type, recording parameter bindings.
func matchParams(pattern, concrete *Type, out map[string]*Type) {
	pattern = Resolve(pattern)
	concrete = Resolve(concrete)
	if pattern.Kind == KindParam {
		if _, ok := out[pattern.Name]; !ok {
			out[pattern.Name] = concrete
		}
		return
	}
	if pattern.Elem != nil && concrete.Elem != nil {
		matchParams(pattern.Elem, concrete.Elem, out)
	}
	for i := 0; i < len(pattern.Elems) && i < len(concrete.Elems); i++ {
		matchParams(pattern.Elems[i], concrete.Elems[i], out)
	}
	for i := 0; i < len(pattern.Args) && i < len(concrete.Args); i++ {
		matchParams(pattern.Args[i], concrete.Args[i], out)
	}
	if pattern.Ret != nil && concrete.Ret != nil {
		matchParams(pattern.Ret, concrete.Ret, out)
	}
}

func (lw *lowerer) builtinCall(n *Call, name string) Reg {
	switch name {
	case "print":
		for _, a := range n.Args {
			val := lw.expr(a)
			if lw.c.TypeOf(a).Kind != KindString {
				s := lw.newReg(lw.c.ts.String)
				lw.emit(Instr{Op: OpToString, Dst: s, A: val})
				val = s
			}
			lw.emit(Instr{Op: OpPrint, A: val})
		}
		return 0
	case "len":
		val := lw.expr(n.Args[0])
		dst := lw.newReg(lw.c.ts.Int)
		op := OpArrayLen
		if lw.c.TypeOf(n.Args[0]).Kind == KindString {
			op = OpStrLen
		}
		lw.emit(Instr{Op: op, Dst: dst, A: val})
		return dst
	}
	return lw.unsupported(n.SpanVal, "builtin %s cannot be lowered", name)
}

// markPinned flags the allocation that produced r so it survives region
// release. Only fresh array and struct allocations can be pinned; anything
// else keeps the default scoped lifetime.
func (lw *lowerer) markPinned(r Reg) {
	for i := len(lw.fn.Instrs) - 1; i >= 0; i-- {
		in := &lw.fn.Instrs[i]
		if in.Dst != r {
			continue
		}
		if in.Op == OpNewArray || in.Op == OpNewStruct {
			in.Imm = 1
		}
		return
	}
}

// atomicCall lowers load/store/fetch_add on an @atomic binding. The cell
// register is used directly; going through ident() would read the value out.
func (lw *lowerer) atomicCall(n *Call, sym *Symbol, name string) (Reg, bool) {
	cell, ok := lw.vars[sym]
	if !ok {
		return 0, false
	}
	switch name {
	case "load":
		dst := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpAtomicLoad, Dst: dst, A: cell})
		return dst, true
	case "store":
		val := lw.expr(n.Args[0])
		lw.emit(Instr{Op: OpAtomicStore, Dst: cell, A: val})
		return 0, true
	case "fetch_add":
		delta := lw.expr(n.Args[0])
		dst := lw.newReg(lw.c.ts.Int)
		lw.emit(Instr{Op: OpAtomicAdd, Dst: cell, A: delta, B: dst})
		return dst, true
	}
	return 0, false
}

func (lw *lowerer) parallelCall(n *Call, op string) Reg {
	switch op {
	case "for":
		if len(n.Args) == 3 {
			start := lw.expr(n.Args[0])
			end := lw.expr(n.Args[1])
			body := lw.expr(n.Args[2])
			lw.emit(Instr{Op: OpParForRange, A: start, B: end, Args: []Reg{body}})
			return 0
		}
		arr := lw.expr(n.Args[0])
		body := lw.expr(n.Args[1])
		lw.emit(Instr{Op: OpParFor, A: arr, B: body})
		return 0
	case "map":
		arr := lw.expr(n.Args[0])
		body := lw.expr(n.Args[1])
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpParMap, Dst: dst, A: arr, B: body})
		return dst
	case "reduce":
		arr := lw.expr(n.Args[0])
		init := lw.expr(n.Args[1])
		comb := lw.expr(n.Args[2])
		dst := lw.newReg(lw.c.TypeOf(n))
		lw.emit(Instr{Op: OpParReduce, Dst: dst, A: arr, B: comb, Args: []Reg{init}})
		return dst
	}
	return lw.unsupported(n.SpanVal, "parallel.%s cannot be lowered", op)
}
