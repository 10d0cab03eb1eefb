package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
)

// ---------------------------------------------------------------------------
// Emission: IR -> Go source for the external toolchain
// ---------------------------------------------------------------------------

// RuntimeABI is the runtime call-signature revision compiled into generated
// programs. The runtime package carries the same number and generated code
// verifies the pair at startup.
const RuntimeABI = 1

// DefaultRuntimeImport is the import path generated programs link against.
const DefaultRuntimeImport = "github.com/z-lang/zc/runtime"

// emitter turns one IR program into a self-contained Go main package.
type emitter struct {
	p       *Program
	rt      string
	structs map[string]*StructDef
}

// EmitProgram renders an IR program as Go source. rtImport is the import
// path of the runtime support package; pass "" for the default.
func EmitProgram(p *Program, rtImport string) (string, error) {
	if rtImport == "" {
		rtImport = DefaultRuntimeImport
	}
	if p.FuncNamed("main") == nil {
		return "", fmt.Errorf("program %s has no main function", p.Name)
	}
	em := &emitter{p: p, rt: rtImport, structs: make(map[string]*StructDef)}
	for _, def := range p.Structs {
		em.structs[def.Sym.Name] = def
	}

	f := jen.NewFile("main")
	f.HeaderComment("Code generated by zc. DO NOT EDIT.")
	f.ImportName(rtImport, "runtime")

	f.Const().Id("zABI").Op("=").Lit(RuntimeABI)

	for _, def := range p.Structs {
		em.structType(f, def)
	}
	for _, def := range p.Enums {
		em.enumType(f, def)
	}

	for _, fn := range p.Funcs {
		if fn.Extern != "" {
			continue
		}
		em.function(f, fn)
	}

	entry := []jen.Code{jen.Qual(em.rt, "MustABI").Call(jen.Id("zABI"))}
	if p.Workers > 0 {
		entry = append(entry, jen.Qual(em.rt, "SetWorkers").Call(jen.Lit(p.Workers)))
	}
	entry = append(entry, jen.Id(goFuncName("main")).Call())
	f.Func().Id("main").Params().Block(entry...)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", p.Name, err)
	}
	return buf.String(), nil
}

// goFuncName maps an IR function name to a Go identifier. Dots separate
// receivers and closure suffixes; dollar signs separate generic
// instantiations.
func goFuncName(name string) string {
	var sb strings.Builder
	sb.WriteString("z_")
	for _, r := range name {
		switch r {
		case '.', '$', '[', ']', '(', ')', ',', ' ', '<', '>', '-':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func goTypeName(name string) string {
	return "zt_" + name
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true,
	"continue": true, "default": true, "defer": true, "else": true,
	"fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true,
	"map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true,
	"var": true,
}

// goFieldName keeps the source field name unless it collides with a Go
// keyword or the internal enum fields.
func goFieldName(name string) string {
	if goKeywords[name] || name == "tag" || name == "fs" {
		return name + "_"
	}
	return name
}

func regName(r Reg) string {
	return fmt.Sprintf("r%d", r)
}

func labelName(l Label) string {
	return fmt.Sprintf("L%d", l)
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func (em *emitter) goType(t *Type) *jen.Statement {
	if t == nil {
		return jen.Interface()
	}
	t = Resolve(t)
	switch t.Kind {
	case KindInt:
		return jen.Int64()
	case KindFloat:
		return jen.Float64()
	case KindBool:
		return jen.Bool()
	case KindString:
		return jen.String()
	case KindChar:
		return jen.Int32()
	case KindArray:
		return jen.Index().Add(em.goType(t.Elem))
	case KindStruct, KindEnum:
		return jen.Op("*").Id(goTypeName(t.Name))
	case KindFunc:
		params := make([]jen.Code, len(t.Elems))
		for i, p := range t.Elems {
			params[i] = em.goType(p)
		}
		st := jen.Func().Params(params...)
		if Resolve(t.Ret).Kind != KindVoid {
			st = st.Add(em.goType(t.Ret))
		}
		return st
	default:
		// null, unresolved inference variables, tuples
		return jen.Interface()
	}
}

// isAnyType reports whether a register type erases to interface{}.
func isAnyType(t *Type) bool {
	if t == nil {
		return true
	}
	switch Resolve(t).Kind {
	case KindInt, KindFloat, KindBool, KindString, KindChar,
		KindArray, KindStruct, KindEnum, KindFunc:
		return false
	}
	return true
}

func (em *emitter) structType(f *jen.File, def *StructDef) {
	if hasAttr(def.Decl.Attrs, AttrPacked) {
		f.Comment("layout: packed")
	}
	if a := findAttr(def.Decl.Attrs, AttrAlign); a != nil {
		f.Comment(fmt.Sprintf("layout: align(%s)", a.Args[0]))
	}
	fields := make([]jen.Code, len(def.Fields))
	for i, fd := range def.Fields {
		fields[i] = jen.Id(goFieldName(fd.Name)).Add(em.goType(fd.Type))
	}
	f.Type().Id(goTypeName(def.Sym.Name)).Struct(fields...)
}

// enumType emits the erased enum representation: a tag plus boxed payload.
// Generic payloads make a per-variant layout impractical in the target
// language, so fields are asserted back at use sites.
func (em *emitter) enumType(f *jen.File, def *EnumDef) {
	f.Type().Id(goTypeName(def.Sym.Name)).Struct(
		jen.Id("tag").Int64(),
		jen.Id("fs").Index().Interface(),
	)
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// atomicRegs identifies registers that hold runtime atomic cells rather
// than plain values.
func atomicRegs(fn *Func) map[Reg]bool {
	out := make(map[Reg]bool)
	for i := range fn.Instrs {
		in := &fn.Instrs[i]
		switch in.Op {
		case OpAtomicNew:
			out[in.Dst] = true
		case OpAtomicLoad:
			out[in.A] = true
		case OpAtomicStore, OpAtomicAdd:
			out[in.Dst] = true
		}
	}
	return out
}

func usedLabels(fn *Func) map[Label]bool {
	out := make(map[Label]bool)
	for i := range fn.Instrs {
		switch fn.Instrs[i].Op {
		case OpJump, OpBranch:
			out[fn.Instrs[i].Target] = true
		}
	}
	return out
}

func (em *emitter) function(f *jen.File, fn *Func) {
	if fn.Simd {
		f.Comment("simd: vectorization hint")
	}
	if fn.Export {
		f.Comment(fmt.Sprintf("exported symbol: %s", fn.Name))
	}

	atomic := atomicRegs(fn)
	used := usedLabels(fn)

	isParam := make(map[Reg]bool, len(fn.Params))
	params := make([]jen.Code, len(fn.Params))
	for i, r := range fn.Params {
		isParam[r] = true
		params[i] = jen.Id(regName(r)).Add(em.regType(fn, r, atomic))
	}

	var body []jen.Code

	// All registers are declared up front so jumps never cross a
	// declaration.
	var locals []Reg
	for r := 1; r < len(fn.RegTypes); r++ {
		if !isParam[Reg(r)] {
			locals = append(locals, Reg(r))
		}
	}
	for _, r := range locals {
		body = append(body, jen.Var().Id(regName(r)).Add(em.regType(fn, r, atomic)))
	}
	if len(locals) > 0 {
		lhs := make([]jen.Code, len(locals))
		rhs := make([]jen.Code, len(locals))
		for i, r := range locals {
			lhs[i] = jen.Id("_")
			rhs[i] = jen.Id(regName(r))
		}
		body = append(body, jen.List(lhs...).Op("=").List(rhs...))
	}

	for i := range fn.Instrs {
		body = append(body, em.instr(fn, &fn.Instrs[i], atomic, used)...)
	}

	decl := f.Func().Id(goFuncName(fn.Name)).Params(params...)
	if Resolve(fn.Ret).Kind != KindVoid {
		decl = decl.Add(em.goType(fn.Ret))
	}
	decl.Block(body...)
}

func (em *emitter) regType(fn *Func, r Reg, atomic map[Reg]bool) *jen.Statement {
	if atomic[r] {
		return jen.Op("*").Qual(em.rt, "AtomicInt")
	}
	return em.goType(fn.RegTypes[r])
}

func (em *emitter) instr(fn *Func, in *Instr, atomic map[Reg]bool, used map[Label]bool) []jen.Code {
	dst := jen.Id(regName(in.Dst))
	a := jen.Id(regName(in.A))
	b := jen.Id(regName(in.B))
	set := func(rhs jen.Code) []jen.Code {
		return []jen.Code{jen.Id(regName(in.Dst)).Op("=").Add(rhs)}
	}
	args := func(extra ...jen.Code) []jen.Code {
		out := append([]jen.Code{}, extra...)
		for _, r := range in.Args {
			out = append(out, jen.Id(regName(r)))
		}
		return out
	}
	binop := func(op string) []jen.Code {
		return set(jen.Id(regName(in.A)).Op(op).Id(regName(in.B)))
	}

	switch in.Op {
	case OpConstInt:
		return set(jen.Lit(int(in.Imm)))
	case OpConstFloat:
		return set(jen.Lit(in.FImm))
	case OpConstBool:
		return set(jen.Lit(in.Imm != 0))
	case OpConstString:
		return set(jen.Lit(in.SImm))
	case OpConstChar:
		return set(jen.Lit(int(in.Imm)))
	case OpConstNull:
		return set(jen.Nil())

	case OpMove:
		return set(a)
	case OpAdd:
		return binop("+")
	case OpSub:
		return binop("-")
	case OpMul:
		return binop("*")
	case OpDiv:
		return binop("/")
	case OpMod:
		return binop("%")
	case OpNeg:
		return set(jen.Op("-").Add(a))
	case OpNot:
		return set(jen.Op("!").Add(a))
	case OpConcat:
		return binop("+")
	case OpToString:
		return set(jen.Qual(em.rt, "String").Call(a))

	case OpEq:
		return binop("==")
	case OpNe:
		return binop("!=")
	case OpLt:
		return binop("<")
	case OpLe:
		return binop("<=")
	case OpGt:
		return binop(">")
	case OpGe:
		return binop(">=")

	case OpNewArray:
		elem := jen.Interface()
		if t := Resolve(fn.RegTypes[in.Dst]); t.Kind == KindArray {
			elem = em.goType(t.Elem)
		}
		alloc := "AllocSlice"
		if in.Imm != 0 {
			alloc = "AllocPinnedSlice"
		}
		return set(jen.Qual(em.rt, alloc).Index(elem).Call(args(jen.Id("zr"))...))
	case OpArrayGet:
		return set(a.Index(b))
	case OpArraySet:
		return []jen.Code{dst.Index(a).Op("=").Add(b)}
	case OpArrayLen:
		return set(jen.Int64().Call(jen.Len(a)))

	case OpNewStruct:
		def := em.structs[in.SImm]
		fields := jen.Dict{}
		for i, r := range in.Args {
			if r == 0 || def == nil || i >= len(def.Fields) {
				continue
			}
			fields[jen.Id(goFieldName(def.Fields[i].Name))] = jen.Id(regName(r))
		}
		lit := jen.Op("&").Id(goTypeName(in.SImm)).Values(fields)
		alloc := "Alloc"
		if in.Imm != 0 {
			alloc = "AllocPinned"
		}
		return set(jen.Qual(em.rt, alloc).Call(jen.Id("zr"), lit))
	case OpFieldGet:
		return set(a.Dot(goFieldName(in.SImm)))
	case OpFieldSet:
		return []jen.Code{dst.Dot(goFieldName(in.SImm)).Op("=").Add(a)}

	case OpNewEnum:
		fields := jen.Dict{jen.Id("tag"): jen.Lit(int(in.Imm))}
		if len(in.Args) > 0 {
			fields[jen.Id("fs")] = jen.Index().Interface().Values(args()...)
		}
		lit := jen.Op("&").Id(goTypeName(in.SImm)).Values(fields)
		return set(jen.Qual(em.rt, "Alloc").Call(jen.Id("zr"), lit))
	case OpEnumTag:
		return set(a.Dot("tag"))
	case OpEnumField:
		get := a.Dot("fs").Index(jen.Lit(int(in.Imm)))
		if !isAnyType(fn.RegTypes[in.Dst]) {
			get = get.Assert(em.goType(fn.RegTypes[in.Dst]))
		}
		return set(get)

	case OpStrLen:
		return set(jen.Qual(em.rt, "StrLen").Call(a))
	case OpStrIndex:
		return set(jen.Qual(em.rt, "StrIndex").Call(a, b))

	case OpRegionPush:
		return []jen.Code{jen.Id("zr").Op(":=").Qual(em.rt, "NewRegion").Call()}
	case OpRegionPop:
		return []jen.Code{jen.Id("zr").Dot("Release").Call()}
	case OpRegionFree:
		return []jen.Code{jen.Id("zr").Dot("Drop").Call()}

	case OpAtomicNew:
		return set(jen.Qual(em.rt, "NewAtomicInt").Call(a))
	case OpAtomicLoad:
		return set(a.Dot("Load").Call())
	case OpAtomicStore:
		return []jen.Code{dst.Dot("Store").Call(a)}
	case OpAtomicAdd:
		if in.B != 0 {
			return []jen.Code{jen.Id(regName(in.B)).Op("=").Add(dst.Dot("FetchAdd").Call(a))}
		}
		return []jen.Code{dst.Dot("Add").Call(a)}

	case OpLabel:
		if !used[in.Target] {
			return nil
		}
		return []jen.Code{jen.Id(labelName(in.Target)).Op(":")}
	case OpJump:
		return []jen.Code{jen.Goto().Id(labelName(in.Target))}
	case OpBranch:
		return []jen.Code{jen.If(jen.Op("!").Add(a)).Block(jen.Goto().Id(labelName(in.Target)))}
	case OpReturn:
		return []jen.Code{jen.Return(a)}
	case OpReturnVoid:
		return []jen.Code{jen.Return()}

	case OpCall:
		call := jen.Id(goFuncName(in.SImm)).Call(args()...)
		if in.Dst == 0 {
			return []jen.Code{call}
		}
		return set(call)
	case OpCallExtern:
		call := jen.Qual(em.rt, "ExternCall").Call(args(jen.Lit(in.SImm))...)
		if in.Dst == 0 {
			return []jen.Code{call}
		}
		if !isAnyType(fn.RegTypes[in.Dst]) {
			call = call.Assert(em.goType(fn.RegTypes[in.Dst]))
		}
		return set(call)
	case OpMakeClosure:
		return set(em.closureLit(in))
	case OpCallClosure:
		call := a.Call(args()...)
		if in.Dst == 0 {
			return []jen.Code{call}
		}
		return set(call)

	case OpPrint:
		return []jen.Code{jen.Qual(em.rt, "Print").Call(a)}
	case OpParFor:
		return []jen.Code{jen.Qual(em.rt, "For").Call(a, b)}
	case OpParForRange:
		// The body closure may return a value; wrapping it discards the
		// result so ForRange takes a uniform func(int64).
		wrap := jen.Func().Params(jen.Id("zi").Int64()).Block(
			jen.Id(regName(in.Args[0])).Call(jen.Id("zi")),
		)
		return []jen.Code{jen.Qual(em.rt, "ForRange").Call(a, b, wrap)}
	case OpParMap:
		return set(jen.Qual(em.rt, "Map").Call(a, b))
	case OpParReduce:
		init := jen.Null()
		if len(in.Args) > 0 {
			init = jen.Id(regName(in.Args[0]))
		}
		return set(jen.Qual(em.rt, "Reduce").Call(a, init, b))
	}
	return nil
}

// closureLit builds the function literal for closure.new: captures are bound
// now, declared parameters forward to the lifted function.
func (em *emitter) closureLit(in *Instr) *jen.Statement {
	inner := em.p.FuncNamed(in.SImm)
	if inner == nil {
		return jen.Nil()
	}
	atomic := atomicRegs(inner)
	nCaps := len(in.Args)

	var params []jen.Code
	var fwd []jen.Code
	for _, r := range in.Args {
		fwd = append(fwd, jen.Id(regName(r)))
	}
	for i := nCaps; i < len(inner.Params); i++ {
		pr := inner.Params[i]
		pn := fmt.Sprintf("zp%d", i-nCaps)
		params = append(params, jen.Id(pn).Add(em.regType(inner, pr, atomic)))
		fwd = append(fwd, jen.Id(pn))
	}

	call := jen.Id(goFuncName(inner.Name)).Call(fwd...)
	lit := jen.Func().Params(params...)
	if Resolve(inner.Ret).Kind != KindVoid {
		lit = lit.Add(em.goType(inner.Ret))
		return lit.Block(jen.Return(call))
	}
	return lit.Block(call)
}
