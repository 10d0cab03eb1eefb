package compiler

// ---------------------------------------------------------------------------
// Type inference: bidirectional checking with structural unification
// ---------------------------------------------------------------------------

func (c *Checker) inferFile() {
	// Const types first; function bodies may reference them.
	for _, item := range c.file.Items {
		if n, ok := item.(*ConstDecl); ok {
			c.inferConst(n)
		}
	}
	for _, def := range c.Funcs() {
		if def.Decl.Body != nil {
			c.checkFunc(def)
		}
	}
}

func (c *Checker) inferConst(n *ConstDecl) {
	sym := c.global.LookupLocal(n.Name)
	if sym == nil || sym.Decl != n {
		return
	}
	scope := NewScope(c.global)
	got := c.inferExpr(scope, n.Value, sym.Type)
	if sym.Type == nil {
		sym.Type = c.ts.resolveDeep(got)
	}
}

func (c *Checker) checkFunc(def *FuncDef) {
	c.curFunc = def
	c.curRet = def.Type.Ret
	c.loopDepth = 0
	defer func() { c.curFunc = nil }()

	scope := NewScope(c.global)
	for i := range def.Decl.Params {
		p := &def.Decl.Params[i]
		sym := &Symbol{
			Name:   p.Name,
			Kind:   SymVar,
			Type:   def.Type.Elems[i],
			Decl:   p,
			Used:   p.Name == "_" || p.Name == "self",
			Region: -1,
		}
		scope.Define(sym)
		c.Defs[p] = sym
	}

	bodyType := c.inferBlock(scope, def.Decl.Body, nil)
	// A non-void trailing expression must match the return type.
	if def.Decl.Body.Tail != nil {
		c.unify(bodyType, c.curRet, def.Decl.Body.Tail.Span())
	}
	c.reportUnused(scope)
}

// reportUnused warns about bindings in a scope that were never read.
func (c *Checker) reportUnused(scope *Scope) {
	for _, sym := range scope.Locals() {
		if sym.Used || sym.Kind != SymVar || sym.Name == "_" {
			continue
		}
		c.diags.Warnf(CategoryType, CodeUnusedBinding, declSpan(sym),
			"%s is never used", sym.Name)
	}
}

func declSpan(sym *Symbol) Span {
	if sym.Decl != nil {
		return sym.Decl.Span()
	}
	return ZeroSpan()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// inferBlock checks a block in a fresh child scope and returns the type of
// its tail expression, or void.
func (c *Checker) inferBlock(scope *Scope, b *BlockExpr, want *Type) *Type {
	inner := NewScope(scope)
	reachable := true
	for _, s := range b.Stmts {
		if !reachable {
			c.diags.Warnf(CategoryType, CodeUnreachableCode, s.Span(), "unreachable code")
			reachable = true // one warning per dead run
		}
		c.inferStmt(inner, s)
		if terminates(s) {
			reachable = false
		}
	}
	t := c.ts.Void
	if b.Tail != nil {
		if !reachable {
			c.diags.Warnf(CategoryType, CodeUnreachableCode, b.Tail.Span(), "unreachable code")
		}
		t = c.inferExpr(inner, b.Tail, want)
	}
	c.ExprTypes[b] = t
	c.reportUnused(inner)
	return t
}

// terminates reports whether control cannot flow past a statement.
func terminates(s Stmt) bool {
	switch n := s.(type) {
	case *ReturnStmt, *BreakStmt, *ContinueStmt:
		return true
	case *LoopStmt:
		return !hasBreak(n.Body)
	}
	return false
}

// hasBreak reports whether a block contains a break not nested in an inner
// loop.
func hasBreak(b *BlockExpr) bool {
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *BreakStmt:
			return true
		case *ExprStmt:
			if ifExpr, ok := n.Expr.(*If); ok && ifHasBreak(ifExpr) {
				return true
			}
		case *WhileStmt, *ForStmt, *LoopStmt:
			// break binds to the inner loop
		}
	}
	if b.Tail != nil {
		if ifExpr, ok := b.Tail.(*If); ok && ifHasBreak(ifExpr) {
			return true
		}
	}
	return false
}

func ifHasBreak(e *If) bool {
	if hasBreak(e.Then) {
		return true
	}
	switch el := e.Else.(type) {
	case *BlockExpr:
		return hasBreak(el)
	case *If:
		return ifHasBreak(el)
	}
	return false
}

func (c *Checker) inferStmt(scope *Scope, s Stmt) {
	switch n := s.(type) {
	case *LetStmt:
		c.inferLet(scope, n)

	case *AssignStmt:
		c.inferAssign(scope, n)

	case *ExprStmt:
		c.inferExpr(scope, n.Expr, nil)

	case *ForStmt:
		iterT := Resolve(c.inferExpr(scope, n.Iter, nil))
		var elemT *Type
		switch iterT.Kind {
		case KindArray:
			elemT = iterT.Elem
		case KindInt:
			// for i in n iterates 0..n-1
			elemT = c.ts.Int
		case KindError:
			elemT = c.ts.Error
		default:
			c.diags.Addf(CategoryType, CodeMismatch, n.Iter.Span(),
				"cannot iterate over %s", iterT)
			elemT = c.ts.Error
		}
		inner := NewScope(scope)
		sym := &Symbol{Name: n.Var, Kind: SymVar, Type: elemT, Decl: n, Used: n.Var == "_", Region: -1}
		inner.Define(sym)
		c.Defs[n] = sym
		c.loopDepth++
		c.inferBlock(inner, n.Body, nil)
		c.loopDepth--
		c.reportUnused(inner)

	case *WhileStmt:
		condT := c.inferExpr(scope, n.Cond, c.ts.Bool)
		c.unify(condT, c.ts.Bool, n.Cond.Span())
		c.loopDepth++
		c.inferBlock(scope, n.Body, nil)
		c.loopDepth--

	case *LoopStmt:
		c.loopDepth++
		c.inferBlock(scope, n.Body, nil)
		c.loopDepth--

	case *ReturnStmt:
		if n.Value == nil {
			if Resolve(c.curRet).Kind != KindVoid {
				c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
					"bare return in function returning %s", c.curRet)
			}
			return
		}
		got := c.inferExpr(scope, n.Value, c.curRet)
		c.unify(got, c.curRet, n.Value.Span())

	case *BreakStmt:
		if c.loopDepth == 0 {
			c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.SpanVal,
				"break outside of a loop")
		}

	case *ContinueStmt:
		if c.loopDepth == 0 {
			c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.SpanVal,
				"continue outside of a loop")
		}

	case *FreeStmt:
		sym := scope.Lookup(n.Name)
		if sym == nil || sym.Kind != SymVar {
			c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
				"@free target %s is not a local binding", n.Name)
			return
		}
		sym.Used = true
		c.Defs[n] = sym
	}
}

func (c *Checker) inferLet(scope *Scope, n *LetStmt) {
	var declared *Type
	if n.Type != nil {
		declared = c.typeFromExpr(n.Type, c.genericParams())
	}
	got := c.inferExpr(scope, n.Value, declared)
	if declared != nil {
		c.unify(got, declared, n.Value.Span())
	} else {
		declared = c.ts.resolveDeep(got)
	}
	if hasAttr(n.Attrs, AttrAtomic) && Resolve(declared).Kind != KindInt {
		c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
			"@atomic bindings must be int, got %s", declared)
	}
	sym := &Symbol{
		Name:   n.Name,
		Kind:   SymVar,
		Type:   declared,
		Decl:   n,
		Attrs:  n.Attrs,
		Used:   n.Name == "_",
		Region: -1,
	}
	scope.Define(sym)
	c.Defs[n] = sym
}

func (c *Checker) inferAssign(scope *Scope, n *AssignStmt) {
	if !isLValue(n.Target) {
		c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.Target.Span(),
			"cannot assign to this expression")
		c.inferExpr(scope, n.Value, nil)
		return
	}
	targetT := c.inferExpr(scope, n.Target, nil)
	got := c.inferExpr(scope, n.Value, targetT)
	c.unify(got, targetT, n.Value.Span())
	// A const is not assignable.
	if id, ok := n.Target.(*Ident); ok {
		if sym := c.Uses[id]; sym != nil && sym.Kind == SymConst {
			c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.Target.Span(),
				"cannot assign to constant %s", sym.Name)
		}
	}
}

func isLValue(e Expr) bool {
	switch n := e.(type) {
	case *Ident:
		return true
	case *Index:
		return isLValue(n.Target)
	case *Field:
		return isLValue(n.Target)
	}
	return false
}

func (c *Checker) genericParams() map[string]bool {
	if c.curFunc == nil || len(c.curFunc.Generics) == 0 {
		return nil
	}
	m := make(map[string]bool, len(c.curFunc.Generics))
	for _, g := range c.curFunc.Generics {
		m[g] = true
	}
	return m
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// inferExpr computes and records an expression's type. want is the expected
// type from context, or nil; it guides literals and closures but the caller
// remains responsible for the final unification.
func (c *Checker) inferExpr(scope *Scope, e Expr, want *Type) *Type {
	t := c.inferExprInner(scope, e, want)
	c.ExprTypes[e] = t
	return t
}

func (c *Checker) inferExprInner(scope *Scope, e Expr, want *Type) *Type {
	switch n := e.(type) {
	case *IntLit:
		// An int literal in float context is a float literal.
		if want != nil && Resolve(want).Kind == KindFloat {
			return c.ts.Float
		}
		return c.ts.Int

	case *FloatLit:
		return c.ts.Float

	case *BoolLit:
		return c.ts.Bool

	case *StringLit:
		for _, part := range n.Parts {
			if part.Expr != nil {
				t := Resolve(c.inferExpr(scope, part.Expr, nil))
				if !printable(t) {
					c.diags.Addf(CategoryType, CodeMismatch, part.Expr.Span(),
						"cannot interpolate a value of type %s", t)
				}
			}
		}
		return c.ts.String

	case *CharLit:
		return c.ts.Char

	case *NullLit:
		if want != nil && nullable(Resolve(want)) {
			return Resolve(want)
		}
		return c.ts.Null

	case *ArrayLit:
		var elemT *Type
		if want != nil && Resolve(want).Kind == KindArray {
			elemT = Resolve(want).Elem
		} else {
			elemT = c.ts.Fresh()
		}
		for _, el := range n.Elements {
			got := c.inferExpr(scope, el, elemT)
			c.unify(got, elemT, el.Span())
		}
		return c.ts.Array(elemT)

	case *Ident:
		return c.inferIdent(scope, n)

	case *Unary:
		return c.inferUnary(scope, n)

	case *Binary:
		return c.inferBinary(scope, n)

	case *Call:
		return c.inferCall(scope, n, want)

	case *Index:
		targetT := Resolve(c.inferExpr(scope, n.Target, nil))
		idxT := c.inferExpr(scope, n.Idx, c.ts.Int)
		c.unify(idxT, c.ts.Int, n.Idx.Span())
		switch targetT.Kind {
		case KindArray:
			return targetT.Elem
		case KindString:
			return c.ts.Char
		case KindError:
			return c.ts.Error
		case KindVar:
			elem := c.ts.Fresh()
			c.unify(targetT, c.ts.Array(elem), n.Target.Span())
			return elem
		}
		c.diags.Addf(CategoryType, CodeMismatch, n.Target.Span(),
			"cannot index a value of type %s", targetT)
		return c.ts.Error

	case *Field:
		return c.inferField(scope, n)

	case *StructLit:
		return c.inferStructLit(scope, n)

	case *Closure:
		return c.inferClosure(scope, n, want)

	case *If:
		condT := c.inferExpr(scope, n.Cond, c.ts.Bool)
		c.unify(condT, c.ts.Bool, n.Cond.Span())
		thenT := c.inferBlock(scope, n.Then, want)
		if n.Else == nil {
			return c.ts.Void
		}
		var elseT *Type
		switch el := n.Else.(type) {
		case *BlockExpr:
			elseT = c.inferBlock(scope, el, want)
		default:
			elseT = c.inferExpr(scope, n.Else, want)
		}
		// Branches that both produce values must agree; statement position
		// ifs have void branches and unify trivially.
		if c.unify(elseT, thenT, n.SpanVal) {
			return thenT
		}
		return c.ts.Error

	case *Match:
		return c.inferMatch(scope, n, want)

	case *BlockExpr:
		return c.inferBlock(scope, n, want)

	case *BadExpr:
		return c.ts.Error
	}
	return c.ts.Error
}

func printable(t *Type) bool {
	switch t.Kind {
	case KindInt, KindFloat, KindBool, KindString, KindChar, KindError, KindVar:
		return true
	}
	return false
}

func nullable(t *Type) bool {
	switch t.Kind {
	case KindStruct, KindEnum, KindArray, KindString, KindFunc:
		return true
	}
	return false
}

func (c *Checker) inferIdent(scope *Scope, n *Ident) *Type {
	if n.Name == "_" {
		c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
			"_ cannot be used as a value")
		return c.ts.Error
	}
	sym := scope.Lookup(n.Name)
	if sym == nil {
		// An unqualified enum variant used as a value, e.g. None.
		if t := c.inferVariantValue(n); t != nil {
			return t
		}
		c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal, "undefined name %s", n.Name)
		return c.ts.Error
	}
	sym.Used = true
	c.Uses[n] = sym

	switch sym.Kind {
	case SymBuiltin:
		// Call positions are intercepted in inferCall before reaching here.
		c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.SpanVal,
			"%s can only be called", n.Name)
		return c.ts.Error
	case SymImport:
		c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
			"%s is a module, not a value", n.Name)
		return c.ts.Error
	case SymStruct, SymEnum:
		c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
			"%s is a type, not a value", n.Name)
		return c.ts.Error
	}
	if sym.Type == nil {
		return c.ts.Error
	}
	// Generic functions get fresh variables per use site.
	if sym.Kind == SymFunc && len(sym.Generics) > 0 {
		subst := make(map[string]*Type, len(sym.Generics))
		for _, g := range sym.Generics {
			subst[g] = c.ts.Fresh()
		}
		return c.ts.instantiate(sym.Type, subst)
	}
	return sym.Type
}

// inferVariantValue resolves a bare unit-variant name like None.
func (c *Checker) inferVariantValue(n *Ident) *Type {
	defs := c.variantEnums[n.Name]
	if len(defs) == 0 {
		return nil
	}
	if len(defs) > 1 {
		c.diags.Addf(CategoryName, CodeAmbiguousImport, n.SpanVal,
			"variant %s is declared by multiple enums", n.Name)
		return c.ts.Error
	}
	def := defs[0]
	idx := def.VariantIndex(n.Name)
	if len(def.Variants[idx].Payload) > 0 {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"variant %s carries a payload and must be called", n.Name)
		return c.ts.Error
	}
	return c.enumInstance(def)
}

// enumInstance builds the enum type with fresh variables for its generics.
func (c *Checker) enumInstance(def *EnumDef) *Type {
	if len(def.Generics) == 0 {
		return c.ts.Enum(def.Sym.Name, nil)
	}
	args := make([]*Type, len(def.Generics))
	for i := range def.Generics {
		args[i] = c.ts.Fresh()
	}
	return c.ts.Enum(def.Sym.Name, args)
}

func (c *Checker) inferUnary(scope *Scope, n *Unary) *Type {
	switch n.Op {
	case TokenMinus:
		t := Resolve(c.inferExpr(scope, n.Operand, nil))
		switch t.Kind {
		case KindInt, KindFloat, KindError:
			return t
		case KindVar:
			c.unify(t, c.ts.Int, n.Operand.Span())
			return c.ts.Int
		}
		c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
			"operator - requires int or float, got %s", t)
		return c.ts.Error
	case TokenBang:
		t := c.inferExpr(scope, n.Operand, c.ts.Bool)
		c.unify(t, c.ts.Bool, n.Operand.Span())
		return c.ts.Bool
	}
	return c.ts.Error
}

func (c *Checker) inferBinary(scope *Scope, n *Binary) *Type {
	switch n.Op {
	case TokenAndAnd, TokenOrOr:
		l := c.inferExpr(scope, n.Left, c.ts.Bool)
		c.unify(l, c.ts.Bool, n.Left.Span())
		r := c.inferExpr(scope, n.Right, c.ts.Bool)
		c.unify(r, c.ts.Bool, n.Right.Span())
		return c.ts.Bool

	case TokenEq, TokenNotEq:
		l := c.inferExpr(scope, n.Left, nil)
		r := c.inferExpr(scope, n.Right, Resolve(l))
		c.unify(r, l, n.SpanVal)
		return c.ts.Bool

	case TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq:
		l := c.inferExpr(scope, n.Left, nil)
		r := c.inferExpr(scope, n.Right, Resolve(l))
		if c.unify(r, l, n.SpanVal) {
			lt := Resolve(l)
			if lt.Kind != KindInt && lt.Kind != KindFloat && lt.Kind != KindChar &&
				lt.Kind != KindString && lt.Kind != KindError && lt.Kind != KindVar {
				c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
					"operator %s cannot order values of type %s", tokenNames[n.Op], lt)
			}
		}
		return c.ts.Bool

	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent:
		l := c.inferExpr(scope, n.Left, nil)
		r := c.inferExpr(scope, n.Right, Resolve(l))
		if !c.unify(r, l, n.SpanVal) {
			return c.ts.Error
		}
		lt := Resolve(l)
		switch lt.Kind {
		case KindInt, KindError:
			return lt
		case KindFloat:
			if n.Op == TokenPercent {
				c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
					"operator %% requires int operands")
				return c.ts.Error
			}
			return lt
		case KindString:
			if n.Op == TokenPlus {
				return lt
			}
		case KindVar:
			c.unify(lt, c.ts.Int, n.SpanVal)
			return c.ts.Int
		}
		c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
			"operator %s is not defined for %s", tokenNames[n.Op], lt)
		return c.ts.Error
	}
	return c.ts.Error
}

func (c *Checker) inferField(scope *Scope, n *Field) *Type {
	// parallel.for / parallel.map / parallel.reduce are call targets only;
	// inferCall intercepts them before this point.
	if id, ok := n.Target.(*Ident); ok {
		if sym := scope.Lookup(id.Name); sym != nil && sym.Kind == SymBuiltin && id.Name == "parallel" {
			c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.SpanVal,
				"parallel.%s must be called", n.Name)
			return c.ts.Error
		}
	}

	targetT := Resolve(c.inferExpr(scope, n.Target, nil))
	switch targetT.Kind {
	case KindStruct:
		def := c.structs[targetT.Name]
		if def == nil {
			return c.ts.Error
		}
		if i := def.FieldIndex(n.Name); i >= 0 {
			return def.Fields[i].Type
		}
		c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
			"struct %s has no field %s", targetT.Name, n.Name)
		return c.ts.Error
	case KindError:
		return c.ts.Error
	}
	c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
		"type %s has no fields", targetT)
	return c.ts.Error
}

func (c *Checker) inferStructLit(scope *Scope, n *StructLit) *Type {
	def := c.structs[n.Name]
	if def == nil {
		c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal, "unknown struct %s", n.Name)
		for _, f := range n.Fields {
			c.inferExpr(scope, f.Value, nil)
		}
		return c.ts.Error
	}
	c.LitDefs[n] = def

	seen := make(map[string]bool)
	for _, f := range n.Fields {
		i := def.FieldIndex(f.Name)
		if i < 0 {
			c.diags.Addf(CategoryType, CodeMismatch, f.Value.Span(),
				"struct %s has no field %s", n.Name, f.Name)
			c.inferExpr(scope, f.Value, nil)
			continue
		}
		if seen[f.Name] {
			c.diags.Addf(CategoryType, CodeDuplicateDefinition, f.Value.Span(),
				"field %s is initialized twice", f.Name)
			continue
		}
		seen[f.Name] = true
		got := c.inferExpr(scope, f.Value, def.Fields[i].Type)
		c.unify(got, def.Fields[i].Type, f.Value.Span())
	}
	for _, fd := range def.Fields {
		if !seen[fd.Name] {
			c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
				"struct literal %s is missing field %s", n.Name, fd.Name)
		}
	}
	return c.ts.Struct(n.Name, nil)
}

func (c *Checker) inferClosure(scope *Scope, n *Closure, want *Type) *Type {
	var wantFn *Type
	if want != nil && Resolve(want).Kind == KindFunc {
		wantFn = Resolve(want)
	}

	inner := NewScope(scope)
	paramTypes := make([]*Type, len(n.Params))
	for i := range n.Params {
		p := &n.Params[i]
		var t *Type
		switch {
		case p.Type != nil:
			t = c.typeFromExpr(p.Type, c.genericParams())
		case wantFn != nil && i < len(wantFn.Elems):
			t = wantFn.Elems[i]
		default:
			t = c.ts.Fresh()
		}
		paramTypes[i] = t
		sym := &Symbol{Name: p.Name, Kind: SymVar, Type: t, Decl: p, Used: p.Name == "_", Region: -1}
		inner.Define(sym)
		c.Defs[p] = sym
	}
	if wantFn != nil && len(wantFn.Elems) != len(n.Params) {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"closure takes %d parameters, context expects %d", len(n.Params), len(wantFn.Elems))
	}

	var wantRet *Type
	if wantFn != nil {
		wantRet = wantFn.Ret
	}
	var bodyT *Type
	if block, ok := n.Body.(*BlockExpr); ok {
		bodyT = c.inferBlock(inner, block, wantRet)
	} else {
		bodyT = c.inferExpr(inner, n.Body, wantRet)
	}
	if wantRet != nil {
		c.unify(bodyT, wantRet, n.Body.Span())
	}
	c.reportUnused(inner)
	return c.ts.Func(paramTypes, c.ts.resolveDeep(bodyT))
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (c *Checker) inferCall(scope *Scope, n *Call, want *Type) *Type {
	// Builtins and the parallel namespace.
	if t, handled := c.inferBuiltinCall(scope, n); handled {
		return t
	}
	// Method calls: receiver.method(args).
	if field, ok := n.Callee.(*Field); ok {
		return c.inferMethodCall(scope, n, field)
	}
	// Variant construction: Some(x).
	if id, ok := n.Callee.(*Ident); ok && scope.Lookup(id.Name) == nil {
		if defs := c.variantEnums[id.Name]; len(defs) > 0 {
			return c.inferVariantCall(scope, n, id, defs)
		}
	}

	calleeT := Resolve(c.inferExpr(scope, n.Callee, nil))
	if calleeT.Kind == KindError {
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return c.ts.Error
	}
	if calleeT.Kind != KindFunc {
		c.diags.Addf(CategoryType, CodeMismatch, n.Callee.Span(),
			"cannot call a value of type %s", calleeT)
		return c.ts.Error
	}

	if id, ok := n.Callee.(*Ident); ok {
		if def, found := c.funcs[id.Name]; found {
			c.CallDefs[n] = def
		}
	}

	if len(n.Args) != len(calleeT.Elems) {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"call takes %d arguments, got %d", len(calleeT.Elems), len(n.Args))
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return calleeT.Ret
	}
	for i, a := range n.Args {
		got := c.inferExpr(scope, a, Resolve(calleeT.Elems[i]))
		c.unify(got, calleeT.Elems[i], a.Span())
	}

	ret := c.ts.resolveDeep(calleeT.Ret)
	if containsVar(ret) && want != nil {
		c.unify(ret, want, n.SpanVal)
		ret = c.ts.resolveDeep(ret)
	}
	if containsVar(ret) {
		c.diags.Addf(CategoryType, CodeUnresolvedGeneric, n.SpanVal,
			"cannot infer type arguments for this call")
		return c.ts.Error
	}
	return ret
}

func containsVar(t *Type) bool {
	t = Resolve(t)
	if t.Kind == KindVar {
		return true
	}
	if t.Elem != nil && containsVar(t.Elem) {
		return true
	}
	for _, e := range t.Elems {
		if containsVar(e) {
			return true
		}
	}
	if t.Ret != nil && containsVar(t.Ret) {
		return true
	}
	for _, a := range t.Args {
		if containsVar(a) {
			return true
		}
	}
	return false
}

// inferBuiltinCall handles print, len, and parallel.for/map/reduce.
// The second result is false when the call is not a builtin.
func (c *Checker) inferBuiltinCall(scope *Scope, n *Call) (*Type, bool) {
	switch callee := n.Callee.(type) {
	case *Ident:
		sym := scope.Lookup(callee.Name)
		if sym == nil || sym.Kind != SymBuiltin {
			return nil, false
		}
		sym.Used = true
		c.Uses[callee] = sym
		switch callee.Name {
		case "print":
			if len(n.Args) == 0 {
				c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
					"print takes at least one argument")
			}
			for _, a := range n.Args {
				t := Resolve(c.inferExpr(scope, a, nil))
				if !printable(t) {
					c.diags.Addf(CategoryType, CodeMismatch, a.Span(),
						"cannot print a value of type %s", t)
				}
			}
			return c.ts.Void, true
		case "len":
			if len(n.Args) != 1 {
				c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
					"len takes one argument, got %d", len(n.Args))
				return c.ts.Int, true
			}
			t := Resolve(c.inferExpr(scope, n.Args[0], nil))
			if t.Kind != KindArray && t.Kind != KindString && t.Kind != KindError && t.Kind != KindVar {
				c.diags.Addf(CategoryType, CodeMismatch, n.Args[0].Span(),
					"len requires an array or string, got %s", t)
			}
			return c.ts.Int, true
		case "parallel":
			c.diags.Addf(CategoryType, CodeUnsupportedOperation, n.SpanVal,
				"parallel is a namespace; call parallel.for, parallel.map, or parallel.reduce")
			return c.ts.Error, true
		}
		return nil, false

	case *Field:
		id, ok := callee.Target.(*Ident)
		if !ok {
			return nil, false
		}
		sym := scope.Lookup(id.Name)
		if sym == nil || sym.Kind != SymBuiltin || id.Name != "parallel" {
			return nil, false
		}
		sym.Used = true
		c.Uses[id] = sym
		return c.inferParallelCall(scope, n, callee.Name), true
	}
	return nil, false
}

func (c *Checker) inferParallelCall(scope *Scope, n *Call, op string) *Type {
	switch op {
	case "for":
		switch len(n.Args) {
		case 2:
			// parallel.for(arr, |x| body) -> void
			elem := c.ts.Fresh()
			arrT := c.inferExpr(scope, n.Args[0], c.ts.Array(elem))
			c.unify(arrT, c.ts.Array(elem), n.Args[0].Span())
			fnT := c.inferExpr(scope, n.Args[1], c.ts.Func([]*Type{elem}, c.ts.Void))
			c.unify(fnT, c.ts.Func([]*Type{elem}, c.ts.Void), n.Args[1].Span())
			return c.ts.Void
		case 3:
			// parallel.for(start, end, |i| body) -> void over [start, end).
			// The body's value, if any, is discarded.
			for _, a := range n.Args[:2] {
				got := c.inferExpr(scope, a, c.ts.Int)
				c.unify(got, c.ts.Int, a.Span())
			}
			bodyT := c.ts.Func([]*Type{c.ts.Int}, c.ts.Fresh())
			fnT := c.inferExpr(scope, n.Args[2], bodyT)
			c.unify(fnT, bodyT, n.Args[2].Span())
			return c.ts.Void
		default:
			c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
				"parallel.for takes (array, closure) or (start, end, closure), got %d arguments", len(n.Args))
			return c.ts.Void
		}

	case "map":
		// parallel.map(arr, |x| y) -> [U]
		if len(n.Args) != 2 {
			c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
				"parallel.map takes an array and a closure, got %d arguments", len(n.Args))
			return c.ts.Error
		}
		elem := c.ts.Fresh()
		out := c.ts.Fresh()
		arrT := c.inferExpr(scope, n.Args[0], c.ts.Array(elem))
		c.unify(arrT, c.ts.Array(elem), n.Args[0].Span())
		fnT := c.inferExpr(scope, n.Args[1], c.ts.Func([]*Type{elem}, out))
		c.unify(fnT, c.ts.Func([]*Type{elem}, out), n.Args[1].Span())
		res := c.ts.resolveDeep(c.ts.Array(out))
		if containsVar(res) {
			c.diags.Addf(CategoryType, CodeUnresolvedGeneric, n.SpanVal,
				"cannot infer the element type of parallel.map")
			return c.ts.Error
		}
		return res

	case "reduce":
		// parallel.reduce(arr, init, |a, b| c) -> T; the combiner must be
		// associative and commutative for a deterministic result.
		if len(n.Args) != 3 {
			c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
				"parallel.reduce takes an array, an initial value, and a closure, got %d arguments", len(n.Args))
			return c.ts.Error
		}
		elem := c.ts.Fresh()
		arrT := c.inferExpr(scope, n.Args[0], c.ts.Array(elem))
		c.unify(arrT, c.ts.Array(elem), n.Args[0].Span())
		initT := c.inferExpr(scope, n.Args[1], elem)
		c.unify(initT, elem, n.Args[1].Span())
		combT := c.ts.Func([]*Type{elem, elem}, elem)
		fnT := c.inferExpr(scope, n.Args[2], combT)
		c.unify(fnT, combT, n.Args[2].Span())
		res := c.ts.resolveDeep(elem)
		if containsVar(res) {
			c.diags.Addf(CategoryType, CodeUnresolvedGeneric, n.SpanVal,
				"cannot infer the element type of parallel.reduce")
			return c.ts.Error
		}
		return res
	}

	c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
		"parallel has no operation %s", op)
	for _, a := range n.Args {
		c.inferExpr(scope, a, nil)
	}
	return c.ts.Error
}

// atomicSym returns the @atomic binding behind e, or nil.
func (c *Checker) atomicSym(e Expr) *Symbol {
	id, ok := e.(*Ident)
	if !ok {
		return nil
	}
	sym := c.Uses[id]
	if sym == nil || sym.Kind != SymVar || !hasAttr(sym.Attrs, AttrAtomic) {
		return nil
	}
	return sym
}

// inferAtomicCall types the read-modify-write surface of @atomic bindings:
// load() -> int, store(v) -> void, fetch_add(d) -> int (the previous value).
func (c *Checker) inferAtomicCall(scope *Scope, n *Call, name string) (*Type, bool) {
	var arity int
	var ret *Type
	switch name {
	case "load":
		arity, ret = 0, c.ts.Int
	case "fetch_add":
		arity, ret = 1, c.ts.Int
	case "store":
		arity, ret = 1, c.ts.Void
	default:
		return nil, false
	}
	if len(n.Args) != arity {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"%s takes %d arguments, got %d", name, arity, len(n.Args))
		return ret, true
	}
	for _, a := range n.Args {
		got := c.inferExpr(scope, a, c.ts.Int)
		c.unify(got, c.ts.Int, a.Span())
	}
	return ret, true
}

func (c *Checker) inferMethodCall(scope *Scope, n *Call, field *Field) *Type {
	recvT := Resolve(c.inferExpr(scope, field.Target, nil))
	if recvT.Kind == KindError {
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return c.ts.Error
	}
	if sym := c.atomicSym(field.Target); sym != nil {
		if t, handled := c.inferAtomicCall(scope, n, field.Name); handled {
			return t
		}
	}
	if recvT.Kind != KindStruct && recvT.Kind != KindEnum {
		// Fall back to calling a function-typed field.
		fieldT := Resolve(c.inferField(scope, field))
		c.ExprTypes[field] = fieldT
		if fieldT.Kind == KindFunc {
			return c.applyFunc(scope, n, fieldT)
		}
		if fieldT.Kind != KindError {
			c.diags.Addf(CategoryType, CodeMismatch, n.SpanVal,
				"cannot call a value of type %s", fieldT)
		}
		return c.ts.Error
	}

	def := c.Method(recvT.Name, field.Name)
	if def == nil {
		// A function-typed struct field is also callable.
		if recvT.Kind == KindStruct {
			if sd := c.structs[recvT.Name]; sd != nil {
				if i := sd.FieldIndex(field.Name); i >= 0 {
					fieldT := Resolve(sd.Fields[i].Type)
					c.ExprTypes[field] = fieldT
					if fieldT.Kind == KindFunc {
						return c.applyFunc(scope, n, fieldT)
					}
				}
			}
		}
		c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
			"%s has no method %s", recvT.Name, field.Name)
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return c.ts.Error
	}
	c.CallDefs[n] = def

	fnT := def.Type
	if len(fnT.Elems) == 0 {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"method %s has no receiver parameter", field.Name)
		return c.ts.Error
	}
	c.unify(recvT, fnT.Elems[0], field.Target.Span())

	rest := fnT.Elems[1:]
	if len(n.Args) != len(rest) {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"method %s takes %d arguments, got %d", field.Name, len(rest), len(n.Args))
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return fnT.Ret
	}
	for i, a := range n.Args {
		got := c.inferExpr(scope, a, Resolve(rest[i]))
		c.unify(got, rest[i], a.Span())
	}
	return fnT.Ret
}

// applyFunc type-checks call arguments against an already-known function
// type.
func (c *Checker) applyFunc(scope *Scope, n *Call, fnT *Type) *Type {
	if len(n.Args) != len(fnT.Elems) {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"call takes %d arguments, got %d", len(fnT.Elems), len(n.Args))
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return fnT.Ret
	}
	for i, a := range n.Args {
		got := c.inferExpr(scope, a, Resolve(fnT.Elems[i]))
		c.unify(got, fnT.Elems[i], a.Span())
	}
	return fnT.Ret
}

func (c *Checker) inferVariantCall(scope *Scope, n *Call, id *Ident, defs []*EnumDef) *Type {
	if len(defs) > 1 {
		c.diags.Addf(CategoryName, CodeAmbiguousImport, n.SpanVal,
			"variant %s is declared by multiple enums", id.Name)
		return c.ts.Error
	}
	def := defs[0]
	idx := def.VariantIndex(id.Name)
	vd := def.Variants[idx]

	enumT := c.enumInstance(def)
	subst := make(map[string]*Type, len(def.Generics))
	for i, g := range def.Generics {
		subst[g] = enumT.Args[i]
	}

	if len(n.Args) != len(vd.Payload) {
		c.diags.Addf(CategoryType, CodeArityMismatch, n.SpanVal,
			"variant %s takes %d values, got %d", id.Name, len(vd.Payload), len(n.Args))
		for _, a := range n.Args {
			c.inferExpr(scope, a, nil)
		}
		return enumT
	}
	for i, a := range n.Args {
		wantT := c.ts.instantiate(vd.Payload[i], subst)
		got := c.inferExpr(scope, a, Resolve(wantT))
		c.unify(got, wantT, a.Span())
	}
	return enumT
}

// ---------------------------------------------------------------------------
// Match
// ---------------------------------------------------------------------------

func (c *Checker) inferMatch(scope *Scope, n *Match, want *Type) *Type {
	subjT := Resolve(c.inferExpr(scope, n.Subject, nil))

	var armEnums []*EnumDef
	var result *Type
	for i := range n.Arms {
		arm := &n.Arms[i]
		inner := NewScope(scope)
		armEnums = append(armEnums, c.checkPattern(inner, &arm.Pattern, subjT))
		bodyT := c.inferExpr(inner, arm.Body, want)
		if result == nil {
			result = bodyT
		} else {
			c.unify(bodyT, result, arm.Body.Span())
		}
		c.reportUnused(inner)
	}
	c.PatEnums[n] = armEnums
	if result == nil {
		return c.ts.Void
	}
	return result
}

// checkPattern binds pattern names in scope and returns the owning enum for
// variant patterns.
func (c *Checker) checkPattern(scope *Scope, pat *Pattern, subjT *Type) *EnumDef {
	switch {
	case pat.Wildcard:
		return nil

	case pat.Lit != nil:
		got := c.inferExpr(scope, pat.Lit, subjT)
		c.unify(got, subjT, pat.Lit.Span())
		return nil

	case pat.Variant:
		if subjT.Kind != KindEnum {
			if subjT.Kind != KindError {
				c.diags.Addf(CategoryType, CodeMismatch, pat.SpanVal,
					"variant pattern %s cannot match a value of type %s", pat.Name, subjT)
			}
			for _, b := range pat.Binds {
				scope.Define(&Symbol{Name: b, Kind: SymVar, Type: c.ts.Error, Used: b == "_", Region: -1})
			}
			return nil
		}
		def := c.enums[subjT.Name]
		if def == nil {
			return nil
		}
		idx := def.VariantIndex(pat.Name)
		if idx < 0 {
			c.diags.Addf(CategoryName, CodeUndefined, pat.SpanVal,
				"enum %s has no variant %s", subjT.Name, pat.Name)
			return def
		}
		vd := def.Variants[idx]
		if len(pat.Binds) != len(vd.Payload) {
			c.diags.Addf(CategoryType, CodeArityMismatch, pat.SpanVal,
				"variant %s carries %d values, pattern binds %d", pat.Name, len(vd.Payload), len(pat.Binds))
		}
		subst := make(map[string]*Type, len(def.Generics))
		for i, g := range def.Generics {
			if i < len(subjT.Args) {
				subst[g] = subjT.Args[i]
			}
		}
		for i, b := range pat.Binds {
			t := c.ts.Error
			if i < len(vd.Payload) {
				t = c.ts.instantiate(vd.Payload[i], subst)
			}
			sym := &Symbol{Name: b, Kind: SymVar, Type: t, Used: b == "_", Region: -1}
			scope.Define(sym)
			c.PatSyms[patternBindKey{pat, i}] = sym
		}
		return def

	default:
		// A lowercase name binds the whole subject.
		sym := &Symbol{Name: pat.Name, Kind: SymVar, Type: subjT, Used: pat.Name == "_", Region: -1}
		scope.Define(sym)
		c.PatSyms[patternBindKey{pat, -1}] = sym
		return nil
	}
}

// ---------------------------------------------------------------------------
// Unification
// ---------------------------------------------------------------------------

// unify makes got and want equal, solving variables as needed. A mismatch
// reports exactly one TypeError; error types absorb silently so one mistake
// produces one diagnostic.
func (c *Checker) unify(got, want *Type, span Span) bool {
	got = Resolve(got)
	want = Resolve(want)

	if got == want {
		return true
	}
	if got.Kind == KindError || want.Kind == KindError {
		return true
	}

	if got.Kind == KindVar {
		if occurs(got, want) {
			c.diags.Addf(CategoryType, CodeMismatch, span,
				"cannot construct the infinite type %s = %s", got, want)
			return false
		}
		got.Ref = want
		return true
	}
	if want.Kind == KindVar {
		if occurs(want, got) {
			c.diags.Addf(CategoryType, CodeMismatch, span,
				"cannot construct the infinite type %s = %s", want, got)
			return false
		}
		want.Ref = got
		return true
	}

	// null is assignable to reference types.
	if got.Kind == KindNull && nullable(want) {
		return true
	}
	if want.Kind == KindNull && nullable(got) {
		return true
	}

	if got.Kind != want.Kind {
		c.mismatch(got, want, span)
		return false
	}

	switch got.Kind {
	case KindArray:
		return c.unify(got.Elem, want.Elem, span)
	case KindTuple:
		if len(got.Elems) != len(want.Elems) {
			c.mismatch(got, want, span)
			return false
		}
		ok := true
		for i := range got.Elems {
			ok = c.unify(got.Elems[i], want.Elems[i], span) && ok
		}
		return ok
	case KindFunc:
		if len(got.Elems) != len(want.Elems) {
			c.mismatch(got, want, span)
			return false
		}
		ok := true
		for i := range got.Elems {
			ok = c.unify(got.Elems[i], want.Elems[i], span) && ok
		}
		return c.unify(got.Ret, want.Ret, span) && ok
	case KindStruct, KindEnum:
		if got.Name != want.Name || len(got.Args) != len(want.Args) {
			c.mismatch(got, want, span)
			return false
		}
		ok := true
		for i := range got.Args {
			ok = c.unify(got.Args[i], want.Args[i], span) && ok
		}
		return ok
	case KindParam:
		if got.Name != want.Name {
			c.mismatch(got, want, span)
			return false
		}
		return true
	}

	c.mismatch(got, want, span)
	return false
}

func (c *Checker) mismatch(got, want *Type, span Span) {
	c.diags.Addf(CategoryType, CodeMismatch, span,
		"type mismatch: expected %s, got %s", want, got)
}
