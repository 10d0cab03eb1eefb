package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Compile-time evaluation
// ---------------------------------------------------------------------------

const (
	comptimeMaxDepth = 256
	comptimeMaxSteps = 1 << 20
)

// ValueKind discriminates compile-time values.
type ValueKind int

const (
	ValVoid ValueKind = iota
	ValNull
	ValInt
	ValFloat
	ValBool
	ValString
	ValChar
	ValArray
	ValStruct
	ValEnum
	ValClosure
)

// Value is a compile-time value produced by the evaluator.
type Value struct {
	Kind    ValueKind
	Int     int64
	Float   float64
	Bool    bool
	Str     string
	Char    rune
	Elems   []Value // array elements, struct fields, or enum payload
	Name    string  // struct or enum name
	Variant int     // enum variant ordinal

	// Closure state
	Fn  *Closure
	Env map[*Symbol]Value
}

// String renders a value the way the runtime prints it.
func (v Value) String() string {
	switch v.Kind {
	case ValVoid:
		return "void"
	case ValNull:
		return "null"
	case ValInt:
		return fmt.Sprintf("%d", v.Int)
	case ValFloat:
		return formatFloat(v.Float)
	case ValBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValString:
		return v.Str
	case ValChar:
		return string(v.Char)
	case ValArray:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValStruct:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return v.Name + " { " + strings.Join(parts, ", ") + " }"
	case ValEnum:
		if len(v.Elems) == 0 {
			return v.Name
		}
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return v.Name + "(" + strings.Join(parts, ", ") + ")"
	case ValClosure:
		return "<closure>"
	}
	return "<value>"
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}

// IntVal builds an int value.
func IntVal(i int64) Value { return Value{Kind: ValInt, Int: i} }

// ---------------------------------------------------------------------------
// The pass
// ---------------------------------------------------------------------------

// evalComptime evaluates every @comptime call and every const initializer,
// recording the results for lowering. Errors inside an evaluation surface as
// a single ComptimeError at the call site.
func (c *Checker) evalComptime() {
	if c.ConstVals == nil {
		c.ConstVals = make(map[string]Value)
	}
	for _, item := range c.file.Items {
		if n, ok := item.(*ConstDecl); ok {
			ev := &evaluator{c: c, env: make(map[*Symbol]Value), maxDepth: c.ComptimeDepth}
			v, err := ev.expr(n.Value)
			if err != nil {
				c.reportEvalError(err, n.Value.Span())
				continue
			}
			c.ConstVals[n.Name] = v
		}
	}
	for _, def := range c.Funcs() {
		if def.Decl.Body != nil {
			c.evalComptimeIn(def.Decl.Body)
		}
	}
}

// evalComptimeIn walks a block looking for @comptime calls.
func (c *Checker) evalComptimeIn(b *BlockExpr) {
	walkExprs(b, func(e Expr) {
		call, ok := e.(*Call)
		if !ok || !call.Comptime {
			return
		}
		ev := &evaluator{c: c, env: make(map[*Symbol]Value), maxDepth: c.ComptimeDepth}
		v, err := ev.expr(call)
		if err != nil {
			c.reportEvalError(err, call.SpanVal)
			return
		}
		c.Comptime[call] = v
	})
}

func (c *Checker) reportEvalError(err error, fallback Span) {
	if ee, ok := err.(*evalError); ok {
		span := ee.span
		if span == ZeroSpan() {
			span = fallback
		}
		c.diags.Addf(CategoryComptime, ee.code, span, "%s", ee.msg)
		return
	}
	c.diags.Addf(CategoryComptime, CodeUnsupportedOperation, fallback, "%s", err)
}

// walkExprs visits every expression in a block, outermost first.
func walkExprs(n Node, visit func(Expr)) {
	switch x := n.(type) {
	case *BlockExpr:
		for _, s := range x.Stmts {
			walkExprs(s, visit)
		}
		if x.Tail != nil {
			walkExprs(x.Tail, visit)
		}
	case *LetStmt:
		walkExprs(x.Value, visit)
	case *AssignStmt:
		walkExprs(x.Target, visit)
		walkExprs(x.Value, visit)
	case *ExprStmt:
		walkExprs(x.Expr, visit)
	case *ForStmt:
		walkExprs(x.Iter, visit)
		walkExprs(x.Body, visit)
	case *WhileStmt:
		walkExprs(x.Cond, visit)
		walkExprs(x.Body, visit)
	case *LoopStmt:
		walkExprs(x.Body, visit)
	case *ReturnStmt:
		if x.Value != nil {
			walkExprs(x.Value, visit)
		}
	case Expr:
		visit(x)
		switch e := x.(type) {
		case *StringLit:
			for _, part := range e.Parts {
				if part.Expr != nil {
					walkExprs(part.Expr, visit)
				}
			}
		case *ArrayLit:
			for _, el := range e.Elements {
				walkExprs(el, visit)
			}
		case *Unary:
			walkExprs(e.Operand, visit)
		case *Binary:
			walkExprs(e.Left, visit)
			walkExprs(e.Right, visit)
		case *Call:
			walkExprs(e.Callee, visit)
			for _, a := range e.Args {
				walkExprs(a, visit)
			}
		case *Index:
			walkExprs(e.Target, visit)
			walkExprs(e.Idx, visit)
		case *Field:
			walkExprs(e.Target, visit)
		case *StructLit:
			for _, f := range e.Fields {
				walkExprs(f.Value, visit)
			}
		case *Closure:
			walkExprs(e.Body, visit)
		case *If:
			walkExprs(e.Cond, visit)
			walkExprs(e.Then, visit)
			if e.Else != nil {
				walkExprs(e.Else, visit)
			}
		case *Match:
			walkExprs(e.Subject, visit)
			for i := range e.Arms {
				walkExprs(e.Arms[i].Body, visit)
			}
		case *BlockExpr:
			// handled above when reached as a block
		}
	}
}

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

type evalError struct {
	code string
	span Span
	msg  string
}

func (e *evalError) Error() string { return e.msg }

// control-flow signals inside the evaluator
type returnSignal struct{ val Value }
type breakSignal struct{}
type continueSignal struct{}

func (returnSignal) Error() string   { return "return" }
func (breakSignal) Error() string    { return "break" }
func (continueSignal) Error() string { return "continue" }

type evaluator struct {
	c     *Checker
	env   map[*Symbol]Value
	steps int
	depth int

	// maxDepth overrides the default call-depth limit when positive.
	maxDepth int
}

func (ev *evaluator) depthLimit() int {
	if ev.maxDepth > 0 {
		return ev.maxDepth
	}
	return comptimeMaxDepth
}

func (ev *evaluator) fail(code string, span Span, format string, args ...interface{}) error {
	return &evalError{code: code, span: span, msg: fmt.Sprintf(format, args...)}
}

func (ev *evaluator) step(span Span) error {
	ev.steps++
	if ev.steps > comptimeMaxSteps {
		return ev.fail(CodeRecursionLimitExceeded, span,
			"compile-time evaluation exceeded %d steps", comptimeMaxSteps)
	}
	return nil
}

func (ev *evaluator) expr(e Expr) (Value, error) {
	if err := ev.step(e.Span()); err != nil {
		return Value{}, err
	}
	switch n := e.(type) {
	case *IntLit:
		if t := ev.c.TypeOf(n); t.Kind == KindFloat {
			return Value{Kind: ValFloat, Float: float64(n.Value)}, nil
		}
		return IntVal(n.Value), nil
	case *FloatLit:
		return Value{Kind: ValFloat, Float: n.Value}, nil
	case *BoolLit:
		return Value{Kind: ValBool, Bool: n.Value}, nil
	case *CharLit:
		return Value{Kind: ValChar, Char: n.Value}, nil
	case *NullLit:
		return Value{Kind: ValNull}, nil
	case *StringLit:
		return ev.stringLit(n)
	case *ArrayLit:
		out := Value{Kind: ValArray}
		for _, el := range n.Elements {
			v, err := ev.expr(el)
			if err != nil {
				return Value{}, err
			}
			out.Elems = append(out.Elems, v)
		}
		return out, nil
	case *Ident:
		return ev.ident(n)
	case *Unary:
		return ev.unary(n)
	case *Binary:
		return ev.binary(n)
	case *Call:
		return ev.call(n)
	case *Index:
		return ev.index(n)
	case *Field:
		return ev.field(n)
	case *StructLit:
		return ev.structLit(n)
	case *Closure:
		env := make(map[*Symbol]Value, len(ev.env))
		for k, v := range ev.env {
			env[k] = v
		}
		return Value{Kind: ValClosure, Fn: n, Env: env}, nil
	case *If:
		cond, err := ev.expr(n.Cond)
		if err != nil {
			return Value{}, err
		}
		if cond.Kind != ValBool {
			return Value{}, ev.fail(CodeUnsupportedOperation, n.Cond.Span(), "condition is not a bool")
		}
		if cond.Bool {
			return ev.block(n.Then)
		}
		switch el := n.Else.(type) {
		case nil:
			return Value{Kind: ValVoid}, nil
		case *BlockExpr:
			return ev.block(el)
		default:
			return ev.expr(el)
		}
	case *Match:
		return ev.match(n)
	case *BlockExpr:
		return ev.block(n)
	}
	return Value{}, ev.fail(CodeUnsupportedOperation, e.Span(),
		"this expression cannot be evaluated at compile time")
}

func (ev *evaluator) stringLit(n *StringLit) (Value, error) {
	if n.Parts == nil {
		return Value{Kind: ValString, Str: n.Value}, nil
	}
	var sb strings.Builder
	for _, part := range n.Parts {
		if part.Expr == nil {
			sb.WriteString(part.Text)
			continue
		}
		v, err := ev.expr(part.Expr)
		if err != nil {
			return Value{}, err
		}
		sb.WriteString(v.String())
	}
	return Value{Kind: ValString, Str: sb.String()}, nil
}

func (ev *evaluator) ident(n *Ident) (Value, error) {
	sym := ev.c.Uses[n]
	if sym == nil {
		// Unit variant like None resolves without a symbol.
		if defs := ev.c.variantEnums[n.Name]; len(defs) == 1 {
			def := defs[0]
			return Value{Kind: ValEnum, Name: n.Name, Variant: def.VariantIndex(n.Name)}, nil
		}
		return Value{}, ev.fail(CodeNotConstant, n.SpanVal, "%s is not a compile-time constant", n.Name)
	}
	if v, ok := ev.env[sym]; ok {
		return v, nil
	}
	switch sym.Kind {
	case SymConst:
		if v, ok := ev.c.ConstVals[sym.Name]; ok {
			return v, nil
		}
	case SymFunc:
		// named functions are called directly; see call()
	}
	return Value{}, ev.fail(CodeNotConstant, n.SpanVal,
		"%s is a runtime value and cannot be used at compile time", n.Name)
}

func (ev *evaluator) unary(n *Unary) (Value, error) {
	v, err := ev.expr(n.Operand)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case TokenMinus:
		switch v.Kind {
		case ValInt:
			return IntVal(-v.Int), nil
		case ValFloat:
			return Value{Kind: ValFloat, Float: -v.Float}, nil
		}
	case TokenBang:
		if v.Kind == ValBool {
			return Value{Kind: ValBool, Bool: !v.Bool}, nil
		}
	}
	return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "invalid operand for %s", tokenNames[n.Op])
}

func (ev *evaluator) binary(n *Binary) (Value, error) {
	// Short-circuit forms first.
	if n.Op == TokenAndAnd || n.Op == TokenOrOr {
		l, err := ev.expr(n.Left)
		if err != nil {
			return Value{}, err
		}
		if l.Kind != ValBool {
			return Value{}, ev.fail(CodeUnsupportedOperation, n.Left.Span(), "operand is not a bool")
		}
		if (n.Op == TokenAndAnd && !l.Bool) || (n.Op == TokenOrOr && l.Bool) {
			return l, nil
		}
		return ev.expr(n.Right)
	}

	l, err := ev.expr(n.Left)
	if err != nil {
		return Value{}, err
	}
	r, err := ev.expr(n.Right)
	if err != nil {
		return Value{}, err
	}
	return ev.arith(n, l, r)
}

func (ev *evaluator) arith(n *Binary, l, r Value) (Value, error) {
	bad := func() (Value, error) {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
			"operator %s is not defined for these values", tokenNames[n.Op])
	}

	switch n.Op {
	case TokenEq, TokenNotEq:
		eq, ok := valuesEqual(l, r)
		if !ok {
			return bad()
		}
		if n.Op == TokenNotEq {
			eq = !eq
		}
		return Value{Kind: ValBool, Bool: eq}, nil
	}

	switch {
	case l.Kind == ValInt && r.Kind == ValInt:
		switch n.Op {
		case TokenPlus:
			return IntVal(l.Int + r.Int), nil
		case TokenMinus:
			return IntVal(l.Int - r.Int), nil
		case TokenStar:
			return IntVal(l.Int * r.Int), nil
		case TokenSlash:
			if r.Int == 0 {
				return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "division by zero")
			}
			return IntVal(l.Int / r.Int), nil
		case TokenPercent:
			if r.Int == 0 {
				return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "division by zero")
			}
			return IntVal(l.Int % r.Int), nil
		case TokenLess:
			return Value{Kind: ValBool, Bool: l.Int < r.Int}, nil
		case TokenLessEq:
			return Value{Kind: ValBool, Bool: l.Int <= r.Int}, nil
		case TokenGreater:
			return Value{Kind: ValBool, Bool: l.Int > r.Int}, nil
		case TokenGreaterEq:
			return Value{Kind: ValBool, Bool: l.Int >= r.Int}, nil
		}
	case l.Kind == ValFloat && r.Kind == ValFloat:
		switch n.Op {
		case TokenPlus:
			return Value{Kind: ValFloat, Float: l.Float + r.Float}, nil
		case TokenMinus:
			return Value{Kind: ValFloat, Float: l.Float - r.Float}, nil
		case TokenStar:
			return Value{Kind: ValFloat, Float: l.Float * r.Float}, nil
		case TokenSlash:
			return Value{Kind: ValFloat, Float: l.Float / r.Float}, nil
		case TokenLess:
			return Value{Kind: ValBool, Bool: l.Float < r.Float}, nil
		case TokenLessEq:
			return Value{Kind: ValBool, Bool: l.Float <= r.Float}, nil
		case TokenGreater:
			return Value{Kind: ValBool, Bool: l.Float > r.Float}, nil
		case TokenGreaterEq:
			return Value{Kind: ValBool, Bool: l.Float >= r.Float}, nil
		}
	case l.Kind == ValString && r.Kind == ValString:
		switch n.Op {
		case TokenPlus:
			return Value{Kind: ValString, Str: l.Str + r.Str}, nil
		case TokenLess:
			return Value{Kind: ValBool, Bool: l.Str < r.Str}, nil
		case TokenLessEq:
			return Value{Kind: ValBool, Bool: l.Str <= r.Str}, nil
		case TokenGreater:
			return Value{Kind: ValBool, Bool: l.Str > r.Str}, nil
		case TokenGreaterEq:
			return Value{Kind: ValBool, Bool: l.Str >= r.Str}, nil
		}
	case l.Kind == ValChar && r.Kind == ValChar:
		switch n.Op {
		case TokenLess:
			return Value{Kind: ValBool, Bool: l.Char < r.Char}, nil
		case TokenLessEq:
			return Value{Kind: ValBool, Bool: l.Char <= r.Char}, nil
		case TokenGreater:
			return Value{Kind: ValBool, Bool: l.Char > r.Char}, nil
		case TokenGreaterEq:
			return Value{Kind: ValBool, Bool: l.Char >= r.Char}, nil
		}
	}
	return bad()
}

func valuesEqual(l, r Value) (bool, bool) {
	if l.Kind != r.Kind {
		return false, false
	}
	switch l.Kind {
	case ValInt:
		return l.Int == r.Int, true
	case ValFloat:
		return l.Float == r.Float, true
	case ValBool:
		return l.Bool == r.Bool, true
	case ValString:
		return l.Str == r.Str, true
	case ValChar:
		return l.Char == r.Char, true
	case ValNull, ValVoid:
		return true, true
	case ValEnum:
		if l.Name != r.Name || l.Variant != r.Variant || len(l.Elems) != len(r.Elems) {
			return false, true
		}
		for i := range l.Elems {
			eq, ok := valuesEqual(l.Elems[i], r.Elems[i])
			if !ok || !eq {
				return eq, ok
			}
		}
		return true, true
	case ValArray:
		if len(l.Elems) != len(r.Elems) {
			return false, true
		}
		for i := range l.Elems {
			eq, ok := valuesEqual(l.Elems[i], r.Elems[i])
			if !ok || !eq {
				return eq, ok
			}
		}
		return true, true
	}
	return false, false
}

func (ev *evaluator) call(n *Call) (Value, error) {
	// Builtins
	if id, ok := n.Callee.(*Ident); ok {
		if sym := ev.c.Uses[id]; sym != nil && sym.Kind == SymBuiltin {
			switch id.Name {
			case "len":
				v, err := ev.expr(n.Args[0])
				if err != nil {
					return Value{}, err
				}
				switch v.Kind {
				case ValArray:
					return IntVal(int64(len(v.Elems))), nil
				case ValString:
					return IntVal(int64(len(v.Str))), nil
				}
				return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "len of a non-collection")
			case "print":
				return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
					"print has a side effect and cannot run at compile time")
			}
			return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
				"parallel operations cannot run at compile time")
		}
		// Variant construction
		if ev.c.Uses[id] == nil {
			if defs := ev.c.variantEnums[id.Name]; len(defs) == 1 {
				def := defs[0]
				out := Value{Kind: ValEnum, Name: id.Name, Variant: def.VariantIndex(id.Name)}
				for _, a := range n.Args {
					v, err := ev.expr(a)
					if err != nil {
						return Value{}, err
					}
					out.Elems = append(out.Elems, v)
				}
				return out, nil
			}
		}
	}

	// Named function call
	if def, ok := ev.c.CallDefs[n]; ok {
		if def.Extern != "" {
			return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
				"@extern function %s cannot run at compile time", def.Decl.Name)
		}
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			v, err := ev.expr(a)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return ev.invoke(def, args, n.SpanVal)
	}

	// Closure call
	calleeV, err := ev.expr(n.Callee)
	if err != nil {
		return Value{}, err
	}
	if calleeV.Kind != ValClosure {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "value is not callable at compile time")
	}
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.expr(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return ev.invokeClosure(calleeV, args, n.SpanVal)
}

func (ev *evaluator) invoke(def *FuncDef, args []Value, span Span) (Value, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if limit := ev.depthLimit(); ev.depth > limit {
		return Value{}, ev.fail(CodeRecursionLimitExceeded, span,
			"compile-time call depth exceeded %d", limit)
	}

	saved := ev.env
	ev.env = make(map[*Symbol]Value, len(args))
	defer func() { ev.env = saved }()

	for i := range def.Decl.Params {
		sym := ev.c.Defs[&def.Decl.Params[i]]
		if sym == nil {
			return Value{}, ev.fail(CodeNotConstant, span, "function %s was not checked", def.Decl.Name)
		}
		ev.env[sym] = args[i]
	}
	v, err := ev.block(def.Decl.Body)
	if rs, ok := err.(returnSignal); ok {
		return rs.val, nil
	}
	return v, err
}

func (ev *evaluator) invokeClosure(cv Value, args []Value, span Span) (Value, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if limit := ev.depthLimit(); ev.depth > limit {
		return Value{}, ev.fail(CodeRecursionLimitExceeded, span,
			"compile-time call depth exceeded %d", limit)
	}
	if len(args) != len(cv.Fn.Params) {
		return Value{}, ev.fail(CodeUnsupportedOperation, span, "wrong number of closure arguments")
	}

	saved := ev.env
	ev.env = make(map[*Symbol]Value, len(cv.Env)+len(args))
	for k, v := range cv.Env {
		ev.env[k] = v
	}
	defer func() { ev.env = saved }()

	for i := range cv.Fn.Params {
		sym := ev.c.Defs[&cv.Fn.Params[i]]
		if sym == nil {
			return Value{}, ev.fail(CodeNotConstant, span, "closure was not checked")
		}
		ev.env[sym] = args[i]
	}
	if b, ok := cv.Fn.Body.(*BlockExpr); ok {
		v, err := ev.block(b)
		if rs, isRet := err.(returnSignal); isRet {
			return rs.val, nil
		}
		return v, err
	}
	return ev.expr(cv.Fn.Body)
}

func (ev *evaluator) index(n *Index) (Value, error) {
	target, err := ev.expr(n.Target)
	if err != nil {
		return Value{}, err
	}
	idx, err := ev.expr(n.Idx)
	if err != nil {
		return Value{}, err
	}
	if idx.Kind != ValInt {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.Idx.Span(), "index is not an int")
	}
	switch target.Kind {
	case ValArray:
		if idx.Int < 0 || idx.Int >= int64(len(target.Elems)) {
			return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
				"index %d out of range for length %d", idx.Int, len(target.Elems))
		}
		return target.Elems[idx.Int], nil
	case ValString:
		if idx.Int < 0 || idx.Int >= int64(len(target.Str)) {
			return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal,
				"index %d out of range for length %d", idx.Int, len(target.Str))
		}
		return Value{Kind: ValChar, Char: rune(target.Str[idx.Int])}, nil
	}
	return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "value is not indexable")
}

func (ev *evaluator) field(n *Field) (Value, error) {
	target, err := ev.expr(n.Target)
	if err != nil {
		return Value{}, err
	}
	if target.Kind != ValStruct {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "value has no fields")
	}
	def := ev.c.structs[target.Name]
	if def == nil {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "unknown struct %s", target.Name)
	}
	i := def.FieldIndex(n.Name)
	if i < 0 || i >= len(target.Elems) {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "no field %s", n.Name)
	}
	return target.Elems[i], nil
}

func (ev *evaluator) structLit(n *StructLit) (Value, error) {
	def := ev.c.LitDefs[n]
	if def == nil {
		return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "struct literal was not checked")
	}
	out := Value{Kind: ValStruct, Name: n.Name, Elems: make([]Value, len(def.Fields))}
	for _, f := range n.Fields {
		i := def.FieldIndex(f.Name)
		if i < 0 {
			continue
		}
		v, err := ev.expr(f.Value)
		if err != nil {
			return Value{}, err
		}
		out.Elems[i] = v
	}
	return out, nil
}

func (ev *evaluator) match(n *Match) (Value, error) {
	subj, err := ev.expr(n.Subject)
	if err != nil {
		return Value{}, err
	}
	for i := range n.Arms {
		arm := &n.Arms[i]
		binds, matched, err := ev.matchPattern(&arm.Pattern, subj)
		if err != nil {
			return Value{}, err
		}
		if !matched {
			continue
		}
		// Pattern bindings have no checker symbols here; re-resolve by
		// walking the arm's scope is unnecessary because inference bound
		// them into Defs-less symbols. Bind by name lookup instead.
		saved := ev.env
		ev.env = make(map[*Symbol]Value, len(saved)+len(binds))
		for k, v := range saved {
			ev.env[k] = v
		}
		for sym, v := range binds {
			ev.env[sym] = v
		}
		out, err := ev.expr(arm.Body)
		ev.env = saved
		return out, err
	}
	return Value{}, ev.fail(CodeUnsupportedOperation, n.SpanVal, "no match arm applies")
}

// matchPattern tests a pattern against a value, returning bound symbols.
func (ev *evaluator) matchPattern(pat *Pattern, subj Value) (map[*Symbol]Value, bool, error) {
	switch {
	case pat.Wildcard:
		return nil, true, nil
	case pat.Lit != nil:
		lit, err := ev.expr(pat.Lit)
		if err != nil {
			return nil, false, err
		}
		eq, ok := valuesEqual(lit, subj)
		return nil, ok && eq, nil
	case pat.Variant:
		if subj.Kind != ValEnum || subj.Name != pat.Name {
			return nil, false, nil
		}
		binds := make(map[*Symbol]Value, len(pat.Binds))
		for i, name := range pat.Binds {
			if name == "_" || i >= len(subj.Elems) {
				continue
			}
			if sym := ev.c.PatSyms[patternBindKey{pat, i}]; sym != nil {
				binds[sym] = subj.Elems[i]
			}
		}
		return binds, true, nil
	default:
		if sym := ev.c.PatSyms[patternBindKey{pat, -1}]; sym != nil {
			return map[*Symbol]Value{sym: subj}, true, nil
		}
		return nil, true, nil
	}
}

func (ev *evaluator) block(b *BlockExpr) (Value, error) {
	for _, s := range b.Stmts {
		if err := ev.stmt(s); err != nil {
			return Value{}, err
		}
	}
	if b.Tail != nil {
		return ev.expr(b.Tail)
	}
	return Value{Kind: ValVoid}, nil
}

func (ev *evaluator) stmt(s Stmt) error {
	if err := ev.step(s.Span()); err != nil {
		return err
	}
	switch n := s.(type) {
	case *LetStmt:
		v, err := ev.expr(n.Value)
		if err != nil {
			return err
		}
		if sym := ev.c.Defs[n]; sym != nil {
			ev.env[sym] = v
		}
		return nil

	case *AssignStmt:
		v, err := ev.expr(n.Value)
		if err != nil {
			return err
		}
		return ev.assign(n.Target, v)

	case *ExprStmt:
		_, err := ev.expr(n.Expr)
		return err

	case *ForStmt:
		iter, err := ev.expr(n.Iter)
		if err != nil {
			return err
		}
		sym := ev.c.Defs[n]
		var items []Value
		switch iter.Kind {
		case ValArray:
			items = iter.Elems
		case ValInt:
			for i := int64(0); i < iter.Int; i++ {
				items = append(items, IntVal(i))
			}
		default:
			return ev.fail(CodeUnsupportedOperation, n.Iter.Span(), "value is not iterable")
		}
		for _, item := range items {
			if sym != nil {
				ev.env[sym] = item
			}
			_, err := ev.block(n.Body)
			switch err.(type) {
			case nil, continueSignal:
			case breakSignal:
				return nil
			default:
				return err
			}
		}
		return nil

	case *WhileStmt:
		for {
			cond, err := ev.expr(n.Cond)
			if err != nil {
				return err
			}
			if cond.Kind != ValBool {
				return ev.fail(CodeUnsupportedOperation, n.Cond.Span(), "condition is not a bool")
			}
			if !cond.Bool {
				return nil
			}
			_, err = ev.block(n.Body)
			switch err.(type) {
			case nil, continueSignal:
			case breakSignal:
				return nil
			default:
				return err
			}
		}

	case *LoopStmt:
		for {
			_, err := ev.block(n.Body)
			switch err.(type) {
			case nil, continueSignal:
			case breakSignal:
				return nil
			default:
				return err
			}
		}

	case *ReturnStmt:
		val := Value{Kind: ValVoid}
		if n.Value != nil {
			v, err := ev.expr(n.Value)
			if err != nil {
				return err
			}
			val = v
		}
		return returnSignal{val}

	case *BreakStmt:
		return breakSignal{}

	case *ContinueStmt:
		return continueSignal{}

	case *FreeStmt:
		// Regions are a runtime concern; @free is a no-op here.
		return nil
	}
	return nil
}

func (ev *evaluator) assign(target Expr, v Value) error {
	switch n := target.(type) {
	case *Ident:
		sym := ev.c.Uses[n]
		if sym == nil {
			return ev.fail(CodeNotConstant, n.SpanVal, "cannot assign to %s at compile time", n.Name)
		}
		if _, ok := ev.env[sym]; !ok {
			return ev.fail(CodeNotConstant, n.SpanVal,
				"%s is a runtime value and cannot be assigned at compile time", n.Name)
		}
		ev.env[sym] = v
		return nil

	case *Index:
		container, err := ev.expr(n.Target)
		if err != nil {
			return err
		}
		idx, err := ev.expr(n.Idx)
		if err != nil {
			return err
		}
		if container.Kind != ValArray || idx.Kind != ValInt {
			return ev.fail(CodeUnsupportedOperation, n.SpanVal, "invalid index assignment")
		}
		if idx.Int < 0 || idx.Int >= int64(len(container.Elems)) {
			return ev.fail(CodeUnsupportedOperation, n.SpanVal,
				"index %d out of range for length %d", idx.Int, len(container.Elems))
		}
		container.Elems[idx.Int] = v
		return ev.assign(n.Target, container)

	case *Field:
		container, err := ev.expr(n.Target)
		if err != nil {
			return err
		}
		if container.Kind != ValStruct {
			return ev.fail(CodeUnsupportedOperation, n.SpanVal, "invalid field assignment")
		}
		def := ev.c.structs[container.Name]
		if def == nil {
			return ev.fail(CodeUnsupportedOperation, n.SpanVal, "unknown struct %s", container.Name)
		}
		i := def.FieldIndex(n.Name)
		if i < 0 {
			return ev.fail(CodeUnsupportedOperation, n.SpanVal, "no field %s", n.Name)
		}
		container.Elems[i] = v
		return ev.assign(n.Target, container)
	}
	return ev.fail(CodeUnsupportedOperation, target.Span(), "invalid assignment target")
}
