package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Checker: name resolution, declaration collection, and FFI validation
// ---------------------------------------------------------------------------

// StructDef is the checked form of a struct declaration.
type StructDef struct {
	Sym    *Symbol
	Decl   *StructDecl
	Fields []FieldDef
}

// FieldDef is one checked struct field.
type FieldDef struct {
	Name string
	Type *Type
}

// FieldIndex returns the ordinal of a field, or -1.
func (d *StructDef) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// EnumDef is the checked form of an enum declaration.
type EnumDef struct {
	Sym      *Symbol
	Decl     *EnumDecl
	Generics []string
	Variants []VariantDef
}

// VariantDef is one checked enum variant.
type VariantDef struct {
	Name    string
	Payload []*Type // may reference KindParam types
}

// VariantIndex returns the ordinal of a variant, or -1.
func (d *EnumDef) VariantIndex(name string) int {
	for i, v := range d.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// FuncDef is the checked form of a function declaration or method.
type FuncDef struct {
	Sym      *Symbol
	Decl     *FuncDecl
	Type     *Type // KindFunc, possibly containing KindParam types
	Generics []string
	Extern   string // ABI name for @extern fns, e.g. "C"
	Receiver string // struct name for impl methods, empty otherwise
}

// patternBindKey identifies one binding inside a match pattern.
type patternBindKey struct {
	Pat  *Pattern
	Bind int // payload ordinal, or -1 for a whole-subject binding
}

// Checker runs name resolution and type inference over one file. The result
// is a set of side tables keyed by AST node; the AST itself is not mutated.
type Checker struct {
	ts    *TypeSet
	diags *Diagnostics
	file  *File

	global  *Scope
	structs map[string]*StructDef
	enums   map[string]*EnumDef
	funcs   map[string]*FuncDef
	methods map[string]map[string]*FuncDef // struct name -> method name
	consts  map[string]*ConstDecl

	// variantEnums maps a variant name to every enum declaring it, for
	// unqualified variant resolution in patterns and expressions.
	variantEnums map[string][]*EnumDef

	// Side tables produced by checking.
	ExprTypes map[Expr]*Type // every expression's resolved type
	Uses      map[*Ident]*Symbol
	Defs      map[Node]*Symbol // LetStmt/Param/ForStmt/Pattern bindings
	CallDefs  map[*Call]*FuncDef
	LitDefs   map[*StructLit]*StructDef
	PatEnums  map[*Match][]*EnumDef // per-arm variant owners, arm order

	// Comptime holds evaluated values for @comptime calls, filled by the
	// comptime pass after inference. ConstVals holds every evaluated const.
	Comptime  map[*Call]Value
	ConstVals map[string]Value

	// PatSyms maps pattern bindings to their symbols: bind index for
	// variant payloads, -1 for a whole-subject binding.
	PatSyms map[patternBindKey]*Symbol

	// ComptimeDepth raises or lowers the compile-time call-depth limit.
	// Zero keeps the built-in default. Set before Check runs.
	ComptimeDepth int

	// current function context during inference
	curFunc   *FuncDef
	curRet    *Type
	loopDepth int
}

// NewChecker creates a checker over a parsed file.
func NewChecker(file *File, diags *Diagnostics) *Checker {
	c := &Checker{
		ts:           NewTypeSet(),
		diags:        diags,
		file:         file,
		structs:      make(map[string]*StructDef),
		enums:        make(map[string]*EnumDef),
		funcs:        make(map[string]*FuncDef),
		methods:      make(map[string]map[string]*FuncDef),
		consts:       make(map[string]*ConstDecl),
		variantEnums: make(map[string][]*EnumDef),
		ExprTypes:    make(map[Expr]*Type),
		Uses:         make(map[*Ident]*Symbol),
		Defs:         make(map[Node]*Symbol),
		CallDefs:     make(map[*Call]*FuncDef),
		LitDefs:      make(map[*StructLit]*StructDef),
		PatEnums:     make(map[*Match][]*EnumDef),
		Comptime:     make(map[*Call]Value),
		ConstVals:    make(map[string]Value),
		PatSyms:      make(map[patternBindKey]*Symbol),
	}
	c.global = NewScope(nil)
	c.defineBuiltins()
	return c
}

// Check runs the full front half of the pipeline: collection, resolution,
// inference, comptime evaluation, and the ownership pass.
func (c *Checker) Check() {
	c.collect()
	if c.diags.HasErrors() {
		// Declaration errors poison downstream passes; stop here so every
		// later diagnostic refers to a well-formed declaration set.
		return
	}
	c.inferFile()
	c.evalComptime()
	c.checkRegions()
}

// TypeOf returns the resolved type recorded for an expression.
func (c *Checker) TypeOf(e Expr) *Type {
	if t, ok := c.ExprTypes[e]; ok {
		return c.ts.resolveDeep(t)
	}
	return c.ts.Error
}

// Funcs returns the collected function definitions in declaration order.
func (c *Checker) Funcs() []*FuncDef {
	var out []*FuncDef
	for _, item := range c.file.Items {
		switch n := item.(type) {
		case *FuncDecl:
			if def, ok := c.funcs[n.Name]; ok && def.Decl == n {
				out = append(out, def)
			}
		case *ImplBlock:
			for _, m := range n.Methods {
				if byName, ok := c.methods[n.Target]; ok {
					if def, ok := byName[m.Name]; ok && def.Decl == m {
						out = append(out, def)
					}
				}
			}
		}
	}
	return out
}

// StructNamed returns the collected struct definition, or nil.
func (c *Checker) StructNamed(name string) *StructDef { return c.structs[name] }

// EnumNamed returns the collected enum definition, or nil.
func (c *Checker) EnumNamed(name string) *EnumDef { return c.enums[name] }

// Method returns the method def for a struct, or nil.
func (c *Checker) Method(structName, method string) *FuncDef {
	if byName, ok := c.methods[structName]; ok {
		return byName[method]
	}
	return nil
}

func (c *Checker) defineBuiltins() {
	// print and len are handled specially during inference; they get
	// placeholder symbols so name resolution succeeds. parallel is a
	// namespace whose members are for/map/reduce.
	for _, name := range []string{"print", "len", "parallel"} {
		c.global.Define(&Symbol{Name: name, Kind: SymBuiltin, Region: -1})
	}
}

// ---------------------------------------------------------------------------
// Pass 1: declaration collection
// ---------------------------------------------------------------------------

func (c *Checker) collect() {
	// Names first so struct fields and signatures can refer to any
	// declaration regardless of order.
	for _, item := range c.file.Items {
		switch n := item.(type) {
		case *StructDecl:
			c.declareStruct(n)
		case *EnumDecl:
			c.declareEnum(n)
		case *ImportDecl:
			c.declareImport(n)
		}
	}
	// Bodies of type declarations and function signatures second.
	for _, item := range c.file.Items {
		switch n := item.(type) {
		case *StructDecl:
			c.collectStructFields(n)
		case *EnumDecl:
			c.collectEnumVariants(n)
		}
	}
	for _, item := range c.file.Items {
		switch n := item.(type) {
		case *FuncDecl:
			c.declareFunc(n, "")
		case *ImplBlock:
			c.collectImpl(n)
		case *ConstDecl:
			c.declareConst(n)
		}
	}
}

func (c *Checker) defineGlobal(sym *Symbol, span Span) {
	if prev := c.global.LookupLocal(sym.Name); prev != nil {
		c.diags.Addf(CategoryName, CodeDuplicateDefinition, span,
			"%s is already defined as a %s", sym.Name, prev.Kind)
		return
	}
	c.global.Define(sym)
}

func (c *Checker) declareStruct(n *StructDecl) {
	sym := &Symbol{Name: n.Name, Kind: SymStruct, Decl: n, Attrs: n.Attrs, Region: -1}
	c.defineGlobal(sym, n.SpanVal)
	c.structs[n.Name] = &StructDef{Sym: sym, Decl: n}
	sym.Type = c.ts.Struct(n.Name, nil)
}

func (c *Checker) declareEnum(n *EnumDecl) {
	sym := &Symbol{Name: n.Name, Kind: SymEnum, Decl: n, Generics: n.Generics, Region: -1}
	c.defineGlobal(sym, n.SpanVal)
	def := &EnumDef{Sym: sym, Decl: n, Generics: n.Generics}
	c.enums[n.Name] = def
	var args []*Type
	for _, g := range n.Generics {
		args = append(args, c.ts.Param(g))
	}
	sym.Type = c.ts.Enum(n.Name, args)
}

func (c *Checker) declareImport(n *ImportDecl) {
	alias := n.Alias
	if alias == "" {
		parts := strings.Split(n.Path, "/")
		alias = parts[len(parts)-1]
	}
	if prev := c.global.LookupLocal(alias); prev != nil {
		if prev.Kind == SymImport {
			c.diags.Addf(CategoryName, CodeAmbiguousImport, n.SpanVal,
				"import name %s is ambiguous; use an explicit alias", alias)
		} else {
			c.diags.Addf(CategoryName, CodeDuplicateDefinition, n.SpanVal,
				"%s is already defined as a %s", alias, prev.Kind)
		}
		return
	}
	c.global.Define(&Symbol{Name: alias, Kind: SymImport, Decl: n, Region: -1})
}

func (c *Checker) collectStructFields(n *StructDecl) {
	def := c.structs[n.Name]
	if def == nil || def.Decl != n {
		return
	}
	seen := make(map[string]bool)
	for _, f := range n.Fields {
		if seen[f.Name] {
			c.diags.Addf(CategoryName, CodeDuplicateDefinition, f.SpanVal,
				"field %s is declared twice in struct %s", f.Name, n.Name)
			continue
		}
		seen[f.Name] = true
		def.Fields = append(def.Fields, FieldDef{Name: f.Name, Type: c.typeFromExpr(f.Type, nil)})
	}
}

func (c *Checker) collectEnumVariants(n *EnumDecl) {
	def := c.enums[n.Name]
	if def == nil || def.Decl != n {
		return
	}
	params := make(map[string]bool, len(n.Generics))
	for _, g := range n.Generics {
		params[g] = true
	}
	seen := make(map[string]bool)
	for _, v := range n.Variants {
		if seen[v.Name] {
			c.diags.Addf(CategoryName, CodeDuplicateDefinition, v.SpanVal,
				"variant %s is declared twice in enum %s", v.Name, n.Name)
			continue
		}
		seen[v.Name] = true
		vd := VariantDef{Name: v.Name}
		for _, t := range v.Payload {
			vd.Payload = append(vd.Payload, c.typeFromExpr(t, params))
		}
		def.Variants = append(def.Variants, vd)
		c.variantEnums[v.Name] = append(c.variantEnums[v.Name], def)
	}
}

func (c *Checker) declareFunc(n *FuncDecl, receiver string) *FuncDef {
	params := make(map[string]bool, len(n.Generics))
	for _, g := range n.Generics {
		params[g] = true
	}

	var paramTypes []*Type
	for _, p := range n.Params {
		paramTypes = append(paramTypes, c.typeFromExpr(p.Type, params))
	}
	var ret *Type
	if n.Ret != nil {
		ret = c.typeFromExpr(n.Ret, params)
	} else {
		ret = c.ts.Void
	}

	def := &FuncDef{
		Decl:     n,
		Type:     c.ts.Func(paramTypes, ret),
		Generics: n.Generics,
		Receiver: receiver,
	}
	if a := findAttr(n.Attrs, AttrExtern); a != nil {
		def.Extern = a.Args[0]
		c.checkFFISignature(n, paramTypes, ret)
	} else if hasAttr(n.Attrs, AttrExport) {
		// Exported symbols cross the same boundary as extern ones.
		c.checkFFISignature(n, paramTypes, ret)
	} else if n.Body == nil {
		c.diags.Addf(CategoryParse, CodeExpected, n.SpanVal,
			"function %s has no body; only @extern functions may omit one", n.Name)
	}

	sym := &Symbol{
		Name:     n.Name,
		Kind:     SymFunc,
		Type:     def.Type,
		Decl:     n,
		Generics: n.Generics,
		Attrs:    n.Attrs,
		Region:   -1,
	}
	def.Sym = sym

	if receiver == "" {
		c.defineGlobal(sym, n.SpanVal)
		c.funcs[n.Name] = def
	} else {
		byName := c.methods[receiver]
		if byName == nil {
			byName = make(map[string]*FuncDef)
			c.methods[receiver] = byName
		}
		if _, dup := byName[n.Name]; dup {
			c.diags.Addf(CategoryName, CodeDuplicateDefinition, n.SpanVal,
				"method %s is already defined on %s", n.Name, receiver)
			return def
		}
		byName[n.Name] = def
	}
	return def
}

func (c *Checker) collectImpl(n *ImplBlock) {
	if _, ok := c.structs[n.Target]; !ok {
		if _, isEnum := c.enums[n.Target]; !isEnum {
			c.diags.Addf(CategoryName, CodeUndefined, n.SpanVal,
				"impl target %s is not a declared struct or enum", n.Target)
			return
		}
	}
	for _, m := range n.Methods {
		c.declareFunc(m, n.Target)
	}
}

func (c *Checker) declareConst(n *ConstDecl) {
	sym := &Symbol{Name: n.Name, Kind: SymConst, Decl: n, Attrs: n.Attrs, Region: -1}
	c.defineGlobal(sym, n.SpanVal)
	c.consts[n.Name] = n
	if n.Type != nil {
		sym.Type = c.typeFromExpr(n.Type, nil)
	}
}

// ---------------------------------------------------------------------------
// Type annotation resolution
// ---------------------------------------------------------------------------

// typeFromExpr resolves a syntactic type annotation. params holds in-scope
// generic parameter names.
func (c *Checker) typeFromExpr(t *TypeExpr, params map[string]bool) *Type {
	if t == nil {
		return c.ts.Error
	}
	switch {
	case t.IsArray:
		return c.ts.Array(c.typeFromExpr(t.Elem, params))
	case t.IsTuple:
		elems := make([]*Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = c.typeFromExpr(e, params)
		}
		return c.ts.Tuple(elems)
	case t.IsFunc:
		ps := make([]*Type, len(t.Params))
		for i, e := range t.Params {
			ps[i] = c.typeFromExpr(e, params)
		}
		var ret *Type
		if t.Ret != nil {
			ret = c.typeFromExpr(t.Ret, params)
		}
		return c.ts.Func(ps, ret)
	}

	switch t.Name {
	case "int":
		return c.ts.Int
	case "float":
		return c.ts.Float
	case "bool":
		return c.ts.Bool
	case "string":
		return c.ts.String
	case "char":
		return c.ts.Char
	case "void":
		return c.ts.Void
	case "<error>":
		return c.ts.Error
	}

	if params != nil && params[t.Name] {
		return c.ts.Param(t.Name)
	}
	if def, ok := c.structs[t.Name]; ok {
		_ = def
		return c.ts.Struct(t.Name, nil)
	}
	if def, ok := c.enums[t.Name]; ok {
		var args []*Type
		for i, e := range t.Params {
			if i < len(def.Generics) {
				args = append(args, c.typeFromExpr(e, params))
			}
		}
		if len(t.Params) != len(def.Generics) {
			c.diags.Addf(CategoryType, CodeArityMismatch, t.SpanVal,
				"enum %s takes %d type arguments, got %d",
				t.Name, len(def.Generics), len(t.Params))
			return c.ts.Error
		}
		return c.ts.Enum(t.Name, args)
	}

	c.diags.Addf(CategoryName, CodeUndefined, t.SpanVal, "unknown type %s", t.Name)
	return c.ts.Error
}

// ---------------------------------------------------------------------------
// FFI validation
// ---------------------------------------------------------------------------

// checkFFISignature restricts boundary-crossing signatures, @extern and
// @export alike, to types with a stable C representation.
func (c *Checker) checkFFISignature(n *FuncDecl, params []*Type, ret *Type) {
	attr := "@extern"
	if hasAttr(n.Attrs, AttrExport) {
		attr = "@export"
	}
	for i, t := range params {
		if !ffiSafe(t) {
			c.diags.Addf(CategoryFFI, CodeUnsupportedType, n.Params[i].SpanVal,
				"parameter %s of %s function %s has type %s, which cannot cross the C boundary",
				n.Params[i].Name, attr, n.Name, t)
		}
	}
	if ret != nil && !ffiSafe(ret) {
		c.diags.Addf(CategoryFFI, CodeUnsupportedType, n.Ret.SpanVal,
			"%s function %s returns %s, which cannot cross the C boundary", attr, n.Name, ret)
	}
	if len(n.Generics) > 0 {
		c.diags.Addf(CategoryFFI, CodeUnsupportedType, n.SpanVal,
			"%s function %s cannot be generic", attr, n.Name)
	}
}

func ffiSafe(t *Type) bool {
	switch t.Kind {
	case KindInt, KindFloat, KindBool, KindChar, KindVoid:
		return true
	}
	return false
}
