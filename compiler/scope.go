package compiler

// ---------------------------------------------------------------------------
// Scopes and symbols
// ---------------------------------------------------------------------------

// SymbolKind classifies a named entity.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymConst
	SymFunc
	SymStruct
	SymEnum
	SymVariant
	SymImport
	SymTypeParam
	SymBuiltin
)

var symbolKindNames = map[SymbolKind]string{
	SymVar:       "variable",
	SymConst:     "constant",
	SymFunc:      "function",
	SymStruct:    "struct",
	SymEnum:      "enum",
	SymVariant:   "variant",
	SymImport:    "import",
	SymTypeParam: "type parameter",
	SymBuiltin:   "builtin",
}

func (k SymbolKind) String() string { return symbolKindNames[k] }

// Symbol is a named entity visible in some scope.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type *Type
	Decl Node // declaring AST node; nil for builtins

	// Generics holds type-parameter names for generic functions/enums.
	Generics []string

	// Used tracks whether the symbol was ever referenced.
	Used bool

	// Enum bookkeeping for variants.
	Enum    *Symbol // owning enum for a SymVariant
	Variant int     // variant ordinal within the enum

	// Attrs carried over from the declaration (@pinned, @atomic, ...).
	Attrs []*Attr

	// Region assigned by the ownership pass; -1 until then.
	Region int
}

// Scope is a lexical scope with a parent chain.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	order   []*Symbol // declaration order, for deterministic iteration
}

// NewScope creates a child of parent (nil for the root scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

// Define adds a symbol to this scope. It returns the previous symbol with
// the same name in this scope, or nil; shadowing outer scopes is allowed.
func (s *Scope) Define(sym *Symbol) *Symbol {
	prev := s.symbols[sym.Name]
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym)
	return prev
}

// Lookup resolves a name through the parent chain.
func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

// LookupLocal resolves a name in this scope only.
func (s *Scope) LookupLocal(name string) *Symbol {
	return s.symbols[name]
}

// Locals returns this scope's symbols in declaration order.
func (s *Scope) Locals() []*Symbol {
	return s.order
}
