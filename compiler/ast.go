package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Z
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// ZeroSpan returns an empty span.
func ZeroSpan() Span {
	return Span{}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

// Attr is a validated @attribute attached to an item or expression.
type Attr struct {
	SpanVal Span
	Name    string   // "simd", "comptime", "align", ...
	Args    []string // raw arguments, e.g. ["8"] for @align(8), ["C"] for @extern "C"
}

func (a *Attr) Span() Span { return a.SpanVal }
func (a *Attr) node()      {}

// ---------------------------------------------------------------------------
// Type expressions (syntactic; resolved to *Type during checking)
// ---------------------------------------------------------------------------

// TypeExpr is a parsed type annotation.
type TypeExpr struct {
	SpanVal Span
	Name    string      // "int", "MyStruct", "T"
	Elem    *TypeExpr   // array element for [T]
	Elems   []*TypeExpr // tuple elements for (A, B)
	Params  []*TypeExpr // fn params for fn(A, B) -> R, or generic args Foo<A, B>
	Ret     *TypeExpr   // fn return
	IsArray bool
	IsTuple bool
	IsFunc  bool
}

func (t *TypeExpr) Span() Span { return t.SpanVal }
func (t *TypeExpr) node()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLit represents an integer literal.
type IntLit struct {
	SpanVal Span
	Value   int64
}

func (n *IntLit) Span() Span { return n.SpanVal }
func (n *IntLit) node()      {}
func (n *IntLit) expr()      {}

// FloatLit represents a floating-point literal.
type FloatLit struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLit) Span() Span { return n.SpanVal }
func (n *FloatLit) node()      {}
func (n *FloatLit) expr()      {}

// BoolLit represents true or false.
type BoolLit struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLit) Span() Span { return n.SpanVal }
func (n *BoolLit) node()      {}
func (n *BoolLit) expr()      {}

// StringLit represents a string literal, possibly with {expr} interpolation.
type StringLit struct {
	SpanVal Span
	Value   string // cooked text with holes removed; empty when Parts present
	Parts   []StringPart
}

// StringPart is either literal text or an interpolated expression.
type StringPart struct {
	Text string
	Expr Expr // non-nil for an interpolation hole
}

func (n *StringLit) Span() Span { return n.SpanVal }
func (n *StringLit) node()      {}
func (n *StringLit) expr()      {}

// CharLit represents a character literal.
type CharLit struct {
	SpanVal Span
	Value   rune
}

func (n *CharLit) Span() Span { return n.SpanVal }
func (n *CharLit) node()      {}
func (n *CharLit) expr()      {}

// NullLit represents the null literal.
type NullLit struct {
	SpanVal Span
}

func (n *NullLit) Span() Span { return n.SpanVal }
func (n *NullLit) node()      {}
func (n *NullLit) expr()      {}

// ArrayLit represents [a, b, c].
type ArrayLit struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLit) Span() Span { return n.SpanVal }
func (n *ArrayLit) node()      {}
func (n *ArrayLit) expr()      {}

// Ident represents an identifier reference.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// Unary represents a unary operation (-x, !x).
type Unary struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Binary represents a binary operation (a + b).
type Binary struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Call represents a function call f(a, b). Comptime is set when the call is
// prefixed with @comptime.
type Call struct {
	SpanVal  Span
	Callee   Expr
	Args     []Expr
	Comptime bool
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// Index represents an index expression a[i].
type Index struct {
	SpanVal Span
	Target  Expr
	Idx     Expr
}

func (n *Index) Span() Span { return n.SpanVal }
func (n *Index) node()      {}
func (n *Index) expr()      {}

// Field represents a field access a.b.
type Field struct {
	SpanVal Span
	Target  Expr
	Name    string
}

func (n *Field) Span() Span { return n.SpanVal }
func (n *Field) node()      {}
func (n *Field) expr()      {}

// StructLit represents a struct literal Point { x: 1, y: 2 }.
type StructLit struct {
	SpanVal Span
	Name    string
	Fields  []StructLitField
}

// StructLitField is one field initializer in a struct literal.
type StructLitField struct {
	Name  string
	Value Expr
}

func (n *StructLit) Span() Span { return n.SpanVal }
func (n *StructLit) node()      {}
func (n *StructLit) expr()      {}

// Closure represents a closure |a, b| body.
type Closure struct {
	SpanVal Span
	Params  []Param
	Body    Expr // expression or *BlockExpr
}

func (n *Closure) Span() Span { return n.SpanVal }
func (n *Closure) node()      {}
func (n *Closure) expr()      {}

// If represents an if expression.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    *BlockExpr
	Else    Expr // *BlockExpr, *If (else-if chain), or nil
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) expr()      {}

// Match represents a match expression.
type Match struct {
	SpanVal Span
	Subject Expr
	Arms    []MatchArm
}

// MatchArm is one pattern => body arm.
type MatchArm struct {
	SpanVal Span
	Pattern Pattern
	Body    Expr
}

func (n *Match) Span() Span { return n.SpanVal }
func (n *Match) node()      {}
func (n *Match) expr()      {}

// Pattern is a match pattern: a literal, a binding, a wildcard, or an enum
// variant with sub-bindings.
type Pattern struct {
	SpanVal  Span
	Wildcard bool
	Lit      Expr     // literal pattern when non-nil
	Name     string   // binding or variant name
	Variant  bool     // Name refers to an enum variant
	Binds    []string // payload bindings for a variant pattern
}

func (p *Pattern) Span() Span { return p.SpanVal }
func (p *Pattern) node()      {}

// BlockExpr represents a brace-delimited block. Its value is Tail when the
// block ends with an expression not terminated by a semicolon, else void.
type BlockExpr struct {
	SpanVal Span
	Stmts   []Stmt
	Tail    Expr
}

func (n *BlockExpr) Span() Span { return n.SpanVal }
func (n *BlockExpr) node()      {}
func (n *BlockExpr) expr()      {}

// BadExpr is a placeholder inserted by error recovery.
type BadExpr struct {
	SpanVal Span
}

func (n *BadExpr) Span() Span { return n.SpanVal }
func (n *BadExpr) node()      {}
func (n *BadExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt represents a let binding.
type LetStmt struct {
	SpanVal Span
	Name    string
	Type    *TypeExpr // nil when inferred
	Value   Expr
	Attrs   []*Attr // @pinned, @atomic
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// AssignStmt represents an assignment (target = value).
type AssignStmt struct {
	SpanVal Span
	Target  Expr
	Value   Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// ForStmt represents for x in iterable { ... }.
type ForStmt struct {
	SpanVal Span
	Var     string
	Iter    Expr
	Body    *BlockExpr
	Attrs   []*Attr // @simd, @parallel
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// WhileStmt represents while cond { ... }.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *BlockExpr
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// LoopStmt represents loop { ... }.
type LoopStmt struct {
	SpanVal Span
	Body    *BlockExpr
}

func (n *LoopStmt) Span() Span { return n.SpanVal }
func (n *LoopStmt) node()      {}
func (n *LoopStmt) stmt()      {}

// ReturnStmt represents return [expr].
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil for bare return
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// BreakStmt represents break.
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt represents continue.
type ContinueStmt struct {
	SpanVal Span
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// FreeStmt represents @free x; ending x's region at this statement.
type FreeStmt struct {
	SpanVal Span
	Name    string
}

func (n *FreeStmt) Span() Span { return n.SpanVal }
func (n *FreeStmt) node()      {}
func (n *FreeStmt) stmt()      {}

// BadStmt is a placeholder inserted by error recovery.
type BadStmt struct {
	SpanVal Span
}

func (n *BadStmt) Span() Span { return n.SpanVal }
func (n *BadStmt) node()      {}
func (n *BadStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Item nodes
// ---------------------------------------------------------------------------

// Item is the interface for top-level declarations.
type Item interface {
	Node
	item() // marker method
}

// Param is a function or closure parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    *TypeExpr // nil for untyped closure params
}

func (p *Param) Span() Span { return p.SpanVal }
func (p *Param) node()      {}

// FuncDecl represents a function declaration.
type FuncDecl struct {
	SpanVal  Span
	Name     string
	Generics []string // type parameter names
	Params   []Param
	Ret      *TypeExpr // nil means void
	Body     *BlockExpr
	Attrs    []*Attr // @comptime, @extern, @export, @simd, @macro
}

func (n *FuncDecl) Span() Span { return n.SpanVal }
func (n *FuncDecl) node()      {}
func (n *FuncDecl) item()      {}

// StructField is one field in a struct declaration.
type StructField struct {
	SpanVal Span
	Name    string
	Type    *TypeExpr
}

// StructDecl represents a struct declaration.
type StructDecl struct {
	SpanVal Span
	Name    string
	Fields  []StructField
	Attrs   []*Attr // @packed, @align(N)
}

func (n *StructDecl) Span() Span { return n.SpanVal }
func (n *StructDecl) node()      {}
func (n *StructDecl) item()      {}

// EnumVariant is one variant in an enum declaration.
type EnumVariant struct {
	SpanVal Span
	Name    string
	Payload []*TypeExpr // empty for unit variants
}

// EnumDecl represents an enum declaration.
type EnumDecl struct {
	SpanVal  Span
	Name     string
	Generics []string
	Variants []EnumVariant
	Attrs    []*Attr
}

func (n *EnumDecl) Span() Span { return n.SpanVal }
func (n *EnumDecl) node()      {}
func (n *EnumDecl) item()      {}

// ImplBlock represents impl Name { fns }.
type ImplBlock struct {
	SpanVal Span
	Target  string
	Methods []*FuncDecl
}

func (n *ImplBlock) Span() Span { return n.SpanVal }
func (n *ImplBlock) node()      {}
func (n *ImplBlock) item()      {}

// ImportDecl represents import "path" or import "path" as name.
type ImportDecl struct {
	SpanVal Span
	Path    string
	Alias   string // defaults to last path element
}

func (n *ImportDecl) Span() Span { return n.SpanVal }
func (n *ImportDecl) node()      {}
func (n *ImportDecl) item()      {}

// ConstDecl represents const NAME [: T] = expr.
type ConstDecl struct {
	SpanVal Span
	Name    string
	Type    *TypeExpr
	Value   Expr
	Attrs   []*Attr
}

func (n *ConstDecl) Span() Span { return n.SpanVal }
func (n *ConstDecl) node()      {}
func (n *ConstDecl) item()      {}

// ---------------------------------------------------------------------------
// Top-level structure
// ---------------------------------------------------------------------------

// File represents a complete compilation unit.
type File struct {
	SpanVal Span
	Name    string // source file name, for diagnostics
	Items   []Item
}

func (n *File) Span() Span { return n.SpanVal }
func (n *File) node()      {}
