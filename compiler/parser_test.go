package compiler

import (
	"testing"
)

func parseTestFile(t *testing.T, src string) (*File, *Diagnostics) {
	t.Helper()
	var diags Diagnostics
	p := NewParser(src, &diags)
	f := p.ParseFile("test.z")
	return f, &diags
}

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, diags := parseTestFile(t, src)
	if diags.HasErrors() {
		t.Fatalf("parse errors:\n%s", diags.String())
	}
	return f
}

func TestParseFunctionDecl(t *testing.T) {
	f := mustParse(t, `
fn add(a: int, b: int) -> int {
    return a + b;
}
`)
	if len(f.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(f.Items))
	}
	fn, ok := f.Items[0].(*FuncDecl)
	if !ok {
		t.Fatalf("item is %T, want *FuncDecl", f.Items[0])
	}
	if fn.Name != "add" {
		t.Errorf("name = %q, want add", fn.Name)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(fn.Params))
	}
	if fn.Params[0].Name != "a" || fn.Params[0].Type.Name != "int" {
		t.Errorf("param[0] = %s: %s", fn.Params[0].Name, fn.Params[0].Type.Name)
	}
	if fn.Ret == nil || fn.Ret.Name != "int" {
		t.Errorf("return type = %v, want int", fn.Ret)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("got %d body stmts, want 1", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	if !ok {
		t.Fatalf("stmt is %T, want *ReturnStmt", fn.Body.Stmts[0])
	}
	bin, ok := ret.Value.(*Binary)
	if !ok || bin.Op != TokenPlus {
		t.Errorf("return value = %T, want a + b", ret.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3;", "1 + 2 * 3"},
		{"(1 + 2) * 3;", "(1 + 2) * 3"},
		{"a == b && c == d;", "a == b && c == d"},
		{"a || b && c;", "a || b && c"},
		{"-a * b;", "-a * b"},
		{"!(a && b);", "!(a && b)"},
		{"a + b + c;", "a + b + c"},
		{"a < b == c < d;", "a < b == c < d"},
		{"f(x)[0].y;", "f(x)[0].y"},
	}
	for _, tc := range tests {
		f := mustParse(t, "fn t() { "+tc.input+" }")
		fn := f.Items[0].(*FuncDecl)
		if len(fn.Body.Stmts) != 1 {
			t.Fatalf("%q: got %d stmts", tc.input, len(fn.Body.Stmts))
		}
		got := PrintExpr(fn.Body.Stmts[0].(*ExprStmt).Expr)
		if got != tc.want {
			t.Errorf("%q printed as %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseLetWithAttrs(t *testing.T) {
	f := mustParse(t, `
fn t() {
    let x: int = 5;
    let counter = @atomic 0;
    let buf = @pinned [1, 2, 3];
}
`)
	fn := f.Items[0].(*FuncDecl)
	if len(fn.Body.Stmts) != 3 {
		t.Fatalf("got %d stmts, want 3", len(fn.Body.Stmts))
	}

	typed := fn.Body.Stmts[0].(*LetStmt)
	if typed.Type == nil || typed.Type.Name != "int" {
		t.Errorf("let x type = %v, want int", typed.Type)
	}

	atomic := fn.Body.Stmts[1].(*LetStmt)
	if !hasAttr(atomic.Attrs, AttrAtomic) {
		t.Error("let counter missing @atomic")
	}

	pinned := fn.Body.Stmts[2].(*LetStmt)
	if !hasAttr(pinned.Attrs, AttrPinned) {
		t.Error("let buf missing @pinned")
	}
}

func TestParseStructAndEnum(t *testing.T) {
	f := mustParse(t, `
@packed
struct Point {
    x: float,
    y: float,
}

enum Option<T> {
    Some(T),
    None,
}
`)
	s := f.Items[0].(*StructDecl)
	if !hasAttr(s.Attrs, AttrPacked) {
		t.Error("struct missing @packed")
	}
	if len(s.Fields) != 2 || s.Fields[1].Name != "y" {
		t.Errorf("fields = %+v", s.Fields)
	}

	e := f.Items[1].(*EnumDecl)
	if len(e.Generics) != 1 || e.Generics[0] != "T" {
		t.Errorf("generics = %v, want [T]", e.Generics)
	}
	if len(e.Variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(e.Variants))
	}
	if len(e.Variants[0].Payload) != 1 || e.Variants[0].Payload[0].Name != "T" {
		t.Errorf("Some payload = %+v", e.Variants[0].Payload)
	}
	if len(e.Variants[1].Payload) != 0 {
		t.Errorf("None payload = %+v", e.Variants[1].Payload)
	}
}

func TestParseImplBlock(t *testing.T) {
	f := mustParse(t, `
impl Point {
    fn norm(self: Point) -> float {
        return self.x * self.x + self.y * self.y;
    }
}
`)
	ib := f.Items[0].(*ImplBlock)
	if ib.Target != "Point" {
		t.Errorf("target = %q, want Point", ib.Target)
	}
	if len(ib.Methods) != 1 || ib.Methods[0].Name != "norm" {
		t.Errorf("methods = %+v", ib.Methods)
	}
}

func TestParseGenericFunction(t *testing.T) {
	f := mustParse(t, `fn id<T>(x: T) -> T { return x; }`)
	fn := f.Items[0].(*FuncDecl)
	if len(fn.Generics) != 1 || fn.Generics[0] != "T" {
		t.Errorf("generics = %v, want [T]", fn.Generics)
	}
}

func TestParseClosure(t *testing.T) {
	f := mustParse(t, `
fn t() {
    let double = |x| x * 2;
    let sum = |a, b| { a + b };
    let thunk = || 42;
}
`)
	fn := f.Items[0].(*FuncDecl)

	double := fn.Body.Stmts[0].(*LetStmt).Value.(*Closure)
	if len(double.Params) != 1 || double.Params[0].Name != "x" {
		t.Errorf("double params = %+v", double.Params)
	}
	if _, ok := double.Body.(*Binary); !ok {
		t.Errorf("double body = %T, want *Binary", double.Body)
	}

	sum := fn.Body.Stmts[1].(*LetStmt).Value.(*Closure)
	block, ok := sum.Body.(*BlockExpr)
	if !ok {
		t.Fatalf("sum body = %T, want *BlockExpr", sum.Body)
	}
	if block.Tail == nil {
		t.Error("sum block has no tail value")
	}

	thunk := fn.Body.Stmts[2].(*LetStmt).Value.(*Closure)
	if len(thunk.Params) != 0 {
		t.Errorf("thunk params = %+v, want none", thunk.Params)
	}
}

func TestParseIfElseChain(t *testing.T) {
	f := mustParse(t, `
fn t(x: int) -> int {
    if x > 10 {
        return 1;
    } else if x > 5 {
        return 2;
    } else {
        return 3;
    }
}
`)
	fn := f.Items[0].(*FuncDecl)
	top := fn.Body.Tail.(*If)
	mid, ok := top.Else.(*If)
	if !ok {
		t.Fatalf("else branch = %T, want *If", top.Else)
	}
	if _, ok := mid.Else.(*BlockExpr); !ok {
		t.Fatalf("final else = %T, want *BlockExpr", mid.Else)
	}
}

func TestParseIfConditionNotStructLit(t *testing.T) {
	// `if x { }` must treat { as the block, not a struct literal.
	f := mustParse(t, `fn t(x: bool) { if x { return; } }`)
	fn := f.Items[0].(*FuncDecl)
	ifExpr := fn.Body.Tail.(*If)
	if _, ok := ifExpr.Cond.(*Ident); !ok {
		t.Errorf("cond = %T, want *Ident", ifExpr.Cond)
	}
}

func TestParseStructLiteral(t *testing.T) {
	f := mustParse(t, `
fn t() {
    let p = Point { x: 1.0, y: 2.0 };
}
`)
	fn := f.Items[0].(*FuncDecl)
	lit := fn.Body.Stmts[0].(*LetStmt).Value.(*StructLit)
	if lit.Name != "Point" || len(lit.Fields) != 2 {
		t.Errorf("lit = %+v", lit)
	}
}

func TestParseMatch(t *testing.T) {
	f := mustParse(t, `
fn t(o: Option<int>) -> int {
    match o {
        Some(v) => v,
        None => 0,
        _ => -1,
    }
}
`)
	fn := f.Items[0].(*FuncDecl)
	m := fn.Body.Tail.(*Match)
	if len(m.Arms) != 3 {
		t.Fatalf("got %d arms, want 3", len(m.Arms))
	}
	some := m.Arms[0].Pattern
	if !some.Variant || some.Name != "Some" || len(some.Binds) != 1 || some.Binds[0] != "v" {
		t.Errorf("arm[0] pattern = %+v", some)
	}
	none := m.Arms[1].Pattern
	if !none.Variant || none.Name != "None" {
		t.Errorf("arm[1] pattern = %+v", none)
	}
	if !m.Arms[2].Pattern.Wildcard {
		t.Errorf("arm[2] pattern = %+v, want wildcard", m.Arms[2].Pattern)
	}
}

func TestParseComptimeCall(t *testing.T) {
	f := mustParse(t, `
fn t() {
    let x = @comptime factorial(5);
}
`)
	fn := f.Items[0].(*FuncDecl)
	call := fn.Body.Stmts[0].(*LetStmt).Value.(*Call)
	if !call.Comptime {
		t.Error("call is not marked comptime")
	}
}

func TestParseFreeStmt(t *testing.T) {
	f := mustParse(t, `
fn t() {
    let buf = [1, 2, 3];
    @free buf;
}
`)
	fn := f.Items[0].(*FuncDecl)
	free, ok := fn.Body.Stmts[1].(*FreeStmt)
	if !ok {
		t.Fatalf("stmt = %T, want *FreeStmt", fn.Body.Stmts[1])
	}
	if free.Name != "buf" {
		t.Errorf("name = %q, want buf", free.Name)
	}
}

func TestParseParallelFor(t *testing.T) {
	f := mustParse(t, `
fn t(data: [int]) {
    @parallel for x in data {
        print(x);
    }
}
`)
	fn := f.Items[0].(*FuncDecl)
	forStmt := fn.Body.Stmts[0].(*ForStmt)
	if !hasAttr(forStmt.Attrs, AttrParallel) {
		t.Error("for missing @parallel")
	}
	if forStmt.Var != "x" {
		t.Errorf("var = %q, want x", forStmt.Var)
	}
}

func TestParseExternFunction(t *testing.T) {
	f := mustParse(t, `
@extern "C"
fn malloc(size: int) -> int;
`)
	fn := f.Items[0].(*FuncDecl)
	a := findAttr(fn.Attrs, AttrExtern)
	if a == nil || a.Args[0] != "C" {
		t.Errorf("attrs = %+v, want @extern C", fn.Attrs)
	}
	if fn.Body != nil {
		t.Error("extern fn should have no body")
	}
}

func TestParseImport(t *testing.T) {
	f := mustParse(t, `
import "std/math";
import "vendor/fastsort" as fsort;
`)
	plain := f.Items[0].(*ImportDecl)
	if plain.Path != "std/math" || plain.Alias != "" {
		t.Errorf("import = %+v", plain)
	}
	aliased := f.Items[1].(*ImportDecl)
	if aliased.Path != "vendor/fastsort" || aliased.Alias != "fsort" {
		t.Errorf("import = %+v", aliased)
	}
}

func TestParseStringInterpolation(t *testing.T) {
	f := mustParse(t, `
fn t(name: string) {
    print("hello {name}!");
}
`)
	fn := f.Items[0].(*FuncDecl)
	call := fn.Body.Stmts[0].(*ExprStmt).Expr.(*Call)
	lit := call.Args[0].(*StringLit)
	if len(lit.Parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(lit.Parts))
	}
	if lit.Parts[0].Text != "hello " {
		t.Errorf("part[0] = %q", lit.Parts[0].Text)
	}
	if _, ok := lit.Parts[1].Expr.(*Ident); !ok {
		t.Errorf("part[1] = %T, want *Ident", lit.Parts[1].Expr)
	}
	if lit.Parts[2].Text != "!" {
		t.Errorf("part[2] = %q", lit.Parts[2].Text)
	}
}

func TestParseErrorRecovery(t *testing.T) {
	// Both errors must be reported despite the first malformed statement.
	src := `
fn t() {
    let = 5;
    let ok = 1;
    return }};
}
`
	f, diags := parseTestFile(t, src)
	if !diags.HasErrors() {
		t.Fatal("expected parse errors")
	}
	if diags.Len() < 2 {
		t.Errorf("got %d diagnostics, want at least 2:\n%s", diags.Len(), diags.String())
	}
	// The file still produced items.
	if len(f.Items) == 0 {
		t.Error("recovery produced no items")
	}
}

func TestParseUnknownAttribute(t *testing.T) {
	_, diags := parseTestFile(t, `
@wibble
fn t() { }
`)
	if !diags.HasErrors() {
		t.Fatal("expected an error for unknown attribute")
	}
	if diags.Errors()[0].Code != CodeUnknownAttr {
		t.Errorf("code = %v, want UnknownAttr", diags.Errors()[0].Code)
	}
}

func TestParseDiagnosticsSorted(t *testing.T) {
	_, diags := parseTestFile(t, `
fn a() { let = 1; }
fn b() { let = 2; }
`)
	all := diags.All()
	if len(all) < 2 {
		t.Fatalf("got %d diagnostics, want at least 2", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Span.Start.Offset < all[i-1].Span.Start.Offset {
			t.Errorf("diagnostics out of order at %d", i)
		}
	}
}

func TestPrintParseRoundTrip(t *testing.T) {
	src := `
@packed
struct Vec2 {
    x: float,
    y: float,
}

enum Shape {
    Circle(float),
    Rect(float, float),
}

const LIMIT: int = 100;

fn area(s: Shape) -> float {
    match s {
        Circle(r) => 3.14 * r * r,
        Rect(w, h) => w * h,
    }
}

fn main() {
    let total = @atomic 0;
    let shapes = [Circle(1.0), Rect(2.0, 3.0)];
    @parallel for s in shapes {
        print("area = {area(s)}");
    }
    if LIMIT > 50 {
        print("big");
    } else {
        print("small");
    }
}
`
	first := mustParse(t, src)
	printed := Print(first)
	second := mustParse(t, printed)
	again := Print(second)
	if printed != again {
		t.Errorf("print is not a fixed point:\nfirst:\n%s\nsecond:\n%s", printed, again)
	}
}
