package compiler

import (
	"strings"
	"testing"
)

func lowerSource(t *testing.T, src string) *Program {
	t.Helper()
	c, diags := checkSource("test.z", src)
	if diags.HasErrors() {
		t.Fatalf("check errors:\n%s", diags.String())
	}
	prog := Lower(c, "test", diags)
	if diags.HasErrors() {
		t.Fatalf("lower errors:\n%s", diags.String())
	}
	return prog
}

func disasmFunc(f *Func) string {
	var sb strings.Builder
	DisassembleFunc(&sb, f)
	return sb.String()
}

func mainDisasm(t *testing.T, src string) string {
	t.Helper()
	prog := lowerSource(t, src)
	fn := prog.FuncNamed("main")
	if fn == nil {
		t.Fatal("no main function in lowered program")
	}
	return disasmFunc(fn)
}

func TestLowerComptimeCallIsFolded(t *testing.T) {
	dis := mainDisasm(t, factSrc+`
fn main() {
    let x = @comptime fact(5);
    print(x);
}
`)
	if !strings.Contains(dis, "const.int 120") {
		t.Errorf("main should load the folded constant:\n%s", dis)
	}
	if strings.Contains(dis, "call") {
		t.Errorf("main should not call fact at runtime:\n%s", dis)
	}
}

func TestLowerConstFoldsArithmetic(t *testing.T) {
	dis := mainDisasm(t, `fn main() { print(2 + 3 * 4); }`)
	if !strings.Contains(dis, "const.int 14") {
		t.Errorf("expected 2 + 3 * 4 folded to 14:\n%s", dis)
	}
	for _, op := range []string{"mul", "add"} {
		if strings.Contains(dis, op) {
			t.Errorf("expected no %s after folding:\n%s", op, dis)
		}
	}
}

func TestLowerConstFoldsStringConcat(t *testing.T) {
	dis := mainDisasm(t, `fn main() { print("he" + "llo"); }`)
	if !strings.Contains(dis, `"hello"`) {
		t.Errorf("expected concatenation folded:\n%s", dis)
	}
	if strings.Contains(dis, "concat") {
		t.Errorf("expected no concat after folding:\n%s", dis)
	}
}

func TestLowerAtomicIncrement(t *testing.T) {
	// c = c + 1 on an @atomic binding must lower to a single atomic add, not
	// a load/store pair.
	dis := mainDisasm(t, `
fn main() {
    let c = @atomic 0;
    c = c + 1;
    c = c - 2;
    print(c);
}
`)
	if got := strings.Count(dis, "atomic.add"); got != 2 {
		t.Errorf("atomic.add count = %d, want 2:\n%s", got, dis)
	}
	if strings.Contains(dis, "atomic.store") {
		t.Errorf("expected no atomic.store:\n%s", dis)
	}
	if !strings.Contains(dis, "atomic.load") {
		t.Errorf("print should read through atomic.load:\n%s", dis)
	}
}

func TestLowerGenericInstances(t *testing.T) {
	prog := lowerSource(t, `
fn id<T>(x: T) -> T { return x; }
fn main() {
    print(id(42));
    print(id("s"));
}
`)
	if prog.FuncNamed("id$int") == nil {
		t.Error("missing id$int instance")
	}
	if prog.FuncNamed("id$string") == nil {
		t.Error("missing id$string instance")
	}
	if prog.FuncNamed("id") != nil {
		t.Error("the generic template itself must not be lowered")
	}
}

func TestLowerGenericInstanceDeduplicated(t *testing.T) {
	prog := lowerSource(t, `
fn id<T>(x: T) -> T { return x; }
fn main() {
    print(id(1));
    print(id(2));
    print(id(3));
}
`)
	count := 0
	for _, fn := range prog.Funcs {
		if strings.HasPrefix(fn.Name, "id$") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d id instances, want 1", count)
	}
}

func TestLowerRegionBracketsEveryFunction(t *testing.T) {
	prog := lowerSource(t, `
fn describe(n: int) -> string {
    if n < 0 {
        return "negative";
    }
    return "non-negative";
}

fn main() {
    print(describe(-1));
    print(describe(1));
}
`)
	for _, fn := range prog.Funcs {
		if fn.Extern != "" {
			continue
		}
		if len(fn.Instrs) == 0 || fn.Instrs[0].Op != OpRegionPush {
			t.Errorf("%s does not open with region.push", fn.Name)
		}
		for i, in := range fn.Instrs {
			if in.Op != OpReturn && in.Op != OpReturnVoid {
				continue
			}
			if i == 0 || fn.Instrs[i-1].Op != OpRegionPop {
				t.Errorf("%s: return at %d is not preceded by region.pop", fn.Name, i)
			}
		}
	}
}

func TestLowerParallelForBodyClosure(t *testing.T) {
	prog := lowerSource(t, `
fn main() {
    @parallel for x in [1, 2, 3] {
        print(x);
    }
}
`)
	fn := prog.FuncNamed("main")
	if fn == nil {
		t.Fatal("no main function")
	}
	if !strings.Contains(disasmFunc(fn), "par.for") {
		t.Error("main does not dispatch through par.for")
	}
	body := prog.FuncNamed("main.body0")
	if body == nil {
		t.Fatal("loop body was not lifted to main.body0")
	}
	if len(body.Instrs) == 0 || body.Instrs[0].Op != OpRegionPush {
		t.Error("lifted body does not open its own region")
	}
}

func TestLowerParallelRangeForm(t *testing.T) {
	prog := lowerSource(t, `
fn main() {
    let counter = @atomic 0;
    parallel.for(0, 1000, |_| counter.fetch_add(1));
    print(counter.load());
}
`)
	fn := prog.FuncNamed("main")
	if fn == nil {
		t.Fatal("no main function")
	}
	if !strings.Contains(disasmFunc(fn), "par.range") {
		t.Errorf("range form does not dispatch through par.range:\n%s", disasmFunc(fn))
	}
	body := prog.FuncNamed("main.closure0")
	if body == nil {
		t.Fatal("range body was not lifted to main.closure0")
	}
	if !strings.Contains(disasmFunc(body), "atomic.add") {
		t.Errorf("body does not increment through atomic.add:\n%s", disasmFunc(body))
	}
}

func TestLowerAtomicFetchAddKeepsResult(t *testing.T) {
	dis := mainDisasm(t, `
fn main() {
    let c = @atomic 7;
    let prev = c.fetch_add(2);
    c.store(0);
    print(prev + c.load());
}
`)
	// fetch_add binds its result, so the add must carry a destination
	// register on the right-hand side.
	if !strings.Contains(dis, "= atomic.add") {
		t.Errorf("fetch_add result register missing:\n%s", dis)
	}
	if !strings.Contains(dis, "atomic.store") {
		t.Errorf("store method missing:\n%s", dis)
	}
	if !strings.Contains(dis, "atomic.load") {
		t.Errorf("load method missing:\n%s", dis)
	}
}

func TestLowerPinnedAllocations(t *testing.T) {
	dis := mainDisasm(t, `
struct Point { x: int, y: int }

fn main() {
    let buf = @pinned [1, 2, 3];
    let p = @pinned Point { x: 1, y: 2 };
    let xs = [4, 5];
    print(len(buf) + p.x + len(xs));
}
`)
	if !strings.Contains(dis, "array.new.pinned") {
		t.Errorf("pinned array not flagged:\n%s", dis)
	}
	if !strings.Contains(dis, "struct.new.pinned") {
		t.Errorf("pinned struct not flagged:\n%s", dis)
	}
	// The plain binding keeps its scoped lifetime.
	if strings.Count(dis, ".pinned") != 2 {
		t.Errorf("unexpected pinned allocations:\n%s", dis)
	}
}

func TestLowerReturnValueBeforeRegionPop(t *testing.T) {
	prog := lowerSource(t, `
fn pair(x: int, y: int) -> [int] {
    return [x, y];
}

fn main() {
    print(len(pair(1, 2)));
}
`)
	fn := prog.FuncNamed("pair")
	if fn == nil {
		t.Fatal("no pair function")
	}
	alloc, pop := -1, -1
	for i, in := range fn.Instrs {
		switch in.Op {
		case OpNewArray:
			alloc = i
		case OpRegionPop:
			pop = i
		}
	}
	if alloc < 0 || pop < 0 {
		t.Fatalf("missing array.new or region.pop:\n%s", disasmFunc(fn))
	}
	if alloc > pop {
		t.Errorf("return value allocated after its region was released:\n%s", disasmFunc(fn))
	}
}

func TestLowerWhileLoopShape(t *testing.T) {
	dis := mainDisasm(t, `
fn main() {
    let i = 0;
    while i < 3 {
        print(i);
        i = i + 1;
    }
}
`)
	if !strings.Contains(dis, "branch.false") {
		t.Errorf("missing conditional branch:\n%s", dis)
	}
	if !strings.Contains(dis, "jump") {
		t.Errorf("missing back edge:\n%s", dis)
	}
}

func TestLowerStructsSorted(t *testing.T) {
	prog := lowerSource(t, `
struct Zeta { v: int }
struct Alpha { v: int }

fn main() {
    let z = Zeta { v: 1 };
    let a = Alpha { v: 2 };
    print(z.v + a.v);
}
`)
	if len(prog.Structs) != 2 {
		t.Fatalf("got %d structs, want 2", len(prog.Structs))
	}
	if prog.Structs[0].Sym.Name != "Alpha" || prog.Structs[1].Sym.Name != "Zeta" {
		t.Errorf("structs not sorted by name: %s, %s", prog.Structs[0].Sym.Name, prog.Structs[1].Sym.Name)
	}
}
