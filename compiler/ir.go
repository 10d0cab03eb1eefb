package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// IR: flat register-based intermediate representation
// ---------------------------------------------------------------------------

// Reg names a virtual register within one function. Register 0 is reserved
// and never assigned.
type Reg int

// Label names a jump target within one function.
type Label int

// Op is an IR operation.
type Op int

const (
	// Constants
	OpConstInt Op = iota
	OpConstFloat
	OpConstBool
	OpConstString
	OpConstChar
	OpConstNull

	// Moves and arithmetic
	OpMove
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpConcat
	OpToString

	// Comparisons
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Aggregates
	OpNewArray
	OpArrayGet
	OpArraySet
	OpArrayLen
	OpNewStruct
	OpFieldGet
	OpFieldSet
	OpNewEnum
	OpEnumTag
	OpEnumField
	OpStrLen
	OpStrIndex

	// Regions
	OpRegionPush
	OpRegionPop
	OpRegionFree

	// Atomics
	OpAtomicNew
	OpAtomicLoad
	OpAtomicStore
	OpAtomicAdd

	// Control flow
	OpLabel
	OpJump
	OpBranch // jump to Target when A is false
	OpReturn
	OpReturnVoid

	// Calls
	OpCall
	OpCallExtern
	OpMakeClosure
	OpCallClosure

	// Builtins
	OpPrint
	OpParFor
	OpParForRange
	OpParMap
	OpParReduce
)

var opNames = map[Op]string{
	OpConstInt:    "const.int",
	OpConstFloat:  "const.float",
	OpConstBool:   "const.bool",
	OpConstString: "const.string",
	OpConstChar:   "const.char",
	OpConstNull:   "const.null",
	OpMove:        "move",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpMod:         "mod",
	OpNeg:         "neg",
	OpNot:         "not",
	OpConcat:      "concat",
	OpToString:    "tostring",
	OpEq:          "eq",
	OpNe:          "ne",
	OpLt:          "lt",
	OpLe:          "le",
	OpGt:          "gt",
	OpGe:          "ge",
	OpNewArray:    "array.new",
	OpArrayGet:    "array.get",
	OpArraySet:    "array.set",
	OpArrayLen:    "array.len",
	OpNewStruct:   "struct.new",
	OpFieldGet:    "field.get",
	OpFieldSet:    "field.set",
	OpNewEnum:     "enum.new",
	OpEnumTag:     "enum.tag",
	OpEnumField:   "enum.field",
	OpStrLen:      "str.len",
	OpStrIndex:    "str.index",
	OpRegionPush:  "region.push",
	OpRegionPop:   "region.pop",
	OpRegionFree:  "region.free",
	OpAtomicNew:   "atomic.new",
	OpAtomicLoad:  "atomic.load",
	OpAtomicStore: "atomic.store",
	OpAtomicAdd:   "atomic.add",
	OpLabel:       "label",
	OpJump:        "jump",
	OpBranch:      "branch.false",
	OpReturn:      "return",
	OpReturnVoid:  "return.void",
	OpCall:        "call",
	OpCallExtern:  "call.extern",
	OpMakeClosure: "closure.new",
	OpCallClosure: "closure.call",
	OpPrint:       "print",
	OpParFor:      "par.for",
	OpParForRange: "par.range",
	OpParMap:      "par.map",
	OpParReduce:   "par.reduce",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Instr is one IR instruction. Field use depends on the op:
//
//	Dst      result register
//	A, B     operand registers
//	Args     call arguments or aggregate elements
//	Imm      integer immediate, variant/field ordinal, or region id
//	FImm     float immediate
//	SImm     string immediate, callee name, or field name
//	Target   jump target
type Instr struct {
	Op     Op
	Dst    Reg
	A, B   Reg
	Args   []Reg
	Imm    int64
	FImm   float64
	SImm   string
	Target Label
}

// Func is one lowered function.
type Func struct {
	Name     string
	Params   []Reg
	RegTypes []*Type // indexed by Reg; entry 0 unused
	Ret      *Type
	Instrs   []Instr
	Extern   string // ABI name when the function is @extern
	NumLabel int

	// Simd is set by @simd; Export by @export or fn main.
	Simd   bool
	Export bool
}

// Program is the unit handed to code generation.
type Program struct {
	Name    string
	Funcs   []*Func
	Structs []*StructDef
	Enums   []*EnumDef

	// Workers, when positive, is baked into the generated entry point as
	// the scheduler pool size.
	Workers int
}

// FuncNamed returns the lowered function with the given name, or nil.
func (p *Program) FuncNamed(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble renders a program as text, one instruction per line, stable
// across runs for a given input.
func Disassemble(p *Program) string {
	var sb strings.Builder
	for i, f := range p.Funcs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		DisassembleFunc(&sb, f)
	}
	return sb.String()
}

// DisassembleFunc renders one function.
func DisassembleFunc(sb *strings.Builder, f *Func) {
	fmt.Fprintf(sb, "func %s(", f.Name)
	for i, r := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "r%d %s", r, f.RegTypes[r])
	}
	sb.WriteString(")")
	if f.Ret != nil && f.Ret.Kind != KindVoid {
		fmt.Fprintf(sb, " %s", f.Ret)
	}
	if f.Extern != "" {
		fmt.Fprintf(sb, " extern %q\n", f.Extern)
		return
	}
	sb.WriteString(" {\n")
	for _, in := range f.Instrs {
		if in.Op == OpLabel {
			fmt.Fprintf(sb, "L%d:\n", in.Target)
			continue
		}
		sb.WriteString("    ")
		sb.WriteString(formatInstr(in))
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
}

func formatInstr(in Instr) string {
	switch in.Op {
	case OpConstInt:
		return fmt.Sprintf("r%d = %s %d", in.Dst, in.Op, in.Imm)
	case OpConstFloat:
		return fmt.Sprintf("r%d = %s %s", in.Dst, in.Op, formatFloat(in.FImm))
	case OpConstBool:
		return fmt.Sprintf("r%d = %s %t", in.Dst, in.Op, in.Imm != 0)
	case OpConstString:
		return fmt.Sprintf("r%d = %s %q", in.Dst, in.Op, in.SImm)
	case OpConstChar:
		return fmt.Sprintf("r%d = %s %q", in.Dst, in.Op, rune(in.Imm))
	case OpConstNull:
		return fmt.Sprintf("r%d = %s", in.Dst, in.Op)
	case OpMove, OpNeg, OpNot, OpToString, OpArrayLen, OpStrLen,
		OpEnumTag, OpAtomicNew, OpAtomicLoad:
		return fmt.Sprintf("r%d = %s r%d", in.Dst, in.Op, in.A)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpConcat,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpArrayGet, OpStrIndex:
		return fmt.Sprintf("r%d = %s r%d, r%d", in.Dst, in.Op, in.A, in.B)
	case OpArraySet:
		return fmt.Sprintf("%s r%d[r%d] = r%d", in.Op, in.Dst, in.A, in.B)
	case OpNewArray:
		return fmt.Sprintf("r%d = %s%s %s", in.Dst, in.Op, pinSuffix(in), regList(in.Args))
	case OpNewStruct:
		return fmt.Sprintf("r%d = %s%s %s %s", in.Dst, in.Op, pinSuffix(in), in.SImm, regList(in.Args))
	case OpFieldGet:
		return fmt.Sprintf("r%d = %s r%d.%s", in.Dst, in.Op, in.A, in.SImm)
	case OpFieldSet:
		return fmt.Sprintf("%s r%d.%s = r%d", in.Op, in.Dst, in.SImm, in.A)
	case OpNewEnum:
		return fmt.Sprintf("r%d = %s %s.%d %s", in.Dst, in.Op, in.SImm, in.Imm, regList(in.Args))
	case OpEnumField:
		return fmt.Sprintf("r%d = %s r%d.%d", in.Dst, in.Op, in.A, in.Imm)
	case OpRegionPush, OpRegionPop:
		return fmt.Sprintf("%s %d", in.Op, in.Imm)
	case OpRegionFree:
		return fmt.Sprintf("%s r%d", in.Op, in.A)
	case OpAtomicStore:
		return fmt.Sprintf("%s r%d = r%d", in.Op, in.Dst, in.A)
	case OpAtomicAdd:
		if in.B != 0 {
			return fmt.Sprintf("r%d = %s r%d, r%d", in.B, in.Op, in.Dst, in.A)
		}
		return fmt.Sprintf("%s r%d = r%d", in.Op, in.Dst, in.A)
	case OpJump:
		return fmt.Sprintf("%s L%d", in.Op, in.Target)
	case OpBranch:
		return fmt.Sprintf("%s r%d, L%d", in.Op, in.A, in.Target)
	case OpReturn:
		return fmt.Sprintf("%s r%d", in.Op, in.A)
	case OpReturnVoid:
		return in.Op.String()
	case OpCall, OpCallExtern:
		return fmt.Sprintf("r%d = %s %s%s", in.Dst, in.Op, in.SImm, regList(in.Args))
	case OpMakeClosure:
		return fmt.Sprintf("r%d = %s %s%s", in.Dst, in.Op, in.SImm, regList(in.Args))
	case OpCallClosure:
		return fmt.Sprintf("r%d = %s r%d%s", in.Dst, in.Op, in.A, regList(in.Args))
	case OpPrint:
		return fmt.Sprintf("%s r%d", in.Op, in.A)
	case OpParFor:
		return fmt.Sprintf("%s r%d, r%d", in.Op, in.A, in.B)
	case OpParForRange:
		return fmt.Sprintf("%s r%d, r%d%s", in.Op, in.A, in.B, regList(in.Args))
	case OpParMap:
		return fmt.Sprintf("r%d = %s r%d, r%d", in.Dst, in.Op, in.A, in.B)
	case OpParReduce:
		return fmt.Sprintf("r%d = %s r%d, r%d%s", in.Dst, in.Op, in.A, in.B, regList(in.Args))
	}
	return in.Op.String()
}

// pinSuffix marks allocations that survive region release.
func pinSuffix(in Instr) string {
	if in.Imm != 0 {
		return ".pinned"
	}
	return ""
}

func regList(regs []Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fmt.Sprintf("r%d", r)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
