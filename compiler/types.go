package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Types: interned structural types for the checker
// ---------------------------------------------------------------------------

// TypeKind discriminates the type representation.
type TypeKind int

const (
	KindInt TypeKind = iota
	KindFloat
	KindBool
	KindString
	KindChar
	KindVoid
	KindNull
	KindArray
	KindTuple
	KindFunc
	KindStruct
	KindEnum
	KindParam // generic parameter, e.g. T in fn id<T>
	KindVar   // inference variable
	KindError // poison type from a reported error
)

// Type is an interned type. Two structurally equal non-variable types are
// the same pointer, so equality checks compare pointers.
type Type struct {
	Kind  TypeKind
	Name  string  // struct/enum/param name
	Elem  *Type   // array element
	Elems []*Type // tuple elements or function parameters
	Ret   *Type   // function return
	Args  []*Type // generic instantiation arguments for struct/enum

	// Inference variable state. ID is stable per checker run; Ref is the
	// substitution target once the variable is solved.
	ID  int
	Ref *Type
}

// String renders the type for diagnostics.
func (t *Type) String() string {
	switch t.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindChar:
		return "char"
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindArray:
		return "[" + t.Elem.String() + "]"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindFunc:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		s := "fn(" + strings.Join(parts, ", ") + ")"
		if t.Ret != nil && t.Ret.Kind != KindVoid {
			s += " -> " + t.Ret.String()
		}
		return s
	case KindStruct, KindEnum:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return t.Name + "<" + strings.Join(parts, ", ") + ">"
	case KindParam:
		return t.Name
	case KindVar:
		if t.Ref != nil {
			return t.Ref.String()
		}
		return fmt.Sprintf("?%d", t.ID)
	case KindError:
		return "<error>"
	}
	return "<unknown>"
}

// TypeSet interns types so structural equality is pointer equality.
// Inference variables are never interned; their identity is their pointer.
type TypeSet struct {
	byKey  map[string]*Type
	nextID int

	Int    *Type
	Float  *Type
	Bool   *Type
	String *Type
	Char   *Type
	Void   *Type
	Null   *Type
	Error  *Type
}

// NewTypeSet creates an interner with the primitive types pre-seeded.
func NewTypeSet() *TypeSet {
	ts := &TypeSet{byKey: make(map[string]*Type)}
	ts.Int = ts.intern(&Type{Kind: KindInt})
	ts.Float = ts.intern(&Type{Kind: KindFloat})
	ts.Bool = ts.intern(&Type{Kind: KindBool})
	ts.String = ts.intern(&Type{Kind: KindString})
	ts.Char = ts.intern(&Type{Kind: KindChar})
	ts.Void = ts.intern(&Type{Kind: KindVoid})
	ts.Null = ts.intern(&Type{Kind: KindNull})
	ts.Error = ts.intern(&Type{Kind: KindError})
	return ts
}

func (ts *TypeSet) intern(t *Type) *Type {
	key := typeKey(t)
	if found, ok := ts.byKey[key]; ok {
		return found
	}
	ts.byKey[key] = t
	return t
}

// typeKey builds a canonical structural key. Variables key by ID so they
// never collapse with each other.
func typeKey(t *Type) string {
	var sb strings.Builder
	writeTypeKey(&sb, t)
	return sb.String()
}

func writeTypeKey(sb *strings.Builder, t *Type) {
	switch t.Kind {
	case KindVar:
		fmt.Fprintf(sb, "?%d", t.ID)
	case KindStruct:
		sb.WriteString("s:")
		sb.WriteString(t.Name)
	case KindEnum:
		sb.WriteString("e:")
		sb.WriteString(t.Name)
	case KindParam:
		sb.WriteString("p:")
		sb.WriteString(t.Name)
	default:
		fmt.Fprintf(sb, "k%d", int(t.Kind))
	}
	if t.Elem != nil {
		sb.WriteByte('[')
		writeTypeKey(sb, t.Elem)
		sb.WriteByte(']')
	}
	if len(t.Elems) > 0 {
		sb.WriteByte('(')
		for i, e := range t.Elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeTypeKey(sb, e)
		}
		sb.WriteByte(')')
	}
	if t.Ret != nil {
		sb.WriteString("->")
		writeTypeKey(sb, t.Ret)
	}
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeTypeKey(sb, a)
		}
		sb.WriteByte('>')
	}
}

// Array returns the interned array type [elem].
func (ts *TypeSet) Array(elem *Type) *Type {
	return ts.intern(&Type{Kind: KindArray, Elem: elem})
}

// Tuple returns the interned tuple type.
func (ts *TypeSet) Tuple(elems []*Type) *Type {
	return ts.intern(&Type{Kind: KindTuple, Elems: elems})
}

// Func returns the interned function type.
func (ts *TypeSet) Func(params []*Type, ret *Type) *Type {
	if ret == nil {
		ret = ts.Void
	}
	return ts.intern(&Type{Kind: KindFunc, Elems: params, Ret: ret})
}

// Struct returns the interned struct reference type.
func (ts *TypeSet) Struct(name string, args []*Type) *Type {
	return ts.intern(&Type{Kind: KindStruct, Name: name, Args: args})
}

// Enum returns the interned enum reference type.
func (ts *TypeSet) Enum(name string, args []*Type) *Type {
	return ts.intern(&Type{Kind: KindEnum, Name: name, Args: args})
}

// Param returns the interned generic-parameter type.
func (ts *TypeSet) Param(name string) *Type {
	return ts.intern(&Type{Kind: KindParam, Name: name})
}

// Fresh returns a new unsolved inference variable.
func (ts *TypeSet) Fresh() *Type {
	ts.nextID++
	return &Type{Kind: KindVar, ID: ts.nextID}
}

// Resolve follows variable substitutions to the representative type.
func Resolve(t *Type) *Type {
	for t.Kind == KindVar && t.Ref != nil {
		t = t.Ref
	}
	return t
}

// resolveDeep rebuilds a type with all solved variables substituted.
func (ts *TypeSet) resolveDeep(t *Type) *Type {
	t = Resolve(t)
	switch t.Kind {
	case KindArray:
		return ts.Array(ts.resolveDeep(t.Elem))
	case KindTuple:
		return ts.Tuple(ts.resolveDeepAll(t.Elems))
	case KindFunc:
		return ts.Func(ts.resolveDeepAll(t.Elems), ts.resolveDeep(t.Ret))
	case KindStruct:
		if len(t.Args) == 0 {
			return t
		}
		return ts.Struct(t.Name, ts.resolveDeepAll(t.Args))
	case KindEnum:
		if len(t.Args) == 0 {
			return t
		}
		return ts.Enum(t.Name, ts.resolveDeepAll(t.Args))
	}
	return t
}

func (ts *TypeSet) resolveDeepAll(list []*Type) []*Type {
	out := make([]*Type, len(list))
	for i, t := range list {
		out[i] = ts.resolveDeep(t)
	}
	return out
}

// occurs reports whether variable v appears inside t, preventing infinite
// types during unification.
func occurs(v, t *Type) bool {
	t = Resolve(t)
	if t == v {
		return true
	}
	if t.Elem != nil && occurs(v, t.Elem) {
		return true
	}
	for _, e := range t.Elems {
		if occurs(v, e) {
			return true
		}
	}
	if t.Ret != nil && occurs(v, t.Ret) {
		return true
	}
	for _, a := range t.Args {
		if occurs(v, a) {
			return true
		}
	}
	return false
}

// instantiate replaces generic parameters with the given substitution,
// yielding a concrete (or variable-bearing) type.
func (ts *TypeSet) instantiate(t *Type, subst map[string]*Type) *Type {
	t = Resolve(t)
	switch t.Kind {
	case KindParam:
		if r, ok := subst[t.Name]; ok {
			return r
		}
		return t
	case KindArray:
		return ts.Array(ts.instantiate(t.Elem, subst))
	case KindTuple:
		return ts.Tuple(ts.instantiateAll(t.Elems, subst))
	case KindFunc:
		return ts.Func(ts.instantiateAll(t.Elems, subst), ts.instantiate(t.Ret, subst))
	case KindStruct:
		if len(t.Args) == 0 {
			return t
		}
		return ts.Struct(t.Name, ts.instantiateAll(t.Args, subst))
	case KindEnum:
		if len(t.Args) == 0 {
			return t
		}
		return ts.Enum(t.Name, ts.instantiateAll(t.Args, subst))
	}
	return t
}

func (ts *TypeSet) instantiateAll(list []*Type, subst map[string]*Type) []*Type {
	out := make([]*Type, len(list))
	for i, t := range list {
		out[i] = ts.instantiate(t, subst)
	}
	return out
}
