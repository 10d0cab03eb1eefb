package compiler

import "strconv"

// ---------------------------------------------------------------------------
// Attributes: the closed @attribute set and its validation
// ---------------------------------------------------------------------------

// Attribute names recognized by the compiler. Unknown attributes are a hard
// parse-time error, never silently ignored.
const (
	AttrSimd     = "simd"
	AttrComptime = "comptime"
	AttrPacked   = "packed"
	AttrAlign    = "align"
	AttrAtomic   = "atomic"
	AttrPinned   = "pinned"
	AttrExtern   = "extern"
	AttrExport   = "export"
	AttrMacro    = "macro"
	AttrParallel = "parallel"
	AttrFree     = "free" // statement form: @free x;
)

// attrArity maps attribute name to (min, max) argument count.
var attrArity = map[string][2]int{
	AttrSimd:     {0, 0},
	AttrComptime: {0, 0},
	AttrPacked:   {0, 0},
	AttrAlign:    {1, 1},
	AttrAtomic:   {0, 0},
	AttrPinned:   {0, 0},
	AttrExtern:   {1, 1},
	AttrExport:   {0, 0},
	AttrMacro:    {0, 0},
	AttrParallel: {0, 0},
}

// validateAttr checks the attribute name and arguments, reporting parse
// diagnostics for violations. Returns false when the attribute is unusable.
func validateAttr(a *Attr, diags *Diagnostics) bool {
	arity, ok := attrArity[a.Name]
	if !ok {
		diags.Addf(CategoryParse, CodeUnknownAttr, a.SpanVal, "unknown attribute @%s", a.Name)
		return false
	}
	if len(a.Args) < arity[0] || len(a.Args) > arity[1] {
		diags.Addf(CategoryParse, CodeBadAttrArgs, a.SpanVal,
			"attribute @%s takes %d argument(s), got %d", a.Name, arity[0], len(a.Args))
		return false
	}
	switch a.Name {
	case AttrAlign:
		n, err := strconv.Atoi(a.Args[0])
		if err != nil || n <= 0 || n&(n-1) != 0 {
			diags.Addf(CategoryParse, CodeBadAttrArgs, a.SpanVal,
				"@align requires a positive power-of-two argument, got %q", a.Args[0])
			return false
		}
	case AttrExtern:
		if a.Args[0] != "C" {
			diags.Addf(CategoryParse, CodeBadAttrArgs, a.SpanVal,
				"@extern supports only the \"C\" ABI, got %q", a.Args[0])
			return false
		}
	}
	return true
}

// hasAttr reports whether name is present in attrs.
func hasAttr(attrs []*Attr, name string) bool {
	return findAttr(attrs, name) != nil
}

// findAttr returns the attribute with the given name, or nil.
func findAttr(attrs []*Attr, name string) *Attr {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// alignOf returns the @align(N) value in attrs, or 0.
func alignOf(attrs []*Attr) int {
	a := findAttr(attrs, AttrAlign)
	if a == nil || len(a.Args) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(a.Args[0])
	return n
}
