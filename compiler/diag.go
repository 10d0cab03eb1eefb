package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Diagnostics: collected, position-sorted compiler errors and warnings
// ---------------------------------------------------------------------------

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Category identifies which pass produced a diagnostic.
type Category int

const (
	CategoryLex Category = iota
	CategoryParse
	CategoryName
	CategoryType
	CategoryOwnership
	CategoryComptime
	CategoryCodegen
	CategoryFFI
)

var categoryNames = map[Category]string{
	CategoryLex:       "LexError",
	CategoryParse:     "ParseError",
	CategoryName:      "NameError",
	CategoryType:      "TypeError",
	CategoryOwnership: "OwnershipError",
	CategoryComptime:  "ComptimeError",
	CategoryCodegen:   "CodegenError",
	CategoryFFI:       "FFIError",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Diagnostic codes, one closed set per category.
const (
	// Lex
	CodeUnterminatedString  = "UnterminatedString"
	CodeUnterminatedComment = "UnterminatedComment"
	CodeInvalidCharacter    = "InvalidCharacter"

	// Parse
	CodeExpected      = "Expected"
	CodeUnexpectedEOF = "UnexpectedEOF"
	CodeUnknownAttr   = "UnknownAttribute"
	CodeBadAttrArgs   = "InvalidAttributeArgs"

	// Name
	CodeUndefined           = "Undefined"
	CodeDuplicateDefinition = "DuplicateDefinition"
	CodeAmbiguousImport     = "AmbiguousImport"

	// Type
	CodeMismatch          = "Mismatch"
	CodeUnresolvedGeneric = "UnresolvedGeneric"
	CodeArityMismatch     = "ArityMismatch"

	// Ownership
	CodeUseAfterRegionEnd = "UseAfterRegionEnd"
	CodeDoubleFree        = "DoubleFree"
	CodeSharedMutable     = "SharedMutableCapture"

	// Comptime
	CodeNotConstant            = "NotConstant"
	CodeRecursionLimitExceeded = "RecursionLimitExceeded"
	CodeUnsupportedOperation   = "UnsupportedOperation"

	// Codegen
	CodeUnsupportedConstruct = "UnsupportedConstruct"

	// FFI
	CodeUnsupportedType = "UnsupportedType"

	// Warnings
	CodeUnusedBinding   = "UnusedBinding"
	CodeUnreachableCode = "UnreachableCode"
)

// Diagnostic is a single compiler message with a source span.
type Diagnostic struct {
	Category Category
	Code     string
	Severity Severity
	Span     Span
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s::%s: %s",
		d.Span.Start.Line, d.Span.Start.Column,
		d.Severity, d.Category, d.Code, d.Message)
}

// Diagnostics accumulates messages across passes. Passes append and run to
// completion; nothing is thrown.
type Diagnostics struct {
	list []Diagnostic
}

// Add appends a diagnostic.
func (ds *Diagnostics) Add(d Diagnostic) {
	ds.list = append(ds.list, d)
}

// Addf builds and appends an error diagnostic.
func (ds *Diagnostics) Addf(cat Category, code string, span Span, format string, args ...interface{}) {
	ds.Add(Diagnostic{
		Category: cat,
		Code:     code,
		Severity: SeverityError,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Warnf builds and appends a warning diagnostic.
func (ds *Diagnostics) Warnf(cat Category, code string, span Span, format string, args ...interface{}) {
	ds.Add(Diagnostic{
		Category: cat,
		Code:     code,
		Severity: SeverityWarning,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any error-severity diagnostic exists.
func (ds *Diagnostics) HasErrors() bool {
	for _, d := range ds.list {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics.
func (ds *Diagnostics) Len() int {
	return len(ds.list)
}

// Errors returns error-severity diagnostics only.
func (ds *Diagnostics) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range ds.list {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// All returns every diagnostic sorted by source position. Ties are broken by
// category so output is deterministic.
func (ds *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(ds.list))
	copy(out, ds.list)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Span.Start, out[j].Span.Start
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// String renders all diagnostics, one per line, sorted by position.
func (ds *Diagnostics) String() string {
	var sb strings.Builder
	for _, d := range ds.All() {
		sb.WriteString(d.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}
