package runtime

import (
	"fmt"
	"os"
	"strings"
)

// Print writes one line to standard output. Generated code converts the
// argument to a string first, so formatting stays in one place.
func Print(s string) {
	fmt.Fprintln(os.Stdout, s)
}

// String renders a runtime value the way source-level literals are written:
// floats always carry a decimal part, arrays are bracketed and
// comma-separated, null prints as null.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		s := fmt.Sprintf("%g", x)
		if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
			s += ".0"
		}
		return s
	case bool:
		return fmt.Sprintf("%t", x)
	case int32:
		return string(rune(x))
	case []int64:
		return sliceString(x)
	case []float64:
		return sliceString(x)
	case []bool:
		return sliceString(x)
	case []string:
		return sliceString(x)
	case []int32:
		return sliceString(x)
	case []any:
		return sliceString(x)
	default:
		return fmt.Sprint(v)
	}
}

func sliceString[T any](xs []T) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = String(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// StrLen counts code points, matching source-level string indexing.
func StrLen(s string) int64 {
	return int64(len([]rune(s)))
}

// StrIndex returns the code point at a rune index.
func StrIndex(s string, i int64) int32 {
	return int32([]rune(s)[i])
}
