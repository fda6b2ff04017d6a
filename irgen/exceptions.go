package irgen

// exceptionTags is the fixed exception-type tag table shared by
// `raise T(...)` and `except T:` resolution. Tag 0 is
// reserved for a bare `except:` that matches anything (ir.Handler's own
// doc comment).
var exceptionTags = map[string]int{
	"ZeroDivisionError": 1,
	"ValueError":         2,
	"TypeError":          3,
	"KeyError":           4,
	"IndexError":         5,
	"AttributeError":     6,
	"RuntimeError":       7,
}

func resolveExceptionTag(name string) (int, bool) {
	if name == "" {
		return 0, true
	}
	tag, ok := exceptionTags[name]
	return tag, ok
}
