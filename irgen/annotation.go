package irgen

import (
	"strings"

	"github.com/anistark/waspy/types"
)

// parseAnnotationText resolves a TypeAnnotation's raw text into an
// IRType. Recognized shapes: the basic names, `list[T]`, `dict[K,V]`,
// `tuple[T1,T2,...]`, `Optional[T]`, `any`, `none`, and a bare name
// matching an already-collected class.
func parseAnnotationText(text string, classes map[string]*classSig) (types.Type, bool) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "int":
		return types.Int, true
	case "float":
		return types.Float, true
	case "bool":
		return types.Bool, true
	case "str":
		return types.Str, true
	case "bytes":
		return types.Bytes, true
	case "none", "none type", "nonetype":
		return types.None, true
	case "any", "object":
		return types.AnyTy, true
	case "range":
		return types.RangeTy, true
	}

	if inner, ok := bracketed(text, "list["); ok {
		elem, ok := parseAnnotationText(inner, classes)
		if !ok {
			return nil, false
		}
		return types.ListType{Elem: elem}, true
	}
	if inner, ok := bracketed(text, "dict["); ok {
		parts := splitTopLevelComma(inner)
		if len(parts) != 2 {
			return nil, false
		}
		k, ok := parseAnnotationText(parts[0], classes)
		if !ok {
			return nil, false
		}
		v, ok := parseAnnotationText(parts[1], classes)
		if !ok {
			return nil, false
		}
		return types.DictType{Key: k, Value: v}, true
	}
	if inner, ok := bracketed(text, "tuple["); ok {
		parts := splitTopLevelComma(inner)
		var elems []types.Type
		for _, p := range parts {
			t, ok := parseAnnotationText(p, classes)
			if !ok {
				return nil, false
			}
			elems = append(elems, t)
		}
		return types.TupleType{Elements: elems}, true
	}
	if inner, ok := bracketed(text, "optional["); ok {
		t, ok := parseAnnotationText(inner, classes)
		if !ok {
			return nil, false
		}
		return types.OptionalType{Inner: t}, true
	}
	if inner, ok := bracketed(text, "callable["); ok {
		parts := splitTopLevelComma(inner)
		if len(parts) == 0 {
			return nil, false
		}
		ret, ok := parseAnnotationText(parts[len(parts)-1], classes)
		if !ok {
			return nil, false
		}
		var params []types.Type
		for _, p := range parts[:len(parts)-1] {
			t, ok := parseAnnotationText(p, classes)
			if !ok {
				return nil, false
			}
			params = append(params, t)
		}
		return types.CallableType{Params: params, Ret: ret}, true
	}

	if _, ok := classes[text]; ok {
		return types.ClassType{Name: text}, true
	}
	return nil, false
}

// bracketed reports whether text has the form prefix + "...]" and
// returns the inner substring when it does.
func bracketed(text, prefixLower string) (string, bool) {
	if len(text) < len(prefixLower)+1 {
		return "", false
	}
	if strings.ToLower(text[:len(prefixLower)]) != prefixLower {
		return "", false
	}
	if text[len(text)-1] != ']' {
		return "", false
	}
	return text[len(prefixLower) : len(text)-1], true
}

// splitTopLevelComma splits s on commas that are not nested inside a
// further bracket pair, e.g. "int,list[str]" -> ["int", "list[str]"].
func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, ch := range s {
		switch ch {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
