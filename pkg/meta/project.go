package meta

// Reserved keys hold raw attributes and raw text extracted from the
// original document. They are structural, not content, and always pass
// regardless of rules.
const (
	KeyAttrs = "attrs"
	KeyValue = "value"
)

// Project returns a filtered copy of obj containing the fields whose
// dotted key paths are included by the rule list. Maps and lists are kept
// only if something inside them survives.
func Project(obj map[string]interface{}, rules []Rule) map[string]interface{} {
	out, _ := projectMap("", obj, rules)
	if out == nil {
		out = map[string]interface{}{}
	}
	return out
}

func projectMap(prefix string, obj map[string]interface{}, rules []Rule) (map[string]interface{}, bool) {
	out := make(map[string]interface{})

	for key, value := range obj {
		if key == KeyAttrs || key == KeyValue {
			out[key] = value
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if projected, ok := projectValue(path, value, rules); ok {
			out[key] = projected
		}
	}

	return out, len(out) > 0
}

func projectValue(path string, value interface{}, rules []Rule) (interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return projectMap(path, v, rules)
	case []interface{}:
		kept := make([]interface{}, 0, len(v))
		for _, elem := range v {
			if projected, ok := projectValue(path, elem, rules); ok {
				kept = append(kept, projected)
			}
		}
		return kept, len(kept) > 0
	default:
		if included(rules, path) {
			return value, true
		}
		return nil, false
	}
}
