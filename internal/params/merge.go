package params

// deepMerge lays overrides over defaults: object values merge recursively,
// an explicit nil override deletes the default key, and arrays or scalars
// replace the default verbatim. Neither input is mutated.
func deepMerge(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = sanitizeValue(v)
	}
	for k, v := range overrides {
		if v == nil {
			delete(out, k)
			continue
		}
		override, overrideIsMap := v.(map[string]any)
		base, baseIsMap := out[k].(map[string]any)
		if overrideIsMap && baseIsMap {
			out[k] = deepMerge(base, override)
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

// sanitizeBag returns a structural clone holding only JSON-shaped values.
// A nil or hostile input coerces to an empty bag rather than failing.
func sanitizeBag(bag map[string]any) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if v == nil {
			continue
		}
		if clean, ok := sanitized(v); ok {
			out[k] = clean
		}
	}
	return out
}

func sanitizeValue(v any) any {
	clean, ok := sanitized(v)
	if !ok {
		return nil
	}
	return clean
}

func sanitized(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case string, bool, float64, float32, int, int32, int64:
		return val, true
	case map[string]any:
		return sanitizeBag(val), true
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if clean, ok := sanitized(item); ok {
				out = append(out, clean)
			}
		}
		return out, true
	default:
		// Anything not expressible in the wire format is dropped.
		return nil, false
	}
}
