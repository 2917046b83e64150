package sanitizer

import (
	"fmt"
	"sort"
)

// walkStrings visits every string leaf in v depth first, rebuilding
// containers copy-on-write when a leaf changes. Map keys are visited in
// sorted order so traversal is deterministic. Paths use dotted keys and
// bracketed indexes ("items[2].note"); the root path is empty. Values
// other than strings, string-keyed maps, and slices pass through
// untouched.
func walkStrings(v any, path string, visit func(path, text string) (string, bool, error)) (any, bool, error) {
	switch val := v.(type) {
	case string:
		out, changed, err := visit(path, val)
		if err != nil {
			return nil, false, err
		}
		return out, changed, nil

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var rebuilt map[string]any
		for _, k := range keys {
			child, changed, err := walkStrings(val[k], childPath(path, k), visit)
			if err != nil {
				return nil, false, err
			}
			if !changed {
				continue
			}
			if rebuilt == nil {
				rebuilt = make(map[string]any, len(val))
				for kk, vv := range val {
					rebuilt[kk] = vv
				}
			}
			rebuilt[k] = child
		}
		if rebuilt == nil {
			return val, false, nil
		}
		return rebuilt, true, nil

	case []any:
		var rebuilt []any
		for i, item := range val {
			child, changed, err := walkStrings(item, fmt.Sprintf("%s[%d]", path, i), visit)
			if err != nil {
				return nil, false, err
			}
			if !changed {
				continue
			}
			if rebuilt == nil {
				rebuilt = make([]any, len(val))
				copy(rebuilt, val)
			}
			rebuilt[i] = child
		}
		if rebuilt == nil {
			return val, false, nil
		}
		return rebuilt, true, nil

	default:
		return v, false, nil
	}
}

func childPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
