package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeOptions parses a variant axis's options into an ordered list of
// trimmed, non-empty strings, de-duplicated by first occurrence. Historical
// catalog data stores options in three shapes: an array, a comma- or
// pipe-delimited string, or a map of arbitrary keys to option values. Map
// inputs are iterated in sorted-key order so the result is deterministic.
func NormalizeOptions(raw any) []string {
	var candidates []string

	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		candidates = v
	case []any:
		for _, e := range v {
			candidates = append(candidates, stringify(e))
		}
	case string:
		sep := ","
		if strings.Contains(v, "|") {
			sep = "|"
		}
		candidates = strings.Split(v, sep)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			candidates = append(candidates, stringify(v[k]))
		}
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			candidates = append(candidates, v[k])
		}
	default:
		return nil
	}

	var options []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		options = append(options, c)
	}
	return options
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Selection is a chosen value per variant axis, e.g. {"size": "M", "color": "navy"}.
type Selection map[string]string

// Canonical returns an order-independent string form of the selection, used
// as part of cart-line identity. Empty selections canonicalize to "".
func (s Selection) Canonical() string {
	if len(s) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.TrimSpace(strings.ToLower(k))+"="+strings.TrimSpace(s[k]))
	}
	return strings.Join(parts, ";")
}

// ValidateSelection checks a selection against a product's variant axes.
// Every selected axis must exist on the product and every chosen value must
// be one of that axis's normalized options. Axis names match
// case-insensitively, mirroring the identity Canonical builds.
func ValidateSelection(sel Selection, variants map[string]any) error {
	if len(sel) == 0 {
		return nil
	}

	axes := make(map[string][]string, len(variants))
	for axis, raw := range variants {
		axes[strings.TrimSpace(strings.ToLower(axis))] = NormalizeOptions(raw)
	}

	for axis, value := range sel {
		options := axes[strings.TrimSpace(strings.ToLower(axis))]
		if len(options) == 0 {
			return fmt.Errorf("unknown variant axis %q", axis)
		}
		chosen := strings.TrimSpace(value)
		found := false
		for _, o := range options {
			if o == chosen {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q is not an option for variant axis %q", value, axis)
		}
	}
	return nil
}

// DefaultSelection picks the first normalized option for each variant axis.
// Axes whose options normalize to nothing are omitted.
func DefaultSelection(variants map[string]any) Selection {
	if len(variants) == 0 {
		return nil
	}
	sel := make(Selection, len(variants))
	for axis, raw := range variants {
		options := NormalizeOptions(raw)
		if len(options) == 0 {
			continue
		}
		sel[axis] = options[0]
	}
	if len(sel) == 0 {
		return nil
	}
	return sel
}
