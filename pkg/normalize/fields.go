package normalize

import (
	"strings"

	"github.com/oarkflow/convert"
)

// FirstString returns the first non-empty string value among keys,
// trimmed. List-valued fields contribute their first element; providers
// are inconsistent about which.
func FirstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			if len(list) == 0 {
				continue
			}
			v = list[0]
		}
		if s, ok := convert.ToString(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstFloat returns the first value among keys coercible to float64.
func FirstFloat(rec map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := convert.ToFloat64(v); ok {
			return f, true
		}
	}
	return 0, false
}

// SubMap returns rec[key] when it is a nested object.
func SubMap(rec map[string]any, key string) map[string]any {
	if m, ok := rec[key].(map[string]any); ok {
		return m
	}
	return nil
}

// AbsoluteURL roots provider-relative URLs against the provider base.
func AbsoluteURL(base, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	return base + "/" + ref
}
