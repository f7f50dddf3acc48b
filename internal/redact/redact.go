// Package redact masks sensitive values in event and audit payloads before
// they are serialized to JSONL.
package redact

import "strings"

// sensitiveKeys mirrors the substring match used across the telemetry
// surface: any mapping key containing one of these (case-insensitive) has
// its value replaced before the payload is serialized.
var sensitiveKeys = []string{
	"api_key", "apikey", "authorization", "secret", "password", "bearer",
}

const masked = "***"

// Value recursively walks maps and slices, masking any map value whose key
// matches the sensitive set. Scalars and non-matching keys pass through
// unchanged. The input is not mutated; a new structure is returned.
func Value(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = masked
				continue
			}
			out[k] = Value(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
