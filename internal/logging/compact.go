package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxStringLen = 256
	maxListLen   = 20

	redactedValue = "****"
)

var redactedKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"secret":        true,
}

// CompactValue shortens a string for debug logs, keeping its head and
// reporting how much was dropped.
func CompactValue(value string) string {
	if len(value) <= maxStringLen {
		return value
	}
	head := value[:maxStringLen]
	for len(head) > 0 && !utf8Boundary(value, len(head)) {
		head = head[:len(head)-1]
	}
	return fmt.Sprintf("%s...(+%d bytes)", head, len(value)-len(head))
}

func utf8Boundary(value string, i int) bool {
	return i >= len(value) || value[i]&0xC0 != 0x80
}

// CompactAny walks decoded JSON, shortening long strings and lists. Typed
// values are round-tripped through JSON first so structs compact too.
func CompactAny(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return CompactValue(typed)
	case bool, float64, int, int64:
		return typed
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			if redactedKeys[strings.ToLower(strings.TrimSpace(key))] {
				out[key] = redactedValue
				continue
			}
			out[key] = CompactAny(val)
		}
		return out
	case []any:
		n := len(typed)
		if n > maxListLen {
			n = maxListLen
		}
		out := make([]any, 0, n+1)
		for _, val := range typed[:n] {
			out = append(out, CompactAny(val))
		}
		if len(typed) > n {
			out = append(out, fmt.Sprintf("...(+%d items)", len(typed)-n))
		}
		return out
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%T", value)
		}
		return CompactJSON(data)
	}
}

func CompactJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CompactValue(strings.TrimSpace(string(raw)))
	}
	return CompactAny(payload)
}
