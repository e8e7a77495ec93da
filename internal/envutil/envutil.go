package envutil

import (
	"os"
	"strings"
)

// DebugEnv turns on the JSON debug log under the data directory.
const DebugEnv = "FORMEDIT_DEBUG"

func Bool(key string) bool {
	return ParseBool(os.Getenv(key))
}

func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Debug reports whether debug logging was requested in the environment.
func Debug() bool {
	return Bool(DebugEnv)
}
