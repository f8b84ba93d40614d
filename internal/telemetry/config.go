package telemetry

import (
	"os"
	"strconv"
)

// ObserveEnabled reports whether JSONL emission is enabled. Read per call so
// tests can toggle it with t.Setenv.
func ObserveEnabled() bool {
	return os.Getenv("LOOP_OBSERVE_JSON") == "1"
}

// EnvInt reads an integer environment variable, falling back to def when the
// variable is unset or malformed. Used for loop budget overrides.
func EnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
