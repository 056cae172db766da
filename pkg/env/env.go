// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get looks up key in the process environment and returns fallback when the
// variable is unset or empty.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
