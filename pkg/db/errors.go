package db

import "strings"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. A named constraint matches by its text; any error
// carrying the generic Postgres or SQLite duplicate-key phrasing matches
// regardless of the name.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
