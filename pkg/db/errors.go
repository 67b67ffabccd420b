package db

import "strings"

// IsUniqueViolation reports whether err is a postgres unique violation. With
// a constraint name it matches that specific constraint, which is how the
// invoice number collision is detected; without one it matches any duplicate
// key error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
