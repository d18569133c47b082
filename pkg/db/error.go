package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsCheckConstraintErr reports whether err is a CHECK constraint rejection.
func IsCheckConstraintErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	msg := err.Error()
	switch {
	// SQLite (extended code 275)
	case strings.Contains(msg, "CHECK constraint failed"):
		return true
	// PostgreSQL (SQLSTATE 23514)
	case strings.Contains(msg, "violates check constraint"), strings.Contains(msg, "SQLSTATE 23514"):
		return true
	// MySQL (error 3819)
	case strings.Contains(msg, "Error 3819"):
		return true
	}

	return false
}
