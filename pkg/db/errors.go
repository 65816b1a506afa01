package db

import "strings"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation from either Postgres or sqlite. When constraintName is
// provided, the helper looks for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	return violates(err, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports a write that referenced a missing parent row.
func IsForeignKeyViolation(err error, constraintName string) bool {
	return violates(err, constraintName, "violates foreign key constraint", "FOREIGN KEY constraint failed")
}

// IsCheckViolation reports a row rejected by a CHECK constraint.
func IsCheckViolation(err error, constraintName string) bool {
	return violates(err, constraintName, "violates check constraint", "check constraint", "CHECK constraint failed")
}

func violates(err error, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
