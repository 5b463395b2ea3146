package application

import (
	"fmt"
	"path"
	"strings"
)

// ValidateRequired checks if a string field is non-empty (after trimming whitespace).
// Returns a ValidationError if the field is empty.
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("%s is required", formatFieldName(fieldName)),
		}
	}
	return nil
}

// formatFieldName converts camelCase field names to space-separated words
// for more readable error messages (e.g., "nodeID" -> "node ID")
func formatFieldName(fieldName string) string {
	replacements := map[string]string{
		"nodeID":    "node ID",
		"source":    "source",
		"sources":   "sources",
		"maxRounds": "max rounds",
	}

	if formatted, ok := replacements[fieldName]; ok {
		return formatted
	}
	return fieldName
}

// ValidateSourcePath checks that p is a clean, relative, slash-separated path
// inside the project root.
func ValidateSourcePath(fieldName, p string) error {
	if err := ValidateRequired(fieldName, p); err != nil {
		return err
	}
	switch {
	case strings.Contains(p, `\`):
		return &ValidationError{Field: fieldName, Message: fmt.Sprintf("use forward slashes: %s", p)}
	case path.IsAbs(p):
		return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be relative to the root: %s", p)}
	case path.Clean(p) != p:
		return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be a clean path: %s", p)}
	case p == ".." || strings.HasPrefix(p, "../"):
		return &ValidationError{Field: fieldName, Message: fmt.Sprintf("escapes the root: %s", p)}
	}
	return nil
}

// ValidatePositive checks that n is at least 1.
func ValidatePositive(fieldName string, n int) error {
	if n < 1 {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("%s must be positive, got: %d", formatFieldName(fieldName), n),
		}
	}
	return nil
}
