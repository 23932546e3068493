package handler

import (
	"fmt"
	"slices"
	"strings"
)

// Validator collects request validation errors
type Validator struct {
	errors []string
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireNonEmpty validates that a string field is not empty
func (v *Validator) RequireNonEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireNoPathTraversal validates that a path doesn't contain ..
func (v *Validator) RequireNoPathTraversal(field, value string) {
	if strings.Contains(value, "..") {
		v.errors = append(v.errors, fmt.Sprintf("%s contains invalid path traversal", field))
	}
}

// RequireOneOf validates that value is one of allowed. Empty is accepted.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" || slices.Contains(allowed, value) {
		return
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// RequireCount validates that a multi-valued field has between lo and hi entries
func (v *Validator) RequireCount(field string, n, lo, hi int) {
	if n < lo || n > hi {
		if lo == hi {
			v.errors = append(v.errors, fmt.Sprintf("%s: expected %d, got %d", field, lo, n))
			return
		}
		v.errors = append(v.errors, fmt.Sprintf("%s: expected %d to %d, got %d", field, lo, hi, n))
	}
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// Error returns a single string with all errors
func (v *Validator) Error() string {
	return strings.Join(v.errors, "; ")
}
