// Package errors provides severity tiers and structured errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Severity indicates issue urgency. Lower values are more urgent.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Rank is the sort key: critical 0 through info 4.
func (s Severity) Rank() int {
	return int(s)
}

// ParseSeverity parses a severity name.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "critical":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info":
		return SeverityInfo, nil
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", v)
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SentinelError is a structured error with context.
type SentinelError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Field       string   `json:"field,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *SentinelError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s (field: %s)", e.Severity, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeMissingAttribute = "MISSING_ATTRIBUTE"
	ErrCodeUnknownField     = "UNKNOWN_FIELD"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUpstream         = "UPSTREAM_FAILURE"
)

// NewInvalidInputError creates an error for a malformed request value.
func NewInvalidInputError(field, message string) *SentinelError {
	return &SentinelError{
		Code:        ErrCodeInvalidInput,
		Message:     message,
		Severity:    SeverityMedium,
		Field:       field,
		Recoverable: true,
	}
}

// NewMissingAttributeError creates an error for a missing required value.
func NewMissingAttributeError(field string) *SentinelError {
	return &SentinelError{
		Code:        ErrCodeMissingAttribute,
		Message:     fmt.Sprintf("Missing required attribute: %s", field),
		Severity:    SeverityMedium,
		Field:       field,
		Recoverable: true,
	}
}

// NewUnknownFieldError creates an error for an unsupported update field.
func NewUnknownFieldError(field string) *SentinelError {
	return &SentinelError{
		Code:        ErrCodeUnknownField,
		Message:     fmt.Sprintf("Field %s cannot be updated", field),
		Severity:    SeverityMedium,
		Field:       field,
		Recoverable: true,
	}
}

// NewNotFoundError creates an error for a missing record.
func NewNotFoundError(kind, id string) *SentinelError {
	return &SentinelError{
		Code:        ErrCodeNotFound,
		Message:     fmt.Sprintf("%s not found: %s", kind, id),
		Severity:    SeverityLow,
		Field:       "id",
		Recoverable: true,
	}
}

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	var se *SentinelError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case ErrCodeInvalidInput, ErrCodeMissingAttribute, ErrCodeUnknownField:
		return true
	}
	return false
}

// IsNotFound reports whether err is a missing record.
func IsNotFound(err error) bool {
	var se *SentinelError
	return errors.As(err, &se) && se.Code == ErrCodeNotFound
}
