package calculator

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a ValidationError.
type ErrorKind string

const (
	// Reference parsing
	KindEmptyInput       ErrorKind = "EMPTY_INPUT"
	KindInvalidCharacter ErrorKind = "INVALID_CHARACTER"
	KindEmptyPart        ErrorKind = "EMPTY_PART"
	KindNonNumericPart   ErrorKind = "NON_NUMERIC_PART"
	KindDuplicateParts   ErrorKind = "DUPLICATE_PARTS"

	// Allocation
	KindInvalidAmount   ErrorKind = "INVALID_AMOUNT"
	KindInvalidAccount  ErrorKind = "INVALID_ACCOUNT"
	KindInvalidPriority ErrorKind = "INVALID_PRIORITY"
)

// Sentinels for errors.Is. A ValidationError matches a sentinel when the kinds are equal.
var (
	ErrEmptyInput       = &ValidationError{Kind: KindEmptyInput}
	ErrInvalidCharacter = &ValidationError{Kind: KindInvalidCharacter}
	ErrEmptyPart        = &ValidationError{Kind: KindEmptyPart}
	ErrNonNumericPart   = &ValidationError{Kind: KindNonNumericPart}
	ErrDuplicateParts   = &ValidationError{Kind: KindDuplicateParts}
	ErrInvalidAmount    = &ValidationError{Kind: KindInvalidAmount}
	ErrInvalidAccount   = &ValidationError{Kind: KindInvalidAccount}
	ErrInvalidPriority  = &ValidationError{Kind: KindInvalidPriority}
)

// ValidationError reports malformed input to the parser or the allocation engine.
// Values holds the offending literals (characters, parts or ids) when there are any.
type ValidationError struct {
	Kind    ErrorKind
	Message string
	Values  []string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	return e.Message
}

// Is reports whether target is a ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

func newValidationError(kind ErrorKind, values []string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Values:  values,
	}
}
