package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrRateLimited means the identifier exhausted its attempt budget; the
// remote provider was not contacted.
var ErrRateLimited = errors.New("auth: too many attempts")

// ValidationError reports field-level input problems. It is surfaced to the
// caller as structured detail and is never audit-logged: malformed input is
// not an attack signal.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("auth: invalid input (%s)", strings.Join(names, ", "))
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) add(field string, msgs ...string) {
	e.Fields[field] = append(e.Fields[field], msgs...)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}
