package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input or state rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrConcurrency marks conflicts with concurrent writers.
	ErrConcurrency = errors.New("concurrent modification")
	// ErrConfiguration marks tenant setup problems such as unmapped account roles.
	ErrConfiguration = errors.New("configuration error")
	// ErrDuplicateKey is matched by DuplicateKeyError.
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError describes a rejected field or state.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidWrap builds a ValidationError carrying a package sentinel.
func InvalidWrap(field string, err error, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

// NotFound builds a NotFoundError.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateNumberError is returned once number retries are exhausted.
type DuplicateNumberError struct {
	Prefix   string
	Attempts int
}

func (e *DuplicateNumberError) Error() string {
	return fmt.Sprintf("could not allocate a unique %s number after %d attempts", e.Prefix, e.Attempts)
}

// Is reports whether target is ErrConcurrency.
func (e *DuplicateNumberError) Is(target error) bool { return target == ErrConcurrency }

// ConfigurationError names the account role that could not be resolved.
type ConfigurationError struct {
	Role   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("account role %s is not configured", e.Role)
	}
	return fmt.Sprintf("account role %s is not usable: %s", e.Role, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DuplicateKeyError is produced by repositories on unique violations.
type DuplicateKeyError struct {
	Constraint string
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key violates " + e.Constraint
}

// Is reports whether target is ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// IsDuplicateKey reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsDuplicateKey(err error, constraint string) bool {
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return false
	}
	return constraint == "" || dup.Constraint == constraint
}

// PartialFailure lists which independent steps of a batch succeeded and which failed.
type PartialFailure struct {
	Succeeded []string
	Failed    map[string]error
}

// Add records a step outcome.
func (p *PartialFailure) Add(step string, err error) {
	if err == nil {
		p.Succeeded = append(p.Succeeded, step)
		return
	}
	if p.Failed == nil {
		p.Failed = make(map[string]error)
	}
	p.Failed[step] = err
}

// Err returns p when any step failed, nil otherwise.
func (p *PartialFailure) Err() error {
	if p == nil || len(p.Failed) == 0 {
		return nil
	}
	return p
}

func (p *PartialFailure) Error() string {
	steps := make([]string, 0, len(p.Failed))
	for step := range p.Failed {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		parts = append(parts, fmt.Sprintf("%s: %v", step, p.Failed[step]))
	}
	return fmt.Sprintf("%d of %d steps failed (%s)", len(p.Failed), len(p.Failed)+len(p.Succeeded), strings.Join(parts, "; "))
}
