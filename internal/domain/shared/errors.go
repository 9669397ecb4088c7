package shared

import (
	"errors"
	"fmt"
)

// Base sentinels. Domain errors carry one of these as their Kind so call
// sites can classify failures with errors.Is without knowing the domain.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError ties a failure to the domain and operation it came from.
// It matches its Kind (and wrapped cause, if any) under errors.Is.
type DomainError struct {
	Domain  string // owning domain, e.g. "learner", "badge", "challenge"
	Op      string // failing operation, e.g. "ApplyProgress", "Evaluate"
	Kind    error  // base sentinel for classification
	Message string
	Err     error // underlying cause, optional
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Create", ErrAlreadyExists, "learner already exists")
	ErrInvalidEmail         = NewDomainError("learner", "Validate", ErrInvalidFormat, "invalid email address")
	ErrInvalidGrade         = NewDomainError("learner", "Validate", ErrInvalidInput, "invalid grade")
	ErrInvalidStream        = NewDomainError("learner", "Validate", ErrInvalidInput, "invalid stream")
)

// Progress domain errors
var (
	ErrProgressNotFound    = NewDomainError("progress", "Find", ErrNotFound, "progress entry not found")
	ErrInvalidPercentage   = NewDomainError("progress", "Validate", ErrValueOutOfRange, "completion percentage must be between 0 and 100")
	ErrNegativeTimeSpent   = NewDomainError("progress", "Validate", ErrNegativeValue, "time spent cannot be negative")
	ErrProgressConflict    = NewDomainError("progress", "Save", ErrConcurrentModification, "progress entry modified concurrently")
	ErrInvalidProgressType = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid progress status")
)

// Event normalization errors
var (
	ErrMissingUserID    = NewDomainError("event", "Normalize", ErrValidation, "user ID is required")
	ErrMissingContentID = NewDomainError("event", "Normalize", ErrValidation, "content ID is required")
	ErrUnknownEventKind = NewDomainError("event", "Normalize", ErrValidation, "unrecognized event kind")
)

// Content catalog errors
var (
	ErrContentNotFound = NewDomainError("content", "Resolve", ErrNotFound, "content not found in catalog")
)

// Badge domain errors
var (
	ErrBadgeNotFound = NewDomainError("badge", "Find", ErrNotFound, "badge not found in catalog")
)

// Challenge domain errors
var (
	ErrChallengeNotFound = NewDomainError("challenge", "Find", ErrNotFound, "daily challenge not found")
)

// IsNotFound reports whether err means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err means a uniqueness violation.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports whether err stems from rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict reports whether err is a concurrent-modification conflict.
// Conflicts are transient; callers retry the read-merge-save cycle.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
