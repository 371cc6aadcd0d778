package domain

import (
	"errors"
	"fmt"
)

// Common domain errors raised while planning or scoring a round.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownJudgeKind indicates that a judge kind is not one of JudgeKinds.
	ErrUnknownJudgeKind = errors.New("unknown judge kind")

	// ErrNoJudges indicates that a round was started without any judge.
	ErrNoJudges = errors.New("no judges configured")

	// ErrParticipantPanic indicates that scoring a participant panicked and
	// was recovered.
	ErrParticipantPanic = errors.New("participant evaluation panicked")
)

// ParticipantError records why a participant's evaluation was abandoned.
// The participant's reward is zero whenever one of these is produced.
type ParticipantError struct {
	// ParticipantID identifies the participant whose evaluation failed.
	ParticipantID ParticipantID

	// Stage is the pipeline step that failed, for example "plan" or "score".
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ParticipantError.
func (e *ParticipantError) Error() string {
	return fmt.Sprintf("participant error: id=%d, stage=%s, err=%v", e.ParticipantID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParticipantError) Unwrap() error { return e.Err }

// NewParticipantError creates a new ParticipantError with the given details.
func NewParticipantError(id ParticipantID, stage string, err error) *ParticipantError {
	return &ParticipantError{
		ParticipantID: id,
		Stage:         stage,
		Err:           err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match any ValidationError against ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf formats and adds a new error message.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// ErrOrNil returns e when it holds messages and nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
