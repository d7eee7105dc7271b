package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBankNotFound indicates the question bank for a match could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrSessionNotFound is returned when a match session has not been initialized.
	ErrSessionNotFound = errors.New("match session not found")
	// ErrPlayerNotFound is returned when an action names a player not in the roster.
	ErrPlayerNotFound = errors.New("player not found in match")
	// ErrStaleQuestion indicates a question reference was already consumed.
	ErrStaleQuestion = errors.New("question already used or unknown")
	// ErrConcurrentModification indicates a racing allocation or commit was detected.
	ErrConcurrentModification = errors.New("concurrent bank modification detected")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientQuestionsError reports that a pack allocation cannot satisfy
// the composition rule, naming the short category.
type InsufficientQuestionsError struct {
	Points    int
	Needed    int
	Available int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("insufficient %dpt questions: need %d, %d unused", e.Points, e.Needed, e.Available)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficientQuestions reports whether err is an InsufficientQuestionsError.
func IsInsufficientQuestions(err error) bool {
	var ie *InsufficientQuestionsError
	return errors.As(err, &ie)
}

// InvalidTransitionError reports an operator action that is not legal in the
// current round state.
type InvalidTransitionError struct {
	From   RoundStatus
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %q not allowed in state %q", e.Action, e.From)
}
