package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAttemptAlreadyCompleted rejects any write that reaches an attempt
	// after its completion transition.
	ErrAttemptAlreadyCompleted = errors.New("attempt already completed")

	ErrExamNotFound       = errors.New("exam not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrNotAttemptOwner    = errors.New("attempt belongs to another user")
	ErrQuestionNotInExam  = errors.New("question does not belong to this exam")
	ErrOptionNotInChoices = errors.New("selected option does not belong to this question")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// MaxAttemptsError is returned when a user has exhausted the exam's configured
// attempt limit. Max is carried for display.
type MaxAttemptsError struct {
	Max int
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("maximum of %d attempts reached for this exam", e.Max)
}

// AccessDeniedError is returned when the user is not enrolled in the course
// owning the exam's chapter. Chapter is carried for messaging.
type AccessDeniedError struct {
	Chapter string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("no access to chapter %q", e.Chapter)
}
