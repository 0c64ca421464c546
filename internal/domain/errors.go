package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every not-found resolution failure.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz metadata exists in no source.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionsNotFound indicates no questions could be resolved or synthesized.
	ErrQuestionsNotFound = fmt.Errorf("questions %w", ErrNotFound)
	// ErrStorageCorrupt indicates the local cache holds undecodable data.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrAttemptNotFound is returned by remote stores when no attempt exists.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrSecurityTermination marks a completion forced by proctoring violations.
	// It is not a failure.
	ErrSecurityTermination = errors.New("session terminated after security violations")
	// ErrInvalidStage is returned when an action does not apply to the current stage.
	ErrInvalidStage = errors.New("action not allowed in current stage")
	// ErrQuestionNotFound indicates an answer referenced an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a selected option id is invalid for the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuizNotReady is returned when registration is attempted before content resolved.
	ErrQuizNotReady = errors.New("quiz content not resolved yet")
	// ErrAlreadySubmitted is returned when submit is invoked after the latch closed.
	ErrAlreadySubmitted = errors.New("session already submitted")
)

// ResolveErrorKind classifies resolution failures for the UI.
type ResolveErrorKind string

const (
	KindQuizNotFound      ResolveErrorKind = "quiz-not-found"
	KindQuestionsNotFound ResolveErrorKind = "questions-not-found"
	KindStorageCorrupt    ResolveErrorKind = "storage-corrupt"
)

// ResolveError is the single structured error produced by quiz resolution.
// Resolution can always be retried from the start.
type ResolveError struct {
	Kind   ResolveErrorKind
	QuizID string
	Err    error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve quiz %s: %s: %v", e.QuizID, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve quiz %s: %s", e.QuizID, e.Kind)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func (e *ResolveError) Is(target error) bool {
	switch e.Kind {
	case KindQuizNotFound:
		return target == ErrQuizNotFound || target == ErrNotFound
	case KindQuestionsNotFound:
		return target == ErrQuestionsNotFound || target == ErrNotFound
	case KindStorageCorrupt:
		return target == ErrStorageCorrupt
	}
	return false
}

// ValidationError reports malformed registration input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a local cache read or write failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransientRemoteError wraps a remote store failure. It is always recoverable
// through a fallback source or a retry.
type TransientRemoteError struct {
	Op  string
	Err error
}

func (e *TransientRemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *TransientRemoteError) Unwrap() error { return e.Err }
