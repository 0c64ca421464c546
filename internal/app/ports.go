package app

import (
	"context"
	"sync"
	"time"

	"exam-session-engine/internal/domain"
)

// KeyValueStore is the local durable cache (in-memory, Redis, SQLite).
// Reads and writes are synchronous from the session's point of view.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RemoteStore is the primary quiz store and the replication target for results.
// Absence of data and transport errors are treated alike by the resolver.
type RemoteStore interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizMeta, error)
	ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	FindAttempt(ctx context.Context, quizID, studentID string) (string, error)
	InsertAttempt(ctx context.Context, attemptID string, result domain.SessionResult) error
	UpdateAttempt(ctx context.Context, attemptID string, result domain.SessionResult) error
	ReplaceAnswers(ctx context.Context, attemptID string, answers []domain.AnswerRecord) error
	ListResults(ctx context.Context, quizID string) ([]domain.SessionResult, error)
}

// Notifier sends the best-effort submission confirmation.
type Notifier interface {
	NotifySubmission(ctx context.Context, notice domain.SubmissionNotice) error
}

// FocusSource delivers browser visibility, focus and fullscreen transitions.
// The returned function removes the callback.
type FocusSource interface {
	Subscribe(cb func(domain.FocusEvent)) (unsubscribe func())
}

// Scheduler runs delayed and periodic callbacks for the clock and the monitor.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
	Every(d time.Duration, f func()) (stop func())
}

// RealScheduler is backed by the runtime timers.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func (RealScheduler) Every(d time.Duration, f func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
