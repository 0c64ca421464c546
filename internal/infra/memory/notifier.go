package memory

import (
	"context"
	"log"
	"sync"

	"exam-session-engine/internal/domain"
)

// Notifier records submission notices instead of sending them. It stands in
// when no message broker is configured.
type Notifier struct {
	mu      sync.Mutex
	notices []domain.SubmissionNotice
	err     error
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) NotifySubmission(_ context.Context, notice domain.SubmissionNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	log.Printf("confirmation queued for %s (%s) on quiz %s", notice.StudentID, notice.StudentEmail, notice.QuizID)
	return nil
}

// FailWith makes every subsequent notification fail with err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notices returns a copy of the recorded notices.
func (n *Notifier) Notices() []domain.SubmissionNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.SubmissionNotice(nil), n.notices...)
}
