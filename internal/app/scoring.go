package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"exam-session-engine/internal/domain"
	"github.com/google/uuid"
)

// DefaultPartialCredit is the fraction awarded to free-text answers until
// they are graded by hand.
const DefaultPartialCredit = 0.5

// DefaultReplicationTimeout bounds one background replication attempt.
const DefaultReplicationTimeout = 15 * time.Second

// ScoreCard is the outcome of scoring one set of answers.
type ScoreCard struct {
	Score       float64
	TotalPoints float64
	Answers     []domain.AnswerRecord
}

// Score grades answers against questions. Choice answers earn full points
// when they match the correct option; text answers earn partialCredit of the
// question's points; missing answers earn nothing but still count toward
// TotalPoints. Answers are returned in question order.
func Score(questions []domain.Question, answers map[string]domain.AnswerRecord, partialCredit float64) ScoreCard {
	card := ScoreCard{Answers: make([]domain.AnswerRecord, 0, len(questions))}
	for _, q := range questions {
		card.TotalPoints += q.Points

		rec, ok := answers[q.ID]
		rec.QuestionID = q.ID
		if !ok || !rec.Answered() {
			card.Answers = append(card.Answers, withGrade(rec, false, 0))
			continue
		}

		if q.Type.IsChoice() {
			rec.TextAnswer = ""
			correct := false
			if opt, found := q.CorrectOption(); found && opt.ID == rec.SelectedOptionID {
				correct = true
			}
			awarded := 0.0
			if correct {
				awarded = q.Points
			}
			card.Score += awarded
			card.Answers = append(card.Answers, withGrade(rec, correct, awarded))
			continue
		}

		// text answers stay ungraded (IsCorrect unset) pending manual review
		rec.SelectedOptionID = ""
		awarded := q.Points * partialCredit
		card.Score += awarded
		rec.IsCorrect = nil
		rec.PointsAwarded = &awarded
		card.Answers = append(card.Answers, rec)
	}
	return card
}

func withGrade(rec domain.AnswerRecord, correct bool, awarded float64) domain.AnswerRecord {
	rec.IsCorrect = &correct
	rec.PointsAwarded = &awarded
	return rec
}

func roundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}

// SubmitRequest carries a frozen session into the engine.
type SubmitRequest struct {
	Quiz       domain.QuizMeta
	Questions  []domain.Question
	Answers    map[string]domain.AnswerRecord
	Student    domain.Student
	Violations int
	Completed  bool
}

// EngineOptions tunes scoring and replication.
type EngineOptions struct {
	PartialCredit      float64
	ReplicationTimeout time.Duration
	Now                func() time.Time
}

// Engine scores submissions, persists them locally before returning, and
// replicates them to the remote store in the background.
type Engine struct {
	local    KeyValueStore
	remote   RemoteStore
	notifier Notifier
	opts     EngineOptions

	// serializes read-modify-write of local result keys
	localMu sync.Mutex
	// per (quiz, student) replication slots
	slots sync.Map

	// guards wg.Add against a concurrent Close
	lifeMu sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(local KeyValueStore, remote RemoteStore, notifier Notifier, opts EngineOptions) *Engine {
	if opts.PartialCredit <= 0 {
		opts.PartialCredit = DefaultPartialCredit
	}
	if opts.ReplicationTimeout <= 0 {
		opts.ReplicationTimeout = DefaultReplicationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		local:    local,
		remote:   remote,
		notifier: notifier,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit scores the request and upserts the result into the local cache. The
// returned error is non-nil only when the local write failed; remote
// replication is started afterwards and never reported to the caller.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (domain.SessionResult, error) {
	card := Score(req.Questions, req.Answers, e.opts.PartialCredit)
	result := domain.SessionResult{
		QuizID:             req.Quiz.ID,
		StudentID:          req.Student.ID,
		StudentName:        req.Student.Name,
		StudentEmail:       req.Student.Email,
		Score:              card.Score,
		TotalPoints:        card.TotalPoints,
		Answers:            card.Answers,
		SubmittedAt:        e.opts.Now().UTC().Truncate(time.Millisecond),
		SecurityViolations: req.Violations,
		Completed:          req.Completed,
		QuizTitle:          req.Quiz.Title,
	}
	if card.TotalPoints > 0 {
		result.Percentage = roundPercent(card.Score / card.TotalPoints * 100)
	}

	if err := e.saveLocal(ctx, result); err != nil {
		return result, err
	}

	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		log.Printf("submit %s/%s: engine closed, result kept locally only", result.QuizID, result.StudentID)
		return result, nil
	}
	e.wg.Add(1)
	e.lifeMu.Unlock()
	go func() {
		defer e.wg.Done()
		e.replicate(result)
	}()
	return result, nil
}

func (e *Engine) saveLocal(ctx context.Context, result domain.SessionResult) error {
	e.localMu.Lock()
	defer e.localMu.Unlock()

	key := ResultKey(result.QuizID)
	var existing []domain.SessionResult
	raw, found, err := e.local.Get(ctx, key)
	if err != nil {
		return &domain.StorageError{Op: "get", Key: key, Err: err}
	}
	if found {
		existing, err = DecodeResults(raw)
		if err != nil {
			// unreadable history must not block a new submission
			log.Printf("submit %s/%s: discarding unreadable %s: %v", result.QuizID, result.StudentID, key, err)
			existing = nil
		}
	}

	merged := make([]domain.SessionResult, 0, len(existing)+1)
	for _, r := range existing {
		if r.StudentID != result.StudentID {
			merged = append(merged, r)
		}
	}
	merged = append(merged, result)

	data, err := json.Marshal(merged)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := e.local.Set(ctx, key, data); err != nil {
		return &domain.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

type replicaSlot struct {
	mu     sync.Mutex
	latest time.Time
}

func (e *Engine) replicate(result domain.SessionResult) {
	if e.remote == nil {
		return
	}
	v, _ := e.slots.LoadOrStore(result.QuizID+"\x00"+result.StudentID, &replicaSlot{})
	slot := v.(*replicaSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if result.SubmittedAt.Before(slot.latest) {
		log.Printf("replicate %s/%s: newer submission already replicated, skipping", result.QuizID, result.StudentID)
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.opts.ReplicationTimeout)
	defer cancel()

	if err := e.upsertRemote(ctx, result); err != nil {
		log.Printf("replicate %s/%s: %v", result.QuizID, result.StudentID, err)
		return
	}
	slot.latest = result.SubmittedAt

	if result.StudentEmail == "" || e.notifier == nil {
		return
	}
	notice := domain.SubmissionNotice{
		QuizID:       result.QuizID,
		QuizTitle:    result.QuizTitle,
		StudentName:  result.StudentName,
		StudentID:    result.StudentID,
		StudentEmail: result.StudentEmail,
	}
	if err := e.notifier.NotifySubmission(ctx, notice); err != nil {
		log.Printf("notify %s/%s: %v", result.QuizID, result.StudentID, err)
	}
}

func (e *Engine) upsertRemote(ctx context.Context, result domain.SessionResult) error {
	attemptID, err := e.remote.FindAttempt(ctx, result.QuizID, result.StudentID)
	switch {
	case err == nil:
		if err := e.remote.UpdateAttempt(ctx, attemptID, result); err != nil {
			return &domain.TransientRemoteError{Op: "update attempt", Err: err}
		}
	case errors.Is(err, domain.ErrAttemptNotFound):
		attemptID = uuid.NewString()
		if err := e.remote.InsertAttempt(ctx, attemptID, result); err != nil {
			return &domain.TransientRemoteError{Op: "insert attempt", Err: err}
		}
	default:
		return &domain.TransientRemoteError{Op: "find attempt", Err: err}
	}
	if err := e.remote.ReplaceAnswers(ctx, attemptID, result.Answers); err != nil {
		return &domain.TransientRemoteError{Op: "replace answers", Err: err}
	}
	return nil
}

// Wait blocks until in-flight replications finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels in-flight replications and waits for them to return.
func (e *Engine) Close() {
	e.lifeMu.Lock()
	e.closed = true
	e.lifeMu.Unlock()
	e.cancel()
	e.wg.Wait()
}
