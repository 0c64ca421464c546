package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"exam-session-engine/internal/domain"
)

// SubmitOutcome reports what a submit call did. When NeedsConfirmation is
// set nothing was submitted; a second manual submit proceeds regardless.
type SubmitOutcome struct {
	Submitted         bool
	NeedsConfirmation bool
	Unanswered        []string
	Reason            domain.SubmitReason
	Result            domain.SessionResult
}

// Session is one student's run through a quiz. It owns the answers and the
// clock for its lifetime and funnels every submission trigger through a
// single one-shot latch.
type Session struct {
	quizID      string
	resolver    *Resolver
	engine      *Engine
	sched       Scheduler
	focus       FocusSource
	monitorOpts MonitorOptions

	mu          sync.Mutex
	stage       domain.Stage
	attempt     int
	run         int
	res         Resolution
	resolved    bool
	student     domain.Student
	answers     map[string]domain.AnswerRecord
	index       int
	confirmed   bool
	submitted   bool
	violations  int
	timeLeft    int
	err         error
	result      *domain.SessionResult
	clock       *Clock
	monitor     *Monitor
	subscribers map[chan domain.Event]struct{}
}

func newSession(quizID string, resolver *Resolver, engine *Engine, sched Scheduler, focus FocusSource, opts MonitorOptions) *Session {
	return &Session{
		quizID:      quizID,
		resolver:    resolver,
		engine:      engine,
		sched:       sched,
		focus:       focus,
		monitorOpts: opts,
		stage:       domain.StageIdle,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// QuizID returns the quiz this session runs.
func (s *Session) QuizID() string { return s.quizID }

// Begin moves an idle or failed session into registration and resolves the
// quiz content. On failure the session is left in the error stage and the
// structured resolve error is returned; Begin may be called again.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.stage != domain.StageIdle && s.stage != domain.StageError {
		s.mu.Unlock()
		return domain.ErrInvalidStage
	}
	s.attempt++
	attempt := s.attempt
	s.stage = domain.StageRegistering
	s.err = nil
	s.resolved = false
	s.result = nil
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	s.mu.Unlock()

	res, err := s.resolver.Resolve(ctx, s.quizID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt || s.stage != domain.StageRegistering {
		// quit or restarted while resolving
		return domain.ErrInvalidStage
	}
	if err != nil {
		s.stage = domain.StageError
		s.err = err
		s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
		return err
	}
	s.res = res
	s.resolved = true
	s.timeLeft = res.Quiz.DurationSeconds
	s.answers = make(map[string]domain.AnswerRecord, len(res.Questions))
	for _, q := range res.Questions {
		s.answers[q.ID] = domain.AnswerRecord{QuestionID: q.ID}
	}
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	return nil
}

// Retry restarts resolution from the first source.
func (s *Session) Retry(ctx context.Context) error {
	return s.Begin(ctx)
}

// ValidateStudent checks registration input: all fields present and a
// syntactically valid e-mail address.
func ValidateStudent(st domain.Student) error {
	if strings.TrimSpace(st.Name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(st.ID) == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	email := strings.TrimSpace(st.Email)
	if email == "" {
		return &domain.ValidationError{Field: "email", Reason: "required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &domain.ValidationError{Field: "email", Reason: "not a valid address"}
	}
	return nil
}

// Register records the student's identity and starts the exam: the clock
// and the proctoring monitor are installed here and live until the session
// submits or quits. Invalid input leaves the session in registration.
func (s *Session) Register(_ context.Context, st domain.Student) error {
	if err := ValidateStudent(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != domain.StageRegistering {
		return domain.ErrInvalidStage
	}
	if !s.resolved {
		return domain.ErrQuizNotReady
	}

	s.student = domain.Student{
		Name:  strings.TrimSpace(st.Name),
		ID:    strings.TrimSpace(st.ID),
		Email: strings.TrimSpace(st.Email),
	}
	s.stage = domain.StageInProgress
	s.index = 0
	s.confirmed = false
	s.submitted = false
	s.violations = 0
	s.run++
	run := s.run

	s.clock = StartClock(s.sched, s.res.Quiz.DurationSeconds,
		func(remaining int) { s.onTick(run, remaining) },
		func() { s.forceSubmit(run, domain.SubmitTimeout) },
	)
	s.monitor = NewMonitor(s.focus, s.sched, s.monitorOpts, MonitorHandlers{
		OnWarning:   func(count int) { s.onViolation(run, count) },
		OnThreshold: func(int) { s.forceSubmit(run, domain.SubmitViolations) },
	})

	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	return nil
}

// AnswerChange replaces the answer for questionID. Choice questions take an
// option id, text questions the raw text; an empty value clears the answer.
// The current position is not changed.
func (s *Session) AnswerChange(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != domain.StageInProgress {
		return domain.ErrInvalidStage
	}
	q, ok := s.questionLocked(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}

	rec := domain.AnswerRecord{QuestionID: questionID}
	if q.Type.IsChoice() {
		if value != "" && !hasOption(q, value) {
			return domain.ErrOptionNotFound
		}
		rec.SelectedOptionID = value
	} else {
		rec.TextAnswer = value
	}
	s.answers[questionID] = rec
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	return nil
}

// Next moves to the following question; a no-op on the last one.
func (s *Session) Next() {
	s.move(1)
}

// Previous moves to the preceding question; a no-op on the first one.
func (s *Session) Previous() {
	s.move(-1)
}

func (s *Session) move(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != domain.StageInProgress {
		return
	}
	next := s.index + delta
	if next < 0 || next >= len(s.res.Questions) {
		return
	}
	s.index = next
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
}

// Submit is the explicit user action. With required questions unanswered
// the first call only asks for confirmation.
func (s *Session) Submit(ctx context.Context) (SubmitOutcome, error) {
	return s.submit(ctx, domain.SubmitManual)
}

func (s *Session) forceSubmit(run int, reason domain.SubmitReason) {
	s.mu.Lock()
	current := s.run == run
	s.mu.Unlock()
	if !current {
		return
	}
	_, _ = s.submit(context.Background(), reason)
}

func (s *Session) submit(ctx context.Context, reason domain.SubmitReason) (SubmitOutcome, error) {
	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return SubmitOutcome{}, domain.ErrAlreadySubmitted
	}
	if s.stage != domain.StageInProgress {
		s.mu.Unlock()
		return SubmitOutcome{}, domain.ErrInvalidStage
	}
	if reason == domain.SubmitManual && !s.confirmed {
		if missing := s.unansweredRequiredLocked(); len(missing) > 0 {
			s.confirmed = true
			s.broadcastLocked(domain.Event{Type: domain.EventConfirm, Unanswered: missing})
			s.mu.Unlock()
			return SubmitOutcome{NeedsConfirmation: true, Unanswered: missing, Reason: reason}, nil
		}
	}

	s.submitted = true
	s.stage = domain.StageSubmitting
	if s.monitor != nil && s.monitor.Count() > s.violations {
		s.violations = s.monitor.Count()
	}
	answers := make(map[string]domain.AnswerRecord, len(s.answers))
	for id, rec := range s.answers {
		answers[id] = rec
	}
	req := SubmitRequest{
		Quiz:       s.res.Quiz,
		Questions:  s.res.Questions,
		Answers:    answers,
		Student:    s.student,
		Violations: s.violations,
		Completed:  reason != domain.SubmitViolations,
	}
	clock, monitor := s.detachLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	s.mu.Unlock()

	release(clock, monitor)

	result, err := s.engine.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stage = domain.StageError
		s.err = err
		s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
		return SubmitOutcome{Reason: reason}, err
	}
	s.stage = domain.StageSubmitted
	s.result = &result
	s.broadcastLocked(domain.Event{Type: domain.EventResult, Result: &result})
	return SubmitOutcome{Submitted: true, Reason: reason, Result: result}, nil
}

// Quit abandons the session without scoring. The clock and monitor are torn
// down whatever the stage.
func (s *Session) Quit() {
	s.mu.Lock()
	clock, monitor := s.detachLocked()
	if s.stage != domain.StageSubmitting && s.stage != domain.StageSubmitted {
		s.stage = domain.StageIdle
		s.resolved = false
		s.err = nil
		s.attempt++
		s.run++
	}
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
	s.mu.Unlock()

	release(clock, monitor)
}

// Close quits the session and closes every subscriber channel.
func (s *Session) Close() {
	s.Quit()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) detachLocked() (*Clock, *Monitor) {
	clock, monitor := s.clock, s.monitor
	s.clock, s.monitor = nil, nil
	return clock, monitor
}

func release(clock *Clock, monitor *Monitor) {
	if clock != nil {
		clock.Stop()
	}
	if monitor != nil {
		monitor.Close()
	}
}

func (s *Session) onTick(run, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != run || s.stage != domain.StageInProgress {
		return
	}
	s.timeLeft = remaining
	s.broadcastLocked(domain.Event{Type: domain.EventSnapshot})
}

func (s *Session) onViolation(run, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != run || s.stage != domain.StageInProgress {
		return
	}
	s.violations = count
	s.broadcastLocked(domain.Event{Type: domain.EventWarning, Violations: count})
}

// Snapshot returns the UI view of the session.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the submitted result, if any.
func (s *Session) Result() (domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.SessionResult{}, false
	}
	return *s.result, true
}

// Subscribe returns a channel of session events starting with the current
// snapshot. The caller must invoke the returned cancel function.
func (s *Session) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- domain.Event{Type: domain.EventSnapshot, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.Event) {
	ev.Snapshot = s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest pending event so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		QuizID:        s.quizID,
		Stage:         s.stage,
		TimeLeft:      s.timeLeft,
		CurrentIndex:  s.index,
		QuestionCount: len(s.res.Questions),
		Violations:    s.violations,
		Degraded:      s.res.Degraded,
	}
	if s.resolved {
		snap.QuestionSource = string(s.res.QuestionSource)
	}
	if s.clock != nil {
		snap.TimeLeft = s.clock.Remaining()
	}
	if s.stage == domain.StageInProgress && s.index < len(s.res.Questions) {
		q := studentView(s.res.Questions[s.index])
		snap.CurrentQuestion = &q
	}
	if s.answers != nil {
		snap.Answers = make([]domain.AnswerRecord, 0, len(s.res.Questions))
		for _, q := range s.res.Questions {
			snap.Answers = append(snap.Answers, s.answers[q.ID])
		}
	}
	if s.err != nil {
		snap.Error = s.err.Error()
		snap.ErrorKind = errorKind(s.err)
	}
	return snap
}

func (s *Session) questionLocked(id string) (domain.Question, bool) {
	for _, q := range s.res.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (s *Session) unansweredRequiredLocked() []string {
	var missing []string
	for _, q := range s.res.Questions {
		if q.Required && !s.answers[q.ID].Answered() {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

func hasOption(q domain.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// studentView hides which option is correct.
func studentView(q domain.Question) domain.Question {
	if len(q.Options) == 0 {
		return q
	}
	opts := make([]domain.Option, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = domain.Option{ID: opt.ID, Text: opt.Text}
	}
	q.Options = opts
	return q
}

func errorKind(err error) string {
	var resolveErr *domain.ResolveError
	if errors.As(err, &resolveErr) {
		return string(resolveErr.Kind)
	}
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		return "storage-error"
	}
	return "error"
}
