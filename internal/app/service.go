package app

import (
	"context"

	"exam-session-engine/internal/domain"
)

// ExamService wires the resolver, the scoring engine and the aggregator and
// hands out sessions.
type ExamService struct {
	remote      RemoteStore
	resolver    *Resolver
	engine      *Engine
	results     *ResultsAggregator
	sched       Scheduler
	monitorOpts MonitorOptions
}

// Options configures an ExamService. Zero values fall back to defaults.
type Options struct {
	Scheduler Scheduler
	Monitor   MonitorOptions
	Engine    EngineOptions
}

func NewExamService(remote RemoteStore, local KeyValueStore, notifier Notifier, opts Options) *ExamService {
	sched := opts.Scheduler
	if sched == nil {
		sched = RealScheduler{}
	}
	return &ExamService{
		remote:      remote,
		resolver:    NewResolver(remote, local),
		engine:      NewEngine(local, remote, notifier, opts.Engine),
		results:     NewResultsAggregator(local, remote),
		sched:       sched,
		monitorOpts: opts.Monitor,
	}
}

// NewSession returns an idle session for quizID. focus may be nil when the
// caller has no browser signals to offer.
func (s *ExamService) NewSession(quizID string, focus FocusSource) *Session {
	return newSession(quizID, s.resolver, s.engine, s.sched, focus, s.monitorOpts)
}

// Resolve exposes quiz resolution outside a session.
func (s *ExamService) Resolve(ctx context.Context, quizID string) (Resolution, error) {
	return s.resolver.Resolve(ctx, quizID)
}

// QuizWriter is implemented by remote stores that accept quiz content.
type QuizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.QuizMeta, questions []domain.Question) error
}

// ImportQuiz sanitizes quiz content, stores it remotely when the remote
// store accepts writes, and primes the local cache with it.
func (s *ExamService) ImportQuiz(ctx context.Context, quiz domain.QuizMeta, questions []domain.Question) error {
	if quiz.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	if len(quiz.Questions) > 0 && len(questions) == 0 {
		questions = quiz.Questions
	}
	questions = SanitizeQuestions(questions)
	quiz.Questions = nil
	if quiz.QuestionCount == 0 {
		quiz.QuestionCount = len(questions)
	}
	if w, ok := s.remote.(QuizWriter); ok {
		if err := w.SaveQuiz(ctx, quiz, questions); err != nil {
			return &domain.TransientRemoteError{Op: "save quiz", Err: err}
		}
	}
	s.resolver.writeBack(ctx, quiz, questions)
	return nil
}

// LoadResults returns merged results ordered by student id.
func (s *ExamService) LoadResults(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	return s.results.LoadResults(ctx, quizID)
}

// LoadRecent returns merged results, most recent submission first.
func (s *ExamService) LoadRecent(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	return s.results.LoadRecent(ctx, quizID)
}

// WaitReplication blocks until background replications have finished.
func (s *ExamService) WaitReplication() {
	s.engine.Wait()
}

// Close cancels outstanding replications.
func (s *ExamService) Close() {
	s.engine.Close()
}
