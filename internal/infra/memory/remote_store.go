package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exam-session-engine/internal/domain"
)

// RemoteStore is an in-memory app.RemoteStore, useful for tests and demos.
// SetOffline makes every call fail the way an unreachable database would.
type RemoteStore struct {
	mu        sync.RWMutex
	quizzes   map[string]domain.QuizMeta
	questions map[string][]domain.Question
	attempts  map[string]attemptRow
	answers   map[string][]domain.AnswerRecord
	offline   error
	inserts   int
}

type attemptRow struct {
	id     string
	result domain.SessionResult
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		quizzes:   make(map[string]domain.QuizMeta),
		questions: make(map[string][]domain.Question),
		attempts:  make(map[string]attemptRow),
		answers:   make(map[string][]domain.AnswerRecord),
	}
}

// SaveQuiz stores a quiz and its questions.
func (s *RemoteStore) SaveQuiz(_ context.Context, quiz domain.QuizMeta, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline != nil {
		return s.offline
	}
	if quiz.QuestionCount == 0 {
		quiz.QuestionCount = len(questions)
	}
	s.quizzes[quiz.ID] = quiz
	s.questions[quiz.ID] = append([]domain.Question(nil), questions...)
	return nil
}

// SetOffline makes every call return err; nil brings the store back.
func (s *RemoteStore) SetOffline(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = err
}

func (s *RemoteStore) GetQuiz(_ context.Context, quizID string) (domain.QuizMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline != nil {
		return domain.QuizMeta{}, s.offline
	}
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizMeta{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *RemoteStore) ListQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline != nil {
		return nil, s.offline
	}
	return append([]domain.Question(nil), s.questions[quizID]...), nil
}

func (s *RemoteStore) FindAttempt(_ context.Context, quizID, studentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline != nil {
		return "", s.offline
	}
	for id, row := range s.attempts {
		if row.result.QuizID == quizID && row.result.StudentID == studentID {
			return id, nil
		}
	}
	return "", domain.ErrAttemptNotFound
}

func (s *RemoteStore) InsertAttempt(_ context.Context, attemptID string, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline != nil {
		return s.offline
	}
	for _, row := range s.attempts {
		if row.result.QuizID == result.QuizID && row.result.StudentID == result.StudentID {
			return fmt.Errorf("attempt for %s/%s already exists", result.QuizID, result.StudentID)
		}
	}
	result.Answers = nil
	s.attempts[attemptID] = attemptRow{id: attemptID, result: result}
	s.inserts++
	return nil
}

func (s *RemoteStore) UpdateAttempt(_ context.Context, attemptID string, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline != nil {
		return s.offline
	}
	if _, ok := s.attempts[attemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	result.Answers = nil
	s.attempts[attemptID] = attemptRow{id: attemptID, result: result}
	return nil
}

func (s *RemoteStore) ReplaceAnswers(_ context.Context, attemptID string, answers []domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline != nil {
		return s.offline
	}
	s.answers[attemptID] = append([]domain.AnswerRecord(nil), answers...)
	return nil
}

func (s *RemoteStore) ListResults(_ context.Context, quizID string) ([]domain.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline != nil {
		return nil, s.offline
	}
	var results []domain.SessionResult
	for id, row := range s.attempts {
		if row.result.QuizID != quizID {
			continue
		}
		r := row.result
		r.Answers = append([]domain.AnswerRecord(nil), s.answers[id]...)
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

// Inserts returns how many attempts were ever inserted.
func (s *RemoteStore) Inserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}

// AttemptCount returns the number of attempts stored for a quiz.
func (s *RemoteStore) AttemptCount(quizID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.attempts {
		if row.result.QuizID == quizID {
			n++
		}
	}
	return n
}
