package postgres

import (
	"context"
	"errors"
	"fmt"

	"exam-session-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RemoteStore is the Postgres-backed quiz catalogue and attempt store.
type RemoteStore struct {
	pool *pgxpool.Pool
}

func NewRemoteStore(pool *pgxpool.Pool) *RemoteStore {
	return &RemoteStore{pool: pool}
}

func (s *RemoteStore) GetQuiz(ctx context.Context, quizID string) (domain.QuizMeta, error) {
	var quiz domain.QuizMeta
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, duration_seconds, question_count, created_at
		FROM quizzes WHERE id = $1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.DurationSeconds, &quiz.QuestionCount, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizMeta{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizMeta{}, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

func (s *RemoteStore) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, text, type, points, required
		FROM questions WHERE quiz_id = $1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	index := make(map[string]int)
	for rows.Next() {
		var (
			q     domain.Question
			qType string
		)
		if err := rows.Scan(&q.ID, &q.Text, &qType, &q.Points, &q.Required); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qType)
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil
	}

	optRows, err := s.pool.Query(ctx, `
		SELECT question_id, id, text, is_correct
		FROM options WHERE quiz_id = $1 ORDER BY question_id, position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var (
			questionID string
			opt        domain.Option
		)
		if err := optRows.Scan(&questionID, &opt.ID, &opt.Text, &opt.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[questionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return questions, nil
}

// SaveQuiz replaces a quiz and its questions in a single transaction.
func (s *RemoteStore) SaveQuiz(ctx context.Context, quiz domain.QuizMeta, questions []domain.Question) error {
	if quiz.QuestionCount == 0 {
		quiz.QuestionCount = len(questions)
	}
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quizzes (id, title, description, duration_seconds, question_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				duration_seconds = EXCLUDED.duration_seconds,
				question_count = EXCLUDED.question_count`,
			quiz.ID, quiz.Title, quiz.Description, quiz.DurationSeconds, quiz.QuestionCount)
		if err != nil {
			return fmt.Errorf("upsert quiz: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quiz.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for i, q := range questions {
			_, err := tx.Exec(ctx, `
				INSERT INTO questions (quiz_id, id, position, text, type, points, required)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				quiz.ID, q.ID, i, q.Text, string(q.Type), q.Points, q.Required)
			if err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
			for j, opt := range q.Options {
				_, err := tx.Exec(ctx, `
					INSERT INTO options (quiz_id, question_id, id, position, text, is_correct)
					VALUES ($1, $2, $3, $4, $5, $6)`,
					quiz.ID, q.ID, opt.ID, j, opt.Text, opt.IsCorrect)
				if err != nil {
					return fmt.Errorf("insert option %s/%s: %w", q.ID, opt.ID, err)
				}
			}
		}
		return nil
	})
}

func (s *RemoteStore) FindAttempt(ctx context.Context, quizID, studentID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM attempts WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrAttemptNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find attempt: %w", err)
	}
	return id, nil
}

func (s *RemoteStore) InsertAttempt(ctx context.Context, attemptID string, r domain.SessionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, student_id, student_name, student_email, quiz_title,
			score, total_points, percentage, security_violations, completed, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		attemptID, r.QuizID, r.StudentID, r.StudentName, r.StudentEmail, r.QuizTitle,
		r.Score, r.TotalPoints, r.Percentage, r.SecurityViolations, r.Completed, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *RemoteStore) UpdateAttempt(ctx context.Context, attemptID string, r domain.SessionResult) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET student_name = $2, student_email = $3, quiz_title = $4,
			score = $5, total_points = $6, percentage = $7, security_violations = $8,
			completed = $9, submitted_at = $10
		WHERE id = $1`,
		attemptID, r.StudentName, r.StudentEmail, r.QuizTitle,
		r.Score, r.TotalPoints, r.Percentage, r.SecurityViolations, r.Completed, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

// ReplaceAnswers deletes and re-inserts the attempt's answers atomically.
func (s *RemoteStore) ReplaceAnswers(ctx context.Context, attemptID string, answers []domain.AnswerRecord) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM attempt_answers WHERE attempt_id = $1`, attemptID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		batch := &pgx.Batch{}
		for _, a := range answers {
			batch.Queue(`
				INSERT INTO attempt_answers (attempt_id, question_id, selected_option_id, text_answer, is_correct, points_awarded)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				attemptID, a.QuestionID, a.SelectedOptionID, a.TextAnswer, a.IsCorrect, a.PointsAwarded)
		}
		if batch.Len() == 0 {
			return nil
		}
		br := tx.SendBatch(ctx, batch)
		for range answers {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		return br.Close()
	})
}

func (s *RemoteStore) ListResults(ctx context.Context, quizID string) ([]domain.SessionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, student_id, student_name, student_email, quiz_title,
			score, total_points, percentage, security_violations, completed, submitted_at
		FROM attempts WHERE quiz_id = $1 ORDER BY student_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var (
		results []domain.SessionResult
		ids     []string
	)
	byID := make(map[string]int)
	for rows.Next() {
		var (
			id string
			r  domain.SessionResult
		)
		if err := rows.Scan(&id, &r.QuizID, &r.StudentID, &r.StudentName, &r.StudentEmail, &r.QuizTitle,
			&r.Score, &r.TotalPoints, &r.Percentage, &r.SecurityViolations, &r.Completed, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.SubmittedAt = r.SubmittedAt.UTC()
		byID[id] = len(results)
		ids = append(ids, id)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ansRows, err := s.pool.Query(ctx, `
		SELECT attempt_id, question_id, selected_option_id, text_answer, is_correct, points_awarded
		FROM attempt_answers WHERE attempt_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer ansRows.Close()
	for ansRows.Next() {
		var (
			attemptID string
			a         domain.AnswerRecord
		)
		if err := ansRows.Scan(&attemptID, &a.QuestionID, &a.SelectedOptionID, &a.TextAnswer, &a.IsCorrect, &a.PointsAwarded); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if i, ok := byID[attemptID]; ok {
			results[i].Answers = append(results[i].Answers, a)
		}
	}
	return results, ansRows.Err()
}
