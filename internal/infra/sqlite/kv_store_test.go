package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/domain"
)

func TestKVStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, found, err := store.Get(ctx, "quizzes"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, "quizzes", []byte("first")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "quizzes", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, found, err := reopened.Get(ctx, "quizzes")
	if err != nil || !found || string(got) != "second" {
		t.Fatalf("unexpected value %q found=%v err=%v", got, found, err)
	}
}

func TestKVStoreHoldsSubmittedResults(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	engine := app.NewEngine(store, nil, nil, app.EngineOptions{
		Now: func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) },
	})
	defer engine.Close()

	quiz := domain.QuizMeta{ID: "Q1", Title: "Quiz"}
	questions := []domain.Question{{ID: "q1", Text: "2+2", Type: domain.QuestionShortText, Points: 4}}
	_, err = engine.Submit(ctx, app.SubmitRequest{
		Quiz:      quiz,
		Questions: questions,
		Answers:   map[string]domain.AnswerRecord{"q1": {QuestionID: "q1", TextAnswer: "4"}},
		Student:   domain.Student{Name: "Ana", ID: "S1"},
		Completed: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// no remote configured: local results are still served
	results, err := app.NewResultsAggregator(store, nil).LoadResults(ctx, "Q1")
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	if len(results) != 1 || results[0].StudentID != "S1" || results[0].Score != 2 {
		t.Fatalf("unexpected results: %+v", results)
	}
}
