package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-session-engine/internal/domain"
	"exam-session-engine/internal/infra/memory"
)

func TestLoadResultsPrefersRemoteAndKeepsLocalOnly(t *testing.T) {
	local, remote := memory.NewKVStore(), memory.NewRemoteStore()
	t0 := fixedNow

	shared := domain.SessionResult{QuizID: "Q1", StudentID: "S2", StudentName: "Remote Ben", Score: 7, SubmittedAt: t0}
	if err := remote.InsertAttempt(context.Background(), "att-1", shared); err != nil {
		t.Fatalf("insert: %v", err)
	}

	localCopy := shared
	localCopy.StudentName = "Local Ben"
	localOnly := domain.SessionResult{QuizID: "Q1", StudentID: "S1", StudentName: "Ana", Score: 9, SubmittedAt: t0.Add(time.Minute)}
	putJSON(t, local, ResultKey("Q1"), []domain.SessionResult{localCopy, localOnly})
	// legacy key without quizId on the record
	putJSON(t, local, "quiz_results_Q1", []map[string]any{{"studentId": "S0", "name": "Old", "score": 1, "submittedAt": "2025-01-01T00:00:00Z"}})

	results, err := NewResultsAggregator(local, remote).LoadResults(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 merged results, got %+v", results)
	}
	if results[0].StudentID != "S0" || results[1].StudentID != "S1" || results[2].StudentID != "S2" {
		t.Fatalf("expected student id order, got %v %v %v", results[0].StudentID, results[1].StudentID, results[2].StudentID)
	}
	if results[2].StudentName != "Remote Ben" {
		t.Fatalf("expected remote record to win, got %q", results[2].StudentName)
	}
	if results[0].QuizID != "Q1" {
		t.Fatalf("expected legacy record tagged with quiz id")
	}
}

func TestLoadRecentOrdersBySubmission(t *testing.T) {
	local := memory.NewKVStore()
	putJSON(t, local, ResultKey("Q1"), []domain.SessionResult{
		{QuizID: "Q1", StudentID: "A", SubmittedAt: fixedNow},
		{QuizID: "Q1", StudentID: "B", SubmittedAt: fixedNow.Add(2 * time.Minute)},
		{QuizID: "Q1", StudentID: "C", SubmittedAt: fixedNow.Add(time.Minute)},
	})
	results, err := NewResultsAggregator(local, memory.NewRemoteStore()).LoadRecent(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if results[0].StudentID != "B" || results[1].StudentID != "C" || results[2].StudentID != "A" {
		t.Fatalf("unexpected order: %+v", results)
	}
}

func TestLoadResultsRemoteDownFallsBackToLocal(t *testing.T) {
	local, remote := memory.NewKVStore(), memory.NewRemoteStore()
	remote.SetOffline(errors.New("timeout"))
	putJSON(t, local, ResultKey("Q1"), []domain.SessionResult{{QuizID: "Q1", StudentID: "S1", SubmittedAt: fixedNow}})

	results, err := NewResultsAggregator(local, remote).LoadResults(context.Background(), "Q1")
	if err != nil || len(results) != 1 {
		t.Fatalf("expected local results, got %+v err=%v", results, err)
	}
}

func TestLoadResultsNothingReachable(t *testing.T) {
	remote := memory.NewRemoteStore()
	remote.SetOffline(errors.New("timeout"))
	_, err := NewResultsAggregator(memory.NewKVStore(), remote).LoadResults(context.Background(), "Q1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadResultsEmptyWhenRemoteReachable(t *testing.T) {
	results, err := NewResultsAggregator(memory.NewKVStore(), memory.NewRemoteStore()).LoadResults(context.Background(), "Q1")
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty results, got %+v err=%v", results, err)
	}
}

func TestLoadResultsSurvivesCorruptLocalKey(t *testing.T) {
	local, remote := memory.NewKVStore(), memory.NewRemoteStore()
	if err := local.Set(context.Background(), ResultKey("Q1"), []byte("{oops")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := remote.InsertAttempt(context.Background(), "att-1", domain.SessionResult{QuizID: "Q1", StudentID: "S1", SubmittedAt: fixedNow}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	results, err := NewResultsAggregator(local, remote).LoadResults(context.Background(), "Q1")
	if err != nil || len(results) != 1 {
		t.Fatalf("expected remote result, got %+v err=%v", results, err)
	}
}
