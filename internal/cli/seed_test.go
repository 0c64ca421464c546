package cli

import (
	"os"
	"path/filepath"
	"testing"

	"exam-session-engine/internal/domain"
)

func TestLoadQuizFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	data := []byte(`
id: Q1
title: Quiz
durationSeconds: 120
questions:
  - id: q1
    text: Pick
    type: multiple-choice
    points: 2
    required: true
    options:
      - { id: a, text: A, isCorrect: true }
      - { id: b, text: B }
  - id: q2
    text: Explain
    type: essay
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	quiz, questions, err := loadQuizFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.ID != "Q1" || quiz.DurationSeconds != 120 {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Type != domain.QuestionSingleChoice || questions[0].Points != 2 || !questions[0].Required {
		t.Fatalf("unexpected first question: %+v", questions[0])
	}
	if len(questions[0].Options) != 2 || !questions[0].Options[0].IsCorrect {
		t.Fatalf("unexpected options: %+v", questions[0].Options)
	}
	if questions[1].Type != domain.QuestionLongText || questions[1].Points != 1 {
		t.Fatalf("unexpected second question: %+v", questions[1])
	}
}

func TestLoadQuizFileRequiresID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	if err := os.WriteFile(path, []byte("title: nameless\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := loadQuizFile(path); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
