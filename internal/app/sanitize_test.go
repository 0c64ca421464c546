package app

import (
	"errors"
	"testing"
	"time"

	"exam-session-engine/internal/domain"
)

func TestDecodeQuestionsRepairsLegacyShapes(t *testing.T) {
	raw := []byte(`[
		{"question": "Capital of France?", "type": "multiple_choice", "options": ["Paris", "Rome"], "correctAnswer": 0, "marks": 2},
		{"id": "tf", "text": "Sky is blue", "type": "boolean", "correct_answer": "true"},
		{"id": "essay", "type": "essay", "options": [{"id": "x"}]},
		"What is Go?"
	]`)

	qs, err := DecodeQuestions(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(qs) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(qs))
	}

	mc := qs[0]
	if mc.ID != "q1" || mc.Text != "Capital of France?" || mc.Type != domain.QuestionSingleChoice || mc.Points != 2 {
		t.Fatalf("unexpected choice question: %+v", mc)
	}
	if opt, ok := mc.CorrectOption(); !ok || opt.Text != "Paris" || opt.ID != "q1-o1" {
		t.Fatalf("expected Paris correct with generated id, got %+v ok=%v", opt, ok)
	}

	tf := qs[1]
	if tf.Type != domain.QuestionTrueFalse || len(tf.Options) != 2 {
		t.Fatalf("unexpected true-false question: %+v", tf)
	}
	if opt, _ := tf.CorrectOption(); opt.ID != domain.OptionTrue {
		t.Fatalf("expected true to be correct, got %+v", tf.Options)
	}
	if tf.Points != 1 {
		t.Fatalf("expected default points 1, got %v", tf.Points)
	}

	if qs[2].Type != domain.QuestionLongText || qs[2].Options != nil {
		t.Fatalf("text question must not carry options: %+v", qs[2])
	}
	if qs[3].Text != "What is Go?" || qs[3].Type != domain.QuestionSingleChoice || len(qs[3].Options) != 2 {
		t.Fatalf("bare string not repaired: %+v", qs[3])
	}
}

func TestDecodeQuestionsAcceptsWrappedObject(t *testing.T) {
	qs, err := DecodeQuestions([]byte(`{"questions": [{"id": "a", "text": "?", "type": "short"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(qs) != 1 || qs[0].Type != domain.QuestionShortText {
		t.Fatalf("unexpected: %+v", qs)
	}
}

func TestDecodeQuestionsCorrupt(t *testing.T) {
	for _, raw := range []string{`{not json`, `"a string"`, `42`} {
		if _, err := DecodeQuestions([]byte(raw)); !errors.Is(err, domain.ErrStorageCorrupt) {
			t.Fatalf("%s: expected ErrStorageCorrupt, got %v", raw, err)
		}
	}
}

func TestSanitizeChoicesKeepsSingleCorrectAndUniqueIDs(t *testing.T) {
	qs := SanitizeQuestions([]domain.Question{{
		ID:   "q",
		Text: "pick",
		Type: domain.QuestionSingleChoice,
		Options: []domain.Option{
			{ID: "a", Text: "A", IsCorrect: true},
			{ID: "a", Text: "B", IsCorrect: true},
		},
		Points: 3,
	}})
	opts := qs[0].Options
	if opts[0].ID == opts[1].ID {
		t.Fatalf("expected unique option ids, got %+v", opts)
	}
	if !opts[0].IsCorrect || opts[1].IsCorrect {
		t.Fatalf("expected only the first correct option kept, got %+v", opts)
	}
}

func TestSanitizePadsChoiceOptions(t *testing.T) {
	qs := SanitizeQuestions([]domain.Question{{ID: "q", Text: "t", Type: domain.QuestionSingleChoice}})
	if len(qs[0].Options) != 2 {
		t.Fatalf("expected 2 placeholder options, got %+v", qs[0].Options)
	}
}

func TestCoerceQuestionType(t *testing.T) {
	cases := map[string]domain.QuestionType{
		"MCQ":          domain.QuestionSingleChoice,
		"True/False":   domain.QuestionTrueFalse,
		"short_answer": domain.QuestionShortText,
		"Paragraph":    domain.QuestionLongText,
		"":             domain.QuestionSingleChoice,
		"free text":    domain.QuestionShortText,
	}
	for in, want := range cases {
		if got := CoerceQuestionType(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestDecodeQuizIndexShapes(t *testing.T) {
	arr, err := DecodeQuizIndex([]byte(`[{"id":"Q1","title":"One","duration":2},{"title":"no id"}]`))
	if err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if len(arr) != 1 || arr[0].DurationSeconds != 120 {
		t.Fatalf("unexpected array index: %+v", arr)
	}

	obj, err := DecodeQuizIndex([]byte(`{"Q2":{"title":"Two","durationSeconds":90,"questionCount":4}}`))
	if err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if len(obj) != 1 || obj[0].ID != "Q2" || obj[0].DurationSeconds != 90 || obj[0].QuestionCount != 4 {
		t.Fatalf("unexpected object index: %+v", obj)
	}

	if _, err := DecodeQuizIndex([]byte(`"nope"`)); !errors.Is(err, domain.ErrStorageCorrupt) {
		t.Fatalf("expected ErrStorageCorrupt, got %v", err)
	}
}

func TestDecodeResultsLegacyFields(t *testing.T) {
	raw := []byte(`[
		{"student_id":"S1","name":"Ana","score":3,"total_points":4,"timestamp":1760600000000,"answers":[{"question_id":"q1","optionId":"a","is_correct":true}]},
		{"name":"anonymous"}
	]`)
	results, err := DecodeResults(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected unattributed record dropped, got %d", len(results))
	}
	r := results[0]
	if r.StudentID != "S1" || r.Percentage != 75 || !r.Completed {
		t.Fatalf("unexpected result: %+v", r)
	}
	if !r.SubmittedAt.Equal(time.UnixMilli(1760600000000)) {
		t.Fatalf("unexpected submittedAt %v", r.SubmittedAt)
	}
	if len(r.Answers) != 1 || r.Answers[0].SelectedOptionID != "a" || r.Answers[0].IsCorrect == nil || !*r.Answers[0].IsCorrect {
		t.Fatalf("unexpected answers: %+v", r.Answers)
	}
}

func TestDecodeQuestionsReassignsDuplicateIDs(t *testing.T) {
	raw := []byte(`[
		{"id": "x", "type": "single", "points": 5, "options": [{"id": "a", "isCorrect": true}, {"id": "b"}]},
		{"id": "x", "type": "single", "points": 5, "options": [{"id": "a", "isCorrect": true}, {"id": "b"}]}
	]`)
	qs, err := DecodeQuestions(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(qs) != 2 || qs[0].ID != "x" || qs[1].ID != "q2" {
		t.Fatalf("expected ids x and q2, got %+v", qs)
	}

	answers := map[string]domain.AnswerRecord{"x": {QuestionID: "x", SelectedOptionID: "a"}}
	card := Score(qs, answers, DefaultPartialCredit)
	if card.Score != 5 || card.TotalPoints != 10 {
		t.Fatalf("one answer must count once, got %v/%v", card.Score, card.TotalPoints)
	}
}

func TestSanitizeQuestionsAvoidsGeneratedIDCollisions(t *testing.T) {
	qs := SanitizeQuestions([]domain.Question{
		{ID: "q2", Type: domain.QuestionShortText, Points: 1},
		{ID: "q2", Type: domain.QuestionShortText, Points: 1},
		{ID: "", Type: domain.QuestionShortText, Points: 1},
	})
	ids := map[string]bool{}
	for _, q := range qs {
		if ids[q.ID] {
			t.Fatalf("duplicate id %q in %+v", q.ID, qs)
		}
		ids[q.ID] = true
	}
	if qs[0].ID != "q2" || qs[1].ID != "q2-2" || qs[2].ID != "q3" {
		t.Fatalf("unexpected ids: %s %s %s", qs[0].ID, qs[1].ID, qs[2].ID)
	}
}
