package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"exam-session-engine/internal/domain"
)

// Stored JSON has accumulated several shapes over time; everything read from
// the local cache goes through these decoders before it reaches a session.

// DecodeQuestions normalizes a stored question array. Undecodable bytes yield
// domain.ErrStorageCorrupt; malformed entries are repaired, never rejected.
func DecodeQuestions(raw []byte) ([]domain.Question, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	if m, ok := v.(map[string]any); ok {
		v = m["questions"]
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: questions are not an array", domain.ErrStorageCorrupt)
	}
	return sanitizeQuestionList(items), nil
}

// SanitizeQuestions repairs already-typed questions, e.g. ones coming from
// the remote store or embedded on a QuizMeta.
func SanitizeQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		out = append(out, sanitizeQuestion(q, i, seen))
	}
	return out
}

// DecodeQuizIndex reads the local quiz index. Both an array of quizzes and an
// object keyed by quiz id are accepted.
func DecodeQuizIndex(raw []byte) ([]domain.QuizMeta, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		for id, item := range t {
			if m, ok := item.(map[string]any); ok {
				if _, has := m["id"]; !has {
					m["id"] = id
				}
			}
			items = append(items, item)
		}
	case nil:
	default:
		return nil, fmt.Errorf("%w: quiz index has unexpected shape", domain.ErrStorageCorrupt)
	}
	metas := make([]domain.QuizMeta, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if meta, ok := quizMetaFromMap(m); ok {
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

// DecodeResults reads a stored result array, dropping entries that cannot be
// attributed to a student.
func DecodeResults(raw []byte) ([]domain.SessionResult, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: results are not an array", domain.ErrStorageCorrupt)
	}
	results := make([]domain.SessionResult, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := resultFromMap(m); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func sanitizeQuestionList(items []any) []domain.Question {
	out := make([]domain.Question, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			// a bare string is treated as the question text
			m = map[string]any{"text": fmt.Sprint(item)}
			if item == nil {
				m = map[string]any{}
			}
		}
		out = append(out, sanitizeQuestion(questionFromMap(m), i, seen))
	}
	return out
}

func questionFromMap(m map[string]any) domain.Question {
	q := domain.Question{
		ID:   stringField(m, "id", "_id", "questionId", "question_id"),
		Text: stringField(m, "text", "question", "prompt", "title"),
		Type: CoerceQuestionType(stringField(m, "type", "questionType", "question_type", "kind")),
	}
	if p, ok := numberField(m, "points", "score", "marks"); ok {
		q.Points = p
	} else {
		q.Points = -1
	}
	if r, ok := boolField(m, "required", "isRequired", "is_required"); ok {
		q.Required = r
	}

	rawOpts, _ := firstPresent(m, "options", "choices", "answers").([]any)
	for _, ro := range rawOpts {
		switch o := ro.(type) {
		case map[string]any:
			correct, _ := boolField(o, "isCorrect", "correct", "is_correct")
			q.Options = append(q.Options, domain.Option{
				ID:        stringField(o, "id", "_id", "optionId", "value"),
				Text:      stringField(o, "text", "label", "value", "option"),
				IsCorrect: correct,
			})
		case nil:
		default:
			q.Options = append(q.Options, domain.Option{Text: fmt.Sprint(o)})
		}
	}

	if _, flagged := q.CorrectOption(); !flagged {
		applyCorrectAnswer(&q, firstPresent(m, "correctAnswer", "correct_answer", "answer"))
	}
	return q
}

func applyCorrectAnswer(q *domain.Question, v any) {
	switch a := v.(type) {
	case float64:
		idx := int(a)
		if idx >= 0 && idx < len(q.Options) && float64(idx) == a {
			q.Options[idx].IsCorrect = true
		}
	case bool:
		if q.Type == domain.QuestionTrueFalse {
			q.Options = trueFalseOptions(a)
		}
	case string:
		if a == "" {
			return
		}
		for i := range q.Options {
			if q.Options[i].ID == a || strings.EqualFold(q.Options[i].Text, a) {
				q.Options[i].IsCorrect = true
				return
			}
		}
		if q.Type == domain.QuestionTrueFalse {
			if b, ok := truthy(a); ok {
				q.Options = trueFalseOptions(b)
			}
		}
	}
}

// sanitizeQuestion fills missing fields with safe defaults and enforces the
// per-type option invariants. A negative Points value means "unset". seen
// holds the ids already taken in the list; missing or repeated ids are
// replaced with a free "q{n}".
func sanitizeQuestion(q domain.Question, idx int, seen map[string]bool) domain.Question {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" || seen[q.ID] {
		q.ID = freeQuestionID(idx, seen)
	}
	seen[q.ID] = true
	if strings.TrimSpace(q.Text) == "" {
		q.Text = "Question " + strconv.Itoa(idx+1)
	}
	q.Type = CoerceQuestionType(string(q.Type))
	if q.Points < 0 {
		q.Points = 1
	}

	switch q.Type {
	case domain.QuestionTrueFalse:
		q.Options = canonicalTrueFalse(q.Options)
	case domain.QuestionSingleChoice:
		q.Options = sanitizeChoices(q.ID, q.Options)
	default:
		q.Options = nil
	}
	return q
}

func freeQuestionID(idx int, seen map[string]bool) string {
	id := "q" + strconv.Itoa(idx+1)
	for n := 2; seen[id]; n++ {
		id = "q" + strconv.Itoa(idx+1) + "-" + strconv.Itoa(n)
	}
	return id
}

func sanitizeChoices(questionID string, opts []domain.Option) []domain.Option {
	out := make([]domain.Option, 0, len(opts))
	seen := make(map[string]bool, len(opts))
	correctSeen := false
	for j, o := range opts {
		if strings.TrimSpace(o.ID) == "" || seen[o.ID] {
			o.ID = questionID + "-o" + strconv.Itoa(j+1)
		}
		seen[o.ID] = true
		if strings.TrimSpace(o.Text) == "" {
			o.Text = "Option " + string(rune('A'+j%26))
		}
		if o.IsCorrect {
			if correctSeen {
				o.IsCorrect = false
			}
			correctSeen = true
		}
		out = append(out, o)
	}
	for len(out) < 2 {
		j := len(out)
		out = append(out, domain.Option{
			ID:   questionID + "-o" + strconv.Itoa(j+1),
			Text: "Option " + string(rune('A'+j)),
		})
	}
	return out
}

func canonicalTrueFalse(opts []domain.Option) []domain.Option {
	for _, o := range opts {
		if !o.IsCorrect {
			continue
		}
		if b, ok := truthy(o.ID); ok {
			return trueFalseOptions(b)
		}
		if b, ok := truthy(o.Text); ok {
			return trueFalseOptions(b)
		}
	}
	return []domain.Option{
		{ID: domain.OptionTrue, Text: "True"},
		{ID: domain.OptionFalse, Text: "False"},
	}
}

func trueFalseOptions(correct bool) []domain.Option {
	return []domain.Option{
		{ID: domain.OptionTrue, Text: "True", IsCorrect: correct},
		{ID: domain.OptionFalse, Text: "False", IsCorrect: !correct},
	}
}

func truthy(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// CoerceQuestionType maps a stored type name to the nearest supported type.
func CoerceQuestionType(raw string) domain.QuestionType {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.NewReplacer("_", "-", " ", "-", "/", "-").Replace(t)
	switch t {
	case "single-choice", "single", "multiple-choice", "mcq", "mcq-single", "choice", "radio", "single-select":
		return domain.QuestionSingleChoice
	case "true-false", "truefalse", "boolean", "bool", "tf":
		return domain.QuestionTrueFalse
	case "short-text", "short", "short-answer", "text", "short-word", "input":
		return domain.QuestionShortText
	case "long-text", "long", "essay", "paragraph", "long-answer", "textarea":
		return domain.QuestionLongText
	}
	switch {
	case strings.Contains(t, "true") && strings.Contains(t, "false"):
		return domain.QuestionTrueFalse
	case strings.Contains(t, "essay"), strings.Contains(t, "long"), strings.Contains(t, "paragraph"):
		return domain.QuestionLongText
	case strings.Contains(t, "short"), strings.Contains(t, "text"):
		return domain.QuestionShortText
	}
	return domain.QuestionSingleChoice
}

func quizMetaFromMap(m map[string]any) (domain.QuizMeta, bool) {
	meta := domain.QuizMeta{
		ID:          stringField(m, "id", "_id", "quizId", "quiz_id"),
		Title:       stringField(m, "title", "name"),
		Description: stringField(m, "description", "desc"),
	}
	if meta.ID == "" {
		return domain.QuizMeta{}, false
	}
	if d, ok := numberField(m, "durationSeconds", "duration_seconds", "timeLimit", "time_limit_sec"); ok && d > 0 {
		meta.DurationSeconds = int(d)
	} else if mins, ok := numberField(m, "duration", "durationMinutes"); ok && mins > 0 {
		meta.DurationSeconds = int(mins * 60)
	}
	if n, ok := numberField(m, "questionCount", "question_count", "numQuestions"); ok && n > 0 {
		meta.QuestionCount = int(n)
	}
	meta.CreatedAt = timeField(m, "createdAt", "created_at")
	if items, ok := m["questions"].([]any); ok && len(items) > 0 {
		meta.Questions = sanitizeQuestionList(items)
	}
	if meta.QuestionCount == 0 {
		meta.QuestionCount = len(meta.Questions)
	}
	return meta, true
}

func resultFromMap(m map[string]any) (domain.SessionResult, bool) {
	r := domain.SessionResult{
		QuizID:       stringField(m, "quizId", "quiz_id"),
		StudentID:    stringField(m, "studentId", "student_id"),
		StudentName:  stringField(m, "studentName", "student_name", "name"),
		StudentEmail: stringField(m, "studentEmail", "student_email", "email"),
		QuizTitle:    stringField(m, "quizTitle", "quiz_title"),
		SubmittedAt:  timeField(m, "submittedAt", "submitted_at", "timestamp"),
	}
	if r.StudentID == "" {
		return domain.SessionResult{}, false
	}
	r.Score, _ = numberField(m, "score")
	r.TotalPoints, _ = numberField(m, "totalPoints", "total_points")
	if p, ok := numberField(m, "percentage"); ok {
		r.Percentage = p
	} else if r.TotalPoints > 0 {
		r.Percentage = roundPercent(r.Score / r.TotalPoints * 100)
	}
	if v, ok := numberField(m, "securityViolations", "security_violations", "violations"); ok {
		r.SecurityViolations = int(v)
	}
	if c, ok := boolField(m, "completed"); ok {
		r.Completed = c
	} else {
		r.Completed = true
	}

	items, _ := m["answers"].([]any)
	for _, item := range items {
		am, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := domain.AnswerRecord{
			QuestionID:       stringField(am, "questionId", "question_id"),
			SelectedOptionID: stringField(am, "selectedOptionId", "selected_option_id", "optionId"),
			TextAnswer:       stringField(am, "textAnswer", "text_answer", "text"),
		}
		if rec.QuestionID == "" {
			continue
		}
		if c, ok := boolField(am, "isCorrect", "is_correct"); ok {
			rec.IsCorrect = &c
		}
		if p, ok := numberField(am, "pointsAwarded", "points_awarded"); ok {
			rec.PointsAwarded = &p
		}
		r.Answers = append(r.Answers, rec)
	}
	return r, true
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	switch v := firstPresent(m, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	switch v := firstPresent(m, keys...).(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func boolField(m map[string]any, keys ...string) (bool, bool) {
	switch v := firstPresent(m, keys...).(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case string:
		return truthy(v)
	}
	return false, false
}

func timeField(m map[string]any, keys ...string) time.Time {
	switch v := firstPresent(m, keys...).(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	case float64:
		// epoch milliseconds
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Time{}
}
