package domain

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single-choice"
	QuestionTrueFalse    QuestionType = "true-false"
	QuestionShortText    QuestionType = "short-text"
	QuestionLongText     QuestionType = "long-text"
)

// QuestionTypes lists every supported type in synthesis order.
var QuestionTypes = []QuestionType{
	QuestionSingleChoice,
	QuestionTrueFalse,
	QuestionShortText,
	QuestionLongText,
}

// IsChoice reports whether answers to this type select an option.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionTrueFalse
}

// Canonical option ids for true-false questions.
const (
	OptionTrue  = "true"
	OptionFalse = "false"
)

// Option represents a possible answer for a choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question models a single quiz question.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []Option     `json:"options,omitempty"` // choice types only
	Points   float64      `json:"points"`
	Required bool         `json:"required"`
}

// CorrectOption returns the option flagged correct, if any.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// QuizMeta describes a quiz. It is immutable once a session starts.
type QuizMeta struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationSeconds int        `json:"durationSeconds"`
	QuestionCount   int        `json:"questionCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	Questions       []Question `json:"questions,omitempty"` // embedded copy, may be empty
}

// AnswerRecord holds a student's answer for one question. Exactly one of
// SelectedOptionID and TextAnswer is populated, depending on the question type.
type AnswerRecord struct {
	QuestionID       string   `json:"questionId"`
	SelectedOptionID string   `json:"selectedOptionId,omitempty"`
	TextAnswer       string   `json:"textAnswer,omitempty"`
	IsCorrect        *bool    `json:"isCorrect,omitempty"`
	PointsAwarded    *float64 `json:"pointsAwarded,omitempty"`
}

// Answered reports whether the record carries a value.
func (a AnswerRecord) Answered() bool {
	return a.SelectedOptionID != "" || a.TextAnswer != ""
}

// SessionResult is the scored outcome of one session. At most one is
// logically current per (QuizID, StudentID).
type SessionResult struct {
	QuizID             string         `json:"quizId"`
	StudentID          string         `json:"studentId"`
	StudentName        string         `json:"studentName"`
	StudentEmail       string         `json:"studentEmail,omitempty"`
	Score              float64        `json:"score"`
	TotalPoints        float64        `json:"totalPoints"`
	Percentage         float64        `json:"percentage"`
	Answers            []AnswerRecord `json:"answers"`
	SubmittedAt        time.Time      `json:"submittedAt"`
	SecurityViolations int            `json:"securityViolations"`
	Completed          bool           `json:"completed"`
	QuizTitle          string         `json:"quizTitle,omitempty"`
}

// Student is the identity collected during registration.
type Student struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SubmissionNotice is handed to the notification collaborator after a
// successful remote replication.
type SubmissionNotice struct {
	QuizID       string `json:"quizId"`
	QuizTitle    string `json:"quizTitle"`
	StudentName  string `json:"studentName"`
	StudentID    string `json:"studentId"`
	StudentEmail string `json:"studentEmail"`
}

// FocusKind identifies the browser signal behind a FocusEvent.
type FocusKind string

const (
	FocusVisibility FocusKind = "visibility"
	FocusWindow     FocusKind = "focus"
	FocusFullscreen FocusKind = "fullscreen"
)

// FocusEvent is one browser visibility, focus or fullscreen transition.
// Away is true for hidden/blurred; for fullscreen it is unused.
type FocusEvent struct {
	Kind FocusKind
	Away bool
}
