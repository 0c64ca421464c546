package domain

// Stage is a session lifecycle state.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageRegistering Stage = "registering"
	StageInProgress  Stage = "in-progress"
	StageSubmitting  Stage = "submitting"
	StageSubmitted   Stage = "submitted"
	StageError       Stage = "error"
)

// SubmitReason records which trigger ended a session.
type SubmitReason string

const (
	SubmitManual     SubmitReason = "manual"
	SubmitTimeout    SubmitReason = "timeout"
	SubmitViolations SubmitReason = "violations"
)

// Snapshot is the UI-facing view of a session.
type Snapshot struct {
	QuizID          string         `json:"quizId"`
	Stage           Stage          `json:"stage"`
	TimeLeft        int            `json:"timeLeft"`
	CurrentIndex    int            `json:"currentIndex"`
	QuestionCount   int            `json:"questionCount"`
	CurrentQuestion *Question      `json:"currentQuestion,omitempty"`
	Answers         []AnswerRecord `json:"answers"`
	Violations      int            `json:"violations"`
	Degraded        bool           `json:"degraded"`
	QuestionSource  string         `json:"questionSource,omitempty"`
	Error           string         `json:"error,omitempty"`
	ErrorKind       string         `json:"errorKind,omitempty"`
}

// EventType tags session events delivered to subscribers.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventWarning  EventType = "warning"
	EventConfirm  EventType = "confirm"
	EventResult   EventType = "result"
)

// Event is pushed to session subscribers. Exactly one payload field is set
// besides Snapshot, which is always present.
type Event struct {
	Type       EventType      `json:"type"`
	Snapshot   Snapshot       `json:"snapshot"`
	Violations int            `json:"violations,omitempty"`
	Unanswered []string       `json:"unanswered,omitempty"`
	Result     *SessionResult `json:"result,omitempty"`
}
