package app

// QuizIndexKey holds the local index of known quizzes.
const QuizIndexKey = "quizzes"

// QuestionKeys lists every key questions for a quiz have been stored under,
// in probe order. The first entry is the current layout.
func QuestionKeys(quizID string) []string {
	return []string{
		"quiz:" + quizID + ":questions",
		"quiz_questions_" + quizID,
		"questions_" + quizID,
	}
}

// ResultKey is where the engine upserts results for a quiz.
func ResultKey(quizID string) string {
	return "quiz:" + quizID + ":results"
}

// ResultKeys lists every key results for a quiz may be found under. Only the
// first is written; the rest are read for older records.
func ResultKeys(quizID string) []string {
	return []string{
		ResultKey(quizID),
		"quiz_results_" + quizID,
	}
}
