package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/domain"
)

// ResultsHandler serves merged quiz results as JSON.
type ResultsHandler struct {
	service *app.ExamService
}

func NewResultsHandler(service *app.ExamService) *ResultsHandler {
	return &ResultsHandler{service: service}
}

type resultsResponse struct {
	QuizID  string                 `json:"quizId"`
	Count   int                    `json:"count"`
	Results []domain.SessionResult `json:"results"`
}

// ServeHTTP handles GET /results?quizId=...[&order=recent].
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	load := h.service.LoadResults
	if r.URL.Query().Get("order") == "recent" {
		load = h.service.LoadRecent
	}
	results, err := load(r.Context(), quizID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("results %s: %v", quizID, err)
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []domain.SessionResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resultsResponse{QuizID: quizID, Count: len(results), Results: results}); err != nil {
		log.Printf("results %s: encode: %v", quizID, err)
	}
}
