package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
)

func (h *handlers) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.Quizzes.Public(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// availableQuizzes lists active quizzes; type=daily keeps only daily ones.
func (h *handlers) availableQuizzes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.QuizFilter{Difficulty: q.Get("difficulty")}
	if c := q.Get("category"); c != "all" {
		filter.Category = c
	}
	switch q.Get("type") {
	case "", "all":
	case "daily":
		filter.DailyOnly = true
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "type must be all or daily")
		return
	}
	quizzes, err := h.Quizzes.Available(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes, "count": len(quizzes)})
}

func (h *handlers) startAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, quiz, err := h.Attempts.StartAttempt(r.Context(), userFrom(r), chi.URLParam(r, "quizID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": attempt, "quiz": quiz})
}

func (h *handlers) completionStatus(w http.ResponseWriter, r *http.Request) {
	done, err := h.Attempts.CompletionStatus(r.Context(), userFrom(r), chi.URLParam(r, "quizID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": done})
}

type answerRequest struct {
	QuestionIndex  *int `json:"questionIndex" validate:"required,min=0"`
	SelectedOption *int `json:"selectedOption" validate:"required,min=0"`
	TimeSpent      int  `json:"timeSpent" validate:"min=0"`
}

func (h *handlers) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Attempts.SubmitAnswer(r.Context(), userFrom(r), chi.URLParam(r, "attemptID"),
		*req.QuestionIndex, *req.SelectedOption, req.TimeSpent)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) completeAttempt(w http.ResponseWriter, r *http.Request) {
	res, err := h.Attempts.CompleteAttempt(r.Context(), userFrom(r), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) attemptHistory(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.Attempts.History(r.Context(), userFrom(r), offset, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

const recentCompetitions = 5

func (h *handlers) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Attempts.Statistics(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	history, err := h.Competitions.History(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		app.UserStatistics
		RecentCompetitions []app.CompetitionRecord `json:"recentCompetitions"`
	}{stats, history.Competitions[:min(recentCompetitions, len(history.Competitions))]})
}
