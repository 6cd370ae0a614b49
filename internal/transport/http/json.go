package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"quiz-arena-service/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidQuestionIndex, http.StatusBadRequest, "invalid_question_index"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidSource, http.StatusBadRequest, "invalid_source"},
	{domain.ErrInvalidReferralCode, http.StatusBadRequest, "invalid_referral_code"},
	{domain.ErrInvalidCompetition, http.StatusBadRequest, "invalid_competition"},
	{domain.ErrInvalidChannel, http.StatusBadRequest, "invalid_channel"},
	{domain.ErrInvalidQuiz, http.StatusBadRequest, "invalid_quiz"},

	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{domain.ErrQuizNotFound, http.StatusNotFound, "quiz_not_found"},
	{domain.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
	{domain.ErrCompetitionNotFound, http.StatusNotFound, "competition_not_found"},
	{domain.ErrChannelNotFound, http.StatusNotFound, "channel_not_found"},
	{domain.ErrNotParticipant, http.StatusNotFound, "not_participant"},

	{domain.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{domain.ErrDailyLimitReached, http.StatusConflict, "daily_limit_reached"},
	{domain.ErrAttemptCompleted, http.StatusConflict, "attempt_completed"},
	{domain.ErrDuplicateCompletion, http.StatusConflict, "already_completed"},
	{domain.ErrQuizInactive, http.StatusConflict, "quiz_inactive"},
	{domain.ErrCompetitionFull, http.StatusConflict, "competition_full"},
	{domain.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{domain.ErrNotInWindow, http.StatusConflict, "competition_not_running"},
	{domain.ErrNotEnded, http.StatusConflict, "competition_not_ended"},
	{domain.ErrUserExists, http.StatusConflict, "user_exists"},
	{domain.ErrCompetitionExists, http.StatusConflict, "competition_exists"},
	{domain.ErrAlreadyReferred, http.StatusConflict, "already_referred"},
	{domain.ErrReferralCodeTaken, http.StatusConflict, "referral_code_taken"},
	{domain.ErrChannelExists, http.StatusConflict, "channel_exists"},
}

// writeDomainError maps service errors to status codes; unknown errors are logged and hidden.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.code, e.err.Error())
			return
		}
	}
	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

// writeValidationError lists the failing fields of a rejected request body.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "invalid fields: "+strings.Join(fields, ", "))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
