package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/gamification"
)

type registerRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Username    string `json:"username" validate:"omitempty,max=64"`
}

func (req registerRequest) registration() app.Registration {
	return app.Registration{ID: req.ID, DisplayName: req.DisplayName, Username: req.Username}
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := readJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func (h *handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.Users.Register(r.Context(), req.registration())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Users.Profile(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Deactivate(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handlers) referralCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.Referrals.IssueCode(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *handlers) listReferrals(w http.ResponseWriter, r *http.Request) {
	referrals, err := h.Referrals.Referrals(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"referrals": referrals, "total": len(referrals)})
}

func (h *handlers) referralSignUp(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.Referrals.SignUp(r.Context(), chi.URLParam(r, "code"), req.registration())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type subscriptionRequest struct {
	ChannelID string `json:"channelId" validate:"required,max=128"`
}

// recordSubscription rewards an already verified subscription; the reward
// comes from the channel registry.
func (h *handlers) recordSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	earned, err := h.Subscriptions.RecordSubscription(r.Context(), userFrom(r), req.ChannelID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channelId": req.ChannelID, "pointsEarned": earned})
}

type channelRequest struct {
	ChannelID       string `json:"channelId" validate:"required,max=128"`
	Username        string `json:"channelUsername" validate:"max=64"`
	Title           string `json:"channelTitle" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	MemberCount     int    `json:"memberCount" validate:"min=0"`
	PointsReward    *int64 `json:"pointsReward" validate:"omitempty,min=0"`
	RequiredForQuiz bool   `json:"requiredForQuiz"`
}

func (h *handlers) registerChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !h.decode(w, r, &req) {
		return
	}
	channel, err := h.Subscriptions.RegisterChannel(r.Context(), app.ChannelDraft{
		ID:              req.ChannelID,
		Username:        req.Username,
		Title:           req.Title,
		Description:     req.Description,
		MemberCount:     req.MemberCount,
		Reward:          req.PointsReward,
		RequiredForQuiz: req.RequiredForQuiz,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (h *handlers) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Subscriptions.Channels(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *handlers) referralLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}
	board, err := h.Referrals.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": board})
}

func (h *handlers) competitionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Competitions.History(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handlers) achievements(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Users.Profile(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	history, err := h.Competitions.History(r.Context(), profile.User.ID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	list, summary := gamification.Achievements(profile.User, history.Total)
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list, "stats": summary})
}
