package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
)

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	tf, ok := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_timeframe", "timeframe must be all-time, daily, weekly or monthly")
		return
	}
	offset, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.Ranks.Leaderboard(r.Context(), tf, offset, limit, r.Header.Get(UserHeader))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handlers) rankHistory(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "days must be an integer")
		return
	}
	history, err := h.Ranks.RankHistory(r.Context(), userFrom(r), days)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *handlers) recomputeRanks(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ranks.RecomputeGlobalRanks(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createCompetitionRequest struct {
	Name            string    `json:"name" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	StartDate       time.Time `json:"startDate" validate:"required"`
	EndDate         time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
	PrizePool       int64     `json:"prizePool" validate:"min=0"`
	MaxParticipants int       `json:"maxParticipants" validate:"min=0"`
	PrizeTable      []float64 `json:"prizeTable" validate:"omitempty,max=10,dive,min=0,max=100"`
}

func (h *handlers) createCompetition(w http.ResponseWriter, r *http.Request) {
	var req createCompetitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Competitions.Create(r.Context(), app.CompetitionDraft{
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		PrizePool:       req.PrizePool,
		MaxParticipants: req.MaxParticipants,
		PrizeTable:      req.PrizeTable,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handlers) getCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.Competitions.Get(r.Context(), chi.URLParam(r, "competitionID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) joinCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.Competitions.AddParticipant(r.Context(), chi.URLParam(r, "competitionID"), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitionId": c.ID, "totalParticipants": c.TotalParticipants})
}

func (h *handlers) competitionLeaderboard(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	entries, total, err := h.Competitions.LeaderboardPage(r.Context(), chi.URLParam(r, "competitionID"), offset, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total, "offset": offset, "limit": limit})
}

func (h *handlers) recomputeCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.Competitions.RecomputeLeaderboard(r.Context(), chi.URLParam(r, "competitionID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitionId": c.ID, "entries": len(c.Leaderboard)})
}

func (h *handlers) competitionWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.Competitions.FinalizeWinners(r.Context(), chi.URLParam(r, "competitionID"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": winners})
}

func (h *handlers) activeCompetitions(w http.ResponseWriter, r *http.Request) {
	competitions, err := h.Competitions.Active(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitions": competitions})
}

func (h *handlers) participantStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Competitions.ParticipantStats(r.Context(), chi.URLParam(r, "competitionID"), userFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "offset must be a non-negative integer")
		return 0, 0, false
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return 0, 0, false
	}
	return offset, limit, true
}
