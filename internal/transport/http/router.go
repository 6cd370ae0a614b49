package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"quiz-arena-service/internal/app"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Services are the use cases exposed over HTTP.
type Services struct {
	Users         *app.UserService
	Quizzes       *app.QuizService
	Attempts      *app.AttemptService
	Ranks         *app.RankService
	Competitions  *app.CompetitionService
	Referrals     *app.ReferralService
	Subscriptions *app.SubscriptionService
	Checks        map[string]HealthCheck
}

type handlers struct {
	Services
	logger   *slog.Logger
	validate *validator.Validate
}

// NewRouter wires every route onto a chi router with request logging and recovery.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{Services: svc, logger: logger, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	var feed RankingFeed
	if svc.Ranks != nil {
		feed = svc.Ranks
	}
	r.Get("/ws/leaderboard", NewWSHandler(feed, logger).ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/users", h.registerUser)
		r.Post("/referrals/{code}/signup", h.referralSignUp)
		r.Get("/referrals/leaderboard", h.referralLeaderboard)
		r.Get("/quizzes", h.availableQuizzes)
		r.Get("/quizzes/{quizID}", h.getQuiz)
		r.Get("/leaderboard", h.leaderboard)
		r.Post("/leaderboard/recompute", h.recomputeRanks)
		r.Get("/channels", h.listChannels)
		r.Post("/channels", h.registerChannel)
		r.Post("/competitions", h.createCompetition)
		r.Get("/competitions/active", h.activeCompetitions)
		r.Get("/competitions/{competitionID}", h.getCompetition)
		r.Get("/competitions/{competitionID}/leaderboard", h.competitionLeaderboard)
		r.Post("/competitions/{competitionID}/leaderboard/recompute", h.recomputeCompetition)
		r.Get("/competitions/{competitionID}/winners", h.competitionWinners)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/users/me", h.profile)
			r.Delete("/users/me", h.deactivate)
			r.Get("/users/me/attempts", h.attemptHistory)
			r.Get("/users/me/competitions", h.competitionHistory)
			r.Get("/users/me/achievements", h.achievements)
			r.Get("/users/me/statistics", h.statistics)
			r.Post("/quizzes/{quizID}/attempts", h.startAttempt)
			r.Get("/quizzes/{quizID}/completion-status", h.completionStatus)
			r.Post("/attempts/{attemptID}/answers", h.submitAnswer)
			r.Post("/attempts/{attemptID}/complete", h.completeAttempt)
			r.Get("/leaderboard/history", h.rankHistory)
			r.Post("/competitions/{competitionID}/join", h.joinCompetition)
			r.Get("/competitions/{competitionID}/my-stats", h.participantStats)
			r.Get("/referrals", h.listReferrals)
			r.Get("/referrals/code", h.referralCode)
			r.Post("/subscriptions", h.recordSubscription)
		})
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	type result struct {
		Status string `json:"status"`
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]result{}
	status := http.StatusOK
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed", "name", name, "error", err)
			checks[name] = result{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = result{Status: "ok"}
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}
