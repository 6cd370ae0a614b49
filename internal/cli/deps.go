package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/config"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
	"quiz-arena-service/internal/infra/postgres"
	infraredis "quiz-arena-service/internal/infra/redis"
	transport "quiz-arena-service/internal/transport/http"
)

type repositories interface {
	app.UserRepository
	app.AttemptRepository
	app.CompetitionRepository
	app.ReferralRepository
	app.ChannelRepository
}

// quizSource is the backing store behind the quiz cache.
type quizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	app.QuizLister
	app.QuizWriter
	app.QuizStatsRecorder
}

// deps holds the storage backends chosen by config and the services built on them.
type deps struct {
	cfg    config.Config
	loc    *time.Location
	logger *slog.Logger

	store    repositories
	source   quizSource
	quizzes  app.QuizRepository
	cache    app.QuizInvalidator
	rankings *infraredis.RankingCache
	checks   map[string]transport.HealthCheck
	closers  []func()

	users         *app.UserService
	catalog       *app.QuizService
	attempts      *app.AttemptService
	ledger        *app.Ledger
	ranks         *app.RankService
	competitions  *app.CompetitionService
	referrals     *app.ReferralService
	subscriptions *app.SubscriptionService
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, loc: loc, logger: logger, checks: map[string]transport.HealthCheck{}}
	if err := d.openStorage(ctx); err != nil {
		d.close()
		return nil, err
	}
	d.openCache()
	d.buildServices()
	return d, nil
}

func (d *deps) openStorage(ctx context.Context) error {
	if d.cfg.Postgres.URL == "" {
		d.logger.Warn("postgres not configured, using in-memory storage")
		d.store = memory.NewStore()
		d.source = memory.NewQuizCatalog(sampleQuizzes()...)
		return nil
	}

	db := postgres.Open(d.cfg.Postgres.URL)
	d.closers = append(d.closers, func() { _ = db.Close() })
	pool, err := pgxpool.Connect(ctx, d.cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	d.closers = append(d.closers, pool.Close)

	d.store = postgres.NewStore(db)
	d.source = postgres.NewQuizStore(pool)
	d.checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	return nil
}

func (d *deps) openCache() {
	quizTTL := config.TTLDuration(d.cfg.Quiz.TTL, 10*time.Minute)
	if d.cfg.Redis.Addr == "" {
		cache := memory.NewQuizRepository(d.source, quizTTL)
		d.quizzes, d.cache = cache, cache
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     d.cfg.Redis.Addr,
		Password: d.cfg.Redis.Password,
		DB:       d.cfg.Redis.DB,
	})
	d.closers = append(d.closers, func() { _ = client.Close() })
	cache := infraredis.NewQuizRepository(client, d.source, quizTTL, d.logger)
	d.quizzes, d.cache = cache, cache
	d.rankings = infraredis.NewRankingCache(client, config.TTLDuration(d.cfg.Redis.TTL, 10*time.Minute))
	d.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

func (d *deps) buildServices() {
	opts := []app.Option{app.WithLogger(d.logger), app.WithLocation(d.loc)}
	rankCfg := app.RankConfig{
		Workers:      d.cfg.Ranking.Workers,
		PublishLimit: d.cfg.Ranking.PublishLimit,
		Board:        app.NewBoard(),
	}
	if d.rankings != nil {
		rankCfg.Cache = d.rankings
	}

	d.users = app.NewUserService(d.store, opts...)
	d.catalog = app.NewQuizService(d.quizzes, d.source, d.source, opts...)
	d.catalog.InvalidateOnImport(d.cache)
	d.attempts = app.NewAttemptService(d.quizzes, d.store, d.store, opts...)
	d.ledger = app.NewLedger(d.store, opts...)
	d.ranks = app.NewRankService(d.store, rankCfg, opts...)
	d.competitions = app.NewCompetitionService(d.store, d.store, opts...)
	d.referrals = app.NewReferralService(d.store, d.store, d.cfg.Gamification.ReferralReward, opts...)
	d.subscriptions = app.NewSubscriptionService(d.store, d.store, opts...)

	// Quiz statistics live outside the cached content, so completions never
	// invalidate the quiz cache.
	d.attempts.Observe(app.RecordQuizStats(d.source), d.competitions)
	if d.cfg.Gamification.RecomputeOnCompletion {
		d.attempts.Observe(d.ranks)
	}
}

func (d *deps) services() transport.Services {
	return transport.Services{
		Users:         d.users,
		Quizzes:       d.catalog,
		Attempts:      d.attempts,
		Ranks:         d.ranks,
		Competitions:  d.competitions,
		Referrals:     d.referrals,
		Subscriptions: d.subscriptions,
		Checks:        d.checks,
	}
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// runGroup runs fns until the first one fails or ctx is done.
func runGroup(ctx context.Context, fns ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(ctx) })
	}
	return g.Wait()
}

// sampleQuizzes seeds the in-memory catalog when no database is configured.
func sampleQuizzes() []domain.Quiz {
	capitals := domain.NewQuiz("quiz-1", "World capitals", []domain.Question{
		{
			Text:        "What is the capital of Australia?",
			Options:     []domain.Option{{Text: "Sydney"}, {Text: "Canberra", Correct: true}, {Text: "Melbourne"}},
			Explanation: "Canberra was purpose-built as the capital in 1913.",
		},
		{
			Text:    "What is the capital of Canada?",
			Options: []domain.Option{{Text: "Toronto"}, {Text: "Ottawa", Correct: true}, {Text: "Vancouver"}},
		},
	})
	capitals.Category = "geography"

	daily := domain.NewQuiz("daily-1", "Daily warmup", []domain.Question{
		{Text: "What is 7 × 8?", Options: []domain.Option{{Text: "54"}, {Text: "56", Correct: true}, {Text: "64"}}},
	})
	daily.IsDaily = true

	return []domain.Quiz{capitals, daily}
}
