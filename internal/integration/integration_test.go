package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/postgres"
	infraredis "quiz-arena-service/internal/infra/redis"
)

type stack struct {
	store    *postgres.Store
	quizzes  *postgres.QuizStore
	rankings *infraredis.RankingCache
	users    *app.UserService
	attempts *app.AttemptService
	ranks    *app.RankService
	ledger   *app.Ledger
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.Open(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	s := &stack{
		store:    postgres.NewStore(db),
		quizzes:  postgres.NewQuizStore(pool),
		rankings: infraredis.NewRankingCache(redisClient, time.Hour),
	}
	for _, q := range []domain.Quiz{sampleQuiz(), dailyQuiz()} {
		if err := s.quizzes.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("seed quiz: %v", err)
		}
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, s.quizzes, 5*time.Minute, nil)

	s.users = app.NewUserService(s.store)
	s.attempts = app.NewAttemptService(quizRepo, s.store, s.store)
	s.attempts.Observe(app.RecordQuizStats(s.quizzes))
	s.ranks = app.NewRankService(s.store, app.RankConfig{Workers: 4, Cache: s.rankings})
	s.ledger = app.NewLedger(s.store)
	return s
}

func TestQuizCompletionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	for _, reg := range []app.Registration{{ID: "u1", DisplayName: "Alice"}, {ID: "u2", DisplayName: "Bob"}} {
		if _, err := s.users.Register(ctx, reg); err != nil {
			t.Fatalf("register %s: %v", reg.ID, err)
		}
	}

	play(t, ctx, s.attempts, "u1", "quiz-1", 0, 0) // 20 points, 50%
	play(t, ctx, s.attempts, "u2", "quiz-1", 1, 0) // 30 points, 100%

	u2, err := s.store.GetUser(ctx, "u2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u2.TotalPoints != 30 || u2.DailyPoints != 30 || u2.QuizzesCompleted != 1 || u2.Accuracy != 100 || u2.CurrentStreak != 1 {
		t.Fatalf("unexpected persisted user %+v", u2)
	}

	if _, _, err := s.attempts.StartAttempt(ctx, "u2", "quiz-1"); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}

	quiz, err := s.quizzes.LoadQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if quiz.Attempts != 2 || quiz.AverageScore != 75 {
		t.Fatalf("expected quiz stats 2/75, got %d/%v", quiz.Attempts, quiz.AverageScore)
	}

	res, err := s.ranks.RecomputeGlobalRanks(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if res.Updated != 2 {
		t.Fatalf("expected 2 rank writes, got %+v", res)
	}
	top, err := s.rankings.Top(ctx, domain.TimeframeAllTime, 10)
	if err != nil {
		t.Fatalf("cached ranking: %v", err)
	}
	if len(top.Entries) != 2 || top.Entries[0].UserID != "u2" {
		t.Fatalf("expected bob leading the cached ranking, got %+v", top.Entries)
	}

	n, err := s.ledger.ResetDaily(ctx)
	if err != nil || n != 2 {
		t.Fatalf("reset daily: n=%d err=%v", n, err)
	}
	u2, _ = s.store.GetUser(ctx, "u2")
	if u2.DailyPoints != 0 || u2.TotalPoints != 30 || u2.Rank != 1 || len(u2.RankHistory) != 1 {
		t.Fatalf("unexpected user after reset %+v", u2)
	}
}

func TestConcurrentCompletionAppliesOnce(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)
	if _, err := s.users.Register(ctx, app.Registration{ID: "u1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Two attempts opened before either completes race for the same daily slot.
	ids := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		attempt, _, err := s.attempts.StartAttempt(ctx, "u1", "daily-1")
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if _, err := s.attempts.SubmitAnswer(ctx, "u1", attempt.ID, 0, 0, 3); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids = append(ids, attempt.ID)
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.attempts.CompleteAttempt(ctx, "u1", id)
		}()
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDailyLimitReached):
			limited++
		default:
			t.Fatalf("unexpected completion error: %v", err)
		}
	}
	if ok != 1 || limited != 1 {
		t.Fatalf("expected one success and one daily limit, got ok=%d limited=%d", ok, limited)
	}
	u, _ := s.store.GetUser(ctx, "u1")
	if u.TotalPoints != 10 || u.QuizzesCompleted != 1 {
		t.Fatalf("expected points applied once, got %+v", u)
	}
}

func play(t *testing.T, ctx context.Context, svc *app.AttemptService, userID, quizID string, choices ...int) {
	t.Helper()
	attempt, _, err := svc.StartAttempt(ctx, userID, quizID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i, choice := range choices {
		if _, err := svc.SubmitAnswer(ctx, userID, attempt.ID, i, choice, 4); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if _, err := svc.CompleteAttempt(ctx, userID, attempt.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.NewQuiz("quiz-1", "Capitals", []domain.Question{
		{Text: "Capital of France?", Options: []domain.Option{{Text: "Lyon"}, {Text: "Paris", Correct: true}}},
		{Text: "Capital of Japan?", Options: []domain.Option{{Text: "Tokyo", Correct: true}, {Text: "Osaka"}}, Points: 20},
	})
}

func dailyQuiz() domain.Quiz {
	q := domain.NewQuiz("daily-1", "Daily warmup", []domain.Question{
		{Text: "1 + 1?", Options: []domain.Option{{Text: "2", Correct: true}, {Text: "3"}}},
	})
	q.IsDaily = true
	return q
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
