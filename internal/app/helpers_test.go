package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
)

// fakeClock is a settable clock shared by the services under test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store    *memory.Store
	catalog  *memory.QuizCatalog
	clock    *fakeClock
	attempts *app.AttemptService
	ledger   *app.Ledger
	ranks    *app.RankService
	comps    *app.CompetitionService
	board    *app.Board
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	catalog := memory.NewQuizCatalog(regularQuiz(), dailyQuiz(), competitionQuiz())
	quizzes := memory.NewQuizRepository(catalog, time.Minute)
	opts := []app.Option{app.WithClock(clock.Now)}
	board := app.NewBoard()

	f := &fixture{
		store:    store,
		catalog:  catalog,
		clock:    clock,
		attempts: app.NewAttemptService(quizzes, store, store, opts...),
		ledger:   app.NewLedger(store, opts...),
		ranks:    app.NewRankService(store, app.RankConfig{Workers: 4, Board: board}, opts...),
		comps:    app.NewCompetitionService(store, store, opts...),
		board:    board,
	}
	f.attempts.Observe(app.RecordQuizStats(catalog), f.comps)
	return f
}

func (f *fixture) addUser(t *testing.T, id string) domain.User {
	t.Helper()
	u := domain.NewUser(id, id, id, f.clock.Now())
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func (f *fixture) setUser(t *testing.T, id string, mutate func(*domain.User)) {
	t.Helper()
	_, err := f.store.UpdateUser(context.Background(), id, func(u *domain.User) error {
		mutate(u)
		return nil
	})
	if err != nil {
		t.Fatalf("update user %s: %v", id, err)
	}
}

// play runs a full attempt answering every question with the given option indexes.
func (f *fixture) play(t *testing.T, userID, quizID string, choices ...int) app.CompletionResult {
	t.Helper()
	ctx := context.Background()
	attempt, _, err := f.attempts.StartAttempt(ctx, userID, quizID)
	if err != nil {
		t.Fatalf("start %s/%s: %v", userID, quizID, err)
	}
	for i, choice := range choices {
		if _, err := f.attempts.SubmitAnswer(ctx, userID, attempt.ID, i, choice, 5); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	res, err := f.attempts.CompleteAttempt(ctx, userID, attempt.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return res
}

func regularQuiz() domain.Quiz {
	return domain.NewQuiz("quiz-1", "Capitals", []domain.Question{
		{
			Text:        "Capital of France?",
			Options:     []domain.Option{{Text: "Lyon"}, {Text: "Paris", Correct: true}, {Text: "Nice"}},
			Explanation: "Paris has been the capital since 987.",
		},
		{
			Text:    "Capital of Japan?",
			Options: []domain.Option{{Text: "Tokyo", Correct: true}, {Text: "Osaka"}},
			Points:  20,
		},
	})
}

func dailyQuiz() domain.Quiz {
	q := domain.NewQuiz("daily-1", "Daily warmup", []domain.Question{
		{Text: "1 + 1?", Options: []domain.Option{{Text: "2", Correct: true}, {Text: "3"}}},
	})
	q.IsDaily = true
	return q
}

func competitionQuiz() domain.Quiz {
	q := domain.NewQuiz("comp-quiz", "Cup round", []domain.Question{
		{Text: "2 × 5?", Options: []domain.Option{{Text: "10", Correct: true}, {Text: "12"}}},
		{Text: "9 − 4?", Options: []domain.Option{{Text: "4"}, {Text: "5", Correct: true}}},
	})
	q.CompetitionID = "cup"
	return q
}
