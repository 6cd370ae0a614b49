package memory

import (
	"context"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-arena-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quiz content with TTL to avoid repeated backing store
// hits. Running statistics are stripped before caching.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		loaded, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz := loaded.Content()
		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: r.clock().Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops a cached quiz so the next read goes to the loader.
func (r *QuizRepository) Invalidate(_ context.Context, quizID string) error {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
	return nil
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// QuizCatalog is a loader backed by an in-memory map that also keeps quiz
// statistics. It serves tests, demos and deployments without Postgres.
type QuizCatalog struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizCatalog(quizzes ...domain.Quiz) *QuizCatalog {
	c := &QuizCatalog{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		c.Put(q)
	}
	return c
}

// Put stores quiz with its totals re-derived.
func (c *QuizCatalog) Put(quiz domain.Quiz) {
	quiz.Questions = append([]domain.Question(nil), quiz.Questions...)
	quiz.RecomputeTotals()
	c.mu.Lock()
	c.quizzes[quiz.ID] = quiz
	c.mu.Unlock()
}

// SaveQuiz stores quiz, keeping the statistics already recorded for its id.
func (c *QuizCatalog) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	quiz.Questions = append([]domain.Question(nil), quiz.Questions...)
	quiz.RecomputeTotals()
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.quizzes[quiz.ID]
	quiz.Attempts, quiz.AverageScore = prev.Attempts, prev.AverageScore
	c.quizzes[quiz.ID] = quiz
	return nil
}

// ListQuizzes returns the quizzes passing filter, newest first.
func (c *QuizCatalog) ListQuizzes(_ context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	c.mu.RLock()
	out := make([]domain.Quiz, 0, len(c.quizzes))
	for _, q := range c.quizzes {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.Quiz) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (c *QuizCatalog) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if quiz, ok := c.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// RecordResult bumps the attempt count and folds accuracy into the running average.
func (c *QuizCatalog) RecordResult(_ context.Context, quizID string, accuracy float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.AverageScore = (quiz.AverageScore*float64(quiz.Attempts) + accuracy) / float64(quiz.Attempts+1)
	quiz.Attempts++
	c.quizzes[quizID] = quiz
	return nil
}
