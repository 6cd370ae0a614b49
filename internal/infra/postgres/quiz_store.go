package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-arena-service/internal/domain"
)

// QuizStore keeps quiz documents as JSONB and their play statistics as columns.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		raw      []byte
		quiz     domain.Quiz
		isActive bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, is_active, attempts, average_score FROM quizzes WHERE id=$1`, quizID,
	).Scan(&raw, &isActive, &quiz.Attempts, &quiz.AverageScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	attempts, avg := quiz.Attempts, quiz.AverageScore
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.IsActive = isActive
	quiz.Attempts, quiz.AverageScore = attempts, avg
	quiz.RecomputeTotals()
	return quiz, nil
}

// ListQuizzes returns active quizzes passing filter, newest first, with their
// statistics. The limit defaults to 50.
func (s *QuizStore) ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, data, attempts, average_score FROM quizzes
WHERE is_active
  AND (NOT $1 OR COALESCE((data->>'isDaily')::boolean, false))
  AND ($2 = '' OR data->>'category' = $2)
  AND ($3 = '' OR data->>'difficulty' = $3)
ORDER BY created_at DESC, id ASC
LIMIT $4`, filter.DailyOnly, filter.Category, filter.Difficulty, limit)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		var (
			id       string
			raw      []byte
			attempts int64
			avg      float64
		)
		if err := rows.Scan(&id, &raw, &attempts, &avg); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz %s: %w", id, err)
		}
		quiz.ID, quiz.IsActive = id, true
		quiz.Attempts, quiz.AverageScore = attempts, avg
		quiz.RecomputeTotals()
		out = append(out, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return out, nil
}

// SaveQuiz upserts the quiz document; statistics columns are left untouched.
func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	quiz.RecomputeTotals()
	raw, err := json.Marshal(quiz.Content())
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quizzes (id, data, is_active, created_at)
VALUES ($1, $2, $3, COALESCE($4, now()))
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, is_active = EXCLUDED.is_active`,
		quiz.ID, string(raw), quiz.IsActive, createdAt(quiz))
	if err != nil {
		return fmt.Errorf("save quiz %s: %w", quiz.ID, err)
	}
	return nil
}

// createdAt returns nil for a zero time so the column default applies.
func createdAt(quiz domain.Quiz) *time.Time {
	if quiz.CreatedAt.IsZero() {
		return nil
	}
	t := quiz.CreatedAt
	return &t
}

// RecordResult bumps the attempt count and folds accuracy into the running average atomically.
func (s *QuizStore) RecordResult(ctx context.Context, quizID string, accuracy float64) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE quizzes
SET average_score = (average_score * attempts + $2) / (attempts + 1),
    attempts = attempts + 1
WHERE id = $1`, quizID, accuracy)
	if err != nil {
		return fmt.Errorf("record quiz result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
