package app

import (
	"context"
	"fmt"

	"quiz-arena-service/internal/domain"
)

const availableQuizLimit = 50

// QuizService serves the client-facing quiz catalog and imports quiz content.
type QuizService struct {
	quizzes QuizRepository
	lister  QuizLister
	writer  QuizWriter
	caches  []QuizInvalidator
	settings
}

func NewQuizService(quizzes QuizRepository, lister QuizLister, writer QuizWriter, opts ...Option) *QuizService {
	return &QuizService{quizzes: quizzes, lister: lister, writer: writer, settings: newSettings(opts)}
}

// InvalidateOnImport registers caches dropped for every imported quiz.
func (s *QuizService) InvalidateOnImport(caches ...QuizInvalidator) {
	s.caches = append(s.caches, caches...)
}

// Public returns the client-safe view of an active quiz.
func (s *QuizService) Public(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	if !quiz.IsActive {
		return domain.PublicQuiz{}, domain.ErrQuizInactive
	}
	return quiz.Public(), nil
}

// Available lists active quizzes passing filter, newest first, at most 50.
func (s *QuizService) Available(ctx context.Context, filter domain.QuizFilter) ([]domain.QuizSummary, error) {
	if filter.Limit <= 0 || filter.Limit > availableQuizLimit {
		filter.Limit = availableQuizLimit
	}
	quizzes, err := s.lister.ListQuizzes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, q.Summary())
	}
	return out, nil
}

// Import validates and upserts quizzes in order, stopping at the first
// failure. It returns how many were saved. Cached copies are dropped after
// each save; a failed drop is logged and only delays the update until expiry.
func (s *QuizService) Import(ctx context.Context, quizzes []domain.Quiz) (int, error) {
	saved := 0
	for _, quiz := range quizzes {
		if err := quiz.Validate(); err != nil {
			return saved, fmt.Errorf("quiz %q: %w", quiz.ID, err)
		}
		quiz.Questions = append([]domain.Question(nil), quiz.Questions...)
		quiz.RecomputeTotals()
		if quiz.CreatedAt.IsZero() {
			quiz.CreatedAt = s.now()
		}
		if err := s.writer.SaveQuiz(ctx, quiz); err != nil {
			return saved, err
		}
		saved++
		for _, c := range s.caches {
			if err := c.Invalidate(ctx, quiz.ID); err != nil {
				s.logger.Warn("quiz cache invalidation failed", "quiz_id", quiz.ID, "error", err)
			}
		}
		s.logger.Info("quiz imported", "quiz_id", quiz.ID, "questions", quiz.TotalQuestions, "daily", quiz.IsDaily)
	}
	return saved, nil
}
