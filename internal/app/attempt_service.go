package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

// AttemptService runs the attempt state machine and applies completion effects.
type AttemptService struct {
	quizzes   QuizRepository
	users     UserRepository
	attempts  AttemptRepository
	observers []CompletionObserver
	newID     func() string
	settings
}

func NewAttemptService(quizzes QuizRepository, users UserRepository, attempts AttemptRepository, opts ...Option) *AttemptService {
	return &AttemptService{
		quizzes:  quizzes,
		users:    users,
		attempts: attempts,
		newID:    uuid.NewString,
		settings: newSettings(opts),
	}
}

// Observe registers observers notified after each committed completion.
func (s *AttemptService) Observe(observers ...CompletionObserver) {
	s.observers = append(s.observers, observers...)
}

// AnswerResult is what a client learns after submitting an answer.
type AnswerResult struct {
	QuestionIndex int    `json:"questionIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	PointsEarned  int64  `json:"pointsEarned"`
	CorrectOption int    `json:"correctOption"`
	Explanation   string `json:"explanation,omitempty"`
}

// CompletionResult carries the finished attempt and the owner's updated stats.
type CompletionResult struct {
	Attempt domain.QuizAttempt `json:"attempt"`
	User    domain.User        `json:"user"`
	Level   gamification.Level `json:"level"`
}

// StartAttempt opens an attempt unless the user already used up the quiz.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID string) (domain.QuizAttempt, domain.PublicQuiz, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, err
	}
	if !quiz.IsActive {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, domain.ErrQuizInactive
	}

	now := s.now()
	key := s.completionKey(quiz, now)
	done, err := s.attempts.HasCompletion(ctx, userID, quizID, key)
	if err != nil {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, fmt.Errorf("check completion: %w", err)
	}
	if done {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, completionConflict(quiz)
	}

	attempt := domain.NewAttempt(s.newID(), userID, quiz, now, key)
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, domain.PublicQuiz{}, err
	}
	s.logger.Info("attempt started", "attempt_id", attempt.ID, "user_id", userID, "quiz_id", quizID)
	return attempt, quiz.Public(), nil
}

// CompletionStatus reports whether userID can no longer start quizID right now.
func (s *AttemptService) CompletionStatus(ctx context.Context, userID, quizID string) (bool, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	return s.attempts.HasCompletion(ctx, userID, quizID, s.completionKey(quiz, s.now()))
}

// SubmitAnswer scores one answer. A later submission for the same question
// replaces the earlier one.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID, attemptID string, questionIndex, selectedOption, timeSpent int) (AnswerResult, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return AnswerResult{}, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return AnswerResult{}, domain.ErrAttemptCompleted
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return AnswerResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return AnswerResult{}, domain.ErrInvalidQuestionIndex
	}
	question := quiz.Questions[questionIndex]
	answer := scoreAnswer(question, questionIndex, selectedOption, timeSpent)

	_, err = s.attempts.UpdateAttempt(ctx, attemptID, func(a *domain.QuizAttempt) error {
		if a.Status != domain.AttemptInProgress {
			return domain.ErrAttemptCompleted
		}
		for i := range a.Answers {
			if a.Answers[i].QuestionIndex == questionIndex {
				a.Answers[i] = answer
				return nil
			}
		}
		a.Answers = append(a.Answers, answer)
		return nil
	})
	if err != nil {
		return AnswerResult{}, err
	}
	return AnswerResult{
		QuestionIndex: questionIndex,
		IsCorrect:     answer.IsCorrect,
		PointsEarned:  answer.PointsEarned,
		CorrectOption: question.CorrectOption(),
		Explanation:   question.Explanation,
	}, nil
}

// CompleteAttempt finalizes the attempt and applies its points, level, streak
// and lifetime stats to the owner exactly once. The completion key is taken
// at completion time, so a daily attempt counts for the day it is finished.
func (s *AttemptService) CompleteAttempt(ctx context.Context, userID, attemptID string) (CompletionResult, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return CompletionResult{}, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return CompletionResult{}, domain.ErrAttemptCompleted
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return CompletionResult{}, err
	}

	now := s.now()
	finalize := func(a *domain.QuizAttempt) error {
		finalizeAttempt(a, now)
		a.CompletionKey = s.completionKey(quiz, now)
		return nil
	}
	finished, user, err := s.attempts.CommitCompletion(ctx, attemptID, finalize, func(done domain.QuizAttempt, u *domain.User) error {
		u.QuizzesCompleted++
		if quiz.IsDaily {
			u.DailyQuizzesCompleted++
		}
		u.CorrectAnswers += done.TotalCorrect
		u.TotalQuestions += len(done.Answers)
		u.Accuracy = gamification.ComputeAccuracy(u.CorrectAnswers, u.TotalQuestions)
		streak := gamification.ComputeStreak(u.LastActive, now, u.CurrentStreak, u.LongestStreak, s.loc)
		u.CurrentStreak = streak.Current
		u.LongestStreak = streak.Longest
		u.LastActive = now
		applyPoints(u, done.TotalPoints, domain.SourceQuiz)
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateCompletion) {
		return CompletionResult{}, completionConflict(quiz)
	}
	if err != nil {
		return CompletionResult{}, err
	}
	s.logger.Info("attempt completed",
		"attempt_id", finished.ID,
		"user_id", userID,
		"quiz_id", finished.QuizID,
		"points", finished.TotalPoints,
		"accuracy", finished.Accuracy,
	)

	for _, obs := range s.observers {
		if err := obs.AttemptCompleted(ctx, finished); err != nil {
			s.logger.Warn("completion observer failed", "attempt_id", finished.ID, "error", err)
		}
	}

	return CompletionResult{
		Attempt: finished,
		User:    user,
		Level:   gamification.ComputeLevel(user.TotalPoints),
	}, nil
}

// AttemptPage is one page of a user's completed attempts.
type AttemptPage struct {
	Attempts []domain.QuizAttempt `json:"attempts"`
	Total    int                  `json:"total"`
	Offset   int                  `json:"offset"`
	Limit    int                  `json:"limit"`
}

// History pages userID's completed attempts, newest first.
func (s *AttemptService) History(ctx context.Context, userID string, offset, limit int) (AttemptPage, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return AttemptPage{}, err
	}
	offset, limit = clampPage(offset, limit)
	attempts, total, err := s.attempts.ListCompletedAttempts(ctx, userID, offset, limit)
	if err != nil {
		return AttemptPage{}, fmt.Errorf("list attempts: %w", err)
	}
	return AttemptPage{Attempts: attempts, Total: total, Offset: offset, Limit: limit}, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID, attemptID string) (domain.QuizAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.UserID != userID {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptService) completionKey(quiz domain.Quiz, now time.Time) string {
	return domain.CompletionKey(quiz, now.In(s.loc))
}

func completionConflict(quiz domain.Quiz) error {
	if quiz.IsDaily {
		return domain.ErrDailyLimitReached
	}
	return domain.ErrAlreadyCompleted
}

// scoreAnswer grades selectedOption; an option outside the question's range is wrong.
func scoreAnswer(q domain.Question, questionIndex, selectedOption, timeSpent int) domain.Answer {
	correct := selectedOption >= 0 && selectedOption < len(q.Options) && q.Options[selectedOption].Correct
	var points int64
	if correct {
		points = q.Points
	}
	if timeSpent < 0 {
		timeSpent = 0
	}
	return domain.Answer{
		QuestionIndex:  questionIndex,
		SelectedOption: selectedOption,
		IsCorrect:      correct,
		TimeSpent:      timeSpent,
		PointsEarned:   points,
	}
}

// finalizeAttempt moves attempt to completed and derives its aggregates from
// the answers it holds.
func finalizeAttempt(attempt *domain.QuizAttempt, now time.Time) {
	attempt.Status = domain.AttemptCompleted
	attempt.CompletedAt = now
	elapsed := now.Sub(attempt.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	attempt.TotalTime = int(elapsed / time.Second)

	attempt.TotalCorrect = 0
	attempt.TotalPoints = 0
	for _, a := range attempt.Answers {
		if a.IsCorrect {
			attempt.TotalCorrect++
		}
		attempt.TotalPoints += a.PointsEarned
	}
	attempt.Accuracy = gamification.ComputeAccuracy(attempt.TotalCorrect, len(attempt.Answers))
}
