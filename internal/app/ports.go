package app

import (
	"context"

	"quiz-arena-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizLister lists quizzes straight from the backing store, statistics included.
type QuizLister interface {
	ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error)
}

// QuizWriter upserts quiz documents into the backing store.
type QuizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizInvalidator drops cached copies of a quiz.
type QuizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// QuizStatsRecorder folds a finished attempt into the quiz's running statistics.
type QuizStatsRecorder interface {
	RecordResult(ctx context.Context, quizID string, accuracy float64) error
}

// UserRepository stores users. UpdateUser applies mutate atomically to a single
// user; an error returned by mutate aborts the write and is returned unchanged.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (domain.User, error)
	UpdateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error)
	ListActiveUsers(ctx context.Context) ([]domain.User, error)
	ResetPoints(ctx context.Context, bucket domain.PointBucket) (int64, error)
}

// AttemptRepository stores attempts.
//
// CommitCompletion is the only way an attempt reaches the completed state. It
// locks the stored attempt, requires it to still be in progress (otherwise
// domain.ErrAttemptCompleted) and runs finalize on the stored copy, so the
// aggregates cover every answer accepted before the lock. It then rejects a
// second completed attempt for the same (user, quiz, completion key) with
// domain.ErrDuplicateCompletion, applies mutate to the owner and stores both,
// all in one atomic step. Errors from either callback abort the commit.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error)
	UpdateAttempt(ctx context.Context, attemptID string, mutate func(*domain.QuizAttempt) error) (domain.QuizAttempt, error)
	HasCompletion(ctx context.Context, userID, quizID, completionKey string) (bool, error)
	CommitCompletion(ctx context.Context, attemptID string, finalize func(*domain.QuizAttempt) error, mutate func(domain.QuizAttempt, *domain.User) error) (domain.QuizAttempt, domain.User, error)
	// ListCompletedAttempts pages a user's completed attempts, newest first,
	// and reports the total count.
	ListCompletedAttempts(ctx context.Context, userID string, offset, limit int) ([]domain.QuizAttempt, int, error)
}

// CompetitionRepository stores competitions; UpdateCompetition follows UpdateUser semantics.
type CompetitionRepository interface {
	CreateCompetition(ctx context.Context, competition domain.Competition) error
	GetCompetition(ctx context.Context, competitionID string) (domain.Competition, error)
	UpdateCompetition(ctx context.Context, competitionID string, mutate func(*domain.Competition) error) (domain.Competition, error)
	// ListCompetitions returns every competition ordered by start date.
	ListCompetitions(ctx context.Context) ([]domain.Competition, error)
}

// ReferralRepository stores referrals.
//
// CreateReferredUser inserts user and referral and applies reward to the
// referrer in one atomic step. A second referral of the same user fails with
// domain.ErrAlreadyReferred and an existing user id with domain.ErrUserExists;
// nothing is written in either case.
type ReferralRepository interface {
	CreateReferredUser(ctx context.Context, user domain.User, referral domain.Referral, reward func(*domain.User) error) (domain.User, error)
	ListReferrals(ctx context.Context, referrerID string) ([]domain.Referral, error)
}

// ChannelRepository stores the channels a subscription can be rewarded for.
type ChannelRepository interface {
	CreateChannel(ctx context.Context, channel domain.Channel) error
	GetChannel(ctx context.Context, channelID string) (domain.Channel, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)
}

// RankingCache mirrors published rankings into a shared cache.
type RankingCache interface {
	StoreRanking(ctx context.Context, ranking domain.Ranking) error
}

// RankingReader is implemented by caches that can hand a stored ranking back.
// Version grows with every store; zero means nothing was stored yet.
type RankingReader interface {
	Top(ctx context.Context, tf domain.Timeframe, n int) (domain.Ranking, error)
	Version(ctx context.Context, tf domain.Timeframe) (int64, error)
}

// CompletionObserver is notified after an attempt was committed.
type CompletionObserver interface {
	AttemptCompleted(ctx context.Context, attempt domain.QuizAttempt) error
}

// CompletionObserverFunc adapts a function to CompletionObserver.
type CompletionObserverFunc func(ctx context.Context, attempt domain.QuizAttempt) error

func (f CompletionObserverFunc) AttemptCompleted(ctx context.Context, attempt domain.QuizAttempt) error {
	return f(ctx, attempt)
}

// RecordQuizStats returns an observer that feeds completions into rec.
func RecordQuizStats(rec QuizStatsRecorder) CompletionObserver {
	return CompletionObserverFunc(func(ctx context.Context, attempt domain.QuizAttempt) error {
		return rec.RecordResult(ctx, attempt.QuizID, attempt.Accuracy)
	})
}
