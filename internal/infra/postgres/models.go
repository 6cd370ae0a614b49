package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-arena-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID                 string                    `bun:"id,pk"`
	DisplayName        string                    `bun:"display_name"`
	Username           string                    `bun:"username"`
	TotalPoints        int64                     `bun:"total_points"`
	DailyPoints        int64                     `bun:"daily_points"`
	WeeklyPoints       int64                     `bun:"weekly_points"`
	MonthlyPoints      int64                     `bun:"monthly_points"`
	ReferralPoints     int64                     `bun:"referral_points"`
	SubscriptionPoints int64                     `bun:"subscription_points"`
	QuizzesCompleted   int                       `bun:"quizzes_completed"`
	DailyCompleted     int                       `bun:"daily_quizzes_completed"`
	CorrectAnswers     int                       `bun:"correct_answers"`
	TotalQuestions     int                       `bun:"total_questions"`
	Accuracy           float64                   `bun:"accuracy"`
	CurrentStreak      int                       `bun:"current_streak"`
	LongestStreak      int                       `bun:"longest_streak"`
	Level              int                       `bun:"level"`
	Experience         int64                     `bun:"experience"`
	Rank               int                       `bun:"rank"`
	LastActive         bun.NullTime              `bun:"last_active"`
	RankHistory        []domain.RankHistoryEntry `bun:"rank_history,type:jsonb"`
	IsActive           bool                      `bun:"is_active"`
	ReferralCode       *string                   `bun:"referral_code"`
	ReferredBy         string                    `bun:"referred_by"`
	TotalReferrals     int                       `bun:"total_referrals"`
	Subscriptions      []domain.Subscription     `bun:"subscriptions,type:jsonb"`
	CreatedAt          time.Time                 `bun:"created_at"`
}

func newUserRow(u domain.User) *userRow {
	row := &userRow{
		ID:                 u.ID,
		DisplayName:        u.DisplayName,
		Username:           u.Username,
		TotalPoints:        u.TotalPoints,
		DailyPoints:        u.DailyPoints,
		WeeklyPoints:       u.WeeklyPoints,
		MonthlyPoints:      u.MonthlyPoints,
		ReferralPoints:     u.ReferralPoints,
		SubscriptionPoints: u.SubscriptionPoints,
		QuizzesCompleted:   u.QuizzesCompleted,
		DailyCompleted:     u.DailyQuizzesCompleted,
		CorrectAnswers:     u.CorrectAnswers,
		TotalQuestions:     u.TotalQuestions,
		Accuracy:           u.Accuracy,
		CurrentStreak:      u.CurrentStreak,
		LongestStreak:      u.LongestStreak,
		Level:              u.Level,
		Experience:         u.Experience,
		Rank:               u.Rank,
		LastActive:         bun.NullTime{Time: u.LastActive},
		RankHistory:        nonNil(u.RankHistory),
		IsActive:           u.IsActive,
		ReferredBy:         u.ReferredBy,
		TotalReferrals:     u.TotalReferrals,
		Subscriptions:      nonNil(u.Subscriptions),
		CreatedAt:          u.CreatedAt,
	}
	if u.ReferralCode != "" {
		code := u.ReferralCode
		row.ReferralCode = &code
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	return row
}

func (r *userRow) domain() domain.User {
	u := domain.User{
		ID:                 r.ID,
		DisplayName:        r.DisplayName,
		Username:           r.Username,
		TotalPoints:        r.TotalPoints,
		DailyPoints:        r.DailyPoints,
		WeeklyPoints:       r.WeeklyPoints,
		MonthlyPoints:      r.MonthlyPoints,
		ReferralPoints:     r.ReferralPoints,
		SubscriptionPoints: r.SubscriptionPoints,
		QuizzesCompleted:   r.QuizzesCompleted,
		CorrectAnswers:     r.CorrectAnswers,
		TotalQuestions:     r.TotalQuestions,
		Accuracy:           r.Accuracy,
		CurrentStreak:      r.CurrentStreak,
		LongestStreak:      r.LongestStreak,
		Level:              r.Level,
		Experience:         r.Experience,
		Rank:               r.Rank,
		LastActive:         r.LastActive.Time,
		RankHistory:        r.RankHistory,
		IsActive:           r.IsActive,
		ReferredBy:         r.ReferredBy,
		TotalReferrals:     r.TotalReferrals,
		Subscriptions:      r.Subscriptions,
		CreatedAt:          r.CreatedAt,
	}
	u.DailyQuizzesCompleted = r.DailyCompleted
	if r.ReferralCode != nil {
		u.ReferralCode = *r.ReferralCode
	}
	return u
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID            string          `bun:"id,pk"`
	UserID        string          `bun:"user_id"`
	QuizID        string          `bun:"quiz_id"`
	CompetitionID string          `bun:"competition_id"`
	Status        string          `bun:"status"`
	Answers       []domain.Answer `bun:"answers,type:jsonb"`
	StartedAt     time.Time       `bun:"started_at"`
	CompletedAt   bun.NullTime    `bun:"completed_at"`
	TotalCorrect  int             `bun:"total_correct"`
	TotalPoints   int64           `bun:"total_points"`
	TotalTime     int             `bun:"total_time"`
	Accuracy      float64         `bun:"accuracy"`
	CompletionKey string          `bun:"completion_key"`
}

func newAttemptRow(a domain.QuizAttempt) *attemptRow {
	return &attemptRow{
		ID:            a.ID,
		UserID:        a.UserID,
		QuizID:        a.QuizID,
		CompetitionID: a.CompetitionID,
		Status:        string(a.Status),
		Answers:       nonNil(a.Answers),
		StartedAt:     a.StartedAt,
		CompletedAt:   bun.NullTime{Time: a.CompletedAt},
		TotalCorrect:  a.TotalCorrect,
		TotalPoints:   a.TotalPoints,
		TotalTime:     a.TotalTime,
		Accuracy:      a.Accuracy,
		CompletionKey: a.CompletionKey,
	}
}

func (r *attemptRow) domain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:            r.ID,
		UserID:        r.UserID,
		QuizID:        r.QuizID,
		CompetitionID: r.CompetitionID,
		Status:        domain.AttemptStatus(r.Status),
		Answers:       r.Answers,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt.Time,
		TotalCorrect:  r.TotalCorrect,
		TotalPoints:   r.TotalPoints,
		TotalTime:     r.TotalTime,
		Accuracy:      r.Accuracy,
		CompletionKey: r.CompletionKey,
	}
}

type competitionRow struct {
	bun.BaseModel `bun:"table:competitions"`

	ID                string                    `bun:"id,pk"`
	Name              string                    `bun:"name"`
	Description       string                    `bun:"description"`
	StartDate         time.Time                 `bun:"start_date"`
	EndDate           time.Time                 `bun:"end_date"`
	MaxParticipants   int                       `bun:"max_participants"`
	PrizePool         int64                     `bun:"prize_pool"`
	PrizeTable        []float64                 `bun:"prize_table,type:jsonb"`
	TotalParticipants int                       `bun:"total_participants"`
	Quizzes           []domain.CompetitionQuiz  `bun:"quizzes,type:jsonb"`
	Participants      []domain.Participant      `bun:"participants,type:jsonb"`
	Leaderboard       []domain.LeaderboardEntry `bun:"leaderboard,type:jsonb"`
	Winners           []domain.Winner           `bun:"winners,type:jsonb"`
	CreatedAt         time.Time                 `bun:"created_at"`
}

func newCompetitionRow(c domain.Competition) *competitionRow {
	return &competitionRow{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		MaxParticipants:   c.MaxParticipants,
		PrizePool:         c.PrizePool,
		PrizeTable:        nonNil(c.PrizeTable),
		TotalParticipants: c.TotalParticipants,
		Quizzes:           nonNil(c.Quizzes),
		Participants:      nonNil(c.Participants),
		Leaderboard:       nonNil(c.Leaderboard),
		Winners:           nonNil(c.Winners),
		CreatedAt:         c.CreatedAt,
	}
}

func (r *competitionRow) domain() domain.Competition {
	c := domain.Competition{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		MaxParticipants:   r.MaxParticipants,
		PrizePool:         r.PrizePool,
		PrizeTable:        r.PrizeTable,
		TotalParticipants: r.TotalParticipants,
		Quizzes:           r.Quizzes,
		Participants:      r.Participants,
		Leaderboard:       r.Leaderboard,
		Winners:           r.Winners,
		CreatedAt:         r.CreatedAt,
	}
	if len(c.PrizeTable) == 0 {
		c.PrizeTable = nil
	}
	if len(c.Winners) == 0 {
		c.Winners = nil
	}
	return c
}

type referralRow struct {
	bun.BaseModel `bun:"table:referrals"`

	ID             string       `bun:"id,pk"`
	ReferrerID     string       `bun:"referrer_id"`
	ReferredUserID string       `bun:"referred_user_id"`
	ReferralCode   string       `bun:"referral_code"`
	PointsEarned   int64        `bun:"points_earned"`
	Status         string       `bun:"status"`
	CreatedAt      time.Time    `bun:"created_at"`
	CompletedAt    bun.NullTime `bun:"completed_at"`
}

func newReferralRow(r domain.Referral) *referralRow {
	return &referralRow{
		ID:             r.ID,
		ReferrerID:     r.ReferrerID,
		ReferredUserID: r.ReferredUserID,
		ReferralCode:   r.ReferralCode,
		PointsEarned:   r.PointsEarned,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
		CompletedAt:    bun.NullTime{Time: r.CompletedAt},
	}
}

func (r *referralRow) domain() domain.Referral {
	return domain.Referral{
		ID:             r.ID,
		ReferrerID:     r.ReferrerID,
		ReferredUserID: r.ReferredUserID,
		ReferralCode:   r.ReferralCode,
		PointsEarned:   r.PointsEarned,
		Status:         domain.ReferralStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt.Time,
	}
}

type channelRow struct {
	bun.BaseModel `bun:"table:channels"`

	ID              string    `bun:"id,pk"`
	Username        string    `bun:"username"`
	Title           string    `bun:"title"`
	Description     string    `bun:"description"`
	MemberCount     int       `bun:"member_count"`
	PointsReward    int64     `bun:"points_reward"`
	RequiredForQuiz bool      `bun:"required_for_quiz"`
	IsActive        bool      `bun:"is_active"`
	CreatedAt       time.Time `bun:"created_at"`
}

func newChannelRow(c domain.Channel) *channelRow {
	return &channelRow{
		ID:              c.ID,
		Username:        c.Username,
		Title:           c.Title,
		Description:     c.Description,
		MemberCount:     c.MemberCount,
		PointsReward:    c.Reward,
		RequiredForQuiz: c.RequiredForQuiz,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
	}
}

func (r *channelRow) domain() domain.Channel {
	return domain.Channel{
		ID:              r.ID,
		Username:        r.Username,
		Title:           r.Title,
		Description:     r.Description,
		MemberCount:     r.MemberCount,
		Reward:          r.PointsReward,
		RequiredForQuiz: r.RequiredForQuiz,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
	}
}

// nonNil keeps JSONB columns as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
