package domain

import "time"

const (
	// Unranked is the rank carried by users who were never ranked or were deactivated.
	Unranked = 9999
	// MaxLevel caps the level curve.
	MaxLevel = 100
	// RankHistoryLimit bounds User.RankHistory; oldest entries are evicted first.
	RankHistoryLimit = 30
	// CompetitionLeaderboardLimit bounds a competition's leaderboard projection.
	CompetitionLeaderboardLimit = 1000
	// DefaultMaxParticipants applies when a competition does not set its own cap.
	DefaultMaxParticipants = 5000

	DefaultQuestionPoints    = 10
	DefaultQuestionTimeLimit = 30
	DefaultQuizTimeLimit     = 300
)

// PointSource identifies why points were granted.
type PointSource string

const (
	SourceQuiz         PointSource = "quiz"
	SourceReferral     PointSource = "referral"
	SourceSubscription PointSource = "subscription"
)

// Valid reports whether s is a known source.
func (s PointSource) Valid() bool {
	switch s {
	case SourceQuiz, SourceReferral, SourceSubscription:
		return true
	}
	return false
}

// PointBucket names a periodically reset counter.
type PointBucket string

const (
	BucketDaily   PointBucket = "daily"
	BucketWeekly  PointBucket = "weekly"
	BucketMonthly PointBucket = "monthly"
)

// RankHistoryEntry records a rank change observed by a global recompute.
type RankHistoryEntry struct {
	Date   time.Time `json:"date"`
	Rank   int       `json:"rank"`
	Points int64     `json:"points"`
}

// Subscription is a channel the user subscribed to and was rewarded for.
type Subscription struct {
	ChannelID       string    `json:"channelId"`
	ChannelUsername string    `json:"channelUsername"`
	ChannelTitle    string    `json:"channelTitle"`
	PointsEarned    int64     `json:"pointsEarned"`
	SubscribedAt    time.Time `json:"subscribedAt"`
}

// User is a participant and the owner of every point counter.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`

	TotalPoints        int64 `json:"totalPoints"`
	MonthlyPoints      int64 `json:"monthlyPoints"`
	WeeklyPoints       int64 `json:"weeklyPoints"`
	DailyPoints        int64 `json:"dailyPoints"`
	ReferralPoints     int64 `json:"referralPoints"`
	SubscriptionPoints int64 `json:"subscriptionPoints"`

	QuizzesCompleted      int `json:"quizzesCompleted"`
	DailyQuizzesCompleted int `json:"dailyQuizzesCompleted"`
	CorrectAnswers        int `json:"correctAnswers"`
	TotalQuestions        int `json:"totalQuestions"`

	Accuracy      float64 `json:"accuracy"`
	CurrentStreak int     `json:"currentStreak"`
	LongestStreak int     `json:"longestStreak"`
	Level         int     `json:"level"`
	Experience    int64   `json:"experience"`
	Rank          int     `json:"rank"`

	LastActive  time.Time          `json:"lastActive"`
	RankHistory []RankHistoryEntry `json:"rankHistory"`
	IsActive    bool               `json:"isActive"`

	ReferralCode   string         `json:"referralCode,omitempty"`
	ReferredBy     string         `json:"referredBy,omitempty"`
	TotalReferrals int            `json:"totalReferrals"`
	Subscriptions  []Subscription `json:"subscriptions"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewUser returns a freshly registered user with every counter at its initial value.
func NewUser(id, displayName, username string, now time.Time) User {
	return User{
		ID:          id,
		DisplayName: displayName,
		Username:    username,
		Level:       1,
		Rank:        Unranked,
		LastActive:  now,
		IsActive:    true,
		CreatedAt:   now,
	}
}

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	out := u
	if u.RankHistory != nil {
		out.RankHistory = append([]RankHistoryEntry(nil), u.RankHistory...)
	}
	if u.Subscriptions != nil {
		out.Subscriptions = append([]Subscription(nil), u.Subscriptions...)
	}
	return out
}

// SubscribedTo reports whether the user already holds a subscription to channelID.
func (u User) SubscribedTo(channelID string) bool {
	for _, s := range u.Subscriptions {
		if s.ChannelID == channelID {
			return true
		}
	}
	return false
}

// AppendRankHistory adds entry and evicts the oldest entries beyond RankHistoryLimit.
func (u *User) AppendRankHistory(entry RankHistoryEntry) {
	u.RankHistory = append(u.RankHistory, entry)
	if over := len(u.RankHistory) - RankHistoryLimit; over > 0 {
		u.RankHistory = append([]RankHistoryEntry(nil), u.RankHistory[over:]...)
	}
}

// BucketPoints returns the counter a leaderboard timeframe sorts by.
func (u User) BucketPoints(tf Timeframe) int64 {
	switch tf {
	case TimeframeDaily:
		return u.DailyPoints
	case TimeframeWeekly:
		return u.WeeklyPoints
	case TimeframeMonthly:
		return u.MonthlyPoints
	default:
		return u.TotalPoints
	}
}

// Option is one answer choice; options are addressed by index.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question is a multiple-choice question with exactly one correct option.
type Question struct {
	Text        string   `json:"question"`
	Options     []Option `json:"options"`
	Points      int64    `json:"points"`
	TimeLimit   int      `json:"timeLimit"`
	Explanation string   `json:"explanation,omitempty"`
}

// CorrectOption returns the index of the correct option, or -1.
func (q Question) CorrectOption() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category,omitempty"`
	Difficulty     string     `json:"difficulty,omitempty"`
	Questions      []Question `json:"questions"`
	TotalPoints    int64      `json:"totalPoints"`
	TotalQuestions int        `json:"totalQuestions"`
	TimeLimit      int        `json:"timeLimit"`
	IsDaily        bool       `json:"isDaily"`
	IsActive       bool       `json:"isActive"`
	CompetitionID  string     `json:"competitionId,omitempty"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	Attempts       int64      `json:"attempts"`
	AverageScore   float64    `json:"averageScore"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Content returns q without its running statistics, which change on every
// completion and are read from the backing store instead of a cache.
func (q Quiz) Content() Quiz {
	out := q
	out.Attempts = 0
	out.AverageScore = 0
	return out
}

// QuizFilter narrows a quiz listing. Inactive quizzes are never listed.
type QuizFilter struct {
	DailyOnly  bool
	Category   string
	Difficulty string
	Limit      int
}

// Matches reports whether q passes f, ignoring Limit.
func (f QuizFilter) Matches(q Quiz) bool {
	if !q.IsActive {
		return false
	}
	if f.DailyOnly && !q.IsDaily {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	return f.Difficulty == "" || q.Difficulty == f.Difficulty
}

// QuizSummary is a listing row: a quiz without its questions.
type QuizSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	Difficulty     string    `json:"difficulty,omitempty"`
	TotalPoints    int64     `json:"totalPoints"`
	TotalQuestions int       `json:"totalQuestions"`
	TimeLimit      int       `json:"timeLimit"`
	IsDaily        bool      `json:"isDaily"`
	CompetitionID  string    `json:"competitionId,omitempty"`
	Attempts       int64     `json:"attempts"`
	AverageScore   float64   `json:"averageScore"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summary returns the listing view of q.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:             q.ID,
		Title:          q.Title,
		Description:    q.Description,
		Category:       q.Category,
		Difficulty:     q.Difficulty,
		TotalPoints:    q.TotalPoints,
		TotalQuestions: q.TotalQuestions,
		TimeLimit:      q.TimeLimit,
		IsDaily:        q.IsDaily,
		CompetitionID:  q.CompetitionID,
		Attempts:       q.Attempts,
		AverageScore:   q.AverageScore,
		CreatedAt:      q.CreatedAt,
	}
}

// NewQuiz builds an active quiz with defaults applied and totals derived.
func NewQuiz(id, title string, questions []Question) Quiz {
	q := Quiz{
		ID:        id,
		Title:     title,
		Questions: questions,
		TimeLimit: DefaultQuizTimeLimit,
		IsActive:  true,
	}
	q.RecomputeTotals()
	return q
}

// RecomputeTotals fills question defaults and re-derives TotalPoints and TotalQuestions.
// It must run after any change to Questions.
func (q *Quiz) RecomputeTotals() {
	var total int64
	for i := range q.Questions {
		if q.Questions[i].Points <= 0 {
			q.Questions[i].Points = DefaultQuestionPoints
		}
		if q.Questions[i].TimeLimit <= 0 {
			q.Questions[i].TimeLimit = DefaultQuestionTimeLimit
		}
		total += q.Questions[i].Points
	}
	if q.TimeLimit <= 0 {
		q.TimeLimit = DefaultQuizTimeLimit
	}
	q.TotalPoints = total
	q.TotalQuestions = len(q.Questions)
}

// Validate checks what RecomputeTotals cannot default: an id, at least one
// question, and at least two options per question of which exactly one is correct.
func (q Quiz) Validate() error {
	if q.ID == "" || len(q.Questions) == 0 {
		return ErrInvalidQuiz
	}
	for _, question := range q.Questions {
		if len(question.Options) < 2 {
			return ErrInvalidQuiz
		}
		correct := 0
		for _, o := range question.Options {
			if o.Correct {
				correct++
			}
		}
		if correct != 1 {
			return ErrInvalidQuiz
		}
	}
	return nil
}

// PublicQuestion is a question as shown before an answer is submitted.
type PublicQuestion struct {
	Text      string   `json:"question"`
	Options   []string `json:"options"`
	Points    int64    `json:"points"`
	TimeLimit int      `json:"timeLimit"`
}

// PublicQuiz hides correctness flags and explanations.
type PublicQuiz struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Category       string           `json:"category,omitempty"`
	Difficulty     string           `json:"difficulty,omitempty"`
	Questions      []PublicQuestion `json:"questions"`
	TotalPoints    int64            `json:"totalPoints"`
	TotalQuestions int              `json:"totalQuestions"`
	TimeLimit      int              `json:"timeLimit"`
	IsDaily        bool             `json:"isDaily"`
}

// Public returns the client-safe view of q.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		opts := make([]string, 0, len(question.Options))
		for _, o := range question.Options {
			opts = append(opts, o.Text)
		}
		questions = append(questions, PublicQuestion{
			Text:      question.Text,
			Options:   opts,
			Points:    question.Points,
			TimeLimit: question.TimeLimit,
		})
	}
	return PublicQuiz{
		ID:             q.ID,
		Title:          q.Title,
		Description:    q.Description,
		Category:       q.Category,
		Difficulty:     q.Difficulty,
		Questions:      questions,
		TotalPoints:    q.TotalPoints,
		TotalQuestions: q.TotalQuestions,
		TimeLimit:      q.TimeLimit,
		IsDaily:        q.IsDaily,
	}
}

// AttemptStatus is the attempt state machine: in_progress is initial, completed terminal.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// CompletionOnce is the completion key of non-daily quizzes.
const CompletionOnce = "once"

// CompletionKey returns the uniqueness key of a completion of quiz on day. An
// attempt's key is settled when it completes, so a daily attempt that crosses
// midnight counts for the day it was finished.
func CompletionKey(quiz Quiz, day time.Time) string {
	if quiz.IsDaily {
		return day.Format(time.DateOnly)
	}
	return CompletionOnce
}

// Answer is the latest submission for one question.
type Answer struct {
	QuestionIndex  int   `json:"questionIndex"`
	SelectedOption int   `json:"selectedOption"`
	IsCorrect      bool  `json:"isCorrect"`
	TimeSpent      int   `json:"timeSpent"`
	PointsEarned   int64 `json:"pointsEarned"`
}

// QuizAttempt is one user's pass through a quiz.
type QuizAttempt struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	QuizID        string        `json:"quizId"`
	CompetitionID string        `json:"competitionId,omitempty"`
	Status        AttemptStatus `json:"status"`
	Answers       []Answer      `json:"answers"`
	StartedAt     time.Time     `json:"startedAt"`
	CompletedAt   time.Time     `json:"completedAt,omitempty"`
	TotalCorrect  int           `json:"totalCorrect"`
	TotalPoints   int64         `json:"totalPoints"`
	TotalTime     int           `json:"totalTime"`
	Accuracy      float64       `json:"accuracy"`
	CompletionKey string        `json:"completionKey"`
}

// NewAttempt opens an in-progress attempt of quiz for userID.
func NewAttempt(id, userID string, quiz Quiz, now time.Time, completionKey string) QuizAttempt {
	return QuizAttempt{
		ID:            id,
		UserID:        userID,
		QuizID:        quiz.ID,
		CompetitionID: quiz.CompetitionID,
		Status:        AttemptInProgress,
		Answers:       []Answer{},
		StartedAt:     now,
		CompletionKey: completionKey,
	}
}

// Clone returns a copy that shares no slices with a.
func (a QuizAttempt) Clone() QuizAttempt {
	out := a
	out.Answers = append([]Answer(nil), a.Answers...)
	return out
}

// CompetitionQuiz links a quiz into a competition.
type CompetitionQuiz struct {
	QuizID   string    `json:"quizId"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	IsActive bool      `json:"isActive"`
	AddedAt  time.Time `json:"addedAt"`
}

// Participant is a user's standing inside one competition.
type Participant struct {
	UserID            string    `json:"userId"`
	Points            int64     `json:"points"`
	QuizzesCompleted  int       `json:"quizzesCompleted"`
	CorrectAnswers    int       `json:"correctAnswers"`
	AnsweredQuestions int       `json:"answeredQuestions"`
	Accuracy          float64   `json:"accuracy"`
	JoinedAt          time.Time `json:"joinedAt"`
}

// LeaderboardEntry is one row of a competition leaderboard.
type LeaderboardEntry struct {
	UserID           string  `json:"userId"`
	Points           int64   `json:"points"`
	Rank             int     `json:"rank"`
	QuizzesCompleted int     `json:"quizzesCompleted"`
	Accuracy         float64 `json:"accuracy"`
}

// Winner is a finalized prize assignment.
type Winner struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Prize  int64  `json:"prize"`
}

// Competition is a time-boxed contest over a set of participants and quizzes.
type Competition struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	StartDate         time.Time          `json:"startDate"`
	EndDate           time.Time          `json:"endDate"`
	MaxParticipants   int                `json:"maxParticipants"`
	PrizePool         int64              `json:"prizePool"`
	PrizeTable        []float64          `json:"prizeTable,omitempty"`
	TotalParticipants int                `json:"totalParticipants"`
	Quizzes           []CompetitionQuiz  `json:"quizzes"`
	Participants      []Participant      `json:"participants"`
	Leaderboard       []LeaderboardEntry `json:"leaderboard"`
	Winners           []Winner           `json:"winners"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// NewCompetition builds a competition running over [start, end].
func NewCompetition(id, name string, start, end time.Time, prizePool int64) Competition {
	return Competition{
		ID:              id,
		Name:            name,
		StartDate:       start,
		EndDate:         end,
		MaxParticipants: DefaultMaxParticipants,
		PrizePool:       prizePool,
		CreatedAt:       start,
	}
}

// IsActive reports whether now falls inside [StartDate, EndDate].
func (c Competition) IsActive(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// Participant returns the index of userID in Participants.
func (c Competition) Participant(userID string) (int, bool) {
	for i, p := range c.Participants {
		if p.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a copy that shares no slices with c.
func (c Competition) Clone() Competition {
	out := c
	out.PrizeTable = append([]float64(nil), c.PrizeTable...)
	out.Quizzes = append([]CompetitionQuiz(nil), c.Quizzes...)
	out.Participants = append([]Participant(nil), c.Participants...)
	out.Leaderboard = append([]LeaderboardEntry(nil), c.Leaderboard...)
	out.Winners = append([]Winner(nil), c.Winners...)
	return out
}

// ReferralStatus tracks a referral's lifecycle.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralExpired   ReferralStatus = "expired"
)

// Referral records that one user brought in another.
type Referral struct {
	ID             string         `json:"id"`
	ReferrerID     string         `json:"referrerId"`
	ReferredUserID string         `json:"referredUserId"`
	ReferralCode   string         `json:"referralCode"`
	PointsEarned   int64          `json:"pointsEarned"`
	Status         ReferralStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	CompletedAt    time.Time      `json:"completedAt,omitempty"`
}

// DefaultChannelReward applies to channels registered without a reward of their own.
const DefaultChannelReward int64 = 100

// Channel is a registered channel whose subscribers are rewarded once.
type Channel struct {
	ID              string    `json:"channelId"`
	Username        string    `json:"channelUsername"`
	Title           string    `json:"channelTitle"`
	Description     string    `json:"description,omitempty"`
	MemberCount     int       `json:"memberCount"`
	Reward          int64     `json:"pointsReward"`
	RequiredForQuiz bool      `json:"requiredForQuiz"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewChannel returns an active channel paying DefaultChannelReward.
func NewChannel(id, username, title string, now time.Time) Channel {
	return Channel{
		ID:        id,
		Username:  username,
		Title:     title,
		Reward:    DefaultChannelReward,
		IsActive:  true,
		CreatedAt: now,
	}
}

// Timeframe selects which counter a leaderboard sorts by.
type Timeframe string

const (
	TimeframeAllTime Timeframe = "all-time"
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// ParseTimeframe maps a query value to a timeframe; empty means all-time.
func ParseTimeframe(raw string) (Timeframe, bool) {
	switch Timeframe(raw) {
	case "", TimeframeAllTime:
		return TimeframeAllTime, true
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return Timeframe(raw), true
	}
	return "", false
}

// Trend describes the direction of a user's last rank change.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Standing is one row of a global leaderboard.
type Standing struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	DisplayName      string  `json:"displayName"`
	Username         string  `json:"username,omitempty"`
	Points           int64   `json:"points"`
	Level            int     `json:"level"`
	LevelTitle       string  `json:"levelTitle"`
	Accuracy         float64 `json:"accuracy"`
	QuizzesCompleted int     `json:"quizzesCompleted"`
	CurrentStreak    int     `json:"currentStreak"`
	Trend            Trend   `json:"trend"`
	RankChange       int     `json:"rankChange"`
}

// Ranking is a snapshot of the global order published to live subscribers.
// Entries may be a prefix of the order; Total counts every ranked user.
type Ranking struct {
	Timeframe Timeframe  `json:"timeframe"`
	Entries   []Standing `json:"entries"`
	Total     int        `json:"total"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
