package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

const (
	defaultRankWorkers  = 8
	defaultPublishLimit = 100
	defaultHistoryLimit = 7
	maxPageLimit        = 100
)

var errUserInactive = errors.New("user inactive")

// RankConfig wires the optional outputs of a RankService.
type RankConfig struct {
	// Workers bounds concurrent per-user rank writes.
	Workers int
	// PublishLimit is how many leading entries are pushed to Board and Cache.
	PublishLimit int
	// Board fans rankings out to live subscribers; a private one is used when nil.
	Board *Board
	Cache RankingCache
}

// RankService assigns global ranks and serves leaderboards.
type RankService struct {
	users   UserRepository
	cfg     RankConfig
	reader  RankingReader
	trigger chan struct{}

	memoMu sync.Mutex
	memo   cachedRanking
	settings
}

// cachedRanking is the last ranking read back from the cache and its version.
type cachedRanking struct {
	version int64
	ranking domain.Ranking
}

func NewRankService(users UserRepository, cfg RankConfig, opts ...Option) *RankService {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultRankWorkers
	}
	if cfg.PublishLimit <= 0 {
		cfg.PublishLimit = defaultPublishLimit
	}
	if cfg.Board == nil {
		cfg.Board = NewBoard()
	}
	r := &RankService{
		users:    users,
		cfg:      cfg,
		trigger:  make(chan struct{}, 1),
		settings: newSettings(opts),
	}
	if reader, ok := cfg.Cache.(RankingReader); ok {
		r.reader = reader
	}
	return r
}

// RecomputeResult summarizes one global recompute.
type RecomputeResult struct {
	Ranked    int `json:"ranked"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// RecomputeGlobalRanks orders a snapshot of active users and writes every changed
// rank with a history entry. A failure for one user is logged and counted as
// skipped; only failing to read the population is fatal.
func (r *RankService) RecomputeGlobalRanks(ctx context.Context) (RecomputeResult, error) {
	started := r.now()
	users, err := r.users.ListActiveUsers(ctx)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("list active users: %w", err)
	}
	sortUsers(users, domain.TimeframeAllTime)

	var updated, unchanged, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, snap := range users {
		snap := snap
		rank := i + 1
		if snap.Rank == rank {
			unchanged.Add(1)
			continue
		}
		g.Go(func() error {
			_, err := r.users.UpdateUser(gctx, snap.ID, func(u *domain.User) error {
				if !u.IsActive {
					return errUserInactive
				}
				if u.Rank == rank {
					return errNoChange
				}
				u.Rank = rank
				u.AppendRankHistory(domain.RankHistoryEntry{Date: started, Rank: rank, Points: snap.TotalPoints})
				return nil
			})
			switch {
			case err == nil:
				updated.Add(1)
			case errors.Is(err, errNoChange):
				unchanged.Add(1)
			default:
				skipped.Add(1)
				if !errors.Is(err, errUserInactive) {
					r.logger.Warn("rank update skipped", "user_id", snap.ID, "rank", rank, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	result := RecomputeResult{
		Ranked:    len(users),
		Updated:   int(updated.Load()),
		Unchanged: int(unchanged.Load()),
		Skipped:   int(skipped.Load()),
	}
	r.logger.Info("global ranks recomputed",
		"ranked", result.Ranked,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"duration_ms", r.now().Sub(started).Milliseconds(),
	)

	limit := min(r.cfg.PublishLimit, len(users))
	standings := make([]domain.Standing, 0, limit)
	for i := 0; i < limit; i++ {
		standings = append(standings, standingOf(users[i], i+1, domain.TimeframeAllTime))
	}
	r.publish(ctx, domain.Ranking{Timeframe: domain.TimeframeAllTime, Entries: standings, Total: len(users), UpdatedAt: started})
	return result, nil
}

func (r *RankService) publish(ctx context.Context, ranking domain.Ranking) {
	r.cfg.Board.Publish(ranking)
	if r.cfg.Cache != nil {
		if err := r.cfg.Cache.StoreRanking(ctx, ranking); err != nil {
			r.logger.Warn("ranking cache write failed", "error", err)
		}
	}
}

// LeaderboardPage is one page of a timeframe leaderboard.
type LeaderboardPage struct {
	Timeframe domain.Timeframe  `json:"timeframe"`
	Entries   []domain.Standing `json:"entries"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
	Viewer    *domain.Standing  `json:"viewer,omitempty"`
}

// CurrentRanking returns the newest published all-time ranking, read from the
// ranking cache when one is configured or from the Board otherwise.
func (r *RankService) CurrentRanking(ctx context.Context) domain.Ranking {
	current := r.cfg.Board.Snapshot()
	if cached, ok := r.cached(ctx); ok && cached.UpdatedAt.After(current.UpdatedAt) {
		return cached
	}
	return current
}

// Subscribe streams every ranking this instance publishes, starting with the
// latest one. The caller must invoke the returned cancel function.
func (r *RankService) Subscribe() (<-chan domain.Ranking, func()) {
	return r.cfg.Board.Subscribe()
}

// cached reads the all-time ranking back from the cache, hitting Redis for the
// entries only when the version moved since the last read.
func (r *RankService) cached(ctx context.Context) (domain.Ranking, bool) {
	if r.reader == nil {
		return domain.Ranking{}, false
	}
	version, err := r.reader.Version(ctx, domain.TimeframeAllTime)
	if err != nil {
		r.logger.Warn("ranking cache version read failed", "error", err)
		return domain.Ranking{}, false
	}
	if version == 0 {
		return domain.Ranking{}, false
	}

	r.memoMu.Lock()
	defer r.memoMu.Unlock()
	if r.memo.version == version {
		return r.memo.ranking, true
	}
	ranking, err := r.reader.Top(ctx, domain.TimeframeAllTime, r.cfg.PublishLimit)
	if err != nil {
		r.logger.Warn("ranking cache read failed", "error", err)
		return domain.Ranking{}, false
	}
	// Expired between Version and Top.
	if ranking.UpdatedAt.IsZero() {
		return domain.Ranking{}, false
	}
	r.memo = cachedRanking{version: version, ranking: ranking}
	return ranking, true
}

// fromCache serves an all-time page from the cached ranking when the page and
// the viewer both fall inside the cached prefix.
func (r *RankService) fromCache(ctx context.Context, offset, limit int, viewerID string) (LeaderboardPage, bool) {
	ranking, ok := r.cached(ctx)
	if !ok {
		return LeaderboardPage{}, false
	}
	entries := ranking.Entries
	complete := len(entries) >= ranking.Total
	if !complete && offset+limit > len(entries) {
		return LeaderboardPage{}, false
	}
	page := LeaderboardPage{
		Timeframe: domain.TimeframeAllTime,
		Entries:   []domain.Standing{},
		Total:     ranking.Total,
		Offset:    offset,
		Limit:     limit,
	}
	for i := offset; i < len(entries) && i < offset+limit; i++ {
		page.Entries = append(page.Entries, entries[i])
	}
	if viewerID != "" {
		for i := range entries {
			if entries[i].UserID == viewerID {
				s := entries[i]
				page.Viewer = &s
				break
			}
		}
		if page.Viewer == nil && !complete {
			return LeaderboardPage{}, false
		}
	}
	return page, true
}

// Leaderboard orders active users by the timeframe's counter using the global
// tie-break chain. viewerID, when set and active, is located in the full order.
// All-time pages inside the cached ranking are served from the cache and are as
// fresh as the last recompute.
func (r *RankService) Leaderboard(ctx context.Context, tf domain.Timeframe, offset, limit int, viewerID string) (LeaderboardPage, error) {
	offset, limit = clampPage(offset, limit)
	if tf == domain.TimeframeAllTime {
		if page, ok := r.fromCache(ctx, offset, limit, viewerID); ok {
			return page, nil
		}
	}
	users, err := r.users.ListActiveUsers(ctx)
	if err != nil {
		return LeaderboardPage{}, fmt.Errorf("list active users: %w", err)
	}
	sortUsers(users, tf)

	page := LeaderboardPage{Timeframe: tf, Entries: []domain.Standing{}, Total: len(users), Offset: offset, Limit: limit}
	for i := offset; i < len(users) && i < offset+limit; i++ {
		page.Entries = append(page.Entries, standingOf(users[i], i+1, tf))
	}
	if viewerID != "" {
		for i, u := range users {
			if u.ID == viewerID {
				s := standingOf(u, i+1, tf)
				page.Viewer = &s
				break
			}
		}
	}
	return page, nil
}

// RankHistory returns the user's n most recent rank history entries, oldest first.
func (r *RankService) RankHistory(ctx context.Context, userID string, n int) ([]domain.RankHistoryEntry, error) {
	if n <= 0 {
		n = defaultHistoryLimit
	}
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := u.RankHistory
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]domain.RankHistoryEntry{}, history...), nil
}

// Trigger asks Run for a recompute; requests coalesce while one is pending.
func (r *RankService) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// AttemptCompleted lets the service observe completions and schedule a recompute.
func (r *RankService) AttemptCompleted(context.Context, domain.QuizAttempt) error {
	r.Trigger()
	return nil
}

// Run serves triggered recomputes until ctx is done.
func (r *RankService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.trigger:
			if _, err := r.RecomputeGlobalRanks(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("triggered rank recompute failed", "error", err)
			}
		}
	}
}

func standingOf(u domain.User, rank int, tf domain.Timeframe) domain.Standing {
	trend, change := rankTrend(u.RankHistory)
	return domain.Standing{
		Rank:             rank,
		UserID:           u.ID,
		DisplayName:      u.DisplayName,
		Username:         u.Username,
		Points:           u.BucketPoints(tf),
		Level:            u.Level,
		LevelTitle:       gamification.LevelTitle(u.Level),
		Accuracy:         u.Accuracy,
		QuizzesCompleted: u.QuizzesCompleted,
		CurrentStreak:    u.CurrentStreak,
		Trend:            trend,
		RankChange:       change,
	}
}

// rankTrend compares the two latest history entries; a lower rank number is up.
func rankTrend(history []domain.RankHistoryEntry) (domain.Trend, int) {
	if len(history) < 2 {
		return domain.TrendStable, 0
	}
	prev, last := history[len(history)-2].Rank, history[len(history)-1].Rank
	switch {
	case last < prev:
		return domain.TrendUp, prev - last
	case last > prev:
		return domain.TrendDown, last - prev
	default:
		return domain.TrendStable, 0
	}
}
