package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

const (
	winnerCount            = 10
	activeCompetitionLimit = 10
)

// CompetitionService maintains competition standings, leaderboards and winners.
// Competition ranks never touch a user's global rank.
type CompetitionService struct {
	competitions CompetitionRepository
	users        UserRepository
	settings
}

func NewCompetitionService(competitions CompetitionRepository, users UserRepository, opts ...Option) *CompetitionService {
	return &CompetitionService{competitions: competitions, users: users, settings: newSettings(opts)}
}

// CompetitionDraft describes a competition to create.
type CompetitionDraft struct {
	Name            string
	Description     string
	StartDate       time.Time
	EndDate         time.Time
	PrizePool       int64
	MaxParticipants int
	PrizeTable      []float64
}

// Create stores a new competition with a generated id.
func (s *CompetitionService) Create(ctx context.Context, draft CompetitionDraft) (domain.Competition, error) {
	if !draft.EndDate.After(draft.StartDate) || draft.PrizePool < 0 || draft.MaxParticipants < 0 {
		return domain.Competition{}, domain.ErrInvalidCompetition
	}
	var share float64
	for _, p := range draft.PrizeTable {
		if p < 0 {
			return domain.Competition{}, domain.ErrInvalidCompetition
		}
		share += p
	}
	if share > 100 {
		return domain.Competition{}, domain.ErrInvalidCompetition
	}

	c := domain.NewCompetition(uuid.NewString(), draft.Name, draft.StartDate, draft.EndDate, draft.PrizePool)
	c.Description = draft.Description
	c.PrizeTable = slices.Clone(draft.PrizeTable)
	c.CreatedAt = s.now()
	if draft.MaxParticipants > 0 {
		c.MaxParticipants = draft.MaxParticipants
	}
	if err := s.competitions.CreateCompetition(ctx, c); err != nil {
		return domain.Competition{}, err
	}
	s.logger.Info("competition created", "competition_id", c.ID, "start", c.StartDate, "end", c.EndDate)
	return c, nil
}

func (s *CompetitionService) Get(ctx context.Context, competitionID string) (domain.Competition, error) {
	return s.competitions.GetCompetition(ctx, competitionID)
}

// AddParticipant joins userID to a running competition with a zero standing.
func (s *CompetitionService) AddParticipant(ctx context.Context, competitionID, userID string) (domain.Competition, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return domain.Competition{}, err
	}
	now := s.now()
	c, err := s.competitions.UpdateCompetition(ctx, competitionID, func(c *domain.Competition) error {
		if !c.IsActive(now) {
			return domain.ErrNotInWindow
		}
		if _, ok := c.Participant(userID); ok {
			return domain.ErrAlreadyJoined
		}
		limit := c.MaxParticipants
		if limit <= 0 {
			limit = domain.DefaultMaxParticipants
		}
		if c.TotalParticipants >= limit {
			return domain.ErrCompetitionFull
		}
		c.Participants = append(c.Participants, domain.Participant{UserID: userID, JoinedAt: now})
		c.Leaderboard = append(c.Leaderboard, domain.LeaderboardEntry{UserID: userID, Rank: c.TotalParticipants + 1})
		c.TotalParticipants++
		return nil
	})
	if err != nil {
		return domain.Competition{}, err
	}
	s.logger.Info("competition joined", "competition_id", competitionID, "user_id", userID, "participants", c.TotalParticipants)
	return c, nil
}

// RecomputeLeaderboard replaces the leaderboard with the ranked, still-active participants.
func (s *CompetitionService) RecomputeLeaderboard(ctx context.Context, competitionID string) (domain.Competition, error) {
	active, err := s.activeUserIDs(ctx)
	if err != nil {
		return domain.Competition{}, err
	}
	return s.competitions.UpdateCompetition(ctx, competitionID, func(c *domain.Competition) error {
		c.Leaderboard = rankParticipants(c.Participants, active)
		return nil
	})
}

// RecordAttempt adds a completed attempt to the owner's standing when the
// competition is running and the owner joined it, then re-ranks the leaderboard.
func (s *CompetitionService) RecordAttempt(ctx context.Context, attempt domain.QuizAttempt) (domain.Competition, error) {
	if attempt.Status != domain.AttemptCompleted {
		return domain.Competition{}, domain.ErrAttemptNotFound
	}
	active, err := s.activeUserIDs(ctx)
	if err != nil {
		return domain.Competition{}, err
	}
	now := s.now()
	c, err := s.competitions.UpdateCompetition(ctx, attempt.CompetitionID, func(c *domain.Competition) error {
		if !c.IsActive(now) {
			return errNoChange
		}
		i, ok := c.Participant(attempt.UserID)
		if !ok {
			return errNoChange
		}
		p := &c.Participants[i]
		p.Points += attempt.TotalPoints
		p.QuizzesCompleted++
		p.CorrectAnswers += attempt.TotalCorrect
		p.AnsweredQuestions += len(attempt.Answers)
		p.Accuracy = gamification.ComputeAccuracy(p.CorrectAnswers, p.AnsweredQuestions)
		c.Leaderboard = rankParticipants(c.Participants, active)
		return nil
	})
	if errors.Is(err, errNoChange) {
		s.logger.Debug("attempt not counted for competition",
			"competition_id", attempt.CompetitionID, "user_id", attempt.UserID)
		return s.competitions.GetCompetition(ctx, attempt.CompetitionID)
	}
	return c, err
}

// AttemptCompleted lets the service observe completions of competition quizzes.
func (s *CompetitionService) AttemptCompleted(ctx context.Context, attempt domain.QuizAttempt) error {
	if attempt.CompetitionID == "" {
		return nil
	}
	_, err := s.RecordAttempt(ctx, attempt)
	return err
}

// FinalizeWinners computes prizes for the top leaderboard entries once the
// competition ended. Later calls return the stored winners unchanged.
func (s *CompetitionService) FinalizeWinners(ctx context.Context, competitionID string) ([]domain.Winner, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if len(c.Winners) > 0 {
		return c.Winners, nil
	}
	now := s.now()
	c, err = s.competitions.UpdateCompetition(ctx, competitionID, func(c *domain.Competition) error {
		if len(c.Winners) > 0 {
			return errNoChange
		}
		if now.Before(c.EndDate) {
			return domain.ErrNotEnded
		}
		c.Winners = pickWinners(c.Leaderboard, c.PrizePool, c.PrizeTable)
		return nil
	})
	if errors.Is(err, errNoChange) {
		c, err = s.competitions.GetCompetition(ctx, competitionID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("competition winners finalized", "competition_id", competitionID, "winners", len(c.Winners))
	return c.Winners, nil
}

// LeaderboardPage pages through the stored competition leaderboard.
func (s *CompetitionService) LeaderboardPage(ctx context.Context, competitionID string, offset, limit int) ([]domain.LeaderboardEntry, int, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	total := len(c.Leaderboard)
	if offset >= total {
		return []domain.LeaderboardEntry{}, total, nil
	}
	end := min(offset+limit, total)
	return slices.Clone(c.Leaderboard[offset:end]), total, nil
}

// Active lists up to ten running competitions, earliest start first.
func (s *CompetitionService) Active(ctx context.Context) ([]domain.Competition, error) {
	all, err := s.competitions.ListCompetitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	now := s.now()
	running := make([]domain.Competition, 0, activeCompetitionLimit)
	for _, c := range all {
		if c.IsActive(now) {
			running = append(running, c)
			if len(running) == activeCompetitionLimit {
				break
			}
		}
	}
	return running, nil
}

// ParticipantStats is one participant's view of a competition.
type ParticipantStats struct {
	CompetitionID     string    `json:"competitionId"`
	Rank              int       `json:"rank,omitempty"`
	Points            int64     `json:"points"`
	QuizzesCompleted  int       `json:"quizzesCompleted"`
	CorrectAnswers    int       `json:"correctAnswers"`
	AnsweredQuestions int       `json:"answeredQuestions"`
	Accuracy          float64   `json:"accuracy"`
	TotalParticipants int       `json:"totalParticipants"`
	JoinedAt          time.Time `json:"joinedAt"`
}

// ParticipantStats returns userID's standing in the competition. Rank is zero
// while the user is not on the leaderboard.
func (s *CompetitionService) ParticipantStats(ctx context.Context, competitionID, userID string) (ParticipantStats, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return ParticipantStats{}, err
	}
	stats, ok := participantStats(c, userID)
	if !ok {
		return ParticipantStats{}, domain.ErrNotParticipant
	}
	return stats, nil
}

func participantStats(c domain.Competition, userID string) (ParticipantStats, bool) {
	i, ok := c.Participant(userID)
	if !ok {
		return ParticipantStats{}, false
	}
	p := c.Participants[i]
	return ParticipantStats{
		CompetitionID:     c.ID,
		Rank:              leaderboardRank(c.Leaderboard, userID),
		Points:            p.Points,
		QuizzesCompleted:  p.QuizzesCompleted,
		CorrectAnswers:    p.CorrectAnswers,
		AnsweredQuestions: p.AnsweredQuestions,
		Accuracy:          p.Accuracy,
		TotalParticipants: c.TotalParticipants,
		JoinedAt:          p.JoinedAt,
	}, true
}

// CompetitionRecord is one competition in a user's history.
type CompetitionRecord struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	IsActive  bool             `json:"isActive"`
	PrizePool int64            `json:"prizePool"`
	Stats     ParticipantStats `json:"userStats"`
	PrizeWon  int64            `json:"prizeWon"`
	FinalRank int              `json:"finalRank,omitempty"`
}

// CompetitionHistory lists the competitions a user joined, newest first.
type CompetitionHistory struct {
	Competitions []CompetitionRecord `json:"competitions"`
	Total        int                 `json:"totalCompetitions"`
	Active       int                 `json:"activeCompetitions"`
	PrizesWon    int64               `json:"prizesWon"`
}

// History collects userID's standing and prizes across every competition joined.
func (s *CompetitionService) History(ctx context.Context, userID string) (CompetitionHistory, error) {
	all, err := s.competitions.ListCompetitions(ctx)
	if err != nil {
		return CompetitionHistory{}, fmt.Errorf("list competitions: %w", err)
	}
	now := s.now()
	h := CompetitionHistory{Competitions: []CompetitionRecord{}}
	for i := len(all) - 1; i >= 0; i-- {
		c := all[i]
		stats, ok := participantStats(c, userID)
		if !ok {
			continue
		}
		rec := CompetitionRecord{
			ID:        c.ID,
			Name:      c.Name,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			IsActive:  c.IsActive(now),
			PrizePool: c.PrizePool,
			Stats:     stats,
		}
		for _, w := range c.Winners {
			if w.UserID == userID {
				rec.PrizeWon, rec.FinalRank = w.Prize, w.Rank
			}
		}
		if rec.IsActive {
			h.Active++
		}
		h.PrizesWon += rec.PrizeWon
		h.Competitions = append(h.Competitions, rec)
	}
	h.Total = len(h.Competitions)
	return h, nil
}

func leaderboardRank(entries []domain.LeaderboardEntry, userID string) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}

func (s *CompetitionService) activeUserIDs(ctx context.Context) (map[string]struct{}, error) {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	ids := make(map[string]struct{}, len(users))
	for _, u := range users {
		ids[u.ID] = struct{}{}
	}
	return ids, nil
}

func rankParticipants(participants []domain.Participant, active map[string]struct{}) []domain.LeaderboardEntry {
	eligible := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		if _, ok := active[p.UserID]; ok {
			eligible = append(eligible, p)
		}
	}
	sortParticipants(eligible)
	if len(eligible) > domain.CompetitionLeaderboardLimit {
		eligible = eligible[:domain.CompetitionLeaderboardLimit]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(eligible))
	for i, p := range eligible {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           p.UserID,
			Points:           p.Points,
			Rank:             i + 1,
			QuizzesCompleted: p.QuizzesCompleted,
			Accuracy:         p.Accuracy,
		})
	}
	return entries
}

func pickWinners(leaderboard []domain.LeaderboardEntry, pool int64, table []float64) []domain.Winner {
	ordered := slices.Clone(leaderboard)
	sortEntries(ordered)
	n := min(winnerCount, len(ordered))
	winners := make([]domain.Winner, 0, n)
	for i := 0; i < n; i++ {
		winners = append(winners, domain.Winner{
			Rank:   i + 1,
			UserID: ordered[i].UserID,
			Prize:  gamification.Prize(pool, i+1, table),
		})
	}
	return winners
}
