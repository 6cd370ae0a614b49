package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"quiz-arena-service/internal/domain"
)

// Store is an in-memory implementation of the app user, attempt, competition,
// referral and channel repositories. One mutex guards everything, which makes
// CommitCompletion and CreateReferredUser atomic. Reads and writes copy values
// in and out.
type Store struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	byCode       map[string]string
	attempts     map[string]domain.QuizAttempt
	completions  map[completionKey]string
	competitions map[string]domain.Competition
	referrals    map[string]domain.Referral
	channels     map[string]domain.Channel
}

type completionKey struct {
	userID, quizID, key string
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]domain.User),
		byCode:       make(map[string]string),
		attempts:     make(map[string]domain.QuizAttempt),
		completions:  make(map[completionKey]string),
		competitions: make(map[string]domain.Competition),
		referrals:    make(map[string]domain.Referral),
		channels:     make(map[string]domain.Channel),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrUserExists
	}
	if s.codeTaken(user.ReferralCode, user.ID) {
		return domain.ErrReferralCodeTaken
	}
	s.users[user.ID] = user.Clone()
	if user.ReferralCode != "" {
		s.byCode[user.ReferralCode] = user.ID
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (domain.User, error) {
	s.mu.RLock()
	id, ok := s.byCode[code]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpdateUser(_ context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateUserLocked(userID, mutate)
}

func (s *Store) updateUserLocked(userID string, mutate func(*domain.User) error) (domain.User, error) {
	current, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return domain.User{}, err
	}
	if next.ReferralCode != current.ReferralCode {
		if s.codeTaken(next.ReferralCode, userID) {
			return domain.User{}, domain.ErrReferralCodeTaken
		}
		delete(s.byCode, current.ReferralCode)
		if next.ReferralCode != "" {
			s.byCode[next.ReferralCode] = userID
		}
	}
	s.users[userID] = next
	return next.Clone(), nil
}

func (s *Store) codeTaken(code, userID string) bool {
	owner, ok := s.byCode[code]
	return code != "" && ok && owner != userID
}

func (s *Store) ListActiveUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.IsActive {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *Store) ResetPoints(_ context.Context, bucket domain.PointBucket) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, u := range s.users {
		if !u.IsActive {
			continue
		}
		switch bucket {
		case domain.BucketDaily:
			u.DailyPoints = 0
		case domain.BucketWeekly:
			u.WeeklyPoints = 0
		case domain.BucketMonthly:
			u.MonthlyPoints = 0
		}
		s.users[id] = u
		n++
	}
	return n, nil
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt.Clone()
	return nil
}

func (s *Store) GetAttempt(_ context.Context, attemptID string) (domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (s *Store) UpdateAttempt(_ context.Context, attemptID string, mutate func(*domain.QuizAttempt) error) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[attemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return domain.QuizAttempt{}, err
	}
	s.attempts[attemptID] = next
	return next.Clone(), nil
}

func (s *Store) HasCompletion(_ context.Context, userID, quizID, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completions[completionKey{userID, quizID, key}]
	return ok, nil
}

func (s *Store) CommitCompletion(_ context.Context, attemptID string, finalize func(*domain.QuizAttempt) error, mutate func(domain.QuizAttempt, *domain.User) error) (domain.QuizAttempt, domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[attemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.User{}, domain.ErrAttemptNotFound
	}
	if stored.Status != domain.AttemptInProgress {
		return domain.QuizAttempt{}, domain.User{}, domain.ErrAttemptCompleted
	}
	done := stored.Clone()
	if err := finalize(&done); err != nil {
		return domain.QuizAttempt{}, domain.User{}, err
	}
	done.ID, done.UserID, done.QuizID = stored.ID, stored.UserID, stored.QuizID
	ck := completionKey{done.UserID, done.QuizID, done.CompletionKey}
	if _, dup := s.completions[ck]; dup {
		return domain.QuizAttempt{}, domain.User{}, domain.ErrDuplicateCompletion
	}
	user, err := s.updateUserLocked(done.UserID, func(u *domain.User) error {
		return mutate(done, u)
	})
	if err != nil {
		return domain.QuizAttempt{}, domain.User{}, err
	}
	s.attempts[attemptID] = done
	s.completions[ck] = attemptID
	return done.Clone(), user, nil
}

func (s *Store) ListCompletedAttempts(_ context.Context, userID string, offset, limit int) ([]domain.QuizAttempt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var done []domain.QuizAttempt
	for _, a := range s.attempts {
		if a.UserID == userID && a.Status == domain.AttemptCompleted {
			done = append(done, a)
		}
	}
	slices.SortFunc(done, func(a, b domain.QuizAttempt) int {
		if c := b.CompletedAt.Compare(a.CompletedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	out := []domain.QuizAttempt{}
	for i := offset; i < len(done) && i < offset+limit; i++ {
		out = append(out, done[i].Clone())
	}
	return out, len(done), nil
}

func (s *Store) CreateCompetition(_ context.Context, competition domain.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.competitions[competition.ID]; ok {
		return domain.ErrCompetitionExists
	}
	s.competitions[competition.ID] = competition.Clone()
	return nil
}

func (s *Store) GetCompetition(_ context.Context, competitionID string) (domain.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.competitions[competitionID]
	if !ok {
		return domain.Competition{}, domain.ErrCompetitionNotFound
	}
	return c.Clone(), nil
}

func (s *Store) UpdateCompetition(_ context.Context, competitionID string, mutate func(*domain.Competition) error) (domain.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.competitions[competitionID]
	if !ok {
		return domain.Competition{}, domain.ErrCompetitionNotFound
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return domain.Competition{}, err
	}
	s.competitions[competitionID] = next
	return next.Clone(), nil
}

func (s *Store) ListCompetitions(_ context.Context) ([]domain.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Competition, 0, len(s.competitions))
	for _, c := range s.competitions {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Competition) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateReferredUser(_ context.Context, user domain.User, referral domain.Referral, reward func(*domain.User) error) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return domain.User{}, domain.ErrUserExists
	}
	for _, r := range s.referrals {
		if r.ReferredUserID == referral.ReferredUserID {
			return domain.User{}, domain.ErrAlreadyReferred
		}
	}
	if s.codeTaken(user.ReferralCode, user.ID) {
		return domain.User{}, domain.ErrReferralCodeTaken
	}
	if _, err := s.updateUserLocked(referral.ReferrerID, reward); err != nil {
		return domain.User{}, err
	}
	s.users[user.ID] = user.Clone()
	if user.ReferralCode != "" {
		s.byCode[user.ReferralCode] = user.ID
	}
	s.referrals[referral.ID] = referral
	return user.Clone(), nil
}

func (s *Store) ListReferrals(_ context.Context, referrerID string) ([]domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Referral{}
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Referral) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) CreateChannel(_ context.Context, channel domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel.ID]; ok {
		return domain.ErrChannelExists
	}
	s.channels[channel.ID] = channel
	return nil
}

func (s *Store) GetChannel(_ context.Context, channelID string) (domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[channelID]
	if !ok {
		return domain.Channel{}, domain.ErrChannelNotFound
	}
	return c, nil
}

func (s *Store) ListChannels(_ context.Context) ([]domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Channel) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
