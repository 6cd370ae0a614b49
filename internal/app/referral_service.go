package app

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/google/uuid"

	"quiz-arena-service/internal/domain"
)

const (
	// DefaultReferralReward is granted to the referrer per completed signup.
	DefaultReferralReward int64 = 500

	referralPrefix   = "REF"
	referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralLength   = 8
	// referralAttempts bounds how often a colliding code is regenerated.
	referralAttempts = 5
)

// Registration is the identity a new user arrives with.
type Registration struct {
	ID          string
	DisplayName string
	Username    string
}

// ReferralService issues referral codes and rewards referrers on signup.
type ReferralService struct {
	users     UserRepository
	referrals ReferralRepository
	reward    int64
	settings
}

func NewReferralService(users UserRepository, referrals ReferralRepository, reward int64, opts ...Option) *ReferralService {
	if reward <= 0 {
		reward = DefaultReferralReward
	}
	return &ReferralService{users: users, referrals: referrals, reward: reward, settings: newSettings(opts)}
}

// IssueCode returns the user's referral code, creating one on first use.
func (s *ReferralService) IssueCode(ctx context.Context, userID string) (string, error) {
	var code string
	err := retryOnCodeCollision(func() error {
		var err error
		code, err = s.issueCode(ctx, userID)
		return err
	})
	return code, err
}

func (s *ReferralService) issueCode(ctx context.Context, userID string) (string, error) {
	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		if u.ReferralCode != "" {
			return errNoChange
		}
		code, err := newReferralCode()
		if err != nil {
			return err
		}
		u.ReferralCode = code
		return nil
	})
	if errors.Is(err, errNoChange) {
		u, err = s.users.GetUser(ctx, userID)
	}
	if err != nil {
		return "", err
	}
	return u.ReferralCode, nil
}

// SignUp registers reg through code and rewards the code's owner. The new
// user, the referral and the reward are written together or not at all.
func (s *ReferralService) SignUp(ctx context.Context, code string, reg Registration) (domain.User, error) {
	referrer, err := s.users.GetUserByReferralCode(ctx, code)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidReferralCode
	}
	if err != nil {
		return domain.User{}, err
	}
	if referrer.ID == reg.ID {
		return domain.User{}, domain.ErrInvalidReferralCode
	}

	var user domain.User
	err = retryOnCodeCollision(func() error {
		var err error
		user, err = s.signUp(ctx, code, referrer, reg)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("referral completed", "referrer_id", referrer.ID, "user_id", user.ID, "points", s.reward)
	return user, nil
}

func (s *ReferralService) signUp(ctx context.Context, code string, referrer domain.User, reg Registration) (domain.User, error) {
	now := s.now()
	user := domain.NewUser(reg.ID, reg.DisplayName, reg.Username, now)
	user.ReferredBy = referrer.ID
	var err error
	if user.ReferralCode, err = newReferralCode(); err != nil {
		return domain.User{}, err
	}
	referral := domain.Referral{
		ID:             uuid.NewString(),
		ReferrerID:     referrer.ID,
		ReferredUserID: user.ID,
		ReferralCode:   code,
		PointsEarned:   s.reward,
		Status:         domain.ReferralCompleted,
		CreatedAt:      now,
		CompletedAt:    now,
	}
	return s.referrals.CreateReferredUser(ctx, user, referral, func(u *domain.User) error {
		u.TotalReferrals++
		applyPoints(u, s.reward, domain.SourceReferral)
		return nil
	})
}

// ReferrerStanding is one row of the referral leaderboard.
type ReferrerStanding struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	Username       string `json:"username,omitempty"`
	TotalReferrals int    `json:"totalReferrals"`
	ReferralPoints int64  `json:"referralPoints"`
}

// Leaderboard ranks active users with at least one referral by referral count,
// then referral points, then id.
func (s *ReferralService) Leaderboard(ctx context.Context, limit int) ([]ReferrerStanding, error) {
	_, limit = clampPage(0, limit)
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	referrers := slices.DeleteFunc(users, func(u domain.User) bool { return u.TotalReferrals == 0 })
	slices.SortFunc(referrers, func(a, b domain.User) int {
		if c := cmp.Compare(b.TotalReferrals, a.TotalReferrals); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ReferralPoints, a.ReferralPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	out := make([]ReferrerStanding, 0, min(limit, len(referrers)))
	for i, u := range referrers {
		if i == limit {
			break
		}
		out = append(out, ReferrerStanding{
			Rank:           i + 1,
			UserID:         u.ID,
			DisplayName:    u.DisplayName,
			Username:       u.Username,
			TotalReferrals: u.TotalReferrals,
			ReferralPoints: u.ReferralPoints,
		})
	}
	return out, nil
}

// Referrals lists the referrals credited to referrerID.
func (s *ReferralService) Referrals(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	return s.referrals.ListReferrals(ctx, referrerID)
}

// retryOnCodeCollision reruns fn while storage reports the generated referral
// code as taken.
func retryOnCodeCollision(fn func() error) error {
	var err error
	for i := 0; i < referralAttempts; i++ {
		if err = fn(); !errors.Is(err, domain.ErrReferralCodeTaken) {
			return err
		}
	}
	return err
}

func newReferralCode() (string, error) {
	out := make([]byte, 0, len(referralPrefix)+referralLength)
	out = append(out, referralPrefix...)
	size := big.NewInt(int64(len(referralAlphabet)))
	for i := 0; i < referralLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		out = append(out, referralAlphabet[n.Int64()])
	}
	return string(out), nil
}
