package app

import (
	"context"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

// UserService covers registration and profile reads.
type UserService struct {
	users UserRepository
	settings
}

func NewUserService(users UserRepository, opts ...Option) *UserService {
	return &UserService{users: users, settings: newSettings(opts)}
}

// Profile is a user with their position on the level curve.
type Profile struct {
	User       domain.User        `json:"user"`
	Progress   gamification.Level `json:"progress"`
	LevelTitle string             `json:"levelTitle"`
}

func (s *UserService) Register(ctx context.Context, reg Registration) (domain.User, error) {
	user := domain.NewUser(reg.ID, reg.DisplayName, reg.Username, s.now())
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	lvl := gamification.ComputeLevel(u.TotalPoints)
	return Profile{User: u, Progress: lvl, LevelTitle: gamification.LevelTitle(lvl.Level)}, nil
}

// Deactivate removes the user from every ranking without deleting them.
func (s *UserService) Deactivate(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		u.IsActive = false
		u.Rank = domain.Unranked
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user deactivated", "user_id", userID)
	return u, nil
}
