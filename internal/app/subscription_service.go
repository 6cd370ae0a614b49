package app

import (
	"context"
	"errors"
	"strings"

	"quiz-arena-service/internal/domain"
)

// SubscriptionService keeps the channel registry and rewards subscriptions to
// registered channels once per channel. Rewards always come from the registry.
type SubscriptionService struct {
	users    UserRepository
	channels ChannelRepository
	settings
}

func NewSubscriptionService(users UserRepository, channels ChannelRepository, opts ...Option) *SubscriptionService {
	return &SubscriptionService{users: users, channels: channels, settings: newSettings(opts)}
}

// ChannelDraft describes a channel to register. A nil Reward means
// domain.DefaultChannelReward.
type ChannelDraft struct {
	ID              string
	Username        string
	Title           string
	Description     string
	MemberCount     int
	Reward          *int64
	RequiredForQuiz bool
}

// RegisterChannel adds an active channel to the registry.
func (s *SubscriptionService) RegisterChannel(ctx context.Context, draft ChannelDraft) (domain.Channel, error) {
	id := strings.TrimSpace(draft.ID)
	if id == "" {
		return domain.Channel{}, domain.ErrInvalidChannel
	}
	c := domain.NewChannel(id, strings.TrimPrefix(draft.Username, "@"), draft.Title, s.now())
	c.Description = draft.Description
	c.MemberCount = draft.MemberCount
	c.RequiredForQuiz = draft.RequiredForQuiz
	if draft.Reward != nil {
		c.Reward = *draft.Reward
	}
	if err := validateGrant(c.Reward, domain.SourceSubscription); err != nil {
		return domain.Channel{}, err
	}
	if err := s.channels.CreateChannel(ctx, c); err != nil {
		return domain.Channel{}, err
	}
	s.logger.Info("channel registered", "channel_id", c.ID, "points", c.Reward)
	return c, nil
}

// Channels lists the active channels.
func (s *SubscriptionService) Channels(ctx context.Context) ([]domain.Channel, error) {
	all, err := s.channels.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Channel, 0, len(all))
	for _, c := range all {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// RecordSubscription stores the subscription to a registered, active channel
// and grants the channel's reward. It returns the points earned, which is zero
// when the user was already subscribed.
func (s *SubscriptionService) RecordSubscription(ctx context.Context, userID, channelID string) (int64, error) {
	channel, err := s.channels.GetChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if !channel.IsActive {
		return 0, domain.ErrChannelNotFound
	}
	if err := validateGrant(channel.Reward, domain.SourceSubscription); err != nil {
		return 0, err
	}
	now := s.now()
	_, err = s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		if u.SubscribedTo(channel.ID) {
			return errNoChange
		}
		u.Subscriptions = append(u.Subscriptions, domain.Subscription{
			ChannelID:       channel.ID,
			ChannelUsername: channel.Username,
			ChannelTitle:    channel.Title,
			PointsEarned:    channel.Reward,
			SubscribedAt:    now,
		})
		applyPoints(u, channel.Reward, domain.SourceSubscription)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("channel subscription rewarded", "user_id", userID, "channel_id", channel.ID, "points", channel.Reward)
	return channel.Reward, nil
}
