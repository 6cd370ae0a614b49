package app

import (
	"errors"
	"io"
	"log/slog"
	"time"
)

// Option tunes a service's clock, logger and calendar.
type Option func(*settings)

type settings struct {
	now    func() time.Time
	logger *slog.Logger
	loc    *time.Location
}

func newSettings(opts []Option) settings {
	s := settings{
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the timezone that defines calendar days for streaks and daily quizzes.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// errNoChange is returned from a mutate callback to skip the write.
var errNoChange = errors.New("no change")
