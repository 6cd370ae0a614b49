package gamification

import "time"

// Streak is the pair of streak counters after an activity.
type Streak struct {
	Current int `json:"currentStreak"`
	Longest int `json:"longestStreak"`
}

// ComputeStreak derives the streak for an activity at now, given the previous
// activity at lastActive. Calendar days are taken in loc (UTC when nil).
// A zero lastActive counts as a broken streak.
func ComputeStreak(lastActive, now time.Time, current, longest int, loc *time.Location) Streak {
	if loc == nil {
		loc = time.UTC
	}
	today := civilDate(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	if lastActive.IsZero() {
		return Streak{Current: 1, Longest: longest}
	}
	last := civilDate(lastActive, loc)
	switch {
	case last.Equal(yesterday):
		current++
		if current > longest {
			longest = current
		}
	case last.Equal(today):
	default:
		current = 1
	}
	return Streak{Current: current, Longest: longest}
}

// DayStart returns midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
