package app

import (
	"cmp"
	"slices"

	"quiz-arena-service/internal/domain"
)

// compareStanding orders by points desc, accuracy desc, quizzes completed desc,
// and finally id asc so equal records still rank deterministically.
func compareStanding(aPoints, bPoints int64, aAcc, bAcc float64, aDone, bDone int, aID, bID string) int {
	if c := cmp.Compare(bPoints, aPoints); c != 0 {
		return c
	}
	if c := cmp.Compare(bAcc, aAcc); c != 0 {
		return c
	}
	if c := cmp.Compare(bDone, aDone); c != 0 {
		return c
	}
	return cmp.Compare(aID, bID)
}

func sortUsers(users []domain.User, tf domain.Timeframe) {
	slices.SortFunc(users, func(a, b domain.User) int {
		return compareStanding(a.BucketPoints(tf), b.BucketPoints(tf), a.Accuracy, b.Accuracy,
			a.QuizzesCompleted, b.QuizzesCompleted, a.ID, b.ID)
	})
}

func sortParticipants(participants []domain.Participant) {
	slices.SortFunc(participants, func(a, b domain.Participant) int {
		return compareStanding(a.Points, b.Points, a.Accuracy, b.Accuracy,
			a.QuizzesCompleted, b.QuizzesCompleted, a.UserID, b.UserID)
	})
}

func sortEntries(entries []domain.LeaderboardEntry) {
	slices.SortFunc(entries, func(a, b domain.LeaderboardEntry) int {
		return compareStanding(a.Points, b.Points, a.Accuracy, b.Accuracy,
			a.QuizzesCompleted, b.QuizzesCompleted, a.UserID, b.UserID)
	})
}

// clampPage applies the shared paging defaults: offset at least 0, limit 50
// when unset or above maxPageLimit.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = 50
	}
	return offset, limit
}
