// Package gamification holds the pure arithmetic behind points, levels, streaks,
// accuracy and prizes. Nothing here performs I/O.
package gamification

import (
	"fmt"
	"math"

	"quiz-arena-service/internal/domain"
)

const (
	baseThreshold = 1000
	growthFactor  = 1.5
)

// Level is a position on the level curve.
type Level struct {
	Level              int   `json:"level"`
	Experience         int64 `json:"experience"`
	NextLevelThreshold int64 `json:"nextLevelThreshold"`
}

// ComputeLevel walks the geometric level curve for totalPoints.
// Negative input is treated as zero.
func ComputeLevel(totalPoints int64) Level {
	if totalPoints < 0 {
		totalPoints = 0
	}
	level := 1
	remaining := totalPoints
	threshold := thresholdFor(level)
	for remaining >= threshold && level < domain.MaxLevel {
		remaining -= threshold
		level++
		threshold = thresholdFor(level)
	}
	return Level{Level: level, Experience: remaining, NextLevelThreshold: threshold}
}

// thresholdFor is the cost of leaving level, saturating at MaxInt64.
func thresholdFor(level int) int64 {
	f := math.Floor(baseThreshold * math.Pow(growthFactor, float64(level-1)))
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// LevelTitle names a level for display.
func LevelTitle(level int) string {
	switch {
	case level >= 1 && level <= 3:
		return "Beginner"
	case level >= 4 && level <= 6:
		return "Intermediate"
	case level >= 7 && level <= 9:
		return "Advanced"
	case level >= 10 && level <= 12:
		return "Expert"
	case level >= 13 && level <= 14:
		return "Master"
	case level >= 15 && level <= 17:
		return "Grand Master"
	case level >= 18 && level <= 20:
		return "Legend"
	default:
		return fmt.Sprintf("Level %d", level)
	}
}
