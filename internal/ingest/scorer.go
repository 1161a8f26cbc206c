package ingest

import (
	"math"
	"time"
)

const FullAndOpenCompetition = "Full and Open Competition"

const (
	baseScore = 5
	minScore  = 1
	maxScore  = 10
)

// Score rates an opportunity from 1 to 10. Nil inputs contribute nothing.
func Score(value *float64, competitionType string, daysUntilDeadline *int) int {
	score := baseScore

	if value != nil {
		switch v := *value; {
		case v > 1_000_000:
			score += 3
		case v > 500_000:
			score += 2
		case v > 100_000:
			score++
		}
	}

	if competitionType == FullAndOpenCompetition {
		score++
	}

	if daysUntilDeadline != nil {
		switch d := *daysUntilDeadline; {
		case d > 30:
			score++
		case d < 7:
			score--
		}
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// DaysUntil returns whole days from now to deadline, rounded toward negative infinity.
func DaysUntil(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	days := int(math.Floor(deadline.Sub(now).Hours() / 24))
	return &days
}
