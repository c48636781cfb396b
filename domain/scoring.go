package domain

// Points are capped at MaxPoints and floored at zero. A fresh or purged
// profile starts at StartingPoints.
const (
	MaxPoints      = 120
	StartingPoints = 10
)

// rankThresholds maps rank r to the minimum points for that rank at index
// r-1. Rank 1 requires zero points and is always satisfied.
var rankThresholds = []int{0, 10, 20, 40, 60, 80, 120}

// RankOf returns the largest rank whose threshold the points satisfy.
// Monotonically non-decreasing in points.
func RankOf(points int) int {
	rank := 1
	for i, th := range rankThresholds {
		if points >= th {
			rank = i + 1
		}
	}
	return rank
}

// NextThreshold returns the smallest configured threshold strictly greater
// than points. When points sit at or above the top tier there is no higher
// threshold; the lowest non-zero threshold is returned as the sentinel.
func NextThreshold(points int) int {
	for _, th := range rankThresholds {
		if points < th {
			return th
		}
	}
	return rankThresholds[1]
}

// ApplySuccess returns the profile after a successful completion. The base
// reward grows with the estimate (6h per point, 1..5) and the time bonus
// pays one point per full remaining hour, capped at 5.
func ApplySuccess(p Profile, t Task, remainingSeconds int64) Profile {
	base := baseReward(t.EstimateMinutes)
	bonus := remainingSeconds / 3600
	if bonus < 0 {
		bonus = 0
	}
	if bonus > 5 {
		bonus = 5
	}
	p.Points += base + int(bonus)
	if p.Points > MaxPoints {
		p.Points = MaxPoints
	}
	return p
}

// ApplyFailure returns the profile after a failure or withdrawal. The
// penalty is three times the base reward the task would have paid.
func ApplyFailure(p Profile, t Task) Profile {
	p.Points -= 3 * baseReward(t.EstimateMinutes)
	if p.Points < 0 {
		p.Points = 0
	}
	return p
}

func baseReward(estimateMinutes int) int {
	base := estimateMinutes / 60 / 6
	if base < 1 {
		base = 1
	}
	if base > 5 {
		base = 5
	}
	return base
}
