package app

import "time"

// Default penalty amounts subtracted for a wrong submission. Which one
// applies depends on how many of the question's options are correct.
const (
	DefaultSmallSetPenalty = 1000
	DefaultLargeSetPenalty = 2000
)

// Scoring holds the penalty policy for a session. The award formula itself
// is fixed; only the penalty constants are tunable.
type Scoring struct {
	SmallSetPenalty float64
	LargeSetPenalty float64
}

// DefaultScoring returns the stock penalty policy.
func DefaultScoring() Scoring {
	return Scoring{
		SmallSetPenalty: DefaultSmallSetPenalty,
		LargeSetPenalty: DefaultLargeSetPenalty,
	}
}

// CorrectPoints returns the award for a correct submission at the given
// elapsed time into the window. The award decays linearly from maxPoints at
// zero elapsed to minPoints at the full duration, and is zero once the
// window has expired.
func CorrectPoints(elapsed, duration time.Duration, minPoints, maxPoints float64) float64 {
	if duration <= 0 || elapsed > duration {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return maxPoints - (maxPoints-minPoints)/duration.Seconds()*elapsed.Seconds()
}

// WrongPenalty returns the amount subtracted for a wrong submission. The
// larger penalty applies only when more than half of the options are
// correct.
func (s Scoring) WrongPenalty(correctCount, totalCount int) float64 {
	if correctCount*2 <= totalCount {
		return s.SmallSetPenalty
	}
	return s.LargeSetPenalty
}
