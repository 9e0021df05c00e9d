// Package schedule computes wall-clock aligned collection times.
//
// Cycles land on multiples of the interval counted from the top of the hour
// (or from local midnight for intervals longer than an hour). Every call
// re-derives the boundary from the clock it is given, so clock adjustments and
// slow cycles self-correct instead of accumulating drift.
package schedule

import "time"

const (
	MinInterval = 1
	MaxInterval = 24 * 60
)

// Scheduler aligns cycles to Interval-minute boundaries.
type Scheduler struct {
	Interval int // minutes
}

func New(interval int) Scheduler {
	return Scheduler{Interval: Clamp(interval)}
}

// Clamp bounds an interval in minutes to [MinInterval, MaxInterval].
func Clamp(interval int) int {
	if interval < MinInterval {
		return MinInterval
	}
	if interval > MaxInterval {
		return MaxInterval
	}
	return interval
}

// Next returns the boundary the next cycle should fire at. When now sits on a
// boundary (second zero) the boundary is the current minute.
//
// Boundaries reset at the top of each hour: with an interval that does not
// divide 60 the last slot of the hour is shortened, e.g. 7 gives
// :00 :07 ... :56 and then :00 again.
func (s Scheduler) Next(now time.Time) time.Time {
	interval := Clamp(s.Interval)
	minuteStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())

	pos, span := now.Minute(), 60
	if interval > 60 {
		pos, span = now.Hour()*60+now.Minute(), MaxInterval
	}

	wait := interval - pos%interval
	if wait == interval && now.Second() == 0 {
		wait = 0
	}
	if remaining := span - pos; wait > remaining {
		wait = remaining
	}
	return minuteStart.Add(time.Duration(wait) * time.Minute)
}

// NextAfter is Next, except that a boundary equal to last is never returned
// again: a cycle finishing inside the boundary second waits for the following
// slot.
func (s Scheduler) NextAfter(now, last time.Time) time.Time {
	next := s.Next(now)
	if !last.IsZero() && next.Equal(last) {
		next = s.Next(now.Truncate(time.Minute).Add(time.Minute))
	}
	return next
}

// Wait returns how long to sleep from now until Next(now), never negative.
func (s Scheduler) Wait(now time.Time) time.Duration {
	d := s.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
