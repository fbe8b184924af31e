// Package util contains misc internal utilities.
package util

import "time"

// Clamp restricts x to the range [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// Limiter is a type that can check if a value is within a range
type Limiter struct {
	// Min is the lower bound
	Min float64 `json:"min"`

	// Max is the upper bound
	Max float64 `json:"max"`
}

// Check returns true if Min <= v <= Max.  A zero valued Limiter
// admits everything.
func (l Limiter) Check(v float64) bool {
	if l.Min == 0 && l.Max == 0 {
		return true
	}
	return l.Min <= v && v <= l.Max
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
func SecsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
