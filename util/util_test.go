package util_test

import (
	"testing"
	"time"

	"github.com/nasa-jpl/newportmc/util"
)

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampPassthrough(t *testing.T) {
	clamped := util.Clamp(5, 0, 10)
	if clamped != 5 {
		t.Errorf("expected in-range value to pass through, got %f", clamped)
	}
}

func TestLimiterInRange(t *testing.T) {
	l := util.Limiter{Min: -5, Max: 5}
	if !l.Check(0) {
		t.Error("expected in-range value to pass the limiter")
	}
	if l.Check(6) {
		t.Error("expected out of range value to fail the limiter")
	}
	if l.Check(-6) {
		t.Error("expected out of range value to fail the limiter")
	}
}

func TestLimiterZeroValueAdmitsAll(t *testing.T) {
	l := util.Limiter{}
	if !l.Check(1e9) {
		t.Error("expected zero valued limiter to admit everything")
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}
