package clock

import "time"

// Clock abstracts the time source so deadline checks stay testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the real UTC clock.
func System() Clock {
	return systemClock{}
}

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	current time.Time
}

// NewFixed creates a fixed clock starting at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{current: t}
}

func (f *Fixed) Now() time.Time { return f.current }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

// Set jumps the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.current = t
}
