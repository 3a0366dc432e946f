package reservation

import "time"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a plain function, e.g. a test's fixed instant.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
