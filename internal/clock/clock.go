package clock

import "time"

// Clock abstracts the wall clock so recovery scheduling can be tested
// against a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real UTC time
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
