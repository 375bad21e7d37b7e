package pipeline

import "time"

// wallClockMs is the default Clock: real wall-clock milliseconds since the
// epoch. Tests supply a deterministic Clock via WithClock instead of
// calling this.
func wallClockMs() int64 {
	return time.Now().UnixMilli()
}
