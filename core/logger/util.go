package logger

import "time"

// Status is "ok" for a nil error and "fail" otherwise.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Took is the millisecond-rounded time elapsed since start.
func Took(start time.Time) time.Duration { return RoundMS(time.Since(start)) }

func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
