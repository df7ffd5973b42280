package utils

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// FormatAge renders now-t as a coarse duration: Ns, Nm, Nh or Nd.
func FormatAge(clk clock.PassiveClock, t time.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	d := clk.Since(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int64(d/(24*time.Hour)))
	}
}
