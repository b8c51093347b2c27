package cmd

import (
	"fmt"
	"math"
	"time"
)

var relativeUnits = []struct {
	below time.Duration
	size  time.Duration
	name  string
}{
	{time.Hour, time.Minute, "minute"},
	{24 * time.Hour, time.Hour, "hour"},
	{7 * 24 * time.Hour, 24 * time.Hour, "day"},
	{math.MaxInt64, 7 * 24 * time.Hour, "week"},
}

// FormatRelativeTime describes t relative to now, e.g. "3 days ago".
func FormatRelativeTime(t, now time.Time) string {
	delta := t.Sub(now)
	abs := delta.Abs()
	if abs < time.Minute {
		return "just now"
	}

	for _, unit := range relativeUnits {
		if abs >= unit.below {
			continue
		}
		n := int(math.Round(float64(abs) / float64(unit.size)))
		label := unit.name
		if n != 1 {
			label += "s"
		}
		if delta < 0 {
			return fmt.Sprintf("%d %s ago", n, label)
		}
		return fmt.Sprintf("in %d %s", n, label)
	}
	return t.Format(time.DateOnly)
}
