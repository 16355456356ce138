package schedule

import (
	"regexp"
	"strings"
	"time"
)

var (
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	slotPattern  = regexp.MustCompile(`^\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*$`)
)

// ParseClock validates an "HH:MM" string (hour 0-23, minute 0-59) and
// returns it in canonical zero-padded form.
func ParseClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !clockPattern.MatchString(s) {
		return "", false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", false
	}
	return t.Format("15:04"), true
}

// ExpandTimeSlot converts a "HH:MM-HH:MM" slot into concrete departure
// times spaced by interval, starting at the lower bound and including any
// time equal to the upper bound. A slot that does not match the pattern,
// or whose bounds are not valid clock times, contributes nothing.
func ExpandTimeSlot(slot string, interval time.Duration) []string {
	m := slotPattern.FindStringSubmatch(slot)
	if m == nil {
		return nil
	}
	start, err := time.Parse("15:04", m[1])
	if err != nil {
		return nil
	}
	end, err := time.Parse("15:04", m[2])
	if err != nil {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}

	var out []string
	for t := start; !t.After(end); t = t.Add(interval) {
		out = append(out, t.Format("15:04"))
	}
	return out
}
