package dialog

import (
	"strings"
	"time"
)

var travelDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
}

// ParseTravelDate tries the date formats riders commonly type and
// normalizes the result to YYYY-MM-DD.
func ParseTravelDate(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	for _, layout := range travelDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
