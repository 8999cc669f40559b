package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tartampluch/birthday-sync/internal/config"
)

var isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// BirthDate parses a YYYY-MM-DD birth date. The result sits at noon UTC so that
// no timezone conversion can move it to another day. Sentinel, malformed,
// overflowing, pre-1900 and future dates are rejected. today is the current
// date in the reference timezone.
func BirthDate(raw string, today time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == config.UnsetBirthDate {
		return time.Time{}, false
	}
	m := isoDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year < config.MinBirthYear {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, config.NeutralHourOfDay, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	if dayAfter(t, today) {
		return time.Time{}, false
	}
	return t, true
}

// SameDay compares calendar dates, ignoring time of day and location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonthDay reports whether a and b fall on the same anniversary.
func SameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}

func dayAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
