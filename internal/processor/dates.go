package processor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	relativeEN = regexp.MustCompile(`^(\d+)\s*(second|sec|minute|min|hour|hr|day|week|month)s?\s+ago$`)
	relativeJA = regexp.MustCompile(`^(\d+)\s*(秒|分|時間|日|週間|か月|ヶ月)前$`)
	absoluteJA = regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

var relativeUnits = map[string]time.Duration{
	"second": time.Second, "sec": time.Second, "秒": time.Second,
	"minute": time.Minute, "min": time.Minute, "分": time.Minute,
	"hour": time.Hour, "hr": time.Hour, "時間": time.Hour,
	"day": 24 * time.Hour, "日": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "週間": 7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour, "か月": 30 * 24 * time.Hour, "ヶ月": 30 * 24 * time.Hour,
}

// ParsePublished turns a provider date string into a timestamp. It accepts
// RFC 3339, the free-form layouts dateparse understands, Japanese
// "2024年5月10日" dates and relative forms such as "3 hours ago" or
// "3時間前". Missing or unparsable values yield the zero time.
func ParsePublished(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	lower := strings.ToLower(s)
	switch lower {
	case "just now", "たった今":
		return now
	case "yesterday", "昨日":
		return now.Add(-24 * time.Hour)
	}

	if m := relativeEN.FindStringSubmatch(lower); m != nil {
		return relative(now, m[1], m[2])
	}
	if m := relativeJA.FindStringSubmatch(s); m != nil {
		return relative(now, m[1], m[2])
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}

	if m := absoluteJA.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		}
		return time.Time{}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func relative(now time.Time, n, unit string) time.Time {
	count, err := strconv.Atoi(n)
	if err != nil {
		return time.Time{}
	}
	return now.Add(-time.Duration(count) * relativeUnits[unit])
}
