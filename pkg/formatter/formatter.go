package formatter

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// FormatCount renders counters the way cards show them: 999, 1.2k, 3.4M.
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "k"
	default:
		return strconv.Itoa(n)
	}
}

// TimeAgo is the compact relative time shown on post headers.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "Just now"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + "h"
	case d < 7*24*time.Hour:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d"
	default:
		return t.Local().Format("Jan 2")
	}
}

// RelativeTime is the long form used in draft and notification lists.
func RelativeTime(t, now time.Time) string {
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FileSize renders a byte count for error messages.
func FileSize(n int64) string {
	return humanize.IBytes(uint64(n))
}

// Truncate shortens s to max runes, appending "..."
func Truncate(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// Pluralize returns "s" unless count is exactly one.
func Pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}

// Badge caps unread counters at 99+. Zero renders empty.
func Badge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}
