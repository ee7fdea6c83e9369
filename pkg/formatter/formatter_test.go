package formatter

import (
	"testing"
	"time"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{1250, "1.2k"},
		{1_500_000, "1.5M"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.n); got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"seconds", now.Add(-30 * time.Second), "Just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m"},
		{"hours", now.Add(-3 * time.Hour), "3h"},
		{"days", now.Add(-2 * 24 * time.Hour), "2d"},
		{"zero", time.Time{}, "Just now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.at, now); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}

	old := now.Add(-30 * 24 * time.Hour)
	if got := TimeAgo(old, now); got != old.Local().Format("Jan 2") {
		t.Errorf("older posts should show a date, got %q", got)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	if got := RelativeTime(now.Add(-10*time.Second), now); got != "just now" {
		t.Errorf("RelativeTime = %q", got)
	}
	if got := RelativeTime(now.Add(-3*time.Hour), now); got != "3 hours ago" {
		t.Errorf("RelativeTime = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		max    int
		expect string
	}{
		{"short", 10, "short"},
		{"a very long string that exceeds limit", 10, "a very ..."},
		{"line\nbreak", 20, "line break"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.expect {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expect)
		}
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{7, "7"},
		{99, "99"},
		{100, "99+"},
	}
	for _, tt := range tests {
		if got := Badge(tt.n); got != tt.want {
			t.Errorf("Badge(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPluralize(t *testing.T) {
	if Pluralize(1) != "" || Pluralize(0) != "s" || Pluralize(2) != "s" {
		t.Error("unexpected pluralization")
	}
}
