package weibo

import (
	"testing"
	"time"
)

func TestNormalizeTimeAt(t *testing.T) {
	now := time.Date(2025, 7, 15, 14, 30, 0, 0, time.Local)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"just now", "刚刚", "2025-07-15 14:30"},
		{"minutes ago", "5分钟前", "2025-07-15 14:25"},
		{"minutes ago spaced", "12 分钟前", "2025-07-15 14:18"},
		{"hours ago", "3小时前", "2025-07-15 11:30"},
		{"yesterday", "昨天 08:45", "2025-07-14 08:45"},
		{"month-day", "07-01", "2025-07-01 00:00"},
		{"month-day single digit", "3-5", "2025-03-05 00:00"},
		{"short year", "23-12-31 23:59", "2023-12-31 23:59"},
		{"full datetime", "2024-01-02 03:04", "2024-01-02 03:04"},
		{"full datetime unpadded", "2024-1-2 3:04", "2024-01-02 03:04"},
		{"empty", "", ""},
		{"unrecognized passes through", "sometime later", "sometime later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTimeAt(tt.input, now)
			if got != tt.expected {
				t.Errorf("NormalizeTimeAt(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeTimeRFC2822(t *testing.T) {
	got := NormalizeTimeAt("Wed Jan 01 12:00:00 +0800 2025", time.Now())
	// the result is rendered in the local zone, so only check it parses back
	parsed, err := ParseStored(got)
	if err != nil {
		t.Fatalf("result %q does not parse: %v", got, err)
	}
	want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	if !parsed.Equal(want) {
		t.Errorf("parsed %v, want instant %v", parsed, want)
	}
}

func TestNormalizedTimesSortLexicographically(t *testing.T) {
	earlier := "2024-09-30 23:59"
	later := "2024-10-01 00:00"

	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}

	a, _ := ParseStored(earlier)
	b, _ := ParseStored(later)
	if !a.Before(b) {
		t.Errorf("expected %v before %v", a, b)
	}
}
