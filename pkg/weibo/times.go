package weibo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the single fixed-precision form every timestamp is normalized
// to before storage. The layout sorts lexicographically, which the cursor
// monotonicity check relies on.
const TimeLayout = "2006-01-02 15:04"

var (
	minutesAgoRe = regexp.MustCompile(`(\d+)\s*分钟前`)
	hoursAgoRe   = regexp.MustCompile(`(\d+)\s*小时前`)
	yesterdayRe  = regexp.MustCompile(`昨天\s*(\d{1,2}):(\d{2})`)
	monthDayRe   = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`)
	shortYearRe  = regexp.MustCompile(`^(\d{2})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})$`)
	fullYearRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})$`)
)

// NormalizeTime converts any of the source's time forms (relative "3小时前",
// date-only "07-15", short or full datetimes, RFC 2822) to TimeLayout.
// Unrecognized input is returned unchanged.
func NormalizeTime(s string) string {
	return NormalizeTimeAt(s, time.Now())
}

// NormalizeTimeAt is NormalizeTime with an explicit reference time.
func NormalizeTimeAt(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "刚刚") {
		return now.Format(TimeLayout)
	}

	if m := minutesAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Minute).Format(TimeLayout)
	}

	if m := hoursAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Hour).Format(TimeLayout)
	}

	if m := yesterdayRe.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		y := now.AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), hour, minute, 0, 0, now.Location()).Format(TimeLayout)
	}

	// MM-DD, current year
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location()).Format(TimeLayout)
	}

	// YY-MM-DD HH:MM
	if m := shortYearRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		return fmt.Sprintf("%d-%02d-%02d %02d:%s", 2000+year, month, day, hour, m[5])
	}

	// YYYY-MM-DD HH:MM, already the target form modulo zero padding
	if m := fullYearRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		return fmt.Sprintf("%d-%02d-%02d %02d:%s", year, month, day, hour, m[5])
	}

	// RFC 2822 form used by the API: "Wed Jan 01 12:00:00 +0800 2025"
	if t, err := time.Parse("Mon Jan 02 15:04:05 -0700 2006", s); err == nil {
		return t.Format(TimeLayout)
	}

	return s
}

// ParseStored parses a normalized timestamp back into a time.Time.
func ParseStored(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}
