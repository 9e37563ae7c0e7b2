package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	monthYearPattern = regexp.MustCompile(`(\d{2})[.\-/](\d{4})`)
	yearMonthPattern = regexp.MustCompile(`(\d{4})[.\-/]?(\d{2})`)

	isoLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

// ParseMonth extracts the month (1-12) from a reporting period label.
//
// It tries an ISO date first, then MM.YYYY (also - and /), then YYYYMM or
// YYYY-MM. It reports false when no pattern yields a month in range.
func ParseMonth(rep string) (int, bool) {
	s := strings.TrimSpace(rep)
	if s == "" {
		return 0, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return int(t.Month()), true
		}
	}
	if m := monthYearPattern.FindStringSubmatch(s); m != nil {
		if n, ok := validMonth(m[1]); ok {
			return n, true
		}
	}
	if m := yearMonthPattern.FindStringSubmatch(s); m != nil {
		return validMonth(m[2])
	}
	return 0, false
}

func validMonth(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return n, true
}

// Quarter maps a month to its quarter number, 0 for out-of-range months.
func Quarter(month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	return (month-1)/3 + 1
}

// QuarterLabel returns "Q1".."Q4".
func QuarterLabel(q int) string {
	return fmt.Sprintf("Q%d", q)
}
