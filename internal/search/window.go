// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultYearsBack is the relative window used when no time option is given.
const DefaultYearsBack = 10

// WindowKind tags which time-filter variant a Window carries.
type WindowKind int

const (
	// WindowYearsBack is a relative window ending at the current year.
	WindowYearsBack WindowKind = iota

	// WindowYearRange is an explicit start-year/end-year window.
	WindowYearRange

	// WindowMonthRange is an explicit month-granular window.
	WindowMonthRange
)

// ErrWindowConflict is returned when more than one time option is supplied
// explicitly. It is reported before any network call.
var ErrWindowConflict = errors.New("specify only one of --years-back, --year-range, --month-range")

// Window is the canonical query period. Exactly one variant is active; all
// variants satisfy start <= end in their own unit.
type Window struct {
	Kind WindowKind

	StartYear int
	EndYear   int

	// StartMonth and EndMonth are set for WindowMonthRange only.
	StartMonth time.Month
	EndMonth   time.Month

	// YearsBack is set for WindowYearsBack only.
	YearsBack int
}

// WindowOptions carries the raw CLI time options. YearsBackSet marks an
// explicit --years-back so that an explicit default value still conflicts
// with the other options.
type WindowOptions struct {
	YearsBack    int
	YearsBackSet bool
	YearRange    string
	MonthRange   string
}

// ResolveWindow turns the three mutually-exclusive time options into one
// Window. Precedence when no conflict exists: month range, then year range,
// then years back, then the ten-year default. It is a pure function of its
// inputs; now supplies the current year for relative windows.
func ResolveWindow(opts WindowOptions, now time.Time) (Window, error) {
	explicit := 0
	if opts.YearsBackSet {
		explicit++
	}
	if opts.YearRange != "" {
		explicit++
	}
	if opts.MonthRange != "" {
		explicit++
	}
	if explicit > 1 {
		return Window{}, ErrWindowConflict
	}

	switch {
	case opts.MonthRange != "":
		return parseMonthRange(opts.MonthRange)
	case opts.YearRange != "":
		return parseYearRange(opts.YearRange)
	case opts.YearsBackSet:
		return yearsBackWindow(opts.YearsBack, now)
	default:
		return yearsBackWindow(DefaultYearsBack, now)
	}
}

func yearsBackWindow(n int, now time.Time) (Window, error) {
	if n < 0 {
		return Window{}, fmt.Errorf("years back must be non-negative, got %d", n)
	}
	return Window{
		Kind:      WindowYearsBack,
		StartYear: now.Year() - n,
		EndYear:   now.Year(),
		YearsBack: n,
	}, nil
}

var (
	yearRangePattern  = regexp.MustCompile(`^(\d{4})(?:-(\d{4}))?$`)
	monthRangePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{4})-(\d{2})$`)
)

// parseYearRange accepts "YYYY" (single year) or "YYYY-YYYY".
func parseYearRange(s string) (Window, error) {
	m := yearRangePattern.FindStringSubmatch(s)
	if m == nil {
		return Window{}, fmt.Errorf("invalid year range %q: use \"YYYY\" or \"YYYY-YYYY\"", s)
	}
	start, _ := strconv.Atoi(m[1])
	end := start
	if m[2] != "" {
		end, _ = strconv.Atoi(m[2])
	}
	if start > end {
		return Window{}, fmt.Errorf("invalid year range %q: start year %d after end year %d", s, start, end)
	}
	return Window{Kind: WindowYearRange, StartYear: start, EndYear: end}, nil
}

// parseMonthRange accepts exactly "YYYY-MM-YYYY-MM" with zero-padded months.
func parseMonthRange(s string) (Window, error) {
	m := monthRangePattern.FindStringSubmatch(s)
	if m == nil {
		return Window{}, fmt.Errorf("invalid month range %q: use format like \"2025-01-2025-06\"", s)
	}
	startYear, _ := strconv.Atoi(m[1])
	startMonth, _ := strconv.Atoi(m[2])
	endYear, _ := strconv.Atoi(m[3])
	endMonth, _ := strconv.Atoi(m[4])

	if startMonth < 1 || startMonth > 12 || endMonth < 1 || endMonth > 12 {
		return Window{}, fmt.Errorf("invalid month range %q: months must be 01-12", s)
	}
	if startYear*12+startMonth > endYear*12+endMonth {
		return Window{}, fmt.Errorf("invalid month range %q: start month after end month", s)
	}

	return Window{
		Kind:       WindowMonthRange,
		StartYear:  startYear,
		EndYear:    endYear,
		StartMonth: time.Month(startMonth),
		EndMonth:   time.Month(endMonth),
	}, nil
}

// Start returns the first instant of the window in UTC.
func (w Window) Start() time.Time {
	month := time.January
	if w.Kind == WindowMonthRange {
		month = w.StartMonth
	}
	return time.Date(w.StartYear, month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the window in UTC. For month ranges this is
// the last day of the end month, leap years included.
func (w Window) End() time.Time {
	if w.Kind != WindowMonthRange {
		return time.Date(w.EndYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	// Day zero of the following month is the last day of the end month.
	return time.Date(w.EndYear, w.EndMonth+1, 0, 0, 0, 0, 0, time.UTC)
}

// Period renders the window for the exported search_period field:
// "2015-2025" for year-granular windows, "2025-01-2025-06" for month ranges.
func (w Window) Period() string {
	if w.Kind == WindowMonthRange {
		return fmt.Sprintf("%04d-%02d-%04d-%02d", w.StartYear, w.StartMonth, w.EndYear, w.EndMonth)
	}
	return fmt.Sprintf("%d-%d", w.StartYear, w.EndYear)
}

// yearFilter renders the Semantic Scholar year parameter ("2015:2025").
func (w Window) yearFilter() string {
	return fmt.Sprintf("%d:%d", w.StartYear, w.EndYear)
}

// dateFilter renders the day-granular publicationDateOrRange parameter used
// for month windows ("2023-12-01:2024-02-29").
func (w Window) dateFilter() string {
	return w.Start().Format("2006-01-02") + ":" + w.End().Format("2006-01-02")
}
