package income

import (
	"fmt"
	"time"

	"umkm/internal/core"
)

// RangeKind selects the window of an income report.
type RangeKind string

const (
	ThisWeek  RangeKind = "thisWeek"
	ThisMonth RangeKind = "thisMonth"
	AllTime   RangeKind = "allTime"
)

// RangeFilter decides whether a record falls inside a report window.
// Each range kind has its own implementation.
type RangeFilter interface {
	// Includes reports whether a record anchored at when (ok=false when the
	// date did not parse) is inside the window relative to now.
	Includes(when time.Time, ok bool, now time.Time) bool
}

// WeekFilter keeps records on or after the most recent Sunday.
type WeekFilter struct{}

func (WeekFilter) Includes(when time.Time, ok bool, now time.Time) bool {
	if !ok {
		return false
	}
	y, m, d := now.Date()
	start := core.NewDate(y, int(m), d-int(now.Weekday()))
	return !when.Before(start)
}

// MonthFilter keeps records on or after the first day of now's month.
type MonthFilter struct{}

func (MonthFilter) Includes(when time.Time, ok bool, now time.Time) bool {
	if !ok {
		return false
	}
	start := core.NewDate(now.Year(), int(now.Month()), 1)
	return !when.Before(start)
}

// AllFilter keeps every record, including ones with unparseable dates.
type AllFilter struct{}

func (AllFilter) Includes(time.Time, bool, time.Time) bool {
	return true
}

var rangeFilters = map[RangeKind]RangeFilter{
	ThisWeek:  WeekFilter{},
	ThisMonth: MonthFilter{},
	AllTime:   AllFilter{},
}

// ParseRangeKind maps a query value to a RangeKind. Empty means ThisMonth.
func ParseRangeKind(s string) (RangeKind, error) {
	if s == "" {
		return ThisMonth, nil
	}
	k := RangeKind(s)
	if _, ok := rangeFilters[k]; !ok {
		return "", fmt.Errorf("unknown report range: %s", s)
	}
	return k, nil
}

// DateAmount is the summed income of one raw record date.
type DateAmount struct {
	Date   string      `json:"date"`
	Amount core.Amount `json:"amount"`
}

type ReportResult struct {
	Range  RangeKind    `json:"range"`
	Total  core.Amount  `json:"total"`
	Count  int          `json:"count"`
	ByDate []DateAmount `json:"byDate"`
}

// Report filters records to the window of kind and sums them per date.
// Dates are grouped by their raw string and listed in order of first
// appearance. Unknown kinds report over all records.
func Report(records []core.Income, kind RangeKind, now time.Time) ReportResult {
	filter, ok := rangeFilters[kind]
	if !ok {
		kind, filter = AllTime, AllFilter{}
	}

	res := ReportResult{Range: kind, ByDate: []DateAmount{}}
	pos := make(map[string]int)
	for _, r := range records {
		when, err := r.Anchor()
		if !filter.Includes(when, err == nil, now) {
			continue
		}
		res.Total = res.Total.Add(r.Amount)
		res.Count++
		if i, seen := pos[r.Date]; seen {
			res.ByDate[i].Amount = res.ByDate[i].Amount.Add(r.Amount)
			continue
		}
		pos[r.Date] = len(res.ByDate)
		res.ByDate = append(res.ByDate, DateAmount{Date: r.Date, Amount: r.Amount})
	}
	return res
}
