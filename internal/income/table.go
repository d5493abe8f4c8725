package income

import (
	"fmt"
	"sort"
	"strings"

	"umkm/internal/core"
)

// SortKey is a sortable income column.
type SortKey string

const (
	SortByID     SortKey = "id"
	SortByAmount SortKey = "amount"
	SortBySource SortKey = "source"
	SortByDate   SortKey = "date"
	SortByNotes  SortKey = "notes"
)

type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// FilterMonthLayout is the month rendering the table filter matches
// against, e.g. "January 2024".
const FilterMonthLayout = "January 2006"

// TableQuery describes how the income table is ordered and filtered.
type TableQuery struct {
	SortKey   SortKey
	Direction Direction
	Filter    string
}

// DefaultTableQuery sorts by date, newest first.
func DefaultTableQuery() TableQuery {
	return TableQuery{SortKey: SortByDate, Direction: Descending}
}

// ParseTableQuery builds a query from request values, applying defaults
// for empty ones.
func ParseTableQuery(sortKey, direction, filter string) (TableQuery, error) {
	q := DefaultTableQuery()
	q.Filter = strings.TrimSpace(filter)
	if sortKey != "" {
		k := SortKey(sortKey)
		if _, ok := comparators[k]; !ok {
			return q, fmt.Errorf("unknown sort key: %s", sortKey)
		}
		q.SortKey = k
	}
	switch Direction(direction) {
	case "":
	case Ascending, Descending:
		q.Direction = Direction(direction)
	default:
		return q, fmt.Errorf("unknown sort direction: %s", direction)
	}
	return q, nil
}

var comparators = map[SortKey]func(a, b core.Income) int{
	SortByID:     func(a, b core.Income) int { return strings.Compare(string(a.ID), string(b.ID)) },
	SortByAmount: func(a, b core.Income) int { return a.Amount.Cmp(b.Amount) },
	SortBySource: func(a, b core.Income) int { return strings.Compare(a.Source, b.Source) },
	SortByDate:   func(a, b core.Income) int { return strings.Compare(a.Date, b.Date) },
	SortByNotes:  func(a, b core.Income) int { return strings.Compare(a.Notes, b.Notes) },
}

// Table returns a sorted, filtered copy of records.
func Table(records []core.Income, q TableQuery) []core.Income {
	cmp, ok := comparators[q.SortKey]
	if !ok {
		cmp = comparators[SortByDate]
	}
	out := make([]core.Income, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(q.Filter))
	for _, r := range records {
		if needle == "" || matches(r, needle) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if q.Direction == Ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func matches(r core.Income, needle string) bool {
	if strings.Contains(strings.ToLower(r.Source), needle) {
		return true
	}
	when, err := r.Anchor()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(when.Format(FilterMonthLayout)), needle)
}
