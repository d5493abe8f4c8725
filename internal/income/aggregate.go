// Package income derives chart and table views from a snapshot of income
// records. Every function here is pure: inputs are never mutated and the
// same input always yields the same output.
package income

import (
	"cmp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"umkm/internal/core"
)

// MonthLabelLayout renders series points as "Jan 2024".
const MonthLabelLayout = "Jan 2006"

// SeriesPoint is one chart entry. Records sharing a month stay separate.
type SeriesPoint struct {
	Month  string      `json:"month"`
	Amount core.Amount `json:"amount"`
	Index  int         `json:"index"`
}

// Overview is the aggregate view of a list of incomes.
type Overview struct {
	MonthlySeries       []SeriesPoint `json:"monthlySeries"`
	TotalIncome         core.Amount   `json:"totalIncome"`
	AverageIncome       core.Amount   `json:"averageIncome"`
	PreviousMonthIncome core.Amount   `json:"previousMonthIncome"`
	CurrentMonthIncome  core.Amount   `json:"currentMonthIncome"`
	PercentageChange    float64       `json:"percentageChange"`
	HighestMonth        Highest       `json:"highestMonth"`
	Skipped             []core.ID     `json:"skipped,omitempty"`
}

// Highest is the largest series point and its month label.
type Highest struct {
	Amount core.Amount `json:"amount"`
	Month  string      `json:"month"`
}

// dated pairs a record with the instant it sorts on and the calendar day
// that labels it.
type dated struct {
	rec  core.Income
	when time.Time
	day  time.Time
}

// Aggregate computes the overview of records.
//
// Records whose date does not parse are left out of every figure and their
// ids are reported in Overview.Skipped, in input order.
func Aggregate(records []core.Income) Overview {
	rows, skipped := sortByDate(records)

	ov := Overview{
		MonthlySeries: make([]SeriesPoint, 0, len(rows)),
		Skipped:       skipped,
	}
	for i, r := range rows {
		ov.MonthlySeries = append(ov.MonthlySeries, SeriesPoint{
			Month:  r.day.Format(MonthLabelLayout),
			Amount: r.rec.Amount,
			Index:  i,
		})
		ov.TotalIncome = ov.TotalIncome.Add(r.rec.Amount)
	}
	if len(rows) > 0 {
		ov.AverageIncome = core.AmountFromDecimal(
			ov.TotalIncome.Decimal().Div(decimal.NewFromInt(int64(len(rows)))),
		)
	}

	ov.PreviousMonthIncome, ov.CurrentMonthIncome = lastTwo(ov.MonthlySeries)
	ov.PercentageChange = PercentageChange(ov.PreviousMonthIncome, ov.CurrentMonthIncome)
	ov.HighestMonth = highest(ov.MonthlySeries)
	return ov
}

// PercentageChange is (current-previous)/previous*100, or 100 when the
// previous amount is zero.
func PercentageChange(previous, current core.Amount) float64 {
	if previous.IsZero() {
		return 100
	}
	pct := current.Decimal().Sub(previous.Decimal()).
		Div(previous.Decimal()).
		Mul(decimal.NewFromInt(100))
	return pct.InexactFloat64()
}

// sortByDate returns the parseable records ordered by instant, then id,
// and the ids of the unparseable ones.
func sortByDate(records []core.Income) ([]dated, []core.ID) {
	rows := make([]dated, 0, len(records))
	var skipped []core.ID
	for _, r := range records {
		when, err := r.Instant()
		if err != nil {
			skipped = append(skipped, r.ID)
			continue
		}
		day, _ := r.Anchor()
		rows = append(rows, dated{rec: r, when: when, day: day})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].when.Equal(rows[j].when) {
			return rows[i].when.Before(rows[j].when)
		}
		return compareIDs(rows[i].rec.ID, rows[j].rec.ID) < 0
	})
	return rows, skipped
}

// compareIDs orders numeric ids by value and anything else as text.
// Numeric ids sort before non-numeric ones.
func compareIDs(a, b core.ID) int {
	na, aErr := strconv.ParseUint(string(a), 10, 64)
	nb, bErr := strconv.ParseUint(string(b), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(na, nb)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

func lastTwo(series []SeriesPoint) (previous, current core.Amount) {
	n := len(series)
	if n >= 1 {
		current = series[n-1].Amount
	}
	if n >= 2 {
		previous = series[n-2].Amount
	}
	return previous, current
}

func highest(series []SeriesPoint) Highest {
	best := Highest{}
	for _, p := range series {
		if p.Amount.Cmp(best.Amount) > 0 {
			best = Highest{Amount: p.Amount, Month: p.Month}
		}
	}
	return best
}
