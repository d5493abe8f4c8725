package income

import (
	"fmt"

	"umkm/internal/core"
)

// Window is the number of trailing series points shown by the statistics view.
type Window string

const (
	ThreeMonths  Window = "3months"
	SixMonths    Window = "6months"
	TwelveMonths Window = "12months"
)

var windowSizes = map[Window]int{
	ThreeMonths:  3,
	SixMonths:    6,
	TwelveMonths: 12,
}

// ParseWindow maps a query value to a Window. Empty means SixMonths.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return SixMonths, nil
	}
	w := Window(s)
	if _, ok := windowSizes[w]; !ok {
		return "", fmt.Errorf("unknown statistics window: %s", s)
	}
	return w, nil
}

// Stats is the windowed slice of the monthly series with its own
// month-over-month change.
type Stats struct {
	Window              Window        `json:"window"`
	Series              []SeriesPoint `json:"series"`
	CurrentMonthIncome  core.Amount   `json:"currentMonthIncome"`
	PreviousMonthIncome core.Amount   `json:"previousMonthIncome"`
	PercentageChange    float64       `json:"percentageChange"`
}

// Statistics keeps the trailing points of the monthly series that fit the
// window and recomputes the month-over-month change over them.
func Statistics(records []core.Income, w Window) Stats {
	size, ok := windowSizes[w]
	if !ok {
		w, size = SixMonths, windowSizes[SixMonths]
	}
	series := Aggregate(records).MonthlySeries
	if len(series) > size {
		series = series[len(series)-size:]
	}
	st := Stats{Window: w, Series: series}
	st.PreviousMonthIncome, st.CurrentMonthIncome = lastTwo(series)
	st.PercentageChange = PercentageChange(st.PreviousMonthIncome, st.CurrentMonthIncome)
	return st
}
