package income

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkm/internal/core"
)

// Wednesday.
var reportNow = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

func reportRecords() []core.Income {
	return []core.Income{
		rec("1", 100, "2024-03-10"), // Sunday, this week
		rec("2", 200, "2024-03-09"), // Saturday, last week
		rec("3", 300, "2024-03-01"),
		rec("4", 400, "2024-02-28"),
		rec("5", 50, "2024-03-10"),
		rec("6", 70, "not a date"),
	}
}

func TestReportThisWeek(t *testing.T) {
	res := Report(reportRecords(), ThisWeek, reportNow)

	assert.Equal(t, ThisWeek, res.Range)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Total.Equal(core.NewAmount(150)))
	require.Len(t, res.ByDate, 1)
	assert.Equal(t, "2024-03-10", res.ByDate[0].Date)
}

func TestReportThisMonth(t *testing.T) {
	res := Report(reportRecords(), ThisMonth, reportNow)

	assert.Equal(t, 4, res.Count)
	assert.True(t, res.Total.Equal(core.NewAmount(650)))
	require.Len(t, res.ByDate, 3)
	assert.Equal(t, "2024-03-10", res.ByDate[0].Date)
	assert.True(t, res.ByDate[0].Amount.Equal(core.NewAmount(150)))
	assert.Equal(t, "2024-03-09", res.ByDate[1].Date)
	assert.Equal(t, "2024-03-01", res.ByDate[2].Date)
}

func TestReportAllTimeAndUnknownKind(t *testing.T) {
	all := Report(reportRecords(), AllTime, reportNow)
	assert.Equal(t, 6, all.Count)
	assert.True(t, all.Total.Equal(core.NewAmount(1120)))

	unknown := Report(reportRecords(), RangeKind("lastDecade"), reportNow)
	assert.Equal(t, AllTime, unknown.Range)
	assert.Equal(t, all.Count, unknown.Count)
}

func TestReportEmpty(t *testing.T) {
	res := Report(nil, ThisMonth, reportNow)

	assert.Equal(t, 0, res.Count)
	assert.True(t, res.Total.IsZero())
	assert.NotNil(t, res.ByDate)
}

func TestParseRangeKind(t *testing.T) {
	k, err := ParseRangeKind("")
	require.NoError(t, err)
	assert.Equal(t, ThisMonth, k)

	k, err = ParseRangeKind("thisWeek")
	require.NoError(t, err)
	assert.Equal(t, ThisWeek, k)

	_, err = ParseRangeKind("yesterday")
	assert.Error(t, err)
}

func tableRecords() []core.Income {
	return []core.Income{
		{ID: "1", Amount: core.NewAmount(300), Source: "Toko Online", Date: "2024-01-05"},
		{ID: "2", Amount: core.NewAmount(100), Source: "Pasar", Date: "2024-02-01"},
		{ID: "3", Amount: core.NewAmount(200), Source: "Catering", Date: "2023-12-24", Notes: "pesanan"},
	}
}

func ids(list []core.Income) []core.ID {
	out := make([]core.ID, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

func TestTableDefaultSortIsNewestFirst(t *testing.T) {
	got := Table(tableRecords(), DefaultTableQuery())
	assert.Equal(t, []core.ID{"2", "1", "3"}, ids(got))
}

func TestTableSortByAmountAscending(t *testing.T) {
	q, err := ParseTableQuery("amount", "ascending", "")
	require.NoError(t, err)

	got := Table(tableRecords(), q)
	assert.Equal(t, []core.ID{"2", "3", "1"}, ids(got))
}

func TestTableFilterByMonthName(t *testing.T) {
	q, err := ParseTableQuery("", "", "January 2024")
	require.NoError(t, err)

	got := Table(tableRecords(), q)
	assert.Equal(t, []core.ID{"1"}, ids(got))
}

func TestTableFilterBySourceIgnoresCase(t *testing.T) {
	got := Table(tableRecords(), TableQuery{SortKey: SortByDate, Direction: Descending, Filter: "PASAR"})
	assert.Equal(t, []core.ID{"2"}, ids(got))
}

func TestTableDoesNotMutateInput(t *testing.T) {
	records := tableRecords()
	before := append([]core.Income(nil), records...)

	Table(records, TableQuery{SortKey: SortByAmount, Direction: Ascending})

	assert.Equal(t, before, records)
}

func TestParseTableQueryRejectsUnknown(t *testing.T) {
	_, err := ParseTableQuery("colour", "", "")
	assert.Error(t, err)

	_, err = ParseTableQuery("", "sideways", "")
	assert.Error(t, err)
}

func TestStatisticsWindow(t *testing.T) {
	var records []core.Income
	for m := 1; m <= 8; m++ {
		d := core.FormatDate(core.NewDate(2024, m, 1))
		records = append(records, rec(d, int64(m*100), d))
	}

	st := Statistics(records, ThreeMonths)
	require.Len(t, st.Series, 3)
	assert.Equal(t, "Jun 2024", st.Series[0].Month)
	assert.Equal(t, "Aug 2024", st.Series[2].Month)
	assert.True(t, st.CurrentMonthIncome.Equal(core.NewAmount(800)))
	assert.True(t, st.PreviousMonthIncome.Equal(core.NewAmount(700)))

	st = Statistics(records, TwelveMonths)
	assert.Len(t, st.Series, 8)

	st = Statistics(records, Window("forever"))
	assert.Equal(t, SixMonths, st.Window)
	assert.Len(t, st.Series, 6)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, SixMonths, w)

	_, err = ParseWindow("2weeks")
	assert.Error(t, err)
}

func TestReduce(t *testing.T) {
	list := []core.Income{rec("1", 100, "2024-01-01"), rec("2", 200, "2024-01-02")}
	before := append([]core.Income(nil), list...)

	created := Reduce(list, Created{Income: rec("3", 300, "2024-01-03")})
	assert.Equal(t, []core.ID{"1", "2", "3"}, ids(created))

	updated := Reduce(created, Updated{Income: rec("2", 250, "2024-01-02")})
	require.Len(t, updated, 3)
	assert.True(t, updated[1].Amount.Equal(core.NewAmount(250)))
	assert.True(t, created[1].Amount.Equal(core.NewAmount(200)))

	deleted := Reduce(updated, Deleted{ID: "1"})
	assert.Equal(t, []core.ID{"2", "3"}, ids(deleted))

	assert.Equal(t, before, list)
}

func TestReduceCreatedReplacesExistingID(t *testing.T) {
	list := []core.Income{rec("1", 100, "2024-01-01")}

	got := Reduce(list, Created{Income: rec("1", 500, "2024-01-01")})

	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(core.NewAmount(500)))
}
