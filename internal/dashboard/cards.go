// Package dashboard builds the metric cards shown above the income charts.
// Card kinds and icons are closed sets; each kind has exactly one builder.
package dashboard

import (
	"fmt"
	"strconv"

	"umkm/internal/core"
	"umkm/internal/income"
)

type Kind string

const (
	TotalProducts  Kind = "totalProducts"
	MonthlyRevenue Kind = "monthlyRevenue"
	AverageIncome  Kind = "averageIncome"
	HighestMonth   Kind = "highestMonth"
)

type Icon string

const (
	IconPackage    Icon = "package"
	IconWallet     Icon = "wallet"
	IconTrendingUp Icon = "trending-up"
	IconTrophy     Icon = "trophy"
)

// DefaultKinds is the card order of the dashboard page.
var DefaultKinds = []Kind{TotalProducts, MonthlyRevenue, AverageIncome, HighestMonth}

type Inputs struct {
	ProductCount int
	Overview     income.Overview
}

type Card struct {
	Kind   Kind     `json:"kind"`
	Title  string   `json:"title"`
	Value  string   `json:"value"`
	Icon   Icon     `json:"icon"`
	Change *float64 `json:"change,omitempty"`
	Note   string   `json:"note,omitempty"`
}

var builders = map[Kind]func(Inputs) Card{
	TotalProducts: func(in Inputs) Card {
		return Card{Title: "Total Produk", Value: strconv.Itoa(in.ProductCount), Icon: IconPackage}
	},
	MonthlyRevenue: func(in Inputs) Card {
		change := in.Overview.PercentageChange
		return Card{
			Title:  "Pendapatan Bulan Ini",
			Value:  core.FormatIDR(in.Overview.CurrentMonthIncome),
			Icon:   IconWallet,
			Change: &change,
		}
	},
	AverageIncome: func(in Inputs) Card {
		return Card{Title: "Rata-rata Pendapatan", Value: core.FormatIDR(in.Overview.AverageIncome), Icon: IconTrendingUp}
	},
	HighestMonth: func(in Inputs) Card {
		h := in.Overview.HighestMonth
		return Card{Title: "Bulan Tertinggi", Value: core.FormatIDR(h.Amount), Icon: IconTrophy, Note: h.Month}
	},
}

func (k Kind) Valid() bool {
	_, ok := builders[k]
	return ok
}

// ParseKinds validates a list of kind names. An empty list yields
// DefaultKinds.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return DefaultKinds, nil
	}
	out := make([]Kind, 0, len(names))
	for _, n := range names {
		k := Kind(n)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown card kind %q", n)
		}
		out = append(out, k)
	}
	return out, nil
}

// Build returns one card per kind, in order.
func Build(in Inputs, kinds ...Kind) ([]Card, error) {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	cards := make([]Card, 0, len(kinds))
	for _, k := range kinds {
		build, ok := builders[k]
		if !ok {
			return nil, fmt.Errorf("unknown card kind %q", k)
		}
		c := build(in)
		c.Kind = k
		cards = append(cards, c)
	}
	return cards, nil
}
