package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"umkm/internal/core"
	"umkm/internal/dashboard"
	"umkm/internal/income"
	applog "umkm/internal/log"
	"umkm/internal/session"
)

const recentIncomeRows = 10

var decimalHundred = decimal.NewFromInt(100)

type dashboardData struct {
	Cards    []dashboard.Card `json:"cards"`
	Overview income.Overview  `json:"overview"`
	Incomes  []core.Income    `json:"-"`
}

// loadDashboard fetches incomes and products in parallel and builds the
// requested cards.
func (s *Server) loadDashboard(ctx context.Context, p core.Principal, kinds []dashboard.Kind) (dashboardData, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		records  []core.Income
		products []core.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.deps.Incomes.List(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.deps.Products.ListProducts(gctx, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboardData{}, err
	}

	ov := overviewOf(records)
	cards, err := dashboard.Build(dashboard.Inputs{ProductCount: len(products), Overview: ov}, kinds...)
	if err != nil {
		return dashboardData{}, err
	}
	return dashboardData{Cards: cards, Overview: ov, Incomes: records}, nil
}

// handleDashboard returns metric cards plus the overview. Repeated card
// query values pick and order the cards.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	kinds, err := dashboard.ParseKinds(r.URL.Query()["card"])
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.loadDashboard(r.Context(), p, kinds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(data).Write(w)
}

type seriesBar struct {
	Month  string
	Amount core.Amount
	Height int
}

type pageData struct {
	LoggedIn    bool
	LoginFailed bool
	Profile     core.Profile
	Cards       []dashboard.Card
	Bars        []seriesBar
	Recent      []core.Income
	Skipped     int
	Error       string
}

var templateFuncs = template.FuncMap{
	"idr": core.FormatIDR,
	"pct": func(f *float64) string {
		if f == nil {
			return ""
		}
		return fmt.Sprintf("%+.1f%%", *f)
	},
}

// handleIndex renders the dashboard page, or the login form without a
// valid session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).Error("Templates not loaded", applog.FieldComponent, applog.ComponentTemplate)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	data := pageData{LoginFailed: r.URL.Query().Get("login") == "failed"}
	if sess, err := s.deps.Sessions.Resolve(r.Context(), session.TokenFromRequest(r)); err == nil {
		data.LoggedIn = true
		data.Profile = sess.Profile
		dd, err := s.loadDashboard(r.Context(), sess.Principal, dashboard.DefaultKinds)
		if err != nil {
			s.logError(r, "Dashboard load failed", err, applog.ComponentDashboard, applog.OpRender)
			_, data.Error = StatusFor(err)
		} else {
			data.Cards = dd.Cards
			data.Bars = bars(dd.Overview.MonthlySeries)
			data.Skipped = len(dd.Overview.Skipped)
			recent := income.Table(dd.Incomes, income.DefaultTableQuery())
			if len(recent) > recentIncomeRows {
				recent = recent[:recentIncomeRows]
			}
			data.Recent = recent
		}
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		s.logError(r, "Dashboard template execution failed", err, applog.ComponentTemplate, applog.OpRender)
		InternalServerError("render failed").Write(w)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	NewResponse().Bytes("text/html; charset=utf-8", buf.Bytes()).Write(w)
}

// bars scales the series to percentages of its largest point.
func bars(series []income.SeriesPoint) []seriesBar {
	out := make([]seriesBar, 0, len(series))
	var peak core.Amount
	for _, p := range series {
		if p.Amount.Cmp(peak) > 0 {
			peak = p.Amount
		}
	}
	for _, p := range series {
		h := 0
		if peak.IsPositive() {
			h = int(p.Amount.Decimal().Div(peak.Decimal()).Mul(decimalHundred).IntPart())
		}
		out = append(out, seriesBar{Month: p.Month, Amount: p.Amount, Height: h})
	}
	return out
}
