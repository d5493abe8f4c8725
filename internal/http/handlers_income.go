package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"umkm/internal/core"
	"umkm/internal/export"
	"umkm/internal/income"
	applog "umkm/internal/log"
	"umkm/internal/metrics"
)

type incomeEnvelope struct {
	Income core.Income `json:"income"`
}

// handleListIncomes serves the income table. sort, direction and filter
// query values select the order and the rows.
func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tq, err := income.ParseTableQuery(q.Get("sort"), q.Get("direction"), q.Get("filter"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	records, ok := s.loadIncomes(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(income.Table(records, tq)).Write(w)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseIncome(w, r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Incomes.Create(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.events.LogIncomeMutation(r.Context(), applog.OpCreate, p.UMKMID, saved)
	NewResponse().Status(http.StatusCreated).JSON(incomeEnvelope{Income: saved}).Write(w)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseIncome(w, r, core.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Incomes.Update(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.events.LogIncomeMutation(r.Context(), applog.OpUpdate, p.UMKMID, saved)
	NewResponse().JSON(incomeEnvelope{Income: saved}).Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := core.ID(chi.URLParam(r, "id"))
	if err := s.deps.Incomes.Delete(r.Context(), p, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.events.LogIncomeMutation(r.Context(), applog.OpDelete, p.UMKMID, core.Income{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIncomeOverview(w http.ResponseWriter, r *http.Request) {
	records, ok := s.loadIncomes(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(overviewOf(records)).Write(w)
}

func (s *Server) handleIncomeReport(w http.ResponseWriter, r *http.Request) {
	kind, err := income.ParseRangeKind(r.URL.Query().Get("range"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	records, ok := s.loadIncomes(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(income.Report(records, kind, s.now())).Write(w)
}

func (s *Server) handleIncomeStatistics(w http.ResponseWriter, r *http.Request) {
	window, err := income.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	records, ok := s.loadIncomes(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(income.Statistics(records, window)).Write(w)
}

func (s *Server) handleIncomeExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	_, sess, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, ok := s.loadIncomes(w, r)
	if !ok {
		return
	}

	start := time.Now()
	ov := overviewOf(records)
	var body []byte
	if format == export.PDF {
		body, err = export.BuildIncomePDF(sess.Profile.Name, ov, records)
	} else {
		body, err = export.BuildIncomeXLSX(ov, records)
	}
	metrics.ObserveExport(string(format), err, time.Since(start))
	if err != nil {
		s.logError(r, "Export failed", err, applog.ComponentExport, applog.OpExport)
		InternalServerError("export failed").Write(w)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).Info("Income report exported",
		applog.FieldFormat, string(format),
		"records", len(records),
		"bytes", len(body))

	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+format.Filename(s.now())+`"`).
		Bytes(format.ContentType(), body).
		Write(w)
}

// loadIncomes lists the session's incomes, answering the error itself
// when it fails.
func (s *Server) loadIncomes(w http.ResponseWriter, r *http.Request) ([]core.Income, bool) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	records, err := s.deps.Incomes.List(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return records, true
}

func overviewOf(records []core.Income) income.Overview {
	ov := income.Aggregate(records)
	metrics.ObserveAggregate(len(records), len(ov.Skipped))
	return ov
}
