package http

import (
	"bytes"
	"net/http"

	"financas/internal/core"
	"financas/internal/export"
	applog "financas/internal/log"
)

// defaultReportMonths is the window used when ?months= is absent.
const defaultReportMonths = 6

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.svc.Dashboard(r.Context(), sessionOf(r), year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Year         int            `json:"year"`
		Month        int            `json:"month"`
		Period       string         `json:"period"`
		Summary      summaryView    `json:"summary"`
		PercentSpent float64        `json:"percent_spent"`
		Percent      string         `json:"percent_spent_formatted"`
		Categories   []categoryView `json:"categories"`
	}{
		Year:         d.Year,
		Month:        d.Month,
		Period:       core.MonthName(d.Year, d.Month),
		Summary:      newSummaryView(d.Summary),
		PercentSpent: d.PercentSpent,
		Percent:      core.FormatPercent(d.PercentSpent),
		Categories:   newCategoryViews(d.Categories),
	})
}

// report builds the trailing report from the months query parameter.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (core.ReportInput, bool) {
	months, err := intParam(r.URL.Query(), "months", defaultReportMonths)
	if err != nil {
		s.writeError(w, r, err)
		return core.ReportInput{}, false
	}
	in, err := s.svc.TrailingReport(r.Context(), sessionOf(r), months, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return core.ReportInput{}, false
	}
	return in, true
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	in, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newReportView(in))
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	in, ok := s.report(w, r)
	if !ok {
		return
	}
	attachment(w, "text/plain; charset=utf-8", core.ReportFilename(in.GeneratedAt))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(core.FormatReport(in)))
}

// handleReportXLSX renders into a buffer first so a failed workbook still
// gets a JSON error instead of a truncated download.
func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	in, ok := s.report(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteReportXLSX(&buf, in); err != nil {
		s.logger.WithComponent(applog.ComponentReport).ErrorContext(r.Context(), "Failed to render workbook",
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
		return
	}
	attachment(w, export.ContentTypeXLSX, core.ReportXLSXFilename(in.GeneratedAt))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
