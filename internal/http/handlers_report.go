package http

import (
	"errors"
	"net/http"

	"smartasset/internal/core"
	"smartasset/internal/log"
)

// handleReport renders the summary for ?year=&month=. Month "all" or 0 covers
// the whole year.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	window := ParseWindowParams(r.URL.Query(), s.now())
	report, err := s.ledger.Report(r.Context(), window)
	if err != nil {
		if errors.Is(err, core.ErrInvalidWindow) {
			BadRequestError("Invalid year or month").Write(w)
			return
		}
		s.storeFailed(w, r, log.OpReport, "Failed to build report", err)
		return
	}
	years, err := s.ledger.Years(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpReport, "Failed to build report", err)
		return
	}
	s.render(w, r, "report", newReportView(report, years), nil)
}
