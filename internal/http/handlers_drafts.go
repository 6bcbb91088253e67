package http

import (
	"errors"
	"fmt"
	"net/http"

	"smartasset/internal/log"
	"smartasset/internal/reconcile"
)

// renderDrafts answers with the session's current drafts partial.
func (s *Server) renderDrafts(w http.ResponseWriter, r *http.Request, buf *reconcile.Buffer, resp *HTMXResponseBuilder) {
	categories, err := s.ledger.CategoryNames(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpRead, "Failed to load categories", err)
		return
	}
	s.render(w, r, "drafts", newDraftsView(buf.Rows(), categories, s.today()), resp)
}

func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	s.renderDrafts(w, r, buf, nil)
}

func (s *Server) handleAddDraft(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}
	d := p.Draft()
	if d.Date == "" {
		d.Date = s.today().String()
	}
	buf.Add(d)
	s.renderDrafts(w, r, buf, nil)
}

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}
	if err := buf.Edit(r.PathValue("id"), p.Draft()); err != nil {
		NotFoundError("Draft row not found").Write(w)
		return
	}
	s.renderDrafts(w, r, buf, nil)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	if err := buf.Delete(r.PathValue("id")); err != nil {
		NotFoundError("Draft row not found").Write(w)
		return
	}
	s.renderDrafts(w, r, buf, nil)
}

// handleConfirmDrafts coerces every pending row and writes them as one batch.
// Coercion warnings are shown but never block the write.
func (s *Server) handleConfirmDrafts(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	logger := log.FromContext(r.Context())

	res, err := buf.Confirm(r.Context(), s.ledger, s.coercer, s.today())
	switch {
	case errors.Is(err, reconcile.ErrNothingToConfirm):
		UnprocessableEntityError("There are no drafts to confirm").Write(w)
		return
	case err != nil:
		s.storeFailed(w, r, log.OpConfirm, "Failed to save drafts, they are still pending", err)
		return
	}

	s.metrics.observeWritten("drafts", len(res.IDs), res.Warnings)
	s.structLogger.LogTransactionsAppended(r.Context(), res.IDs, len(res.Warnings))
	for _, warn := range res.Warnings {
		logger.InfoContext(r.Context(), "Draft coerced",
			log.FieldOperation, log.OpCoerce,
			"field", warn.Field,
			"detail", warn.String())
	}

	resp := NewHTMXResponse().TriggerLedgerChanged(len(res.IDs))
	if len(res.Warnings) > 0 {
		resp.TriggerWarningNotification(fmt.Sprintf("Saved %d rows with defaults: %s",
			len(res.IDs), warningSummary(res.Warnings)))
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Saved %d rows", len(res.IDs)))
	}
	s.renderDrafts(w, r, buf, resp)
}

func (s *Server) handleDiscardDrafts(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	buf.Discard()
	log.FromContext(r.Context()).DebugContext(r.Context(), "Drafts discarded", log.FieldOperation, log.OpDiscard)
	s.renderDrafts(w, r, buf, nil)
}
