package http

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"smartasset/internal/core"
	"smartasset/internal/log"
)

// handleIndex renders the whole ledger page. The four reads are independent
// and share the service memo, so they run together.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, buf := s.sessionBuffer(w, r)
	now := s.now()
	window := core.Window{Year: now.Year(), Month: int(now.Month())}

	var (
		cats   []core.Category
		txs    []core.Transaction
		report core.Report
		years  []int
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		cats, err = s.ledger.Categories(ctx)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.ledger.ListAll(ctx)
		return err
	})
	g.Go(func() (err error) {
		report, err = s.ledger.Report(ctx, window)
		return err
	})
	g.Go(func() (err error) {
		years, err = s.ledger.Years(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.storeFailed(w, r, log.OpRead, "Failed to load the ledger", err)
		return
	}

	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	today := s.today()
	s.render(w, r, "index", indexView{
		Today:           today.String(),
		ReceiptsEnabled: s.interpreter != nil,
		MaxUploadMB:     s.opts.MaxUploadBytes >> 20,
		Categories:      names,
		Types:           txTypes,
		Drafts:          newDraftsView(buf.Rows(), names, today),
		Records:         transactionsView{Transactions: txs, Categories: names, Types: txTypes},
		Report:          newReportView(report, years),
		Settings:        categoriesView{Categories: cats},
	}, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks the store and the parsed templates.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.templates == nil || s.templates.Lookup("index") == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("templates not loaded"))
		return
	}
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// handleRefresh drops the read memo; the page reloads its partials on the triggers.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.ledger.Refresh()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Read cache dropped on request")
	NewHTMXResponse().
		TriggerLedgerChanged(0).
		TriggerCategoriesChanged().
		TriggerSuccessNotification("Refreshed").
		Write(w)
}
