package http

import (
	"errors"
	"net/http"

	"smartasset/internal/core"
	"smartasset/internal/ledger"
	"smartasset/internal/log"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListAll(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpList, "Failed to load transactions", err)
		return
	}
	categories, err := s.ledger.CategoryNames(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpList, "Failed to load categories", err)
		return
	}
	s.render(w, r, "transactions", transactionsView{
		Transactions: txs,
		Categories:   categories,
		Types:        txTypes,
	}, nil)
}

// handleCreateTransaction stores one manually entered row. Unlike drafts it is
// validated strictly and rejected with 422 when malformed.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}
	tx, err := p.Transaction(s.today())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	id, err := s.ledger.Add(r.Context(), tx)
	if err != nil {
		if isValidationError(err) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		s.storeFailed(w, r, log.OpCreate, "Failed to save transaction", err)
		return
	}

	s.metrics.observeWritten("manual", 1, nil)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction added",
		log.NewFields().WithTransaction(id, tx.Item, tx.Category, tx.Amount.StringFixed(2)).ToSlice()...)
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerLedgerChanged(1).
		TriggerFormReset().
		TriggerSuccessNotification("Saved " + tx.Item + " " + core.FormatAmount(tx.Amount)).
		Write(w)
}

// handleUpdateTransaction overwrites only the fields present in the body.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}
	patch, err := p.Patch()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	switch err := s.ledger.Update(r.Context(), id, patch); {
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError("Transaction not found").Write(w)
		return
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		s.storeFailed(w, r, log.OpUpdate, "Failed to update transaction", err)
		return
	}
	NewHTMXResponse().
		TriggerLedgerChanged(1).
		TriggerSuccessNotification("Transaction updated").
		Write(w)
}

// handleDeleteTransaction answers with an empty body so an outerHTML swap
// removes the row.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}
	switch err := s.ledger.Delete(r.Context(), id); {
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError("Transaction not found").Write(w)
		return
	case err != nil:
		s.storeFailed(w, r, log.OpDelete, "Failed to delete transaction", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted", log.FieldTransactionID, id)
	NewHTMXResponse().
		TriggerLedgerChanged(1).
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}

var validationErrors = []error{
	core.ErrInvalidYear,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyItem,
	core.ErrEmptyCategory,
	core.ErrItemTooLong,
	core.ErrEmptyPatch,
	core.ErrInvalidCategory,
	core.ErrInvalidExpression,
	core.ErrDivisionByZero,
}

func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
