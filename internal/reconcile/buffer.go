// Package reconcile holds interpreter output for review before it reaches the ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"smartasset/internal/core"
	"smartasset/internal/ledger"
)

var (
	ErrNothingToConfirm = errors.New("no drafts to confirm")
	ErrRowNotFound      = errors.New("draft row not found")
)

// Row is one editable draft. ID is stable across edits and only meaningful
// inside its buffer.
type Row struct {
	ID    string
	Draft core.Draft
}

// ConfirmResult reports what a confirm wrote.
type ConfirmResult struct {
	IDs          []int64
	Transactions []core.Transaction
	Warnings     []core.Warning
}

// Buffer is the staging area for one session. It is safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	rows []Row
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Replace discards every pending row and stages drafts in their place.
func (b *Buffer) Replace(drafts []core.Draft) []Row {
	rows := make([]Row, len(drafts))
	for i, d := range drafts {
		rows[i] = Row{ID: uuid.NewString(), Draft: d}
	}
	b.mu.Lock()
	b.rows = rows
	b.mu.Unlock()
	return append([]Row(nil), rows...)
}

// Add appends a row and returns it.
func (b *Buffer) Add(d core.Draft) Row {
	row := Row{ID: uuid.NewString(), Draft: d}
	b.mu.Lock()
	b.rows = append(b.rows, row)
	b.mu.Unlock()
	return row
}

// Edit overwrites the draft of row id.
func (b *Buffer) Edit(id string, d core.Draft) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].ID == id {
			b.rows[i].Draft = d
			return nil
		}
	}
	return ErrRowNotFound
}

// Delete removes row id.
func (b *Buffer) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].ID == id {
			b.rows = append(b.rows[:i], b.rows[i+1:]...)
			return nil
		}
	}
	return ErrRowNotFound
}

// Rows returns a snapshot in display order.
func (b *Buffer) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Row(nil), b.rows...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Discard clears the buffer without writing anything.
func (b *Buffer) Discard() {
	b.mu.Lock()
	b.rows = nil
	b.mu.Unlock()
}

// Confirm coerces every row, writes them as one batch and clears the buffer.
// When the write fails the rows stay staged so the user can retry. The lock
// is held for the whole call so concurrent edits cannot slip between the
// snapshot and the clear.
func (b *Buffer) Confirm(ctx context.Context, w ledger.TransactionWriter, c core.Coercer, today core.Date) (ConfirmResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.rows) == 0 {
		return ConfirmResult{}, ErrNothingToConfirm
	}
	drafts := make([]core.Draft, len(b.rows))
	for i, r := range b.rows {
		drafts[i] = r.Draft
	}
	txs, warns := c.CoerceAll(drafts, today)

	ids, err := w.AppendBatch(ctx, txs)
	if err != nil {
		return ConfirmResult{Warnings: warns}, fmt.Errorf("confirm drafts: %w", err)
	}
	for i := range txs {
		if i < len(ids) {
			txs[i].ID = ids[i]
		}
	}
	b.rows = nil
	return ConfirmResult{IDs: ids, Transactions: txs, Warnings: warns}, nil
}
