package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"smartasset/internal/amqp"
	"smartasset/internal/core"
	"smartasset/internal/ledger"
	"smartasset/internal/log"
	"smartasset/internal/sheets"
)

// maxFetch bounds concurrent store reads per event.
const maxFetch = 4

// MirrorWorker keeps a spreadsheet copy of the ledger in step with ledger events.
type MirrorWorker struct {
	store  ledger.TransactionReader
	mirror sheets.Mirror
	logger *log.Logger
}

func NewMirrorWorker(store ledger.TransactionReader, mirror sheets.Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &MirrorWorker{
		store:  store,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. A returned error
// requeues the message.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEvent, ev.Kind,
		"ids", ev.IDs)

	switch ev.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		txs, gone, err := w.fetch(ctx, ev.IDs)
		if err != nil {
			return err
		}
		if err := w.mirror.Upsert(ctx, txs); err != nil {
			return fmt.Errorf("mirror rows: %w", err)
		}
		// Rows deleted before this event arrived must not linger in the sheet.
		if len(gone) > 0 {
			if err := w.mirror.Remove(ctx, gone); err != nil {
				return fmt.Errorf("remove vanished rows: %w", err)
			}
		}
	case amqp.EventDeleted:
		if err := w.mirror.Remove(ctx, ev.IDs); err != nil {
			return fmt.Errorf("remove rows: %w", err)
		}
	default:
		// Validated on decode; unreachable for well-formed messages.
		w.logger.WarnContext(ctx, "Ignoring unknown event kind", log.FieldEvent, ev.Kind)
	}
	return nil
}

// fetch loads ids concurrently, preserving order. Ids no longer in the store
// are returned separately.
func (w *MirrorWorker) fetch(ctx context.Context, ids []int64) ([]core.Transaction, []int64, error) {
	found := make([]*core.Transaction, len(ids))
	var (
		mu   sync.Mutex
		gone []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetch)
	for i, id := range ids {
		g.Go(func() error {
			tx, err := w.store.Get(gctx, id)
			if errors.Is(err, ledger.ErrNotFound) {
				mu.Lock()
				gone = append(gone, id)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("get transaction %d: %w", id, err)
			}
			found[i] = &tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	txs := make([]core.Transaction, 0, len(ids))
	for _, tx := range found {
		if tx != nil {
			txs = append(txs, *tx)
		}
	}
	return txs, gone, nil
}
