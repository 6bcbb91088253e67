package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/amqp"
	"smartasset/internal/core"
	"smartasset/internal/log"
	"smartasset/internal/storage/memory"
)

type fakeMirror struct {
	upserted  []core.Transaction
	removed   []int64
	upsertErr error
}

func (f *fakeMirror) Upsert(_ context.Context, txs []core.Transaction) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, txs...)
	return nil
}

func (f *fakeMirror) Remove(_ context.Context, ids []int64) error {
	f.removed = append(f.removed, ids...)
	return nil
}

func seed(t *testing.T, items ...string) (*memory.Store, []int64) {
	t.Helper()
	store := memory.New(nil)
	txs := make([]core.Transaction, len(items))
	for i, item := range items {
		txs[i] = core.Transaction{
			Date:     core.NewDate(2024, 1, 2),
			Item:     item,
			Category: "Food",
			Type:     core.Expense,
			Amount:   decimal.NewFromInt(int64(i + 1)),
		}
	}
	ids, err := store.AppendBatch(context.Background(), txs)
	require.NoError(t, err)
	return store, ids
}

func TestHandleCreatedPreservesOrder(t *testing.T) {
	store, ids := seed(t, "a", "b", "c", "d", "e")
	mirror := &fakeMirror{}
	w := NewMirrorWorker(store, mirror, log.Discard())

	require.NoError(t, w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventCreated, ids...)))

	require.Len(t, mirror.upserted, 5)
	for i, tx := range mirror.upserted {
		assert.Equal(t, ids[i], tx.ID)
	}
	assert.Empty(t, mirror.removed)
}

func TestHandleUpdatedOfVanishedRow(t *testing.T) {
	store, ids := seed(t, "a", "b")
	require.NoError(t, store.Delete(context.Background(), ids[1]))
	mirror := &fakeMirror{}
	w := NewMirrorWorker(store, mirror, log.Discard())

	require.NoError(t, w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventUpdated, ids...)))

	require.Len(t, mirror.upserted, 1)
	assert.Equal(t, ids[0], mirror.upserted[0].ID)
	assert.Equal(t, []int64{ids[1]}, mirror.removed)
}

func TestHandleDeleted(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewMirrorWorker(memory.New(nil), mirror, log.Discard())

	require.NoError(t, w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventDeleted, 4)))
	assert.Equal(t, []int64{4}, mirror.removed)
}

func TestMirrorFailureRequeues(t *testing.T) {
	store, ids := seed(t, "a")
	mirror := &fakeMirror{upsertErr: errors.New("quota exceeded")}
	w := NewMirrorWorker(store, mirror, log.Discard())

	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventCreated, ids...))
	assert.ErrorContains(t, err, "quota exceeded")
}
