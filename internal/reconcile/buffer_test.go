package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/cache"
	"smartasset/internal/core"
	"smartasset/internal/storage/memory"
)

type failingWriter struct{ err error }

func (f failingWriter) AppendBatch(context.Context, []core.Transaction) ([]int64, error) {
	return nil, f.err
}

var today = core.NewDate(2025, 4, 10)

func TestReplaceIsLastWriteWins(t *testing.T) {
	b := NewBuffer()
	b.Replace([]core.Draft{{Item: "a"}, {Item: "b"}})
	b.Replace([]core.Draft{{Item: "c"}})

	rows := b.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].Draft.Item)
}

func TestAddEditDelete(t *testing.T) {
	b := NewBuffer()
	rows := b.Replace([]core.Draft{{Item: "a"}})
	added := b.Add(core.Draft{Item: "b"})
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Edit(rows[0].ID, core.Draft{Item: "a2", Amount: "3"}))
	require.NoError(t, b.Delete(added.ID))

	got := b.Rows()
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].Draft.Item)
	assert.Equal(t, rows[0].ID, got[0].ID, "row id survives an edit")

	assert.ErrorIs(t, b.Edit("missing", core.Draft{}), ErrRowNotFound)
	assert.ErrorIs(t, b.Delete(added.ID), ErrRowNotFound)
}

func TestConfirmPersistsEveryRowAndClears(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	b := NewBuffer()
	b.Replace([]core.Draft{
		{Date: "2025-04-01", Item: "Bread", Category: "Food", Amount: "3.20"},
		{Date: "garbage", Amount: "not a number"},
		{},
	})

	res, err := b.Confirm(ctx, store, core.NewCoercer("", ""), today)
	require.NoError(t, err)
	assert.Len(t, res.IDs, 3)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, 0, b.Len())

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3, "malformed rows are defaulted, never dropped")
	for _, tx := range all {
		assert.Equal(t, core.Expense, tx.Type)
		if tx.Item == "Bread" {
			assert.True(t, tx.Amount.Equal(decimal.RequireFromString("3.20")))
		} else {
			assert.True(t, tx.Amount.IsZero())
			assert.Equal(t, today, tx.Date)
		}
	}
	assert.Equal(t, res.Transactions[0].ID, res.IDs[0])
}

func TestConfirmFailureKeepsRows(t *testing.T) {
	b := NewBuffer()
	b.Replace([]core.Draft{{Item: "a"}, {Item: "b"}})

	_, err := b.Confirm(context.Background(), failingWriter{err: errors.New("connection reset")}, core.NewCoercer("", ""), today)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 2, b.Len())
}

func TestConfirmEmptyBuffer(t *testing.T) {
	_, err := NewBuffer().Confirm(context.Background(), memory.New(nil), core.NewCoercer("", ""), today)
	assert.ErrorIs(t, err, ErrNothingToConfirm)
}

func TestDiscardWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	b := NewBuffer()
	b.Replace([]core.Draft{{Item: "a"}})
	b.Discard()

	assert.Equal(t, 0, b.Len())
	all, _ := store.ListAll(ctx)
	assert.Empty(t, all)
	_, err := b.Confirm(ctx, store, core.NewCoercer("", ""), today)
	assert.ErrorIs(t, err, ErrNothingToConfirm)
}

func TestBufferConcurrentUse(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row := b.Add(core.Draft{Item: "x"})
			_ = b.Edit(row.ID, core.Draft{Item: "y"})
			_ = b.Rows()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewSessions(10, time.Hour)
	a, bb := NewID(), NewID()

	s.Get(a).Add(core.Draft{Item: "only in a"})
	assert.Equal(t, 1, s.Get(a).Len())
	assert.Equal(t, 0, s.Get(bb).Len())

	s.End(a)
	_, ok := s.Lookup(a)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Get(a).Len(), "an ended session starts empty")
}

func TestSessionsExpire(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	s := NewSessions(10, time.Minute, cache.WithClock[*Buffer](clock))

	s.Get("id").Add(core.Draft{Item: "x"})
	now = now.Add(2 * time.Minute)
	_, ok := s.Lookup("id")
	assert.False(t, ok)
}
