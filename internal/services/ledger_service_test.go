package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/amqp"
	"smartasset/internal/core"
	"smartasset/internal/ledger"
	"smartasset/internal/log"
	"smartasset/internal/storage/memory"
)

// countingStore counts ListAll calls to observe the memo.
type countingStore struct {
	*memory.Store
	lists int
}

func (s *countingStore) ListAll(ctx context.Context) ([]core.Transaction, error) {
	s.lists++
	return s.Store.ListAll(ctx)
}

// stallingStore holds its first ListAll after taking the snapshot until
// release is closed.
type stallingStore struct {
	*memory.Store
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *stallingStore) ListAll(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.Store.ListAll(ctx)
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return txs, err
}

type recordingPublisher struct {
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func expense(date core.Date, item, category, amount string) core.Transaction {
	return core.Transaction{
		Date:     date,
		Item:     item,
		Category: category,
		Type:     core.Expense,
		Amount:   decimal.RequireFromString(amount),
	}
}

func newService(t *testing.T, opts ...Option) (*LedgerService, *countingStore, *clock) {
	t.Helper()
	store := &countingStore{Store: memory.New(ledger.DefaultCategories)}
	clk := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithLogger(log.Discard()), WithClock(clk.now)}, opts...)
	return NewLedgerService(store, 30*time.Second, opts...), store, clk
}

func TestListAllIsMemoised(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	_, err := svc.ListAll(ctx)
	require.NoError(t, err)
	_, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists)

	clk.t = clk.t.Add(31 * time.Second)
	_, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists)
}

func TestWritesInvalidateMemo(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	txs, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	ids, err := svc.AppendBatch(ctx, []core.Transaction{expense(core.NewDate(2024, 3, 1), "Lunch", "Food", "8.50")})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	txs, err = svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2, store.lists)

	require.NoError(t, svc.Delete(ctx, ids[0]))
	txs, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestWriteDuringLoadIsNotHiddenByMemo(t *testing.T) {
	store := &stallingStore{
		Store:   memory.New(ledger.DefaultCategories),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewLedgerService(store, time.Minute, WithLogger(log.Discard()))
	ctx := context.Background()

	type result struct {
		txs []core.Transaction
		err error
	}
	done := make(chan result, 1)
	go func() {
		txs, err := svc.ListAll(ctx)
		done <- result{txs, err}
	}()

	<-store.started
	_, err := svc.AppendBatch(ctx, []core.Transaction{expense(core.NewDate(2024, 5, 1), "Tea", "Food", "3")})
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Empty(t, stale.txs)

	txs, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestListAllReturnsCopies(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AppendBatch(ctx, []core.Transaction{expense(core.NewDate(2024, 3, 1), "Lunch", "Food", "8.50")})
	require.NoError(t, err)

	first, err := svc.ListAll(ctx)
	require.NoError(t, err)
	first[0].Item = "changed"

	second, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", second[0].Item)
}

func TestRefreshDropsMemo(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	_, _ = svc.ListAll(ctx)
	svc.Refresh()
	_, _ = svc.ListAll(ctx)
	assert.Equal(t, 2, store.lists)
}

func TestAddValidates(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Add(context.Background(), expense(core.NewDate(2024, 3, 1), "", "Food", "1"))
	assert.ErrorIs(t, err, core.ErrEmptyItem)

	_, err = svc.Add(context.Background(), expense(core.NewDate(2024, 3, 1), "Tea", "Food", "-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.Add(context.Background(), expense(core.NewDate(2024, 3, 1), "Voucher", "Food", "0"))
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, expense(core.NewDate(2024, 3, 1), "Tea", "Food", "4"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Update(ctx, id, core.TransactionPatch{}), core.ErrEmptyPatch)

	item := "Green tea"
	require.NoError(t, svc.Update(ctx, id, core.TransactionPatch{Item: &item}))
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Green tea", got.Item)

	assert.ErrorIs(t, svc.Update(ctx, 999, core.TransactionPatch{Item: &item}), ledger.ErrNotFound)
}

func TestEventsPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newService(t, WithPublisher(pub))
	ctx := context.Background()

	ids, err := svc.AppendBatch(ctx, []core.Transaction{
		expense(core.NewDate(2024, 3, 1), "A", "Food", "1"),
		expense(core.NewDate(2024, 3, 2), "B", "Food", "2"),
	})
	require.NoError(t, err)
	note := "x"
	require.NoError(t, svc.Update(ctx, ids[0], core.TransactionPatch{Note: &note}))
	require.NoError(t, svc.Delete(ctx, ids[1]))

	require.Len(t, pub.events, 3)
	assert.Equal(t, amqp.EventCreated, pub.events[0].Kind)
	assert.Equal(t, ids, pub.events[0].IDs)
	assert.Equal(t, amqp.EventUpdated, pub.events[1].Kind)
	assert.Equal(t, amqp.EventDeleted, pub.events[2].Kind)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _, _ := newService(t, WithPublisher(pub))

	id, err := svc.Add(context.Background(), expense(core.NewDate(2024, 3, 1), "Tea", "Food", "4"))
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestCategories(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cat, err := svc.AddCategory(ctx, "  Pet   care ")
	require.NoError(t, err)
	assert.Equal(t, "Pet care", cat.Name)

	_, err = svc.AddCategory(ctx, "pet CARE")
	assert.ErrorIs(t, err, ledger.ErrDuplicateCategory)

	_, err = svc.AddCategory(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidCategory)

	names, err := svc.CategoryNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Pet care")

	require.NoError(t, svc.DeleteCategory(ctx, "Pet care"))
	names, err = svc.CategoryNames(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "Pet care")
}

func TestReportAndYears(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	years, err := svc.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)

	income := expense(core.NewDate(2023, 1, 5), "Salary", "Salary", "100")
	income.Type = core.Income
	_, err = svc.AppendBatch(ctx, []core.Transaction{
		income,
		expense(core.NewDate(2023, 1, 10), "Groceries", "Food", "30"),
		expense(core.NewDate(2023, 2, 1), "Bus", "Transport", "5"),
	})
	require.NoError(t, err)

	rep, err := svc.Report(ctx, core.Window{Year: 2023, Month: 1})
	require.NoError(t, err)
	assert.True(t, rep.Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, rep.Expense.Equal(decimal.NewFromInt(30)))
	assert.True(t, rep.Balance.Equal(decimal.NewFromInt(70)))

	_, err = svc.Report(ctx, core.Window{Year: 2023, Month: 13})
	assert.ErrorIs(t, err, core.ErrInvalidWindow)

	years, err = svc.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2023}, years)
}

func TestZeroTTLDisablesMemo(t *testing.T) {
	store := &countingStore{Store: memory.New(nil)}
	svc := NewLedgerService(store, 0, WithLogger(log.Discard()))
	_, _ = svc.ListAll(context.Background())
	_, _ = svc.ListAll(context.Background())
	assert.Equal(t, 2, store.lists)
	assert.Nil(t, svc.Caches())
}
