package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"smartasset/internal/amqp"
	"smartasset/internal/cache"
	"smartasset/internal/core"
	"smartasset/internal/ledger"
	"smartasset/internal/log"
)

const (
	allTransactionsKey = "transactions"
	categoriesKey      = "categories"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
	Close() error
}

// LedgerService orchestrates ledger operations across the store, a short read
// memo and the optional event publisher.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time

	// Serialises loads so concurrent page renders share one store read.
	loadMu     sync.Mutex
	txs        *cache.LRUCache[[]core.Transaction]
	categories *cache.LRUCache[[]core.Category]

	// Bumped on every invalidation. A load only memoises its result when no
	// invalidation happened while it was reading the store.
	txsGen atomic.Uint64
	catGen atomic.Uint64
}

type Option func(*LedgerService)

// WithPublisher enables ledger events. A nil publisher is ignored.
func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService memoises reads for ttl. A zero ttl disables the memo.
func NewLedgerService(store ledger.Store, ttl time.Duration, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	if ttl > 0 {
		s.txs = cache.NewLRUCache[[]core.Transaction](1, ttl, cache.WithClock[[]core.Transaction](s.now))
		s.categories = cache.NewLRUCache[[]core.Category](1, ttl, cache.WithClock[[]core.Category](s.now))
	}
	return s
}

// Caches exposes the memo caches for periodic cleanup.
func (s *LedgerService) Caches() map[string]cache.Cleaner {
	if s.txs == nil {
		return nil
	}
	return map[string]cache.Cleaner{
		"ledger_transactions": s.txs,
		"ledger_categories":   s.categories,
	}
}

// AppendBatch stores txs and returns their ids in input order.
func (s *LedgerService) AppendBatch(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	ids, err := s.store.AppendBatch(ctx, txs)
	if err != nil {
		// Part of the batch may have landed.
		s.invalidateTransactions()
		return nil, fmt.Errorf("append transactions: %w", err)
	}
	s.invalidateTransactions()
	s.publish(ctx, amqp.EventCreated, ids)
	return ids, nil
}

// Add validates and stores one manually entered transaction.
func (s *LedgerService) Add(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	ids, err := s.AppendBatch(ctx, []core.Transaction{tx})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// ListAll returns every transaction, newest first. Callers own the slice.
func (s *LedgerService) ListAll(ctx context.Context) ([]core.Transaction, error) {
	if s.txs == nil {
		return s.store.ListAll(ctx)
	}
	if txs, ok := s.txs.Get(allTransactionsKey); ok {
		return cloneSlice(txs), nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if txs, ok := s.txs.Get(allTransactionsKey); ok {
		return cloneSlice(txs), nil
	}
	gen := s.txsGen.Load()
	txs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if s.txsGen.Load() == gen {
		s.txs.Set(allTransactionsKey, txs)
	}
	return cloneSlice(txs), nil
}

func (s *LedgerService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateTransactions()
	s.publish(ctx, amqp.EventDeleted, []int64{id})
	return nil
}

// Update applies patch to one record after validating it.
func (s *LedgerService) Update(ctx context.Context, id int64, patch core.TransactionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		return err
	}
	s.invalidateTransactions()
	s.publish(ctx, amqp.EventUpdated, []int64{id})
	return nil
}

func (s *LedgerService) Categories(ctx context.Context) ([]core.Category, error) {
	if s.categories != nil {
		if cats, ok := s.categories.Get(categoriesKey); ok {
			return cloneSlice(cats), nil
		}
	}
	gen := s.catGen.Load()
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if s.categories != nil && s.catGen.Load() == gen {
		s.categories.Set(categoriesKey, cats)
	}
	return cloneSlice(cats), nil
}

// CategoryNames is Categories flattened to names.
func (s *LedgerService) CategoryNames(ctx context.Context) ([]string, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.CategoryNames(cats), nil
}

func (s *LedgerService) AddCategory(ctx context.Context, name string) (core.Category, error) {
	name, err := core.NormalizeCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}
	cat, err := s.store.AddCategory(ctx, name)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidateCategories()
	s.logger.InfoContext(ctx, "Category added", "category", cat.Name)
	return cat, nil
}

// DeleteCategory removes a category. Transactions keep the name.
func (s *LedgerService) DeleteCategory(ctx context.Context, name string) error {
	if err := s.store.DeleteCategory(ctx, name); err != nil {
		return err
	}
	s.invalidateCategories()
	s.logger.InfoContext(ctx, "Category deleted", "category", name)
	return nil
}

// Report aggregates the records inside w.
func (s *LedgerService) Report(ctx context.Context, w core.Window) (core.Report, error) {
	if err := w.Validate(); err != nil {
		return core.Report{}, err
	}
	txs, err := s.ListAll(ctx)
	if err != nil {
		return core.Report{}, err
	}
	return core.BuildReport(txs, w), nil
}

// Years lists the years that have data, newest first.
func (s *LedgerService) Years(ctx context.Context) ([]int, error) {
	txs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return core.AvailableYears(txs, s.now()), nil
}

// Refresh drops the read memo so the next read hits the store.
func (s *LedgerService) Refresh() {
	s.invalidateTransactions()
	s.invalidateCategories()
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) invalidateTransactions() {
	s.txsGen.Add(1)
	if s.txs != nil {
		s.txs.Purge()
	}
}

func (s *LedgerService) invalidateCategories() {
	s.catGen.Add(1)
	if s.categories != nil {
		s.categories.Purge()
	}
}

func (s *LedgerService) publish(ctx context.Context, kind amqp.EventKind, ids []int64) {
	if s.publisher == nil || len(ids) == 0 {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(kind, ids...)); err != nil {
		// The write already succeeded; the mirror catches up on the next event.
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEvent, kind,
			log.FieldCount, len(ids),
			log.FieldError, err)
	}
}

// Close closes both the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
