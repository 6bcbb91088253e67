package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartasset/internal/core"
	"smartasset/internal/ledger"

	_ "modernc.org/sqlite"
)

// maxRowsPerInsert keeps a single statement under SQLite's bound-parameter limit.
const maxRowsPerInsert = 500

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendBatch implements ledger.TransactionWriter
func (r *SQLiteRepository) AppendBatch(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]int64, 0, len(txs))
	for start := 0; start < len(txs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(txs))
		params := make([]InsertTransactionParams, 0, end-start)
		for _, tx := range txs[start:end] {
			params = append(params, InsertTransactionParams{
				Date:      tx.Date.String(),
				Item:      tx.Item,
				Category:  tx.Category,
				Type:      string(tx.Type),
				Amount:    tx.Amount.StringFixed(2),
				Note:      tx.Note,
				CreatedAt: now,
			})
		}
		chunk, err := r.queries.InsertTransactions(ctx, params)
		if err != nil {
			return ids, fmt.Errorf("insert transactions: %w", err)
		}
		// Ids are allocated in statement order; RETURNING order is not guaranteed.
		sort.Slice(chunk, func(i, j int) bool { return chunk[i] < chunk[j] })
		ids = append(ids, chunk...)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(ids))
	return ids, nil
}

// ListAll implements ledger.TransactionReader
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Get implements ledger.TransactionReader
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return row.toCore()
}

// Delete implements ledger.TransactionDeleter
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// Update implements ledger.TransactionUpdater
func (r *SQLiteRepository) Update(ctx context.Context, id int64, patch core.TransactionPatch) error {
	cols, vals := patchColumns(patch)
	if len(cols) == 0 {
		return core.ErrEmptyPatch
	}
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{ID: id, Columns: cols, Values: vals})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction updated in SQLite", "id", id, "fields", cols)
	return nil
}

// ListCategories implements ledger.CategoryRegistry
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]core.Category, len(rows))
	for i, row := range rows {
		cats[i] = core.Category{ID: row.ID, Name: row.Name}
	}
	return cats, nil
}

// AddCategory implements ledger.CategoryRegistry
func (r *SQLiteRepository) AddCategory(ctx context.Context, name string) (core.Category, error) {
	row, err := r.queries.InsertCategory(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ledger.ErrDuplicateCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

// DeleteCategory implements ledger.CategoryRegistry
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	n, err := r.queries.DeleteCategory(ctx, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (row TransactionRow) toCore() (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: bad date %q", row.ID, row.Date)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: bad amount %q", row.ID, row.Amount)
	}
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return core.Transaction{
		ID:        row.ID,
		Date:      date,
		Item:      row.Item,
		Category:  row.Category,
		Type:      core.TxType(row.Type),
		Amount:    amount,
		Note:      row.Note,
		CreatedAt: created,
	}, nil
}

// patchColumns lists the columns and values named by p, in a stable order.
func patchColumns(p core.TransactionPatch) ([]string, []any) {
	var cols []string
	var vals []any
	if p.Date != nil {
		cols, vals = append(cols, "date"), append(vals, p.Date.String())
	}
	if p.Item != nil {
		cols, vals = append(cols, "item"), append(vals, *p.Item)
	}
	if p.Category != nil {
		cols, vals = append(cols, "category"), append(vals, *p.Category)
	}
	if p.Type != nil {
		cols, vals = append(cols, "type"), append(vals, string(*p.Type))
	}
	if p.Amount != nil {
		cols, vals = append(cols, "amount"), append(vals, p.Amount.StringFixed(2))
	}
	if p.Note != nil {
		cols, vals = append(cols, "note"), append(vals, *p.Note)
	}
	return cols, vals
}
