// Package postgres stores the ledger in a hosted PostgreSQL database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"smartasset/internal/core"
	"smartasset/internal/ledger"
)

// Config selects the database. Password, when set, overrides any password in URL.
type Config struct {
	URL             string
	Password        string
	MaxConns        int32
	MaxConnIdleTime time.Duration
}

type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// Open connects, pings and migrates.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if cfg.Password != "" {
		pcfg.ConnConfig.Password = cfg.Password
	}
	pcfg.MaxConns = 5
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MinConns = 1
	pcfg.MaxConnIdleTime = 2 * time.Minute
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const selectColumns = `id, date, item, category, type, amount::text, note, created_at`

// AppendBatch implements ledger.TransactionWriter
func (s *Store) AppendBatch(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	query, args := buildInsert(txs)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	slog.InfoContext(ctx, "Transactions saved to Postgres", "count", len(ids))
	return ids, nil
}

func buildInsert(txs []core.Transaction) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO transactions (date, item, category, type, amount, note) VALUES ")
	args := make([]any, 0, len(txs)*6)
	for i, tx := range txs {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 6
		fmt.Fprintf(&sb, "($%d::date, $%d, $%d, $%d, $%d::numeric, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, tx.Date.String(), tx.Item, tx.Category, string(tx.Type), tx.Amount.StringFixed(2), tx.Note)
	}
	sb.WriteString(" RETURNING id")
	return sb.String(), args
}

// ListAll implements ledger.TransactionReader
func (s *Store) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Get implements ledger.TransactionReader
func (s *Store) Get(ctx context.Context, id int64) (core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		tx      core.Transaction
		date    time.Time
		typ     string
		amount  string
		created time.Time
	)
	if err := row.Scan(&tx.ID, &date, &tx.Item, &tx.Category, &typ, &amount, &tx.Note, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: bad amount %q", tx.ID, amount)
	}
	tx.Date = core.DateOf(date)
	tx.Type = core.TxType(typ)
	tx.Amount = d
	tx.CreatedAt = created
	return tx, nil
}

// Delete implements ledger.TransactionDeleter
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from Postgres", "id", id)
	return nil
}

// Update implements ledger.TransactionUpdater
func (s *Store) Update(ctx context.Context, id int64, patch core.TransactionPatch) error {
	query, args := buildUpdate(id, patch)
	if query == "" {
		return core.ErrEmptyPatch
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction updated in Postgres", "id", id)
	return nil
}

func buildUpdate(id int64, p core.TransactionPatch) (string, []any) {
	var sets []string
	var args []any
	add := func(col, cast string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args))+cast)
	}
	if p.Date != nil {
		add("date", "::date", p.Date.String())
	}
	if p.Item != nil {
		add("item", "", *p.Item)
	}
	if p.Category != nil {
		add("category", "", *p.Category)
	}
	if p.Type != nil {
		add("type", "", string(*p.Type))
	}
	if p.Amount != nil {
		add("amount", "::numeric", p.Amount.StringFixed(2))
	}
	if p.Note != nil {
		add("note", "", *p.Note)
	}
	if len(sets) == 0 {
		return "", nil
	}
	args = append(args, id)
	return "UPDATE transactions SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args)), args
}

// ListCategories implements ledger.CategoryRegistry
func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.Category])
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// AddCategory implements ledger.CategoryRegistry
func (s *Store) AddCategory(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ($1) ON CONFLICT DO NOTHING RETURNING id, name`, name,
	).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, ledger.ErrDuplicateCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory implements ledger.CategoryRegistry
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
