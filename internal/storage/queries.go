package storage

import (
	"context"
	"database/sql"
	"strings"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// TransactionRow mirrors one row of the transactions table.
type TransactionRow struct {
	ID        int64
	Date      string
	Item      string
	Category  string
	Type      string
	Amount    string
	Note      string
	CreatedAt string
}

type CategoryRow struct {
	ID   int64
	Name string
}

type InsertTransactionParams struct {
	Date      string
	Item      string
	Category  string
	Type      string
	Amount    string
	Note      string
	CreatedAt string
}

const insertTransactionsPrefix = `INSERT INTO transactions (date, item, category, type, amount, note, created_at) VALUES `

// InsertTransactions writes all rows with one multi-row statement.
func (q *Queries) InsertTransactions(ctx context.Context, rows []InsertTransactionParams) ([]int64, error) {
	var sb strings.Builder
	sb.WriteString(insertTransactionsPrefix)
	args := make([]any, 0, len(rows)*7)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.Date, r.Item, r.Category, r.Type, r.Amount, r.Note, r.CreatedAt)
	}
	sb.WriteString(" RETURNING id")

	res, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	var ids []int64
	for res.Next() {
		var id int64
		if err := res.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, res.Err()
}

const listTransactions = `SELECT id, date, item, category, type, amount, note, created_at
FROM transactions
ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(&i.ID, &i.Date, &i.Item, &i.Category, &i.Type, &i.Amount, &i.Note, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT id, date, item, category, type, amount, note, created_at
FROM transactions
WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i TransactionRow
	err := row.Scan(&i.ID, &i.Date, &i.Item, &i.Category, &i.Type, &i.Amount, &i.Note, &i.CreatedAt)
	return i, err
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateTransactionParams carries only the columns to overwrite.
type UpdateTransactionParams struct {
	ID      int64
	Columns []string
	Values  []any
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	sets := make([]string, len(arg.Columns))
	for i, c := range arg.Columns {
		sets[i] = c + " = ?"
	}
	query := "UPDATE transactions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args := append(append([]any{}, arg.Values...), arg.ID)
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `SELECT id, name FROM categories ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertCategory = `INSERT INTO categories (name) VALUES (?)
ON CONFLICT (name) DO NOTHING
RETURNING id, name`

func (q *Queries) InsertCategory(ctx context.Context, name string) (CategoryRow, error) {
	row := q.db.QueryRowContext(ctx, insertCategory, name)
	var i CategoryRow
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const deleteCategory = `DELETE FROM categories WHERE name = ?`

func (q *Queries) DeleteCategory(ctx context.Context, name string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
