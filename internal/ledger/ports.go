// Package ledger defines the ports every ledger store implements.
package ledger

import (
	"context"
	"errors"

	"smartasset/internal/core"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateCategory = errors.New("category already exists")
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// AppendBatch stores txs in a single write and returns their new ids in
		// input order. A failure part way through is not rolled back.
		AppendBatch(ctx context.Context, txs []core.Transaction) ([]int64, error)
	}

	TransactionReader interface {
		// ListAll returns every record ordered by date then id, newest first.
		ListAll(ctx context.Context) ([]core.Transaction, error)
		Get(ctx context.Context, id int64) (core.Transaction, error)
	}

	TransactionDeleter interface {
		// Delete removes one record; ErrNotFound when id does not exist.
		Delete(ctx context.Context, id int64) error
	}

	TransactionUpdater interface {
		// Update overwrites only the fields named by patch.
		Update(ctx context.Context, id int64, patch core.TransactionPatch) error
	}

	CategoryRegistry interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		AddCategory(ctx context.Context, name string) (core.Category, error)
		// DeleteCategory never touches transactions referencing name.
		DeleteCategory(ctx context.Context, name string) error
	}

	// Store is the full ledger backend.
	Store interface {
		TransactionWriter
		TransactionReader
		TransactionDeleter
		TransactionUpdater
		CategoryRegistry
		Ping(ctx context.Context) error
		Close() error
	}
)

// DefaultCategories seeds a fresh store.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Shopping",
	"Housing",
	"Entertainment",
	"Medical",
	"Salary",
	"Investment",
	"Other",
}

// CategoryNames flattens cats into their names, preserving order.
func CategoryNames(cats []core.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names
}
