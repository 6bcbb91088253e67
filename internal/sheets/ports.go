package sheets

import (
	"context"

	"smartasset/internal/core"
)

// Ports for outbound adapters.
type (
	// RowWriter appends or overwrites mirrored rows keyed by transaction id.
	RowWriter interface {
		Upsert(ctx context.Context, txs []core.Transaction) error
	}

	// RowDeleter removes mirrored rows. Missing ids are not an error.
	RowDeleter interface {
		Remove(ctx context.Context, ids []int64) error
	}

	// Mirror is a read-only copy of the ledger kept in a spreadsheet.
	Mirror interface {
		RowWriter
		RowDeleter
	}
)

// Header is the first row of a mirror sheet.
var Header = []string{"ID", "Date", "Item", "Category", "Type", "Amount", "Note"}
