package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultPlaceholderItem  = "Unknown item"
	DefaultFallbackCategory = "Other"
)

// Warning records a field that was replaced by a default during coercion.
type Warning struct {
	Row     int // Zero-based position in the batch, -1 when not part of one
	Field   string
	Message string
}

func (w Warning) String() string {
	if w.Row < 0 {
		return fmt.Sprintf("%s: %s", w.Field, w.Message)
	}
	return fmt.Sprintf("row %d %s: %s", w.Row+1, w.Field, w.Message)
}

// Coercer turns drafts into storable transactions. It never rejects a row.
type Coercer struct {
	Placeholder string
	Fallback    string
}

func NewCoercer(placeholder, fallback string) Coercer {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholderItem
	}
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackCategory
	}
	return Coercer{Placeholder: placeholder, Fallback: fallback}
}

// Coerce fills gaps in d in a fixed order: date, item, category, type, amount.
func (c Coercer) Coerce(d Draft, today Date) (Transaction, []Warning) {
	var warns []Warning
	warn := func(field, format string, args ...any) {
		warns = append(warns, Warning{Row: -1, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	tx := Transaction{Note: strings.TrimSpace(d.Note)}

	raw := strings.TrimSpace(d.Date)
	if date, err := ParseDate(raw); err == nil {
		tx.Date = date
	} else {
		tx.Date = today
		if raw == "" {
			warn("date", "missing, using %s", today)
		} else {
			warn("date", "%q is not a date, using %s", raw, today)
		}
	}

	tx.Item = strings.TrimSpace(d.Item)
	if tx.Item == "" {
		tx.Item = c.Placeholder
		warn("item", "missing, using %q", c.Placeholder)
	}

	tx.Category = strings.TrimSpace(d.Category)
	if tx.Category == "" {
		tx.Category = c.Fallback
		warn("category", "missing, using %q", c.Fallback)
	}

	if t, ok := ParseTxType(d.Type); ok {
		tx.Type = t
	} else {
		tx.Type = Expense
		if strings.TrimSpace(d.Type) != "" {
			warn("type", "%q is not a known type, using %s", d.Type, Expense)
		}
	}

	tx.Amount = decimal.Zero
	raw = strings.TrimSpace(d.Amount)
	switch strings.ToLower(raw) {
	case "", "null", "none", "nan":
		warn("amount", "missing, using 0.00")
	default:
		amt, err := ParseAmount(raw)
		switch {
		case errors.Is(err, ErrAmountOutOfRange):
			warn("amount", "%q is out of range, using 0.00", clip(raw, 24))
		case err != nil:
			warn("amount", "%q is not a number, using 0.00", clip(raw, 24))
		case amt.IsNegative():
			tx.Amount = amt.Abs()
			warn("amount", "negative value %s stored as %s", amt.StringFixed(2), tx.Amount.StringFixed(2))
		default:
			tx.Amount = amt
		}
	}

	return tx, warns
}

// CoerceAll coerces every draft and tags each warning with its row index.
func (c Coercer) CoerceAll(drafts []Draft, today Date) ([]Transaction, []Warning) {
	txs := make([]Transaction, 0, len(drafts))
	var all []Warning
	for i, d := range drafts {
		tx, warns := c.Coerce(d, today)
		for _, w := range warns {
			w.Row = i
			all = append(all, w)
		}
		txs = append(txs, tx)
	}
	return txs, all
}

// clip shortens s to at most n runes for display in warnings.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
