package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense TxType = "Expense"
	Income  TxType = "Income"
)

const dateLayout = "2006-01-02"

type (
	// TxType is the direction of a transaction.
	TxType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID        int64 // Database ID, zero until stored
		Date      Date
		Item      string
		Category  string
		Type      TxType
		Amount    decimal.Decimal // Always non-negative, direction lives in Type
		Note      string
		CreatedAt time.Time
	}

	Category struct {
		ID   int64
		Name string
	}

	// Draft is a row awaiting confirmation. Every field holds raw text exactly
	// as produced by the interpreter or typed by the user.
	Draft struct {
		Date     string `json:"date"`
		Item     string `json:"item"`
		Category string `json:"category"`
		Type     string `json:"type"`
		Amount   string `json:"amount"`
		Note     string `json:"note"`
	}

	// TransactionPatch names the fields to overwrite. Nil fields are left alone.
	TransactionPatch struct {
		Date     *Date
		Item     *string
		Category *string
		Type     *TxType
		Amount   *decimal.Decimal
		Note     *string
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidYear     = errors.New("year out of range (1-9999)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrEmptyItem       = errors.New("empty item")
	ErrEmptyCategory   = errors.New("empty category")
	ErrItemTooLong     = errors.New("item too long (max 200 characters)")
	ErrEmptyPatch      = errors.New("no fields to update")
	ErrInvalidCategory = errors.New("invalid category name")
)

// ParseTxType matches s against the known types ignoring case and surrounding space.
func ParseTxType(s string) (TxType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return Expense, true
	case "income":
		return Income, true
	}
	return "", false
}

func (t TxType) Valid() bool {
	return t == Expense || t == Income
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Validate rejects the zero date and years a report window cannot select.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.Year(); y < 1 || y > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Validate checks a manually entered transaction. Rows coming from the
// reconciliation buffer go through Coerce instead and are never rejected.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Item) == "" {
		return ErrEmptyItem
	}
	if len(t.Item) > 200 {
		return ErrItemTooLong
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the amount with income positive and expense negative.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Item == nil && p.Category == nil &&
		p.Type == nil && p.Amount == nil && p.Note == nil
}

// Validate rejects patches that would leave a stored row malformed.
func (p TransactionPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	if p.Item != nil && strings.TrimSpace(*p.Item) == "" {
		return ErrEmptyItem
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Apply returns a copy of t with the patched fields overwritten.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Item != nil {
		t.Item = *p.Item
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	return t
}

// NormalizeCategoryName trims and collapses inner whitespace.
func NormalizeCategoryName(s string) (string, error) {
	name := strings.Join(strings.Fields(s), " ")
	if name == "" || len(name) > 64 {
		return "", ErrInvalidCategory
	}
	return name, nil
}
