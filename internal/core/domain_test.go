package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d    Date
		want error
	}{
		{NewDate(2025, 1, 1), nil},
		{NewDate(2025, 12, 31), nil},
		{NewDate(9999, 12, 31), nil},
		{Date{Time: time.Time{}}, ErrInvalidDate}, // zero time
		{NewDate(10000, 1, 1), ErrInvalidYear},
	}
	for i, tc := range cases {
		if err := tc.d.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-02-28 ")
	if err != nil || d != NewDate(2025, 2, 28) {
		t.Fatalf("expected 2025-02-28, got %v (err=%v)", d, err)
	}
	for _, in := range []string{"", "2025-02-30", "28/02/2025", "yesterday"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
	if NewDate(2025, 3, 5).String() != "2025-03-05" {
		t.Fatalf("unexpected String(): %s", NewDate(2025, 3, 5))
	}
}

func TestParseTxType(t *testing.T) {
	cases := []struct {
		in   string
		want TxType
		ok   bool
	}{
		{"Expense", Expense, true},
		{" income ", Income, true},
		{"EXPENSE", Expense, true},
		{"refund", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseTxType(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q expected (%q,%v), got (%q,%v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:     NewDate(2025, 1, 1),
		Item:     "Coffee",
		Category: "Food",
		Type:     Expense,
		Amount:   decimal.RequireFromString("4.50"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	free := good
	free.Amount = decimal.Zero
	if err := free.Validate(); err != nil {
		t.Fatalf("expected zero amount to be accepted, got %v", err)
	}

	bads := []func(tx *Transaction){
		func(tx *Transaction) { tx.Date = Date{} },
		func(tx *Transaction) { tx.Item = "  " },
		func(tx *Transaction) { tx.Category = "" },
		func(tx *Transaction) { tx.Type = "Transfer" },
		func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) },
	}
	for i, mutate := range bads {
		tx := good
		mutate(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionPatchApply(t *testing.T) {
	orig := Transaction{ID: 7, Date: NewDate(2025, 1, 1), Item: "Taxi", Category: "Transport", Type: Expense, Amount: decimal.NewFromInt(12)}

	item := "Bus"
	amount := decimal.RequireFromString("2.40")
	p := TransactionPatch{Item: &item, Amount: &amount}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid patch, got %v", err)
	}
	got := p.Apply(orig)
	if got.Item != "Bus" || !got.Amount.Equal(amount) {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	if got.Category != "Transport" || got.Date != orig.Date || got.ID != 7 {
		t.Fatalf("unpatched fields changed: %+v", got)
	}

	if err := (TransactionPatch{}).Validate(); err != ErrEmptyPatch {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	blank := " "
	if err := (TransactionPatch{Item: &blank}).Validate(); err != ErrEmptyItem {
		t.Fatalf("expected ErrEmptyItem, got %v", err)
	}
}

func TestNormalizeCategoryName(t *testing.T) {
	got, err := NormalizeCategoryName("  Eating   out ")
	if err != nil || got != "Eating out" {
		t.Fatalf("expected %q, got %q (err=%v)", "Eating out", got, err)
	}
	if _, err := NormalizeCategoryName("   "); err == nil {
		t.Fatalf("expected error for blank name")
	}
}
