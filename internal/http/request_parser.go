// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Drafts, manual entries and partial updates all arrive as HTMX form posts or
// small JSON bodies and are decoded here.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartasset/internal/core"
)

const maxFormBody = 64 << 10

// ParseWindowParams reads year and month from a query. A missing year means
// the current one; a missing month means the current month; "0" or "all"
// select the whole year.
func ParseWindowParams(query url.Values, now time.Time) core.Window {
	w := core.Window{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			w.Year = y
		}
	}
	switch v := strings.ToLower(strings.TrimSpace(query.Get("month"))); v {
	case "":
	case "all":
		w.Month = 0
	default:
		if m, err := strconv.Atoi(v); err == nil {
			w.Month = m
		}
	}
	return w
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxFormBody bytes of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBody+1))
	if p.err == nil && len(p.body) > maxFormBody {
		p.err = errors.New("request body too large")
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(p.body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was sent at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Draft reads the editable draft fields. Values are kept raw; coercion
// happens on confirm.
func (p *RequestBodyParser) Draft() core.Draft {
	return core.Draft{
		Date:     p.Get("date"),
		Item:     p.Get("item"),
		Category: p.Get("category"),
		Type:     p.Get("type"),
		Amount:   p.Get("amount"),
		Note:     p.Get("note"),
	}
}

// FieldError names the form field that failed to parse.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Patch builds a partial update from the fields present in the body.
func (p *RequestBodyParser) Patch() (core.TransactionPatch, error) {
	var patch core.TransactionPatch
	if p.Has("date") {
		d, err := core.ParseDate(p.Get("date"))
		if err != nil {
			return patch, &FieldError{"date", err}
		}
		patch.Date = &d
	}
	if p.Has("item") {
		v := p.Get("item")
		patch.Item = &v
	}
	if p.Has("category") {
		v := p.Get("category")
		patch.Category = &v
	}
	if p.Has("type") {
		t, ok := core.ParseTxType(p.Get("type"))
		if !ok {
			return patch, &FieldError{"type", core.ErrInvalidType}
		}
		patch.Type = &t
	}
	if p.Has("amount") {
		amt, err := parseNonNegative(p.Get("amount"))
		if err != nil {
			return patch, &FieldError{"amount", err}
		}
		patch.Amount = &amt
	}
	if p.Has("note") {
		v := p.Get("note")
		patch.Note = &v
	}
	return patch, nil
}

// Transaction builds a manual entry. The amount accepts quick-add
// expressions such as "12.5*2".
func (p *RequestBodyParser) Transaction(today core.Date) (core.Transaction, error) {
	tx := core.Transaction{
		Date:     today,
		Item:     p.Get("item"),
		Category: p.Get("category"),
		Type:     core.Expense,
		Note:     p.Get("note"),
	}
	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return tx, &FieldError{"date", err}
		}
		tx.Date = d
	}
	if v := p.Get("type"); v != "" {
		t, ok := core.ParseTxType(v)
		if !ok {
			return tx, &FieldError{"type", core.ErrInvalidType}
		}
		tx.Type = t
	}
	amt, err := parseNonNegative(p.Get("amount"))
	if err != nil {
		return tx, &FieldError{"amount", err}
	}
	tx.Amount = amt
	return tx, nil
}

func parseNonNegative(s string) (decimal.Decimal, error) {
	amt, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if amt.IsNegative() {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return amt, nil
}
