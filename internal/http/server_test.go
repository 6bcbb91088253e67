package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/core"
	"smartasset/internal/log"
	"smartasset/internal/receipt"
	"smartasset/internal/reconcile"
	"smartasset/internal/services"
	"smartasset/internal/storage/memory"
)

var fakeJPEG = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00fake-receipt")

type fakeInterpreter struct {
	mu         sync.Mutex
	drafts     []core.Draft
	err        error
	calls      int
	categories []string
}

func (f *fakeInterpreter) Interpret(_ context.Context, img receipt.Image, categories []string) ([]core.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.categories = categories
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Draft(nil), f.drafts...), nil
}

type testServer struct {
	*Server
	store    *memory.Store
	interp   *fakeInterpreter
	sessions *reconcile.Sessions
	cookie   *http.Cookie
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.New([]string{"Food", "Transport", "Other"})
	interp := &fakeInterpreter{}
	sessions := reconcile.NewSessions(10, time.Hour)
	if opts.RateLimitRPM == 0 {
		opts.RateLimitRPM = 6000
	}
	srv, err := NewServer(opts, Deps{
		Ledger:      services.NewLedgerService(store, time.Minute, services.WithLogger(log.Discard())),
		Interpreter: interp,
		Sessions:    sessions,
		Coercer:     core.NewCoercer("", "Other"),
		Logger:      log.Discard(),
	})
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store, interp: interp, sessions: sessions}
}

// do sends a request carrying the session cookie from earlier responses.
func (ts *testServer) do(method, target string, body *strings.Reader, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return ts.send(req)
}

func (ts *testServer) send(req *http.Request) *httptest.ResponseRecorder {
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	w := httptest.NewRecorder()
	ts.Handler.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			ts.cookie = c
		}
	}
	return w
}

func (ts *testServer) form(method, target string, values url.Values) *httptest.ResponseRecorder {
	return ts.do(method, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (ts *testServer) upload(t *testing.T, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(receiptField, "receipt.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/receipts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.send(req)
}

func (ts *testServer) buffer(t *testing.T) *reconcile.Buffer {
	t.Helper()
	require.NotNil(t, ts.cookie, "no session cookie issued")
	buf, ok := ts.sessions.Lookup(ts.cookie.Value)
	require.True(t, ok)
	return buf
}

func (ts *testServer) records(t *testing.T) []core.Transaction {
	t.Helper()
	txs, err := ts.store.ListAll(context.Background())
	require.NoError(t, err)
	return txs
}

func TestIndexRendersAndIssuesSession(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Smart Asset")
	assert.Contains(t, body, `id="drafts"`)
	assert.Contains(t, body, `id="report"`)
	assert.Contains(t, body, `value="2025-03-14"`)
	assert.Contains(t, body, "Transport")
	require.NotNil(t, ts.cookie)
	assert.True(t, ts.cookie.HttpOnly)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReceiptConfirmFlow(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.interp.drafts = []core.Draft{
		{Date: "2025-03-10", Item: "Milk", Category: "Food", Type: "Expense", Amount: "6.20"},
		{Date: "", Item: "", Category: "", Type: "Expense", Amount: "-3"},
	}

	w := ts.upload(t, fakeJPEG)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `value="Milk"`)
	assert.Equal(t, []string{"Food", "Transport", "Other"}, ts.interp.categories)
	rows := ts.buffer(t).Rows()
	require.Len(t, rows, 2)
	assert.Empty(t, ts.records(t), "interpreting never writes")

	// Fix the first row by hand before confirming.
	w = ts.form(http.MethodPost, "/drafts/"+rows[0].ID, url.Values{
		"date": {"2025-03-10"}, "item": {"Whole milk"}, "category": {"Food"},
		"type": {"Expense"}, "amount": {"6.40"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/drafts/confirm", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	trigger := w.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, `"ledger:changed":{"count":2}`)
	assert.Contains(t, trigger, `"type":"warning"`)

	txs := ts.records(t)
	require.Len(t, txs, 2)
	byItem := map[string]core.Transaction{}
	for _, tx := range txs {
		byItem[tx.Item] = tx
	}
	assert.Equal(t, "6.40", byItem["Whole milk"].Amount.StringFixed(2))
	coerced := byItem[core.DefaultPlaceholderItem]
	assert.Equal(t, "Other", coerced.Category)
	assert.Equal(t, "2025-03-14", coerced.Date.String())
	assert.Equal(t, "3.00", coerced.Amount.StringFixed(2))
	assert.Equal(t, 0, ts.buffer(t).Len())
}

func TestReceiptFailureLeavesBufferUntouched(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.form(http.MethodPost, "/drafts", url.Values{"item": {"Kept"}})
	require.Equal(t, http.StatusOK, w.Code)

	ts.interp.err = receipt.ErrMalformedResponse
	w = ts.upload(t, fakeJPEG)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"type":"error"`)
	rows := ts.buffer(t).Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Kept", rows[0].Draft.Item)
}

func TestReceiptRejectsNonImage(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.upload(t, []byte("just some text"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Zero(t, ts.interp.calls)
}

func TestReceiptTooLarge(t *testing.T) {
	ts := newTestServer(t, Options{MaxUploadBytes: 64})
	w := ts.upload(t, append(fakeJPEG, bytes.Repeat([]byte{0}, 128)...))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, ts.interp.calls)
}

func TestReceiptDisabledWithoutInterpreter(t *testing.T) {
	store := memory.New(nil)
	srv, err := NewServer(Options{}, Deps{
		Ledger:   services.NewLedgerService(store, 0),
		Sessions: reconcile.NewSessions(1, time.Minute),
		Logger:   log.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/receipts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDraftRowEditing(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.form(http.MethodPost, "/drafts", url.Values{"item": {"Bread"}})
	require.Equal(t, http.StatusOK, w.Code)
	rows := ts.buffer(t).Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03-14", rows[0].Draft.Date, "new rows default to today")

	w = ts.do(http.MethodDelete, "/drafts/"+rows[0].ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.buffer(t).Len())

	w = ts.do(http.MethodDelete, "/drafts/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.form(http.MethodPost, "/drafts/missing", url.Values{"item": {"x"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscardDrafts(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.form(http.MethodPost, "/drafts", url.Values{"item": {"A"}})
	ts.form(http.MethodPost, "/drafts", url.Values{"item": {"B"}})
	require.Equal(t, 2, ts.buffer(t).Len())

	w := ts.do(http.MethodPost, "/drafts/discard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.buffer(t).Len())
	assert.Empty(t, ts.records(t))
}

func TestConfirmEmptyBuffer(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(http.MethodPost, "/drafts/confirm", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.form(http.MethodPost, "/drafts", url.Values{"item": {"Mine"}})
	mine := ts.cookie

	ts.cookie = nil
	w := ts.do(http.MethodGet, "/drafts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Mine")
	assert.NotEqual(t, mine.Value, ts.cookie.Value)
}

func TestManualTransaction(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.form(http.MethodPost, "/transactions", url.Values{
		"item": {"Bus"}, "category": {"Transport"}, "amount": {"2*1.60"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"form:reset"`)

	txs := ts.records(t)
	require.Len(t, txs, 1)
	assert.Equal(t, "3.20", txs[0].Amount.StringFixed(2))
	assert.Equal(t, core.Expense, txs[0].Type)
	assert.Equal(t, "2025-03-14", txs[0].Date.String())

	w = ts.do(http.MethodGet, "/transactions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bus")
}

func TestManualTransactionValidation(t *testing.T) {
	ts := newTestServer(t, Options{})
	tests := []url.Values{
		{"item": {""}, "category": {"Food"}, "amount": {"1"}},
		{"item": {"x"}, "category": {"Food"}, "amount": {"1e20"}},
		{"item": {"x"}, "category": {"Food"}, "amount": {"1/0"}},
		{"item": {"x"}, "category": {""}, "amount": {"1"}},
	}
	for _, values := range tests {
		w := ts.form(http.MethodPost, "/transactions", values)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, values.Encode())
	}
	assert.Empty(t, ts.records(t))
}

func TestManualTransactionAllowsZeroAmount(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.form(http.MethodPost, "/transactions", url.Values{
		"item": {"Voucher"}, "category": {"Food"}, "amount": {"0"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	txs := ts.records(t)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.IsZero())
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	ts := newTestServer(t, Options{})
	ids, err := ts.store.AppendBatch(context.Background(), []core.Transaction{{
		Date: core.NewDate(2025, 3, 1), Item: "Taxi", Category: "Transport",
		Type: core.Expense, Amount: decimal.RequireFromString("15"),
	}})
	require.NoError(t, err)
	id := ids[0]
	path := "/transactions/" + strconv.FormatInt(id, 10)

	w := ts.form(http.MethodPost, path, url.Values{"amount": {"18.5"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tx, err := ts.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "18.50", tx.Amount.StringFixed(2))
	assert.Equal(t, "Taxi", tx.Item, "fields not sent are untouched")

	w = ts.form(http.MethodPost, path, url.Values{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "empty patch")

	w = ts.do(http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ts.records(t))

	w = ts.do(http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodDelete, "/transactions/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReport(t *testing.T) {
	ts := newTestServer(t, Options{})
	_, err := ts.store.AppendBatch(context.Background(), []core.Transaction{
		{Date: core.NewDate(2025, 3, 2), Item: "Salary", Category: "Other", Type: core.Income, Amount: decimal.RequireFromString("1000")},
		{Date: core.NewDate(2025, 3, 5), Item: "Rice", Category: "Food", Type: core.Expense, Amount: decimal.RequireFromString("40")},
		{Date: core.NewDate(2024, 7, 5), Item: "Old", Category: "Food", Type: core.Expense, Amount: decimal.RequireFromString("99")},
	})
	require.NoError(t, err)

	w := ts.do(http.MethodGet, "/ui/report?year=2025&month=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "RM 1000.00")
	assert.Contains(t, body, "RM 40.00")
	assert.Contains(t, body, "RM 960.00")
	assert.Contains(t, body, "Expense by day")
	assert.Contains(t, body, `<option value="2024"`)

	w = ts.do(http.MethodGet, "/ui/report?year=2024&month=all", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Expense by month")
	assert.Contains(t, w.Body.String(), "RM 99.00")

	w = ts.do(http.MethodGet, "/ui/report?year=2025&month=13", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.form(http.MethodPost, "/categories", url.Values{"name": {"  Pet   care "}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Pet care")
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"categories:changed"`)

	w = ts.form(http.MethodPost, "/categories", url.Values{"name": {"Pet care"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.form(http.MethodPost, "/categories", url.Values{"name": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(http.MethodDelete, "/categories/Pet%20care", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Pet care")

	w = ts.do(http.MethodDelete, "/categories/Pet%20care", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshDropsMemo(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(http.MethodGet, "/transactions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Written behind the service's back, so only a refresh reveals it.
	_, err := ts.store.AppendBatch(context.Background(), []core.Transaction{{
		Date: core.NewDate(2025, 3, 3), Item: "Hidden", Category: "Food", Type: core.Expense, Amount: decimal.RequireFromString("1"),
	}})
	require.NoError(t, err)
	w = ts.do(http.MethodGet, "/transactions", nil, "")
	assert.NotContains(t, w.Body.String(), "Hidden")

	w = ts.do(http.MethodPost, "/ui/refresh", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/transactions", nil, "")
	assert.Contains(t, w.Body.String(), "Hidden")
}

func TestProbesAndMetrics(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/static/style.css", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age")

	w = ts.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `smartasset_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
	assert.Contains(t, body, "smartasset_reconcile_sessions")
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitRPM: 1})

	w := ts.form(http.MethodPost, "/drafts", url.Values{"item": {"a"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.form(http.MethodPost, "/drafts", url.Values{"item": {"b"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	for range 3 {
		w = ts.do(http.MethodGet, "/drafts", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestInterpretOutcome(t *testing.T) {
	assert.Equal(t, "timeout", interpretOutcome(context.DeadlineExceeded))
	assert.Equal(t, "empty", interpretOutcome(receipt.ErrEmptyResponse))
	assert.Equal(t, "malformed", interpretOutcome(receipt.ErrUnexpectedShape))
	assert.Equal(t, "error", interpretOutcome(errors.New("boom")))
}
