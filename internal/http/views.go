package http

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"smartasset/internal/core"
	"smartasset/internal/log"
	"smartasset/internal/reconcile"
	appweb "smartasset/web"
)

var templateFuncs = template.FuncMap{
	"money":      moneyOf,
	"amount":     func(d decimal.Decimal) string { return d.StringFixed(2) },
	"barWidth":   barWidth,
	"monthName":  monthName,
	"monthShort": monthShort,
	"pathEscape": url.PathEscape,
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

var txTypes = []core.TxType{core.Expense, core.Income}

type (
	draftsView struct {
		Rows       []reconcile.Row
		Categories []string
		Types      []core.TxType
		Today      string
	}

	transactionsView struct {
		Transactions []core.Transaction
		Categories   []string
		Types        []core.TxType
	}

	reportView struct {
		Report core.Report
		Max    decimal.Decimal
		Years  []int
		Months []int
	}

	categoriesView struct {
		Categories []core.Category
	}

	indexView struct {
		Today           string
		ReceiptsEnabled bool
		MaxUploadMB     int64
		Categories      []string
		Types           []core.TxType
		Drafts          draftsView
		Records         transactionsView
		Report          reportView
		Settings        categoriesView
	}
)

var allMonths = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

func newReportView(r core.Report, years []int) reportView {
	return reportView{Report: r, Max: r.MaxBucket(), Years: years, Months: allMonths}
}

func newDraftsView(rows []reconcile.Row, categories []string, today core.Date) draftsView {
	return draftsView{Rows: rows, Categories: categories, Types: txTypes, Today: today.String()}
}

// renderBytes executes a named template into memory so a failure can still
// become a clean 500 instead of a half-written page.
func (s *Server) renderBytes(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// render writes template name through resp, which may carry triggers and a status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, resp *HTMXResponseBuilder) {
	body, err := s.renderBytes(name, data)
	if err != nil {
		s.structLogger.LogError(r.Context(), "Template render failed", err, log.ErrorTypeInternal, log.OpRender,
			log.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Failed to render page").Write(w)
		return
	}
	if resp == nil {
		resp = NewHTMXResponse()
	}
	resp.BodyHTML(body).Write(w)
}
