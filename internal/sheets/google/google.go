package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartasset/internal/core"
	"smartasset/internal/log"
	ports "smartasset/internal/sheets"
)

// Config selects the spreadsheet and service account credentials. Inline
// JSON wins over the file paths.
type Config struct {
	SpreadsheetID          string
	SheetName              string
	ServiceAccountJSON     string
	ServiceAccountFile     string
	ApplicationCredentials string
}

// valuesAPI is the slice of the Sheets API the mirror needs.
type valuesAPI interface {
	ReadColumn(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, data []*gsheet.ValueRange) error
	Append(ctx context.Context, rng string, rows [][]any) error
	DeleteRows(ctx context.Context, sheet string, rows []int) error
}

type Client struct {
	api   valuesAPI
	sheet string
	log   *log.Logger
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets mirror client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName, logger), nil
}

func newClient(api valuesAPI, sheet string, logger *log.Logger) *Client {
	return &Client{api: api, sheet: sheet, log: logger}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.ServiceAccountJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(cfg.ApplicationCredentials)
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// Upsert overwrites rows whose id is already in column A and appends the rest.
func (c *Client) Upsert(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	index, next, err := c.indexRows(ctx)
	if err != nil {
		return err
	}

	var updates []*gsheet.ValueRange
	var appends [][]any
	if next == 1 {
		// Empty sheet: write the header first.
		updates = append(updates, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A1:G1", c.sheet),
			Values: [][]any{headerRow()},
		})
	}
	for _, tx := range txs {
		if row, ok := index[tx.ID]; ok {
			updates = append(updates, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!A%d:G%d", c.sheet, row, row),
				Values: [][]any{rowValues(tx)},
			})
			continue
		}
		appends = append(appends, rowValues(tx))
	}

	if len(updates) > 0 {
		if err := c.api.Update(ctx, updates); err != nil {
			return fmt.Errorf("update rows in sheet %s: %w", c.sheet, err)
		}
	}
	if len(appends) > 0 {
		if err := c.api.Append(ctx, fmt.Sprintf("%s!A:G", c.sheet), appends); err != nil {
			return fmt.Errorf("append rows to sheet %s: %w", c.sheet, err)
		}
	}

	c.log.InfoContext(ctx, "Mirrored transactions",
		"updated", len(txs)-len(appends),
		"appended", len(appends),
		"sheet", c.sheet)
	return nil
}

// Remove deletes every row whose id column matches one of ids.
func (c *Client) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	index, _, err := c.indexRows(ctx)
	if err != nil {
		return err
	}
	var rows []int
	for _, id := range ids {
		if row, ok := index[id]; ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		c.log.DebugContext(ctx, "No mirrored rows to remove", "ids", ids)
		return nil
	}
	// Bottom-up so earlier deletions do not shift later row numbers.
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))
	if err := c.api.DeleteRows(ctx, c.sheet, rows); err != nil {
		return fmt.Errorf("delete rows from sheet %s: %w", c.sheet, err)
	}
	c.log.InfoContext(ctx, "Removed mirrored transactions", log.FieldCount, len(rows), "sheet", c.sheet)
	return nil
}

// indexRows maps transaction id to 1-based sheet row and returns the next free row.
func (c *Client) indexRows(ctx context.Context) (map[int64]int, int, error) {
	values, err := c.api.ReadColumn(ctx, fmt.Sprintf("%s!A:A", c.sheet))
	if err != nil {
		return nil, 0, fmt.Errorf("read id column of %s: %w", c.sheet, err)
	}
	return indexIDs(values), len(values) + 1, nil
}

func indexIDs(values [][]any) map[int64]int {
	index := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil || id <= 0 {
			// Header or hand-edited row.
			continue
		}
		index[id] = i + 1
	}
	return index
}

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

func rowValues(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Item,
		tx.Category,
		string(tx.Type),
		tx.Amount.StringFixed(2),
		tx.Note,
	}
}

// serviceAPI adapts *gsheet.Service to valuesAPI.
type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetIDs      map[string]int64
}

func (s *serviceAPI) ReadColumn(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) Update(ctx context.Context, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Append(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

// DeleteRows expects rows sorted in descending order.
func (s *serviceAPI) DeleteRows(ctx context.Context, sheet string, rows []int) error {
	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	reqs := make([]*gsheet.Request, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		})
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	return err
}

func (s *serviceAPI) sheetID(ctx context.Context, title string) (int64, error) {
	if id, ok := s.sheetIDs[title]; ok {
		return id, nil
	}
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	if s.sheetIDs == nil {
		s.sheetIDs = make(map[string]int64)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
