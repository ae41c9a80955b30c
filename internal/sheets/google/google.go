// Package google mirrors the goal/transaction store onto a Google
// spreadsheet. The sync worker writes goal rows here; the sheets backend
// can also read the whole store back.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	goalsSheet    string
	ledgerSheet   string
}

// Interface conformance
var (
	_ store.GoalReader        = (*Client)(nil)
	_ store.GoalWriter        = (*Client)(nil)
	_ store.TransactionReader = (*Client)(nil)
	_ store.LedgerWriter      = (*Client)(nil)
)

// Goal row layout on the goals sheet:
// A id | B name | C current | D target | E target date | F kind |
// G cash flow enabled | H cash flow amount | I cash flow frequency | J group
//
// Ledger row layout:
// A goal id | B amount | C date | D description | E impact | F direction |
// G source id | H source type | I destination id | J destination type

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Auth comes from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	goalsSheet := strings.TrimSpace(os.Getenv("GOOGLE_GOALS_SHEET_NAME"))
	if goalsSheet == "" {
		goalsSheet = "Goals"
	}
	ledgerSheet := strings.TrimSpace(os.Getenv("GOOGLE_LEDGER_SHEET_NAME"))
	if ledgerSheet == "" {
		ledgerSheet = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		goalsSheet:    goalsSheet,
		ledgerSheet:   ledgerSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var opts []goption.ClientOption
	switch {
	case serviceAccountJSON != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(serviceAccountJSON)))
	case serviceAccountFile != "":
		opts = append(opts, goption.WithCredentialsFile(serviceAccountFile))
	default:
		return nil, errors.New("no Google credentials configured")
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ListGoals reads every goal row from the goals sheet. Header rows (no
// parsable current amount and id "id") are skipped.
func (c *Client) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rng := fmt.Sprintf("%s!A:J", c.goalsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read goals sheet %s: %w", c.goalsSheet, err)
	}

	var goals []core.Goal
	for _, row := range resp.Values {
		cells := stringCells(row)
		id := safeGet(cells, 0)
		if id == "" || strings.EqualFold(id, "id") {
			continue
		}
		g := core.Goal{
			ID:                id,
			Name:              safeGet(cells, 1),
			CurrentAmount:     parseMoney(safeGet(cells, 2)),
			TargetAmount:      parseMoney(safeGet(cells, 3)),
			Kind:              core.GoalKind(safeGet(cells, 5)),
			CashFlowEnabled:   parseBool(safeGet(cells, 6)),
			CashFlowAmount:    parseMoney(safeGet(cells, 7)),
			CashFlowFrequency: core.Frequency(safeGet(cells, 8)),
			GroupID:           safeGet(cells, 9),
		}
		if d := safeGet(cells, 4); d != "" {
			if t, err := time.Parse("2006-01-02", d); err == nil {
				g.TargetDate = t
			}
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// UpdateGoalCashFlow rewrites the cash-flow columns of the goal's row.
func (c *Client) UpdateGoalCashFlow(ctx context.Context, goalID string, enabled bool, amount core.Money, freq core.Frequency) error {
	row, err := c.findGoalRow(ctx, goalID)
	if err != nil {
		return err
	}
	if row == 0 {
		return fmt.Errorf("sheet update %s: %w", goalID, core.ErrGoalNotFound)
	}

	rng := fmt.Sprintf("%s!G%d:I%d", c.goalsSheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		strconv.FormatBool(enabled), amount.Float(), string(freq),
	}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update goal row %d in %s: %w", row, c.goalsSheet, err)
	}
	return nil
}

// UpsertGoal writes the whole goal row, appending when the id is new. The
// sync worker uses this to mirror local updates.
func (c *Client) UpsertGoal(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	row, err := c.findGoalRow(ctx, g.ID)
	if err != nil {
		return err
	}
	if row == 0 {
		rng := fmt.Sprintf("%s!A:A", c.goalsSheet)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("get sheet dimensions for %s: %w", c.goalsSheet, err)
		}
		row = len(resp.Values) + 1
	}

	targetDate := ""
	if !g.TargetDate.IsZero() {
		targetDate = g.TargetDate.Format("2006-01-02")
	}
	rng := fmt.Sprintf("%s!A%d:J%d", c.goalsSheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		g.ID, g.Name, g.CurrentAmount.Float(), g.TargetAmount.Float(),
		targetDate, string(g.Kind), strconv.FormatBool(g.CashFlowEnabled),
		g.CashFlowAmount.Float(), string(g.CashFlowFrequency), g.GroupID,
	}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("upsert goal row %d in %s: %w", row, c.goalsSheet, err)
	}

	slog.InfoContext(ctx, "Goal mirrored to sheet",
		"goal_id", g.ID, "row", row, "sheet", c.goalsSheet)
	return nil
}

// AppendTransaction appends a ledger row.
func (c *Client) AppendTransaction(ctx context.Context, rec core.ContributionRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.ledgerSheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:J%d", c.ledgerSheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		rec.GoalID, rec.Amount.Float(), rec.Date.Format("2006-01-02"),
		rec.Description, string(rec.Impact), string(rec.Direction),
		rec.SourceID, rec.SourceType, rec.DestinationID, rec.DestinationType,
	}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append ledger row in %s: %w", c.ledgerSheet, err)
	}

	return fmt.Sprintf("%s!A%d", c.ledgerSheet, nextRow), nil
}

// TransactionsForGoal reads the goal's ledger rows, newest first.
func (c *Client) TransactionsForGoal(ctx context.Context, goalID string) ([]core.ContributionRecord, error) {
	records, err := c.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.ContributionRecord
	for _, rec := range records {
		if rec.GoalID == goalID {
			out = append(out, rec)
		}
	}
	// reverse: the sheet is append-ordered oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// TransactionsInRange reads ledger rows with start <= date <= end.
func (c *Client) TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.ContributionRecord, error) {
	records, err := c.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.ContributionRecord
	for _, rec := range records {
		if rec.Date.Before(start) || rec.Date.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) readLedger(ctx context.Context) ([]core.ContributionRecord, error) {
	rng := fmt.Sprintf("%s!A:J", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ledger sheet %s: %w", c.ledgerSheet, err)
	}

	var records []core.ContributionRecord
	for _, row := range resp.Values {
		cells := stringCells(row)
		goalID := safeGet(cells, 0)
		if goalID == "" || strings.EqualFold(goalID, "goal_id") {
			continue
		}
		rec := core.ContributionRecord{
			GoalID:          goalID,
			Amount:          parseMoney(safeGet(cells, 1)),
			Description:     safeGet(cells, 3),
			Impact:          core.Impact(safeGet(cells, 4)),
			Direction:       core.Direction(safeGet(cells, 5)),
			SourceID:        safeGet(cells, 6),
			SourceType:      safeGet(cells, 7),
			DestinationID:   safeGet(cells, 8),
			DestinationType: safeGet(cells, 9),
		}
		if t, err := time.Parse("2006-01-02", safeGet(cells, 2)); err == nil {
			rec.Date = t
		}
		records = append(records, rec)
	}
	return records, nil
}

// findGoalRow returns the 1-based row of the goal id in column A, or 0.
func (c *Client) findGoalRow(ctx context.Context, goalID string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.goalsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("scan goal ids in %s: %w", c.goalsSheet, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == goalID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func stringCells(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < len(arr) {
		return arr[idx]
	}
	return ""
}

// parseMoney reads a decimal amount, degrading to zero on bad input.
func parseMoney(s string) core.Money {
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return core.Money{}
	}
	return core.Money{Cents: int64(math.Round(v * 100))}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil && b
}
