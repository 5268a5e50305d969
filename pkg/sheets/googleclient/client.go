package googleclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"englishtutorbot/pkg/sheets"
)

// Client implements sheets.TabularAPI over the Google Sheets v4 service.
// All failures are tagged with the gateway's Transient/Permanent taxonomy:
// quota and server errors retry, auth and request errors do not.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

var _ sheets.TabularAPI = (*Client)(nil)

// New builds a Sheets client from a service-account key file.
func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, sheets.Permanent("new_client", fmt.Errorf("spreadsheet id is empty"))
	}

	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, sheets.Permanent("new_client", fmt.Errorf("create sheets service: %w", err))
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (c *Client) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify("read_range", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows, nil
}

func (c *Client) WriteRange(ctx context.Context, rng string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rng, valueRange(rng, rows)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify("write_range", err)
	}
	return nil
}

func (c *Client) Append(ctx context.Context, rng string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, rng, valueRange(rng, rows)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("append", err)
	}
	return nil
}

func valueRange(rng string, rows [][]string) *sheetsapi.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return &sheetsapi.ValueRange{Range: rng, Values: values}
}

// classify maps an API failure onto the gateway taxonomy. Rate limiting and
// 5xx responses are worth retrying; everything else in the 4xx family means
// the request or the credentials are wrong and retrying cannot help.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return sheets.Transient(op, err)
		}
		return sheets.Permanent(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return sheets.Transient(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sheets.Transient(op, err)
	}

	return sheets.Transient(op, err)
}
