package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	// RAW keeps answers verbatim; a description starting with "=" stays text.
	valueInputOption = "RAW"
	insertDataOption = "INSERT_ROWS"
)

var ErrMissingCredentials = errors.New("google service account credentials are not configured")

// Appender writes report rows to the end of a sheet range.
type Appender struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	writeRange    string
}

// CredentialsJSON returns inline credentials when set, otherwise the file contents.
func CredentialsJSON(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, ErrMissingCredentials
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	return data, nil
}

// NewAppender authenticates with a service account key.
func NewAppender(ctx context.Context, credentialsJSON []byte, spreadsheetID, writeRange string) (*Appender, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}
	return NewAppenderWithOptions(ctx, spreadsheetID, writeRange, option.WithCredentials(creds))
}

func NewAppenderWithOptions(ctx context.Context, spreadsheetID, writeRange string, opts ...option.ClientOption) (*Appender, error) {
	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Appender{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
	}, nil
}

func (a *Appender) AppendRow(ctx context.Context, row []interface{}) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := a.values.Append(a.spreadsheetID, a.writeRange, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to %s: %w", a.spreadsheetID, err)
	}
	return nil
}
