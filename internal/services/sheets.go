package services

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// appendFunc appends one row to a range.
type appendFunc func(ctx context.Context, spreadsheetID, rng string, row []interface{}) error

// SheetsSink appends every closed conversation as a row of a Google spreadsheet.
type SheetsSink struct {
	spreadsheetID string
	rng           string
	appendRow     appendFunc
}

// NewSheetsSink authenticates with a service account credentials file.
func NewSheetsSink(ctx context.Context, credentialsFile, spreadsheetID, rng string) (*SheetsSink, error) {
	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &SheetsSink{
		spreadsheetID: spreadsheetID,
		rng:           rng,
		appendRow: func(ctx context.Context, id, rng string, row []interface{}) error {
			_, err := srv.Spreadsheets.Values.Append(id, rng, &sheets.ValueRange{Values: [][]interface{}{row}}).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
	}, nil
}

func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) Write(ctx context.Context, snap models.Snapshot) error {
	cells := SnapshotRow(snap)
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	if err := s.appendRow(ctx, s.spreadsheetID, s.rng, row); err != nil {
		return fmt.Errorf("append to %s: %w", s.rng, err)
	}
	return nil
}
