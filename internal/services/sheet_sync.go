package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"spcpulse/internal/config"
	"spcpulse/internal/store"
)

// SheetSyncService mirrors the license register into a Google Sheet for
// the sales side. Sync is one-way (database to sheet) and best effort; a
// failed sync never affects licensing operations. A nil service is valid
// and does nothing, so callers need no enabled-checks.
type SheetSyncService struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	interval      time.Duration
	store         *store.Store
	logger        *slog.Logger
	now           func() time.Time
}

// NewSheetSyncService builds the sync service from config. Returns nil
// (not an error) when sync is disabled.
func NewSheetSyncService(ctx context.Context, cfg config.SheetsConfig, st *store.Store, logger *slog.Logger) (*SheetSyncService, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetSyncService{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		interval:      cfg.SyncInterval,
		store:         st,
		logger:        logger.With(slog.String("service", "sheet_sync")),
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

var sheetHeader = []interface{}{
	"License Key", "Type", "Status", "Company", "Contact Email",
	"Bound", "Issued At", "Expires At", "Activated At",
}

// SyncAll rewrites the sheet with the full current register.
func (s *SheetSyncService) SyncAll(ctx context.Context) error {
	if s == nil {
		return nil
	}

	recs, err := s.store.List(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("load records for sheet sync: %w", err)
	}

	now := s.now()
	values := [][]interface{}{sheetHeader}
	for i := range recs {
		values = append(values, sheetRow(&recs[i], now))
	}

	clearRange := fmt.Sprintf("%s!A:I", s.sheetName)
	if _, err := s.svc.Spreadsheets.Values.Clear(
		s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{},
	).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1", s.sheetName)
	if _, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID, writeRange, &sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.logger.InfoContext(ctx, "license register synced to sheet",
		slog.Int("rows", len(recs)))
	return nil
}

// Run syncs periodically until the context is cancelled.
func (s *SheetSyncService) Run(ctx context.Context) error {
	if s == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sheet sync failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

func sheetRow(rec *store.Record, now time.Time) []interface{} {
	bound := "no"
	if rec.HardwareFingerprint != nil {
		bound = "yes"
	}
	return []interface{}{
		rec.LicenseKey,
		string(rec.Type),
		string(rec.EffectiveStatus(now)),
		rec.CompanyName,
		rec.ContactEmail,
		bound,
		rec.IssuedAt.Format(time.RFC3339),
		formatTimePtr(rec.ExpiresAt),
		formatTimePtr(rec.ActivatedAt),
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
