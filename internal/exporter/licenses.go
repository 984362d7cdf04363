// Package exporter builds spreadsheet exports of the license register for
// back-office use.
package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"spcpulse/internal/license"
	"spcpulse/internal/services"
)

const sheetName = "Licenses"

var registerHeader = []any{
	"License Key", "Type", "Status", "Company", "Contact Email",
	"Max Users", "Max Lines", "Max SPC Plans", "Features",
	"Bound", "Issued At", "Expires At", "Activated At",
}

// LicenseRegister builds an xlsx workbook listing the given licenses, one
// row per license. The caller owns the returned file and must Close it.
func LicenseRegister(views []services.LicenseView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &registerHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetCellStyle(sheetName, "A1", "M1", style)
	}

	for i := range views {
		cell := fmt.Sprintf("A%d", i+2)
		row := registerRow(&views[i])
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	// Widen the key and timestamp columns so they read without resizing.
	f.SetColWidth(sheetName, "A", "A", 26)
	f.SetColWidth(sheetName, "D", "E", 24)
	f.SetColWidth(sheetName, "I", "I", 40)
	f.SetColWidth(sheetName, "K", "M", 22)

	return f, nil
}

func registerRow(v *services.LicenseView) []any {
	return []any{
		v.LicenseKey,
		string(v.Type),
		string(v.Status),
		v.CompanyName,
		v.ContactEmail,
		limitCell(v.Entitlements.MaxUsers),
		limitCell(v.Entitlements.MaxProductionLines),
		limitCell(v.Entitlements.MaxSpcPlans),
		strings.Join(v.Entitlements.Features, ", "),
		boundCell(v.Bound),
		v.IssuedAt.Format(time.RFC3339),
		timeCell(v.ExpiresAt),
		timeCell(v.ActivatedAt),
	}
}

func limitCell(n int) string {
	if n == license.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func boundCell(bound bool) string {
	if bound {
		return "yes"
	}
	return "no"
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
