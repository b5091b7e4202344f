package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"kantin-reconciler/internal/reconcile"
)

// Sheet headers of the operator run report.
var (
	deletedHeader = []string{"User ID", "Username", "Role", "Contract End Date"}
	skippedHeader = []string{"User ID", "Username", "Reason"}
	errorHeader   = []string{"Entity ID", "Message"}
)

// GenerateRunReport renders one run summary as an xlsx workbook with a
// headline sheet plus per-list detail sheets.
func GenerateRunReport(sum *reconcile.Summary) ([]byte, error) {
	f := excelize.NewFile()
	// No deferred Close: WriteTo needs the file open.

	index, err := f.NewSheet("Summary")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	summaryRows := [][]any{
		{"Start Time", sum.StartTime.Format(time.RFC3339)},
		{"End Time", sum.EndTime.Format(time.RFC3339)},
		{"Outcome", string(sum.Outcome)},
		{"Checked", sum.Checked},
		{"Expired", sum.Expired},
		{"Deleted", sum.Deleted},
		{"Skipped", sum.Skipped},
		{"Errors", sum.Errors},
		{"Cascaded Tenants", sum.CascadedData.Tenants},
		{"Cascaded Staff", sum.CascadedData.Staff},
		{"Cascaded Products", sum.CascadedData.Products},
		{"Cascaded Orders", sum.CascadedData.Orders},
		{"Invitation Codes Expired", sum.InvitationCodes.Expired},
		{"Trials Downgraded", sum.Trials.Downgraded},
		{"Products Deactivated", sum.ProductLimits.Deactivated},
		{"Staff Deactivated", sum.StaffLimits.Deactivated},
		{"Tenant Users Deactivated", sum.TenantUserLimits.Deactivated},
	}
	for i, row := range summaryRows {
		if err := writeRow(f, "Summary", i+1, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	deletedRows := make([][]any, 0, len(sum.DeletedUsers))
	for _, u := range sum.DeletedUsers {
		deletedRows = append(deletedRows, []any{u.UserID, u.Username, u.Role, u.ContractEndDate.Format(time.RFC3339)})
	}
	if err := writeListSheet(f, "Deleted Users", deletedHeader, deletedRows); err != nil {
		f.Close()
		return nil, err
	}

	skippedRows := make([][]any, 0, len(sum.SkippedUsers))
	for _, u := range sum.SkippedUsers {
		skippedRows = append(skippedRows, []any{u.UserID, u.Username, u.Reason})
	}
	if err := writeListSheet(f, "Skipped Users", skippedHeader, skippedRows); err != nil {
		f.Close()
		return nil, err
	}

	errorRows := make([][]any, 0, len(sum.ErrorDetails))
	for _, d := range sum.ErrorDetails {
		errorRows = append(errorRows, []any{d.EntityID, d.Message})
	}
	if err := writeListSheet(f, "Errors", errorHeader, errorRows); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeListSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := writeRow(f, name, 1, headerRow); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
