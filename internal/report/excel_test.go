package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kantin-reconciler/internal/reconcile"
)

func sampleSummary() *reconcile.Summary {
	start := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	return &reconcile.Summary{
		StartTime: start,
		EndTime:   start.Add(42 * time.Second),
		Outcome:   reconcile.OutcomePartial,
		Checked:   3,
		Expired:   2,
		Deleted:   1,
		Skipped:   1,
		Errors:    1,
		DeletedUsers: []reconcile.DeletedUser{
			{UserID: "u1", Username: "warung-budi", Role: "tenant", ContractEndDate: start.AddDate(0, 0, -120)},
		},
		SkippedUsers: []reconcile.SkippedUser{
			{UserID: "u2", Username: "warung-sari", Reason: "Grace period - 80 days remaining"},
		},
		ErrorDetails: []reconcile.ErrorDetail{
			{EntityID: "p9", Message: "failed to delete product: boom"},
		},
		CascadedData: reconcile.CascadeCounts{Staff: 2, Products: 3, Orders: 1},
	}
}

func TestGenerateRunReport(t *testing.T) {
	data, err := GenerateRunReport(sampleSummary())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t,
		[]string{"Summary", "Deleted Users", "Skipped Users", "Errors"},
		f.GetSheetList())

	outcome, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "partial", outcome)

	deleted, err := f.GetCellValue("Summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", deleted)

	// Detail sheets: header row plus one data row each.
	header, err := f.GetCellValue("Deleted Users", "A1")
	require.NoError(t, err)
	assert.Equal(t, "User ID", header)
	userID, err := f.GetCellValue("Deleted Users", "A2")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	reason, err := f.GetCellValue("Skipped Users", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Grace period - 80 days remaining", reason)

	msg, err := f.GetCellValue("Errors", "B2")
	require.NoError(t, err)
	assert.Equal(t, "failed to delete product: boom", msg)
}

func TestGenerateRunReport_EmptyLists(t *testing.T) {
	sum := &reconcile.Summary{Outcome: reconcile.OutcomeSuccess}

	data, err := GenerateRunReport(sum)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Deleted Users")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestStreamValues(t *testing.T) {
	sum := sampleSummary()

	values, err := streamValues(sum)
	require.NoError(t, err)

	assert.Equal(t, "partial", values["outcome"])
	assert.Equal(t, sum.StartTime.Unix(), values["started_at"])
	assert.Equal(t, 1, values["deleted"])
	assert.Equal(t, 1, values["errors"])

	var decoded reconcile.Summary
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, sum.Checked, decoded.Checked)
	assert.Equal(t, sum.Outcome, decoded.Outcome)
	require.Len(t, decoded.DeletedUsers, 1)
	assert.Equal(t, "u1", decoded.DeletedUsers[0].UserID)
}
