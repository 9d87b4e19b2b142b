package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"housekeeper/internal/models"
	"housekeeper/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWriteSchedule(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetTeams([]models.Team{{ID: 7, Name: "Morning crew", PropertyIDs: []int64{272758}}})
	ctx := context.Background()

	bookingID := int64(1001)
	teamID := int64(7)
	require.NoError(t, store.CreateTask(ctx, &models.CleaningTask{
		BookingID:     &bookingID,
		PropertyID:    272758,
		RoomID:        570479,
		ScheduledDate: day("2025-07-04"),
		Status:        models.TaskStatusPending,
		Source:        models.TaskSourceAuto,
		TeamID:        &teamID,
	}))
	require.NoError(t, store.CreateTask(ctx, &models.CleaningTask{
		PropertyID:    272758,
		RoomID:        570480,
		ScheduledDate: day("2025-07-05"),
		Status:        models.TaskStatusAssigned,
		Source:        models.TaskSourceManual,
		Notes:         "deep clean",
	}))

	exporter := NewExporter(store, store, t.TempDir(), nil)

	var buf bytes.Buffer
	require.NoError(t, exporter.WriteSchedule(ctx, &buf, 272758, day("2025-07-01"), day("2025-07-15")))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	const sheet = "Cleaning schedule"
	title, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "Property 272758")

	header, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	date, err := f.GetCellValue(sheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-04", date)

	team, err := f.GetCellValue(sheet, "D3")
	require.NoError(t, err)
	assert.Equal(t, "Morning crew", team)

	notes, err := f.GetCellValue(sheet, "G4")
	require.NoError(t, err)
	assert.Equal(t, "deep clean", notes)
}

func TestSaveSchedule(t *testing.T) {
	store := repository.NewMemoryStore()
	exporter := NewExporter(store, store, t.TempDir(), nil)

	path, err := exporter.SaveSchedule(context.Background(), 272758, day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
