package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"housekeeper/internal/domain"
	"housekeeper/internal/logging"
	"housekeeper/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter renders cleaning schedules as Excel workbooks, one row per
// task, for handing off to teams that work outside the system.
type Exporter struct {
	tasks  domain.TaskStore
	teams  domain.TeamStore
	path   string
	logger zerolog.Logger
}

func NewExporter(tasks domain.TaskStore, teams domain.TeamStore, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{tasks: tasks, teams: teams, path: path, logger: logging.Component(logger, "export")}
}

// WriteSchedule streams the workbook for one property and window.
func (e *Exporter) WriteSchedule(ctx context.Context, w io.Writer, propertyID int64, start, end time.Time) error {
	f, err := e.buildWorkbook(ctx, propertyID, start, end)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveSchedule writes the workbook into the exports directory and returns
// the file path.
func (e *Exporter) SaveSchedule(ctx context.Context, propertyID int64, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := e.buildWorkbook(ctx, propertyID, start, end)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("cleaning_%d_%s_to_%s.xlsx",
		propertyID,
		start.Format(models.DateFormat),
		end.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule exported")
	return filePath, nil
}

func (e *Exporter) buildWorkbook(ctx context.Context, propertyID int64, start, end time.Time) (*excelize.File, error) {
	tasks, err := e.tasks.ListTasks(ctx, propertyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	teamNames := e.teamNames(ctx)

	f := excelize.NewFile()

	sheetName := "Cleaning schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Property %d: %s - %s",
		propertyID, start.Format(models.DateFormat), end.Format(models.DateFormat)))
	_ = f.MergeCell(sheetName, "A1", "G1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Date", "Room", "Status", "Team", "Source", "Booking", "Notes"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	for _, task := range tasks {
		values := []interface{}{
			task.ScheduledDate.Format(models.DateFormat),
			task.RoomID,
			task.Status,
			teamLabel(task.TeamID, teamNames),
			task.Source,
			bookingLabel(task.BookingID),
			task.Notes,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "F", 12)
	_ = f.SetColWidth(sheetName, "G", "G", 30)
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}

func (e *Exporter) teamNames(ctx context.Context) map[int64]string {
	names := make(map[int64]string)
	if e.teams == nil {
		return names
	}
	teams, err := e.teams.ListTeams(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("team listing failed, exporting IDs only")
		return names
	}
	for _, team := range teams {
		names[team.ID] = team.Name
	}
	return names
}

func teamLabel(teamID *int64, names map[int64]string) string {
	if teamID == nil {
		return ""
	}
	if name, ok := names[*teamID]; ok {
		return name
	}
	return fmt.Sprintf("team %d", *teamID)
}

func bookingLabel(bookingID *int64) string {
	if bookingID == nil {
		return ""
	}
	return fmt.Sprintf("%d", *bookingID)
}
