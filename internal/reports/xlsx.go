package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"nightpass/internal/models"
	"nightpass/internal/timezone"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ReservationsHeader = []string{
	"Mesa", "Cliente", "Documento", "Email", "Teléfono", "Invitados", "Estado", "Fecha", "Hora", "Notas",
}

var TicketsHeader = []string{
	"Titular", "Documento", "Email", "Precio", "Estado", "Código QR", "Emitido", "Ingreso",
}

var CodesHeader = []string{"#", "Código", "Tipo", "Lote"}

// Codes renders a freshly generated batch for printing or handing to promoters.
func Codes(event *models.Event, batch *models.CodeBatchResult) ([]byte, error) {
	rows := make([][]any, 0, len(batch.Codes))
	for i, c := range batch.Codes {
		rows = append(rows, []any{i + 1, c.Code, batch.Type, batch.BatchID})
	}
	return build("Códigos", event, CodesHeader, []float64{6, 20, 12, 38}, rows)
}

// Reservations renders the reservations of one event as a workbook.
func Reservations(event *models.Event, list []models.TableReservation) ([]byte, error) {
	rows := make([][]any, 0, len(list))
	for _, r := range list {
		date, clock := localMinute(r.CreatedAt)
		rows = append(rows, []any{
			r.TableName,
			r.CustomerName,
			deref(r.CustomerDocument),
			deref(r.CustomerEmail),
			deref(r.CustomerPhone),
			r.Guests,
			r.Status,
			date,
			clock,
			deref(r.Notes),
		})
	}
	return build("Reservas", event, ReservationsHeader, []float64{14, 28, 12, 28, 14, 10, 12, 12, 8, 40}, rows)
}

// Tickets renders the tickets of one event as a workbook.
func Tickets(event *models.Event, list []models.Ticket) ([]byte, error) {
	rows := make([][]any, 0, len(list))
	for _, t := range list {
		issuedDate, issuedClock := localMinute(t.CreatedAt)
		used := ""
		if t.UsedAt != nil {
			d, c := localMinute(*t.UsedAt)
			used = d + " " + c
		}
		price, _ := t.Price.Float64()
		rows = append(rows, []any{
			t.HolderName,
			deref(t.HolderDocument),
			deref(t.HolderEmail),
			price,
			t.Status,
			t.QRToken,
			issuedDate + " " + issuedClock,
			used,
		})
	}
	return build("Entradas", event, TicketsHeader, []float64{28, 12, 28, 10, 12, 38, 18, 18}, rows)
}

// localMinute keeps report columns at HH:MM.
func localMinute(t time.Time) (date, clock string) {
	return timezone.ToLocal(t.Truncate(time.Minute))
}

func build(sheetName string, event *models.Event, headers []string, widths []float64, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Row 1 carries the event title, row 2 the header.
	date, clock := timezone.ToLocal(event.StartsAt)
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s (%s %s)", event.Name, date, clock)); err != nil {
		return nil, err
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		if col < len(widths) {
			name, _ := excelize.ColumnNumberToName(col + 1)
			if err := f.SetColWidth(sheetName, name, name, widths[col]); err != nil {
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+3, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
