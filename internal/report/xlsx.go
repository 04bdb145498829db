package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/fbo-sync/internal/audit"
	"github.com/Spok95/fbo-sync/internal/domain/supply"
)

const timeLayout = "2006-01-02 15:04"

// Outcomes выгружает журнал прогона: строка на событие.
func Outcomes(w io.Writer, events []audit.Event) error {
	header := []interface{}{
		"Время", "Кабинет", "ID заявки", "Номер заявки", "Этап", "Действие", "Документ", "Причина", "Dry run",
	}
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.At.Format(timeLayout),
			e.Cabinet,
			e.OrderID,
			e.OrderNumber,
			string(e.Stage),
			string(e.Action),
			e.DocumentID,
			e.Reason,
			e.DryRun,
		})
	}
	return write(w, "Журнал", header, rows)
}

// Orders выгружает список заявок FBO (команда list).
func Orders(w io.Writer, orders []supply.Order, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	header := []interface{}{"ID", "Номер", "Статус", "Таймслот", "Склад", "Поставки"}
	rows := make([][]interface{}, 0, len(orders))
	for _, o := range orders {
		slot := ""
		if o.Timeslot != nil {
			slot = o.Timeslot.In(loc).Format(timeLayout)
		}
		rows = append(rows, []interface{}{
			o.ID, o.Number, string(o.State), slot, o.Warehouse, strings.Join(o.BundleIDs, ", "),
		})
	}
	return write(w, "Заявки", header, rows)
}

func write(w io.Writer, sheetName string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, sheetName); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &r); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}
