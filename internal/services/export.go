package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"buntee/internal/models"
	"buntee/internal/store"
)

// Table is a submission collection flattened for download.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

var tableColumns = map[string][]string{
	models.CollectionPreBookings: {"timestamp", "name", "contact", "items", "message"},
	models.CollectionEventOrders: {"timestamp", "name", "contact", "type", "date", "time", "address", "callSchedule", "items"},
	models.CollectionFeedbacks:   {"timestamp", "name", "rating", "comment"},
}

// BuildTable flattens records of a submission collection in the given order.
func BuildTable(collection string, recs []store.Record) (Table, error) {
	cols, ok := tableColumns[collection]
	if !ok {
		return Table{}, ErrUnknownCollection
	}
	t := Table{Sheet: collection, Header: append([]string{"id"}, cols...)}
	for _, r := range recs {
		row := make([]string, 0, len(t.Header))
		row = append(row, r.ID)
		for _, c := range cols {
			row = append(row, FormatCell(r.Data[c]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// FormatCell renders a stored value for a spreadsheet cell. Item maps become
// "Bun x2, Maska x1" sorted by name.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any:
		names := make([]string, 0, len(x))
		for k := range x {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s x%s", k, FormatCell(x[k])))
		}
		return strings.Join(parts, ", ")
	case map[string]int:
		m := make(map[string]any, len(x))
		for k, q := range x {
			m[k] = q
		}
		return FormatCell(m)
	}
	return fmt.Sprint(v)
}

// WriteCSV writes t with a UTF-8 BOM so Excel opens it with the right encoding.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := w.Write([]byte("\xef\xbb\xbf")); err != nil {
		return errors.Wrap(err, "write BOM")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush CSV")
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "name sheet")
	}
	if err := writeSheetRow(f, sheet, 1, t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := writeSheetRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return errors.Wrap(err, "freeze header")
	}
	return errors.Wrap(f.Write(w), "write workbook")
}

func writeSheetRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return errors.Wrap(f.SetSheetRow(sheet, cell, &row), "write sheet row")
}
