package excel

import (
	"fmt"
	"io"
	"strings"

	"gymbot/internal/models"

	"github.com/xuri/excelize/v2"
)

// SheetOther collects entries whose category is no longer configured
const SheetOther = "Other"

// otherFields is the column set of the Other sheet
var otherFields = []models.Field{models.FieldWeight, models.FieldReps, models.FieldDuration, models.FieldDistance}

// WriteLog пишет журнал тренировок в xlsx: один лист на категорию.
// Columns are the date, the exercise and one column per schema field in schema order.
func WriteLog(w io.Writer, entries []models.LogRow, categories []models.Category) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}

	wb := &workbook{
		f:           f,
		headerStyle: headerStyle,
		dateStyle:   dateStyle,
		sheets:      make(map[string]*sheet),
		used:        map[string]bool{strings.ToLower(SheetOther): true},
	}

	for _, c := range categories {
		if _, err := wb.addSheet(c.Code, sheetName(c), c.Fields, false); err != nil {
			return err
		}
	}

	for _, e := range entries {
		s, ok := wb.sheets[e.CategoryCode]
		if !ok {
			if s, err = wb.addSheet(SheetOther, SheetOther, otherFields, true); err != nil {
				return err
			}
		}
		if err := wb.writeRow(s, e); err != nil {
			return err
		}
	}

	if len(wb.sheets) == 0 {
		if _, err := wb.addSheet(SheetOther, SheetOther, otherFields, true); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type workbook struct {
	f           *excelize.File
	headerStyle int
	dateStyle   int
	sheets      map[string]*sheet
	used        map[string]bool // lower-cased sheet names, Excel compares them case-insensitively
}

type sheet struct {
	name     string
	fields   []models.Field
	withCode bool // Other sheet keeps the category code column
	nextRow  int
}

func (w *workbook) addSheet(key, name string, fields []models.Field, withCode bool) (*sheet, error) {
	if s, ok := w.sheets[key]; ok {
		return s, nil
	}

	if !withCode {
		name = w.uniqueName(name)
	}
	if len(w.sheets) == 0 {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("sheet %s: %w", name, err)
	}

	header := []interface{}{"Date", "Exercise"}
	if withCode {
		header = append(header, "Category")
	}
	for _, fl := range fields {
		header = append(header, fieldTitle(fl))
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, fmt.Errorf("sheet %s header: %w", name, err)
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, fmt.Errorf("sheet %s header: %w", name, err)
	}
	if err := w.f.SetCellStyle(name, "A1", last+"1", w.headerStyle); err != nil {
		return nil, fmt.Errorf("sheet %s header style: %w", name, err)
	}
	if err := w.f.SetColWidth(name, "A", "A", 18); err != nil {
		return nil, fmt.Errorf("sheet %s width: %w", name, err)
	}
	if err := w.f.SetColWidth(name, "B", "B", 24); err != nil {
		return nil, fmt.Errorf("sheet %s width: %w", name, err)
	}
	err = w.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return nil, fmt.Errorf("sheet %s panes: %w", name, err)
	}

	s := &sheet{name: name, fields: fields, withCode: withCode, nextRow: 2}
	w.sheets[key] = s
	return s, nil
}

func (w *workbook) writeRow(s *sheet, e models.LogRow) error {
	row := []interface{}{e.CreatedAt.UTC(), e.ExerciseName}
	if s.withCode {
		row = append(row, e.CategoryCode)
	}
	for _, fl := range s.fields {
		v, ok := e.Measurement[fl]
		if !ok {
			row = append(row, nil)
			continue
		}
		if fl.Kind() == models.KindInteger {
			row = append(row, int64(v))
		} else {
			row = append(row, v)
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, s.nextRow)
	if err != nil {
		return fmt.Errorf("sheet %s row %d: %w", s.name, s.nextRow, err)
	}
	if err := w.f.SetSheetRow(s.name, cell, &row); err != nil {
		return fmt.Errorf("sheet %s row %d: %w", s.name, s.nextRow, err)
	}
	if err := w.f.SetCellStyle(s.name, cell, cell, w.dateStyle); err != nil {
		return fmt.Errorf("sheet %s row %d style: %w", s.name, s.nextRow, err)
	}
	s.nextRow++
	return nil
}

// fieldTitle renders "Weight (kg)"
func fieldTitle(f models.Field) string {
	name := string(f)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	unit := strings.TrimSpace(f.Unit())
	if unit == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, unit)
}

const maxSheetName = 31

// uniqueName appends " (2)", " (3)"... to names already in the workbook
func (w *workbook) uniqueName(name string) string {
	candidate := name
	for n := 2; w.used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetName-len(suffix)) + suffix
	}
	w.used[strings.ToLower(candidate)] = true
	return candidate
}

// sheetName returns a name Excel accepts: at most 31 chars, none of []:*?/\
// and no leading or trailing apostrophe
func sheetName(c models.Category) string {
	name := cleanSheetName(c.Name)
	if name == "" || strings.EqualFold(name, SheetOther) {
		name = cleanSheetName(c.Code)
	}
	if name == "" {
		name = "Category"
	}
	return name
}

func cleanSheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "'"))
	return strings.TrimSpace(truncate(s, maxSheetName))
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
