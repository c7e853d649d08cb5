package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// --- 1. CELL PARSERS ---

// parseAmount parses "₹1,234.50" -> 1234.5. Blank or unparseable cells are 0.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '₹', '$', '€', '£':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -v
	}
	return v
}

// --- 2. SHEET READERS ---

// readGrid returns the raw cell grid of one sheet. CSV files have a single
// implicit sheet and ignore the sheet name.
func readGrid(path, sheet string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrDatasetUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xls":
		return readXLS(path, sheet)
	default:
		return readXLSX(path, sheet)
	}
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetUnavailable, path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if !slices.Contains(sheets, sheet) {
		return nil, &SheetNotFoundError{Path: path, Sheet: sheet, Available: sheets}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrDatasetUnavailable, sheet, err)
	}
	return rows, nil
}

func readXLS(path, sheet string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetUnavailable, path, err)
	}

	var ws *xls.WorkSheet
	sheets := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		sheets = append(sheets, s.Name)
		if s.Name == sheet {
			ws = s
		}
	}
	if ws == nil {
		return nil, &SheetNotFoundError{Path: path, Sheet: sheet, Available: sheets}
	}

	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrDatasetUnavailable, path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// --- 3. MAIN LOADER ---

// Load reads one sheet of a spreadsheet (.xlsx, .xls or .csv) into a
// ColumnStore. The five dimension columns are required; measure columns are
// optional and simply absent from the store when missing.
func Load(path, sheet string, log *slog.Logger) (*ColumnStore, error) {
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()
	log.Info("loading dataset", "path", path, "sheet", sheet)

	grid, err := readGrid(path, sheet)
	if err != nil {
		return nil, err
	}

	store, err := fromGrid(grid, path+"#"+sheet)
	if err != nil {
		return nil, err
	}

	missing := make([]string, 0)
	for _, m := range Measures() {
		if !store.Has(m) {
			missing = append(missing, m.Column())
		}
	}
	if len(missing) > 0 {
		log.Warn("optional columns missing, dependent sections will be skipped", "columns", missing)
	}

	log.Info("load complete", "rows", store.Len(), "duration", time.Since(start))
	return store, nil
}

func fromGrid(grid [][]string, source string) (*ColumnStore, error) {
	// A. Locate the header (first non-blank row)
	headerAt := -1
	for i, row := range grid {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt == -1 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptySheet)
	}

	header := make([]string, len(grid[headerAt]))
	pos := make(map[string]int, len(header))
	for i, h := range grid[headerAt] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
		if _, dup := pos[header[i]]; !dup && header[i] != "" {
			pos[header[i]] = i
		}
	}

	// B. Resolve column positions
	var dimPos [NumDimensions]int
	var missing []string
	for _, d := range Dimensions() {
		p, ok := pos[d.Column()]
		if !ok {
			missing = append(missing, d.Column())
			continue
		}
		dimPos[d] = p
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Missing: missing, Available: nonBlank(header)}
	}

	var measurePos [NumMeasures]int
	var present []Measure
	for _, m := range Measures() {
		if p, ok := pos[m.Column()]; ok {
			measurePos[m] = p
			present = append(present, m)
		}
	}

	// C. Encode rows
	b := NewBuilder(present...)
	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	for _, row := range grid[headerAt+1:] {
		if blankRow(row) {
			continue
		}
		var dims [NumDimensions]string
		for d, p := range dimPos {
			dims[d] = cell(row, p)
		}
		var amounts [NumMeasures]float64
		for _, m := range present {
			amounts[m] = parseAmount(cell(row, measurePos[m]))
		}
		b.Append(dims, amounts)
	}
	return b.Build(source), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
