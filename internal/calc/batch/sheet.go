package batch

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"Trusslab/internal/calc/mesh"
	"Trusslab/internal/calc/truss"

	"github.com/xuri/excelize/v2"
)

// Sheet columns, matched case-insensitively against the header row.
const (
	ColCellSize       = "cell_size"
	ColWidth          = "width"
	ColHeight         = "height"
	ColPattern        = "pattern"
	ColTargetFraction = "target_fraction"
	ColIterations     = "iterations"
)

var requiredColumns = []string{ColCellSize, ColWidth, ColHeight}

// ParseSheet reads the first sheet of an XLSX workbook: a header row, then one
// cantilever case per row. Blank rows are skipped. Pattern defaults to cross,
// fraction and iterations to the optimizer defaults.
func ParseSheet(r io.Reader) ([]truss.Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSheet, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: header and at least one row expected", ErrBadSheet)
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadSheet, name)
		}
	}

	var items []truss.Input
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		in, err := parseRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrBadSheet, i+2, err)
		}
		items = append(items, in)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}

func parseRow(cols map[string]int, row []string) (truss.Input, error) {
	in := truss.Input{DefaultSupports: true, Params: mesh.Params{Pattern: mesh.PatternCross}}

	var err error
	if in.CellSize, err = floatCell(cols, row, ColCellSize); err != nil {
		return in, err
	}
	if in.Width, err = floatCell(cols, row, ColWidth); err != nil {
		return in, err
	}
	if in.Height, err = floatCell(cols, row, ColHeight); err != nil {
		return in, err
	}
	if s := cell(cols, row, ColPattern); s != "" {
		if in.Pattern, err = mesh.ParsePattern(s); err != nil {
			return in, err
		}
	}
	if s := cell(cols, row, ColTargetFraction); s != "" {
		if in.TargetFraction, err = strconv.ParseFloat(s, 64); err != nil {
			return in, fmt.Errorf("%s: %w", ColTargetFraction, err)
		}
	}
	if s := cell(cols, row, ColIterations); s != "" {
		if in.Iterations, err = strconv.Atoi(s); err != nil {
			return in, fmt.Errorf("%s: %w", ColIterations, err)
		}
	}
	return in, nil
}

func cell(cols map[string]int, row []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func floatCell(cols map[string]int, row []string, name string) (float64, error) {
	s := cell(cols, row, name)
	if s == "" {
		return 0, fmt.Errorf("%s: empty", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
