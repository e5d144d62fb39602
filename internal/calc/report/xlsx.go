package report

import (
	"io"
	"math"

	"Trusslab/internal/calc/truss"

	"github.com/xuri/excelize/v2"
)

const (
	SheetNodes   = "Nodes"
	SheetMembers = "Members"
	SheetHistory = "History"
)

// XLSX writes a workbook with one sheet each for nodes, members and the
// iteration history.
func XLSX(w io.Writer, res truss.OptimizationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetNodes); err != nil {
		return err
	}
	for _, name := range []string{SheetMembers, SheetHistory} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	fixed := set(res.Fixed)
	loadX, loadY := set(res.LoadX), set(res.LoadY)
	nodes := [][]any{{"node", "x", "y", "fixed", "load", "ux", "uy"}}
	for i, n := range res.Nodes {
		load := ""
		switch {
		case loadX[i]:
			load = "x"
		case loadY[i]:
			load = "y"
		}
		row := []any{i, n.X, n.Y, fixed[i], load}
		if 2*i+1 < len(res.Displacements) {
			row = append(row, res.Displacements[2*i], res.Displacements[2*i+1])
		}
		nodes = append(nodes, row)
	}

	members := [][]any{{"member", "start", "end", "length", "thickness", "stress"}}
	for k, mb := range res.Members {
		a, b := res.Nodes[mb.Start], res.Nodes[mb.End]
		row := []any{k, mb.Start, mb.End, math.Hypot(b.X-a.X, b.Y-a.Y)}
		if k < len(res.Thickness) {
			row = append(row, res.Thickness[k])
		}
		if k < len(res.Stresses) {
			row = append(row, res.Stresses[k])
		}
		members = append(members, row)
	}

	history := [][]any{{"iteration", "compliance", "objective", "volume", "lambda"}}
	for _, s := range res.History {
		history = append(history, []any{s.Iteration, s.Compliance, s.Objective, s.Volume, s.Lambda})
	}

	for sheet, rows := range map[string][][]any{SheetNodes: nodes, SheetMembers: members, SheetHistory: history} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func set(idx []int) map[int]bool {
	s := make(map[int]bool, len(idx))
	for _, i := range idx {
		s[i] = true
	}
	return s
}
