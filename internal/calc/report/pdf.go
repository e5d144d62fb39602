// Package report renders optimization results as PDF, XLSX and PNG files.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"Trusslab/internal/calc/optimizer"
	"Trusslab/internal/calc/truss"

	"github.com/phpdave11/gofpdf"
)

type Meta struct {
	Project string `json:"project"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Notes   string `json:"notes"`
}

// drawing area on the A4 page, mm
const (
	drawX = 15.0
	drawY = 110.0
	drawW = 180.0
	drawH = 120.0

	maxLineWidth = 1.6
)

// PDF writes a one-page report: title block, summary table and the lattice
// drawn with line widths proportional to member thickness.
func PDF(w io.Writer, meta Meta, res truss.OptimizationResult) error {
	if meta.Title == "" {
		meta.Title = "Truss Optimization Report"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(meta.Title, false)
	pdf.SetAuthor(meta.Author, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, meta.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Project: %s", meta.Project))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Author: %s", meta.Author))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", time.Now().Format("2006-01-02")))
	pdf.Ln(10)

	status := "completed"
	if !res.Success {
		status = "stopped: " + res.Error
	}
	rows := [][2]string{
		{"Run", res.ID},
		{"Nodes / members", fmt.Sprintf("%d / %d", len(res.Nodes), len(res.Members))},
		{"Iterations", fmt.Sprintf("%d", res.Iterations)},
		{"Status", status},
		{"Target volume fraction", fmt.Sprintf("%.3f", res.TargetFraction)},
		{"Baseline strain energy", fmt.Sprintf("%.6g", res.BaselineEnergy)},
		{"Final strain energy", fmt.Sprintf("%.6g", res.StrainEnergy)},
		{"Baseline volume", fmt.Sprintf("%.6g", res.BaselineVolume)},
		{"Final volume", fmt.Sprintf("%.6g", res.Volume)},
		{"Max displacement", fmt.Sprintf("%.6g", res.MaxDisplacement)},
	}
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(60, 6, r[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(120, 6, r[1], "1", 1, "L", false, 0, "")
	}

	drawLattice(pdf, res.Lattice)

	if meta.Notes != "" {
		pdf.SetXY(drawX, drawY+drawH+8)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(drawW, 5, meta.Notes, "", "L", false)
	}
	return pdf.Output(w)
}

func drawLattice(pdf *gofpdf.Fpdf, l truss.Lattice) {
	if len(l.Nodes) == 0 {
		return
	}
	minX, maxX := l.Nodes[0].X, l.Nodes[0].X
	minY, maxY := l.Nodes[0].Y, l.Nodes[0].Y
	for _, n := range l.Nodes {
		minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
		minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
	}
	scale := math.Min(drawW/math.Max(maxX-minX, 1e-9), drawH/math.Max(maxY-minY, 1e-9))
	// y grows upward on the lattice and downward on the page
	px := func(x float64) float64 { return drawX + (x-minX)*scale }
	py := func(y float64) float64 { return drawY + drawH - (y-minY)*scale }

	for k, mb := range l.Members {
		t := 1.0
		if k < len(l.Thickness) {
			t = l.Thickness[k]
		}
		if t <= optimizer.MinThickness {
			pdf.SetDrawColor(210, 210, 210)
			pdf.SetLineWidth(0.05)
		} else {
			pdf.SetDrawColor(30, 30, 30)
			pdf.SetLineWidth(math.Max(0.05, t*maxLineWidth))
		}
		a, b := l.Nodes[mb.Start], l.Nodes[mb.End]
		pdf.Line(px(a.X), py(a.Y), px(b.X), py(b.Y))
	}

	pdf.SetFillColor(40, 90, 200)
	for _, n := range l.Fixed {
		p := l.Nodes[n]
		pdf.Rect(px(p.X)-1.2, py(p.Y)-1.2, 2.4, 2.4, "F")
	}
	pdf.SetFillColor(200, 40, 40)
	for _, n := range append(append([]int(nil), l.LoadX...), l.LoadY...) {
		p := l.Nodes[n]
		pdf.Circle(px(p.X), py(p.Y), 1.2, "F")
	}
}
