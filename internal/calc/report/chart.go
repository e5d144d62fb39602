package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"Trusslab/internal/calc/optimizer"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrTooFewPoints = errors.New("report: convergence chart needs at least two iterations")

// ConvergencePNG plots normalized compliance (left axis) and volume (right
// axis) against the iteration number.
func ConvergencePNG(w io.Writer, history []optimizer.Step) error {
	if len(history) < 2 {
		return ErrTooFewPoints
	}
	xs := make([]float64, len(history))
	obj := make([]float64, len(history))
	vol := make([]float64, len(history))
	for i, s := range history {
		xs[i], obj[i], vol[i] = float64(s.Iteration), s.Objective, s.Volume
	}

	graph := chart.Chart{
		Width:  800,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "iteration",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "C / C0",
			Style: chart.Style{FontSize: 10.0},
			Range: paddedRange(obj),
		},
		YAxisSecondary: chart.YAxis{
			Name:  "volume",
			Style: chart.Style{FontSize: 10.0},
			Range: paddedRange(vol),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "C / C0",
				XValues: xs,
				YValues: obj,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "volume",
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				YValues: vol,
				Style:   chart.Style{StrokeColor: drawing.Color{R: 255, G: 165, B: 0, A: 255}, StrokeWidth: 2.0},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// paddedRange widens flat series so the axis never has a zero span.
func paddedRange(v []float64) *chart.ContinuousRange {
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	pad := 0.05 * (hi - lo)
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1e-9)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
