package fea

import (
	"math"

	"Trusslab/internal/calc/mesh"
)

// Result holds one analysis run. Displacements has two entries per node
// (x then y); Stresses and Sensitivities have one per member.
type Result struct {
	Displacements []float64 `json:"displacements"`
	Stresses      []float64 `json:"stresses"`
	StrainEnergy  float64   `json:"strain_energy"`
	Sensitivities []float64 `json:"sensitivities"`
	Volume        float64   `json:"volume"`
	Computed      bool      `json:"computed"`
}

// MaxDisplacement is the largest nodal displacement magnitude.
func (r *Result) MaxDisplacement() float64 {
	best := 0.0
	for n := 0; n+1 < len(r.Displacements); n += 2 {
		best = math.Max(best, math.Hypot(r.Displacements[n], r.Displacements[n+1]))
	}
	return best
}

func (r *Result) MaxAbsStress() float64 {
	best := 0.0
	for _, s := range r.Stresses {
		best = math.Max(best, math.Abs(s))
	}
	return best
}

// DeformedNodes returns node + scale*displacement for every node.
func (r *Result) DeformedNodes(nodes []mesh.Node, scale float64) []mesh.Node {
	out := make([]mesh.Node, len(nodes))
	for n, p := range nodes {
		out[n] = p
		if 2*n+1 < len(r.Displacements) {
			out[n].X += scale * r.Displacements[2*n]
			out[n].Y += scale * r.Displacements[2*n+1]
		}
	}
	return out
}
