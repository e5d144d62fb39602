package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"Trusslab/internal/calc/mesh"
	"Trusslab/internal/calc/truss"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trussctl",
	Short: "Truss lattice analysis and sizing optimization",
	Long: `Generate a rectangular truss lattice, analyze it with the direct
stiffness method and resize its members to minimize compliance at a
target volume.

A case comes from flags or from a JSON file (--input) with the same
shape as the HTTP API request:
{
  "cell_size_mm": 10, "width_mm": 60, "height_mm": 30,
  "pattern": "cross", "default_supports": true,
  "target_fraction": 0.4, "iterations": 200
}`,
	SilenceUsage: true,
}

type caseFlags struct {
	input      string
	cell       float64
	width      float64
	height     float64
	pattern    string
	modulus    float64
	noDefaults bool
	fixed      []int
	loadX      []int
	loadY      []int
}

func (f *caseFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "JSON case file; flags below override its fields when set")
	fs.Float64Var(&f.cell, "cell", 10, "cell size, mm")
	fs.Float64Var(&f.width, "width", 60, "lattice width, mm")
	fs.Float64Var(&f.height, "height", 30, "lattice height, mm")
	fs.StringVarP(&f.pattern, "pattern", "p", string(mesh.PatternCross), "cross or checkerboard")
	fs.Float64Var(&f.modulus, "modulus", 0, "Young's modulus (default 1)")
	fs.BoolVar(&f.noDefaults, "no-default-supports", false, "skip the cantilever supports and load")
	fs.IntSliceVar(&f.fixed, "fixed", nil, "extra fixed node indices")
	fs.IntSliceVar(&f.loadX, "load-x", nil, "node indices loaded along x")
	fs.IntSliceVar(&f.loadY, "load-y", nil, "node indices loaded along y")
}

func (f *caseFlags) build(cmd *cobra.Command) (truss.Input, error) {
	in := truss.Input{
		Params: mesh.Params{
			CellSize: f.cell,
			Width:    f.width,
			Height:   f.height,
			Pattern:  mesh.Pattern(f.pattern),
		},
		DefaultSupports: !f.noDefaults,
	}
	if f.input != "" {
		data, err := os.ReadFile(f.input)
		if err != nil {
			return in, err
		}
		in = truss.Input{}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("%s: %w", f.input, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("cell") {
		in.CellSize = f.cell
	}
	if changed("width") {
		in.Width = f.width
	}
	if changed("height") {
		in.Height = f.height
	}
	if changed("pattern") || in.Pattern == "" {
		p, err := mesh.ParsePattern(f.pattern)
		if err != nil {
			return in, err
		}
		in.Pattern = p
	}
	if changed("no-default-supports") {
		in.DefaultSupports = !f.noDefaults
	}
	if changed("modulus") {
		in.Modulus = f.modulus
	}
	in.Fixed = append(in.Fixed, f.fixed...)
	in.LoadX = append(in.LoadX, f.loadX...)
	in.LoadY = append(in.LoadY, f.loadY...)
	return in, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// create opens path for writing, "-" meaning stdout.
func create(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
