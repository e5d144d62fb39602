package main

import (
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"Trusslab/internal/calc/optimizer"
	"Trusslab/internal/calc/report"
	"Trusslab/internal/calc/truss"

	"github.com/spf13/cobra"
)

var optimizeFlags caseFlags

var optimizeOpts struct {
	fraction   float64
	iterations int
	verbose    bool
	jsonOut    string
	pdfOut     string
	xlsxOut    string
	pngOut     string
	project    string
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Resize members to minimize compliance at a target volume",
	Long: `Run the Optimality-Criteria sizing loop. Ctrl-C stops the run between
iterations; the layout reached so far is still written out.

Outputs are optional; "-" writes to stdout:
  --json out.json --pdf report.pdf --xlsx members.xlsx --png convergence.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := optimizeFlags.build(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("fraction") || in.TargetFraction == 0 {
			in.TargetFraction = optimizeOpts.fraction
		}
		if cmd.Flags().Changed("iterations") || in.Iterations == 0 {
			in.Iterations = optimizeOpts.iterations
		}

		var extra []optimizer.Option
		if optimizeOpts.verbose {
			extra = append(extra, optimizer.WithLogger(log.New(cmd.ErrOrStderr(), "", log.Ltime)))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		res, err := truss.Optimize(ctx, in, extra...)
		if err != nil {
			return err
		}

		status := "completed"
		if !res.Success {
			status = "stopped: " + res.Error
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s after %d iterations in %d ms\n", status, res.Iterations, res.ElapsedMillis)
		fmt.Fprintf(cmd.ErrOrStderr(), "strain energy %.6g -> %.6g, volume %.6g -> %.6g\n",
			res.BaselineEnergy, res.StrainEnergy, res.BaselineVolume, res.Volume)

		outputs := []struct {
			path  string
			write func(io.Writer) error
		}{
			{optimizeOpts.jsonOut, func(w io.Writer) error { return writeJSON(w, res) }},
			{optimizeOpts.pdfOut, func(w io.Writer) error {
				return report.PDF(w, report.Meta{Project: optimizeOpts.project}, res)
			}},
			{optimizeOpts.xlsxOut, func(w io.Writer) error { return report.XLSX(w, res) }},
			{optimizeOpts.pngOut, func(w io.Writer) error { return report.ConvergencePNG(w, res.History) }},
		}
		for _, o := range outputs {
			if o.path == "" {
				continue
			}
			if err := writeOutput(cmd, o.path, o.write); err != nil {
				return fmt.Errorf("%s: %w", o.path, err)
			}
		}
		if !res.Success {
			return fmt.Errorf("optimization did not complete: %s", res.Error)
		}
		return nil
	},
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	f, err := create(cmd, path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	optimizeFlags.register(optimizeCmd)
	fs := optimizeCmd.Flags()
	fs.Float64VarP(&optimizeOpts.fraction, "fraction", "f", optimizer.DefaultFraction, "target volume fraction, in (0,1)")
	fs.IntVarP(&optimizeOpts.iterations, "iterations", "n", optimizer.DefaultIterations, "iteration budget")
	fs.BoolVarP(&optimizeOpts.verbose, "verbose", "v", false, "log every iteration to stderr")
	fs.StringVar(&optimizeOpts.jsonOut, "json", "", "write the result as JSON")
	fs.StringVar(&optimizeOpts.pdfOut, "pdf", "", "write a PDF report")
	fs.StringVar(&optimizeOpts.xlsxOut, "xlsx", "", "write an XLSX workbook")
	fs.StringVar(&optimizeOpts.pngOut, "png", "", "write the convergence chart")
	fs.StringVar(&optimizeOpts.project, "project", "", "project name for the PDF title block")
	rootCmd.AddCommand(optimizeCmd)
}
