package main

import (
	"fmt"

	"Trusslab/internal/calc/truss"

	"github.com/spf13/cobra"
)

var analyzeFlags caseFlags
var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Solve the lattice once at uniform thickness",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := analyzeFlags.build(cmd)
		if err != nil {
			return err
		}
		res, err := truss.Analyze(in)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if analyzeJSON {
			return writeJSON(out, res)
		}
		fmt.Fprintf(out, "nodes:            %d\n", len(res.Nodes))
		fmt.Fprintf(out, "members:          %d\n", len(res.Members))
		fmt.Fprintf(out, "strain energy:    %.6g\n", res.StrainEnergy)
		fmt.Fprintf(out, "volume:           %.6g\n", res.Volume)
		fmt.Fprintf(out, "max displacement: %.6g\n", res.MaxDisplacement)
		fmt.Fprintf(out, "max |stress|:     %.6g\n", res.MaxAbsStress)
		return nil
	},
}

func init() {
	analyzeFlags.register(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
