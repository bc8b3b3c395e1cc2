package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/pipeline"
)

var (
	scanOutput string
	scanTop    int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all platforms and emit the ranked results document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		outPath := scanOutput
		if outPath == "" {
			outPath = cfg.Output.Path
		}
		if err := pipeline.WriteResults(outPath, result); err != nil {
			return err
		}
		zap.L().Info("results written", zap.String("path", outPath))

		printScanSummary(os.Stdout, result, scanTop)
		return nil
	},
}

// printScanSummary renders the human-readable digest that follows a scan.
// The full document is in the output file; this is the terminal view.
func printScanSummary(w io.Writer, result *model.ScanResult, top int) {
	p := message.NewPrinter(language.AmericanEnglish)

	s := result.Summary
	p.Fprintf(w, "\nScanned %d listings, %d unique matches", s.TotalListingsFound, s.UniqueListings)
	if s.AveragePrice != nil {
		p.Fprintf(w, ", average asking price $%.0f", *s.AveragePrice)
	}
	p.Fprintln(w)

	if s.NoMatchesReason != "" {
		fmt.Fprintf(w, "No matches: %s\n", s.NoMatchesReason)
		return
	}

	if top <= 0 || top > len(result.Results) {
		top = len(result.Results)
	}
	p.Fprintf(w, "\nTop %d opportunities:\n", top)
	for i, l := range result.Results[:top] {
		price := "price on request"
		if l.Price != nil {
			price = p.Sprintf("$%.0f", *l.Price)
		}
		distance := "distance unknown"
		if l.DistanceMiles != nil {
			distance = p.Sprintf("%.1f mi", *l.DistanceMiles)
		}
		p.Fprintf(w, "%2d. %s (%s) - %s, %s\n", i+1, l.Title, l.Platform, price, distance)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanOutput, "output", "", "results file path (default from config)")
	scanCmd.Flags().IntVar(&scanTop, "top", 10, "number of top opportunities to print")
	rootCmd.AddCommand(scanCmd)
}
