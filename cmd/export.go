package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/pipeline"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest scan results to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := pipeline.ReadResults(cfg.Output.Path)
		if err != nil {
			return err
		}

		if err := writeWorkbook(exportOut, result); err != nil {
			return err
		}
		zap.L().Info("workbook written",
			zap.String("path", exportOut),
			zap.Int("listings", len(result.Results)),
		)
		return nil
	},
}

var workbookHeader = []string{
	"Title", "Platform", "Price", "Address", "Distance (mi)", "Proximity",
	"Multiple", "Reason for Sale", "Labor", "AI Risk", "Visit Frequency",
	"URL", "First Seen", "Last Seen",
}

func writeWorkbook(path string, result *model.ScanResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Listings")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range workbookHeader {
		header.AddCell().SetString(h)
	}

	for _, l := range result.Results {
		row := sheet.AddRow()
		row.AddCell().SetString(l.Title)
		row.AddCell().SetString(string(l.Platform))
		setOptionalFloat(row.AddCell(), l.Price)
		row.AddCell().SetString(l.Address)
		setOptionalFloat(row.AddCell(), l.DistanceMiles)
		row.AddCell().SetString(l.Proximity)
		setOptionalFloat(row.AddCell(), l.EarningsMultiple)
		row.AddCell().SetString(l.ReasonForSale)
		row.AddCell().SetString(string(l.LaborIntensity))
		row.AddCell().SetString(string(l.AIRisk))
		row.AddCell().SetString(string(l.VisitFrequency))
		row.AddCell().SetString(l.ListingURL)
		row.AddCell().SetString(l.FirstSeen.Format("2006-01-02"))
		row.AddCell().SetString(l.LastSeen.Format("2006-01-02"))
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func setOptionalFloat(cell *xlsx.Cell, v *float64) {
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloat(*v)
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "business_listings.xlsx", "workbook output path")
	rootCmd.AddCommand(exportCmd)
}
