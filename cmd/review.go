package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/qanta"
)

var reviewOut string

var reviewCmd = &cobra.Command{
	Use:   "review <dataset>",
	Short: "Write a manual-review spreadsheet for flagged questions",
	Long: `Reads a dataset file (.csv or .json) and writes an XLSX workbook
containing only the questions flagged for manual answer review, with
their raw answer lines and failure notes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(args[0])
		if err != nil {
			return err
		}

		flagged, err := qanta.WriteReviewXLSX(reviewOut, records)
		if err != nil {
			return eris.Wrapf(err, "write review sheet %s", reviewOut)
		}

		zap.L().Info("review sheet written",
			zap.String("path", reviewOut),
			zap.Int("flagged", flagged),
			zap.Int("total", len(records)))
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewOut, "out", "o", "review.xlsx", "output XLSX path")
	rootCmd.AddCommand(reviewCmd)
}
