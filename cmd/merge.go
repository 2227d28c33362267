package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/qanta"
)

var mergeOut string

var mergeCmd = &cobra.Command{
	Use:   "merge <dataset.csv>...",
	Short: "Merge dataset CSV files into one",
	Long: `Concatenates two or more dataset CSV files into a single file with
one header row, dropping duplicate question IDs in favor of the first
occurrence.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := make([]io.Reader, 0, len(args))
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "open %s", path)
			}
			defer f.Close() //nolint:errcheck
			inputs = append(inputs, f)
		}

		out, err := os.Create(mergeOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", mergeOut)
		}

		n, err := qanta.MergeCSV(out, inputs...)
		if err != nil {
			out.Close() //nolint:errcheck
			return eris.Wrapf(err, "merge into %s", mergeOut)
		}
		if err := out.Close(); err != nil {
			return eris.Wrapf(err, "close %s", mergeOut)
		}

		zap.L().Info("datasets merged",
			zap.Int("inputs", len(args)),
			zap.Int("questions", n),
			zap.String("out", mergeOut))
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "merged.csv", "output CSV path")
	rootCmd.AddCommand(mergeCmd)
}
