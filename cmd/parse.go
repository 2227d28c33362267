package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var parseTournament string

var parseCmd = &cobra.Command{
	Use:   "parse <packet-file-or-dir>",
	Short: "Parse packet files and print raw question blocks as JSON",
	Long: `Parses a packet file or a directory of packet files without running
the conversion pipeline, printing the raw question blocks as JSON.
Useful for checking how a packet splits into questions before
converting it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blocks, err := parseInput(cmd.Context(), args[0], parseTournament)
		if err != nil {
			return err
		}

		zap.L().Info("packets parsed",
			zap.String("input", args[0]),
			zap.Int("questions", len(blocks)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(blocks); err != nil {
			return eris.Wrap(err, "encode question blocks")
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseTournament, "tournament", "", "tournament name used in packet and question identifiers")
	rootCmd.AddCommand(parseCmd)
}
