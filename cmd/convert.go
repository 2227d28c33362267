package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/parser"
	"github.com/openqb/qantagen/internal/pipeline"
	"github.com/openqb/qantagen/internal/qanta"
)

var (
	convertTournament string
	convertYear       int
	convertFold       string
	convertFormat     string
	convertOut        string
	convertReviewOut  string
)

var convertCmd = &cobra.Command{
	Use:   "convert <packet-file-or-dir>",
	Short: "Convert tournament packets into a QANTA dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := args[0]

		if convertFold != "" {
			cfg.Convert.Fold = convertFold
		}
		if convertFormat != "" {
			cfg.Convert.Format = convertFormat
		}

		blocks, err := parseInput(ctx, input, convertTournament)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			zap.L().Warn("no questions found", zap.String("input", input))
			return nil
		}

		var opts []pipeline.Option
		if convertTournament != "" {
			opts = append(opts, pipeline.WithTournament(convertTournament))
		}
		if convertYear != 0 {
			opts = append(opts, pipeline.WithYear(convertYear))
		}

		env, err := initPipeline(ctx, opts...)
		if err != nil {
			return err
		}
		defer env.Close()

		records, result, err := env.Pipeline.ConvertBatch(ctx, input, blocks)
		if err != nil {
			return err
		}

		outPath := convertOut
		if outPath == "" {
			outPath = datasetName(cfg.Convert.OutDir, input, cfg.Convert.Format)
		}
		if err := writeRecords(outPath, cfg.Convert.Format, records); err != nil {
			return err
		}
		zap.L().Info("dataset written",
			zap.String("path", outPath),
			zap.Int("records", len(records)),
		)

		if convertReviewOut != "" {
			flagged, err := qanta.WriteReviewXLSX(convertReviewOut, records)
			if err != nil {
				return err
			}
			zap.L().Info("review sheet written",
				zap.String("path", convertReviewOut),
				zap.Int("flagged", flagged),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertTournament, "tournament", "", "tournament name used in packet and question identifiers")
	convertCmd.Flags().IntVar(&convertYear, "year", 0, "tournament year (default derived from packet names)")
	convertCmd.Flags().StringVar(&convertFold, "fold", "", "dataset fold assigned to every record (default from config)")
	convertCmd.Flags().StringVar(&convertFormat, "format", "", "output format: csv, json, or jsonl (default from config)")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output file (default <out_dir>/<input>.<format>)")
	convertCmd.Flags().StringVar(&convertReviewOut, "review", "", "also write an xlsx worksheet of records needing manual review")
	rootCmd.AddCommand(convertCmd)
}

// parseInput parses a packet file, or every packet file in a directory.
func parseInput(ctx context.Context, input, tournament string) ([]model.RawQuestionBlock, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, eris.Wrapf(err, "stat %s", input)
	}

	var opts []parser.Option
	if tournament != "" {
		opts = append(opts, parser.WithTournament(tournament))
	}

	if info.IsDir() {
		return parser.ParseDir(ctx, input, opts...)
	}
	p, err := parser.ForPath(input, opts...)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, input)
}
