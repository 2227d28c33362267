package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openqb/qantagen/internal/parser"
)

var (
	batchOutDir   string
	batchParallel int
)

var batchCmd = &cobra.Command{
	Use:   "batch <tournament-dir>...",
	Short: "Convert multiple tournament directories in one pass",
	Long:  "Converts each directory as one tournament, named after the directory, writing one dataset file per tournament. Failures are logged and skipped.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outDir := batchOutDir
		if outDir == "" {
			outDir = cfg.Convert.OutDir
		}

		zap.L().Info("processing batch",
			zap.Int("tournaments", len(args)),
			zap.Int("parallel", batchParallel),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchParallel)

		var succeeded, failed atomic.Int64

		for _, dir := range args {
			g.Go(func() error {
				log := zap.L().With(zap.String("tournament", dir))

				if err := convertDir(gctx, env, dir, outDir); err != nil {
					failed.Add(1)
					log.Error("conversion failed", zap.Error(err))
					return nil // don't abort batch on individual failure
				}

				succeeded.Add(1)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "output directory (default from config)")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 2, "tournaments converted concurrently")
	rootCmd.AddCommand(batchCmd)
}

// convertDir converts one tournament directory and writes its dataset
// file under outDir.
func convertDir(ctx context.Context, env *convertEnv, dir, outDir string) error {
	name := filepath.Base(filepath.Clean(dir))

	blocks, err := parser.ParseDir(ctx, dir, parser.WithTournament(name))
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return eris.Errorf("no questions found in %s", dir)
	}

	records, result, err := env.Pipeline.ConvertBatch(ctx, dir, blocks)
	if err != nil {
		return err
	}

	outPath := datasetName(outDir, dir, cfg.Convert.Format)
	if err := writeRecords(outPath, cfg.Convert.Format, records); err != nil {
		return err
	}

	zap.L().Info("tournament converted",
		zap.String("tournament", name),
		zap.String("path", outPath),
		zap.Int("questions", result.Questions),
		zap.Int("resolved", result.Resolved),
		zap.Int("needs_review", result.NeedsReview),
	)
	return nil
}
