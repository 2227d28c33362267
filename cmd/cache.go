package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/textnorm"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the resolution cache",
}

// -- cache stats --

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show resolution cache counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		stats, err := st.EntryStats(ctx)
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "TOTAL\tRESOLVED\tUNRESOLVED\n")
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", stats.Total, stats.Total-stats.Unresolved, stats.Unresolved)
		return w.Flush()
	},
}

// -- cache purge --

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete unresolved cache entries so they can be retried",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.PurgeUnresolved(ctx)
		if err != nil {
			return eris.Wrap(err, "purge cache")
		}

		zap.L().Info("cache purged", zap.Int("removed", n))
		return nil
	},
}

// -- cache import --

var cacheImportCmd = &cobra.Command{
	Use:   "import <map.json>",
	Short: "Seed the cache from an answer map file",
	Long: `Loads a JSON object mapping answer phrases to Wikipedia titles into
the resolution cache. An empty title marks the phrase unresolved so
the converter emits the review placeholder without retrying it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var mapping map[string]string
		if err := json.Unmarshal(data, &mapping); err != nil {
			return eris.Wrapf(err, "parse answer map %s", args[0])
		}

		entries := buildCacheEntries(mapping)
		if len(entries) == 0 {
			zap.L().Warn("answer map contained no usable entries", zap.String("path", args[0]))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.PutEntries(ctx, entries)
		if err != nil {
			return eris.Wrap(err, "import cache entries")
		}

		zap.L().Info("cache imported",
			zap.String("path", args[0]),
			zap.Int64("entries", n))
		return nil
	},
}

// buildCacheEntries turns an answer map into cache entries keyed by the
// normalized answer phrase. Phrases that normalize to nothing are skipped.
func buildCacheEntries(mapping map[string]string) []model.CacheEntry {
	phrases := make([]string, 0, len(mapping))
	for phrase := range mapping {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)

	now := time.Now().UTC()
	entries := make([]model.CacheEntry, 0, len(mapping))
	seen := make(map[string]bool, len(mapping))
	for _, phrase := range phrases {
		key := textnorm.Key(phrase)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, model.CacheEntry{
			Key:        key,
			Title:      mapping[phrase],
			Unresolved: mapping[phrase] == "",
			FetchedAt:  now,
		})
	}
	return entries
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd, cacheImportCmd)
	rootCmd.AddCommand(cacheCmd)
}
