package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect conversion runs",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversion runs",
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

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		return formatRunsList(os.Stdout, runs)
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one conversion run as JSON",
	Args:  cobra.ExactArgs(1),
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

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get run %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func formatRunsList(w io.Writer, runs []model.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSOURCE\tSTATUS\tQUESTIONS\tRESOLVED\tREVIEW\tCREATED\tDURATION")
	for _, run := range runs {
		questions, resolved, review := "-", "-", "-"
		if run.Result != nil {
			questions = strconv.Itoa(run.Result.Questions)
			resolved = strconv.Itoa(run.Result.Resolved)
			review = strconv.Itoa(run.Result.NeedsReview)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(run.ID),
			run.Source,
			run.Status,
			questions,
			resolved,
			review,
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.UpdatedAt.Sub(run.CreatedAt).Round(time.Second))
	}
	return tw.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum runs to list")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
