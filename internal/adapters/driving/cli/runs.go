package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mmtf-derive/internal/core/services"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	RunE:  runRunsList,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, most recent first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its failure manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsLimit int

func init() {
	runsCmd.PersistentFlags().StringVar(&manifestDB, "manifest-db", "", "Run database path (default ~/.mmtf-derive/data/runs.db)")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := services.NewRunHistoryService(store.ManifestStore()).ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for i, run := range runs {
		if runsLimit > 0 && i == runsLimit {
			cmd.Println(mutedStyle.Render(fmt.Sprintf("... and %d more", len(runs)-runsLimit)))
			break
		}
		state := successStyle.Render("ok")
		switch {
		case run.Cancelled:
			state = warningStyle.Render("cancelled")
		case run.Stats.Failed > 0:
			state = warningStyle.Render(count(run.Stats.Failed) + " failed")
		}
		cmd.Printf("%s  %s  %s records  %s  %s\n",
			titleStyle.Render(run.RunID),
			mutedStyle.Render(humanize.RelTime(run.StartedAt, time.Now(), "ago", "from now")),
			count(run.Stats.Records),
			run.Stats.Duration.Round(time.Millisecond),
			state)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.ManifestStore().GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run %s: %w", args[0], err)
	}
	manifest, err := services.NewRunHistoryService(store.ManifestStore()).Manifest(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cmd.Println(renderSummary(*run))
	cmd.Println(mutedStyle.Render("Started " + run.StartedAt.Format(time.RFC3339)))
	cmd.Println(renderManifest(manifest, 0))
	return nil
}
