// Package historycmd implements "scenic history": past runs and their
// verdicts from the local history database.
package historycmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"scenic/cmd/scenic/ui"
	"scenic/config"
	"scenic/internal/store"

	"github.com/spf13/cobra"
)

// Cmd returns the "scenic history" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		limit      int
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs, or one run's verdicts with --run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = config.Path()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := store.Open(filepath.Join(cfg.ArtifactsDir, "scenic.db"))
			if err != nil {
				return err
			}
			defer db.Close()

			if runID != "" {
				rep, err := db.GetReport(cmd.Context(), runID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(rep.Verdicts))
				for _, v := range rep.Verdicts {
					rows = append(rows, []string{v.ScenarioName, ui.Status(string(v.Status)), fmt.Sprintf("%d ms", v.DurationMs), v.Detail})
				}
				fmt.Println(ui.Table([]string{"SCENARIO", "STATUS", "DURATION", "DETAIL"}, rows))
				return nil
			}

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println(ui.WarnMsg("no recorded runs"))
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					strconv.Itoa(r.Totals.Total),
					strconv.Itoa(r.Totals.Passed),
					strconv.Itoa(r.Totals.Failed),
					strconv.Itoa(r.Totals.Errors),
				})
			}
			fmt.Println(ui.Table([]string{"RUN", "STARTED", "TOTAL", "PASSED", "FAILED", "ERRORS"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: "+config.Path()+")")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show verdicts for one run id")

	return cmd
}
