// Package scenarioscmd implements "scenic scenarios": list the
// scenarios a run would execute, in execution order.
package scenarioscmd

import (
	"fmt"
	"strconv"

	"scenic/cmd/scenic/ui"
	"scenic/config"
	"scenic/internal/scenario"

	"github.com/spf13/cobra"
)

// Cmd returns the "scenic scenarios" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		dir        string
	)

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List scenarios in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = config.Path()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.ScenarioDir
			}

			scenarios, err := scenario.LoadDir(dir, nil)
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				fmt.Println(ui.WarnMsg("no scenarios in %s", dir))
				return nil
			}

			rows := make([][]string, 0, len(scenarios))
			for _, sc := range scenarios {
				rows = append(rows, []string{sc.Name, strconv.Itoa(len(sc.Steps)), sc.Description})
			}
			fmt.Println(ui.Table([]string{"NAME", "STEPS", "DESCRIPTION"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: "+config.Path()+")")
	cmd.Flags().StringVar(&dir, "dir", "", "Scenario directory (default: from config)")

	return cmd
}
