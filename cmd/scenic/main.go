package main

import (
	"errors"
	"fmt"
	"os"

	"scenic/cmd/scenic/cmdutil"
	historycmd "scenic/cmd/scenic/history"
	runcmd "scenic/cmd/scenic/run"
	scenarioscmd "scenic/cmd/scenic/scenarios"
	servecmd "scenic/cmd/scenic/serve"
	"scenic/internal/logging"
	"scenic/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

func main() {
	var debug bool

	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "scenic",
		Short:         "Browser-driven acceptance tests against a running deployment",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(runcmd.Cmd())
	root.AddCommand(scenarioscmd.Cmd())
	root.AddCommand(historycmd.Cmd())
	root.AddCommand(servecmd.Cmd())

	if err := root.Execute(); err != nil {
		var exitErr *cmdutil.ExitError
		if errors.As(err, &exitErr) {
			// Verdict outcome: the report already told the story.
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}
