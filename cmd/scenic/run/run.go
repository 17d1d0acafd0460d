// Package runcmd implements "scenic run": acquire one session, execute
// scenarios sequentially against it, and emit the report.
package runcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"scenic/cmd/scenic/cmdutil"
	"scenic/cmd/scenic/ui"
	"scenic/config"
	"scenic/internal/browser"
	"scenic/internal/preflight"
	"scenic/internal/probe"
	"scenic/internal/report"
	"scenic/internal/runner"
	"scenic/internal/scenario"
	"scenic/internal/store"

	"github.com/spf13/cobra"
)

// Cmd returns the "scenic run" command.
func Cmd() *cobra.Command {
	var (
		configPath      string
		only            string
		headless        string
		baseURL         string
		apiURL          string
		artifactsDir    string
		scenarioTimeout time.Duration
		skipPreflight   bool
		skipHistory     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute scenarios against the target deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, baseURL, apiURL, artifactsDir, headless, scenarioTimeout)
			if err != nil {
				return err
			}

			vars := map[string]string{
				"username": cfg.Credentials.Username,
				"password": cfg.Credentials.Password,
				"base-url": cfg.BaseURL,
			}
			scenarios, err := loadScenarios(cfg.ScenarioDir, only, vars)
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenarios found in %s", cfg.ScenarioDir)
			}

			ctx := cmd.Context()
			if !skipPreflight {
				runPreflight(ctx, cfg)
			}

			rep, err := execute(ctx, cfg, scenarios)
			if err != nil {
				return err
			}

			emit(ctx, cfg, rep, skipHistory)
			return cmdutil.Exit(rep.ExitCode())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: "+config.Path()+")")
	cmd.Flags().StringVar(&only, "scenario", "", "Run only the named scenario")
	cmd.Flags().StringVar(&headless, "headless", "", "Run the browser headless (true/false)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Frontend origin under test")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Backend API origin")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Directory for screenshots and reports")
	cmd.Flags().DurationVar(&scenarioTimeout, "scenario-timeout", 0, "Per-scenario deadline")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip reachability and clock checks")
	cmd.Flags().BoolVar(&skipHistory, "skip-history", false, "Do not record the run in the history database")

	return cmd
}

func loadConfig(path, baseURL, apiURL, artifactsDir, headless string, scenarioTimeout time.Duration) (*config.Config, error) {
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// Flags override config and environment.
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if artifactsDir != "" {
		cfg.ArtifactsDir = artifactsDir
	}
	if headless != "" {
		v, err := strconv.ParseBool(headless)
		if err != nil {
			return nil, fmt.Errorf("parse --headless: %w", err)
		}
		cfg.Browser.Headless = v
	}
	if scenarioTimeout > 0 {
		cfg.ScenarioTimeout = config.Duration(scenarioTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadScenarios(dir, only string, vars map[string]string) ([]*scenario.Scenario, error) {
	scenarios, err := scenario.LoadDir(dir, vars)
	if err != nil {
		return nil, err
	}
	if only == "" {
		return scenarios, nil
	}
	for _, sc := range scenarios {
		if sc.Name == only {
			return []*scenario.Scenario{sc}, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found in %s", only, dir)
}

func runPreflight(ctx context.Context, cfg *config.Config) {
	for _, f := range preflight.NewChecker(cfg.BaseURL, cfg.APIURL).Run(ctx) {
		if f.OK {
			slog.Debug("preflight", "check", f.Name, "detail", f.Detail)
			continue
		}
		fmt.Fprintln(os.Stderr, ui.WarnMsg("preflight %s: %s", f.Name, f.Detail))
	}
}

func execute(ctx context.Context, cfg *config.Config, scenarios []*scenario.Scenario) (*runner.Report, error) {
	opts := browser.Options{
		Headless:  cfg.Browser.Headless,
		RemoteURL: cfg.Browser.RemoteURL,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
	}

	if cfg.Browser.Docker.Enabled && opts.RemoteURL == "" {
		container, err := browser.StartContainer(ctx, cfg.Browser.Docker.Image, cfg.Browser.Docker.HostPort)
		if err != nil {
			return nil, fmt.Errorf("start browser container: %w", err)
		}
		defer func() {
			if err := container.Stop(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("stop browser container", "err", err)
			}
		}()
		opts.RemoteURL = container.DevToolsURL()
	}

	b, err := browser.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	loginPage, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}
	session, err := browser.AcquireSession(ctx, loginPage, browser.LoginSpec{
		Mode:             cfg.Login.Mode,
		BaseURL:          cfg.BaseURL,
		APIURL:           cfg.APIURL,
		Route:            cfg.Login.Route,
		TokenPath:        cfg.Login.TokenPath,
		UsernameSelector: cfg.Login.UsernameSelector,
		PasswordSelector: cfg.Login.PasswordSelector,
		SubmitSelector:   cfg.Login.SubmitSelector,
		SuccessSelector:  cfg.Login.SuccessSelector,
		Username:         cfg.Credentials.Username,
		Password:         cfg.Credentials.Password,
		Timeout:          cfg.NavigateTimeout.Std(),
	})
	loginPage.Close()
	if err != nil {
		return nil, err
	}

	prober := probe.New(cfg.APIURL, probe.WithToken(session.Token), probe.WithCookies(session.Cookies))

	newDriver := func() (runner.Driver, func(), error) {
		page, err := b.NewPage()
		if err != nil {
			return nil, nil, err
		}
		driver := browser.NewPageDriver(page, cfg.BaseURL, cfg.NavigateTimeout.Std())
		return driver, page.Close, nil
	}

	output := ui.NewTelemetryOutput(os.Stderr)
	defer output.Close()

	r := runner.New(newDriver, prober,
		runner.WithTracer(output.Tracer("scenic/runner")),
		runner.WithScenarioTimeout(cfg.ScenarioTimeout.Std()),
		runner.WithArtifactsDir(cfg.ArtifactsDir),
	)
	return r.Run(ctx, scenarios), nil
}

// emit writes the console summary, report files, and history row.
// Emission problems are warnings: the verdicts already exist and the
// exit code must reflect them, not a disk hiccup.
func emit(ctx context.Context, cfg *config.Config, rep *runner.Report, skipHistory bool) {
	rows := make([][]string, 0, len(rep.Verdicts))
	for _, v := range rep.Verdicts {
		rows = append(rows, []string{
			v.ScenarioName,
			ui.Status(string(v.Status)),
			fmt.Sprintf("%d ms", v.DurationMs),
			v.Detail,
		})
	}
	fmt.Println(ui.Table([]string{"SCENARIO", "STATUS", "DURATION", "DETAIL"}, rows))
	fmt.Println(ui.KeyValues("  ",
		ui.KV("Run", rep.ID),
		ui.KV("Total", strconv.Itoa(rep.Totals.Total)),
		ui.KV("Passed", strconv.Itoa(rep.Totals.Passed)),
		ui.KV("Failed", strconv.Itoa(rep.Totals.Failed)),
		ui.KV("Errors", strconv.Itoa(rep.Totals.Errors)),
	))

	if path, err := report.WriteJSON(cfg.ArtifactsDir, rep); err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("write json report: %v", err))
	} else {
		fmt.Println(ui.InfoMsg("report: %s", path))
	}
	if _, err := report.WriteHTML(cfg.ArtifactsDir, rep); err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("write html report: %v", err))
	}

	if skipHistory {
		return
	}
	db, err := store.Open(filepath.Join(cfg.ArtifactsDir, "scenic.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("open history store: %v", err))
		return
	}
	defer db.Close()
	if err := db.SaveReport(ctx, rep); err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("record run history: %v", err))
	}
}
