package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/concordat/valetest/harness"
	"github.com/concordat/valetest/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter         string
	Parallel       int
	Record         string
	Engine         string
	TimeoutSeconds int
}

// ScenarioOutcome holds the result of a single scenario execution.
type ScenarioOutcome struct {
	Name        string              `json:"name"`
	File        string              `json:"file"`
	Pass        bool                `json:"pass"`
	Diagnostics harness.Diagnostics `json:"diagnostics"`
	Errors      []string            `json:"errors,omitempty"`
}

// RunSummary holds the overall result of a run invocation.
type RunSummary struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run lint scenarios against a real engine",
		Long: `Run every scenario file in a directory, each inside its own sandbox.

Scenario files are YAML documents describing a configuration, a styles
source, an input text, and assertions over the resulting diagnostics.
Scenarios run independently; with --parallel each gets its own sandbox,
so concurrent execution is safe by construction.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, engine missing, etc.)

Examples:
  valetest run ./scenarios
  valetest run ./scenarios --filter "nofoo-*"
  valetest run ./scenarios --parallel 4 --format json
  valetest run ./scenarios --record runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run concurrently")
	cmd.Flags().StringVar(&opts.Record, "record", "", "record results to a SQLite database at this path")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine executable (default vale, or .valetest.toml)")
	cmd.Flags().IntVar(&opts.TimeoutSeconds, "timeout", 0, "per-invocation timeout in seconds")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *RunOptions, scenariosDir string) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	fileCfg, err := loadFileConfig(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "load runner config", err)
	}
	runOpts := resolveRunOptions(opts, fileCfg)

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "find scenarios", err)
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), RunSummary{Scenarios: []ScenarioOutcome{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var rec *store.Store
	if opts.Record != "" {
		if rec, err = store.Open(opts.Record); err != nil {
			return WrapExitError(ExitCommandError, "open record store", err)
		}
		defer rec.Close()
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}

	outcomes := make([]ScenarioOutcome, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parallel)
	for i, file := range files {
		g.Go(func() error {
			outcome, err := runOne(ctx, file, runOpts)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	summary := RunSummary{Scenarios: outcomes, Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if rec != nil {
		engine := runOpts.Engine
		if engine == "" {
			engine = "vale"
		}
		for _, o := range outcomes {
			if _, err := rec.WriteRun(cmd.Context(), o.Name, engine, o.Pass, o.Diagnostics); err != nil {
				return WrapExitError(ExitCommandError, "record run", err)
			}
		}
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printSummary(cmd, opts, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", summary.Failed, summary.Total))
	}
	return nil
}

// resolveRunOptions layers flags over .valetest.toml over built-in defaults.
func resolveRunOptions(opts *RunOptions, fileCfg FileConfig) harness.RunOptions {
	runOpts := harness.RunOptions{Engine: fileCfg.Engine}
	if fileCfg.TimeoutSeconds > 0 {
		runOpts.Timeout = time.Duration(fileCfg.TimeoutSeconds) * time.Second
	}
	if opts.Engine != "" {
		runOpts.Engine = opts.Engine
	}
	if opts.TimeoutSeconds > 0 {
		runOpts.Timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	if opts.Verbose {
		runOpts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return runOpts
}

func runOne(ctx context.Context, file string, runOpts harness.RunOptions) (ScenarioOutcome, error) {
	sc, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioOutcome{}, err
	}
	result, err := harness.RunScenario(ctx, sc, runOpts)
	if err != nil {
		return ScenarioOutcome{}, err
	}
	return ScenarioOutcome{
		Name:        result.Name,
		File:        file,
		Pass:        result.Pass,
		Diagnostics: result.Diagnostics,
		Errors:      result.Errors,
	}, nil
}

// findScenarioFiles lists *.yaml and *.yml files, optionally filtered by a
// glob on the base name, sorted for deterministic output order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, name)
			if err != nil {
				return nil, fmt.Errorf("bad filter pattern %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func printSummary(cmd *cobra.Command, opts *RunOptions, summary RunSummary) {
	out := cmd.OutOrStdout()
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, o := range summary.Scenarios {
		if o.Pass {
			fmt.Fprintf(out, "%s %s\n", pass("PASS"), o.Name)
		} else {
			fmt.Fprintf(out, "%s %s\n", fail("FAIL"), o.Name)
			for _, msg := range o.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
		}
		if opts.Verbose {
			for _, d := range o.Diagnostics {
				fmt.Fprintf(out, "    %s [%s] line %d: %s\n", d.Check, d.Severity, d.Line, d.Message)
			}
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
