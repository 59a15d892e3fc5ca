package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/concordat/valetest/harness"
)

// LintOptions holds flags for the lint command.
type LintOptions struct {
	*RootOptions
	StylesDir      string
	BasedOn        []string
	Pattern        string
	MinAlertLevel  string
	Engine         string
	TimeoutSeconds int
}

// NewLintCommand creates the lint command: a one-shot sandboxed lint of a
// single document, useful for trying a rule set outside a test run.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lint <file|->",
		Short: "Lint one document inside an ephemeral sandbox",
		Long: `Lint a single document (or stdin with "-") against a styles directory.

A throwaway sandbox is built around the given styles tree, the document is
linted by a real engine invocation, and the diagnostics are printed.

Exit codes:
  0 - No diagnostics
  1 - Diagnostics reported
  2 - Command error (engine missing, bad styles path, etc.)

Examples:
  valetest lint --styles ./styles --based-on MyStyle doc.md
  cat doc.md | valetest lint --styles ./styles --based-on MyStyle -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lintDocument(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.StylesDir, "styles", "", "styles directory to copy into the sandbox (required)")
	cmd.Flags().StringSliceVar(&opts.BasedOn, "based-on", nil, "style names to enable (required)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "*", "glob pattern the style scope applies to")
	cmd.Flags().StringVar(&opts.MinAlertLevel, "min-alert-level", "", "severity floor (suggestion|warning|error)")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine executable (default vale)")
	cmd.Flags().IntVar(&opts.TimeoutSeconds, "timeout", 0, "invocation timeout in seconds")
	cobra.CheckErr(cmd.MarkFlagRequired("styles"))
	cobra.CheckErr(cmd.MarkFlagRequired("based-on"))

	return cmd
}

func lintDocument(cmd *cobra.Command, opts *LintOptions, target string) error {
	text, ext, err := readLintInput(cmd, target)
	if err != nil {
		return WrapExitError(ExitCommandError, "read input", err)
	}

	cfg := harness.Config{
		Root: harness.Settings{{Key: "MinAlertLevel", Value: "suggestion"}},
		Sections: []harness.ScopedSection{{
			Pattern: opts.Pattern,
			Settings: harness.Settings{
				{Key: "BasedOnStyles", Value: strings.Join(opts.BasedOn, ", ")},
			},
		}},
	}

	sbOpts := []harness.Option{harness.WithExt(ext)}
	if opts.MinAlertLevel != "" {
		level, err := harness.ParseSeverity(opts.MinAlertLevel)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid min alert level", err)
		}
		sbOpts = append(sbOpts, harness.WithMinAlertLevel(level))
	}
	if opts.Engine != "" {
		sbOpts = append(sbOpts, harness.WithEngine(opts.Engine))
	}
	if opts.TimeoutSeconds > 0 {
		sbOpts = append(sbOpts, harness.WithTimeout(time.Duration(opts.TimeoutSeconds)*time.Second))
	}

	sb, err := harness.Open(cfg, harness.Dir(opts.StylesDir), sbOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "open sandbox", err)
	}
	defer sb.Close()

	diags, err := sb.LintContext(cmd.Context(), text)
	if err != nil {
		return WrapExitError(ExitCommandError, "lint failed", err)
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), diags); err != nil {
			return err
		}
	} else {
		printDiagnostics(cmd.OutOrStdout(), diags)
	}

	if len(diags) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d diagnostic(s)", len(diags)))
	}
	return nil
}

// readLintInput loads the document text and picks a scratch extension.
// Stdin defaults to ".md".
func readLintInput(cmd *cobra.Command, target string) (text, ext string, err error) {
	if target == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", err
		}
		return string(data), ".md", nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", "", err
	}
	ext = filepath.Ext(target)
	if ext == "" {
		ext = ".md"
	}
	return string(data), ext, nil
}

var severityColor = map[harness.Severity]*color.Color{
	harness.SeveritySuggestion: color.New(color.FgCyan),
	harness.SeverityWarning:    color.New(color.FgYellow),
	harness.SeverityError:      color.New(color.FgRed),
}

func printDiagnostics(out io.Writer, diags harness.Diagnostics) {
	if len(diags) == 0 {
		fmt.Fprintln(out, "No diagnostics.")
		return
	}
	for _, d := range diags {
		level := string(d.Severity)
		if c, ok := severityColor[d.Severity]; ok {
			level = c.Sprint(level)
		}
		fmt.Fprintf(out, "%d:%d  %s  %s  %s\n", d.Line, d.Column(), level, d.Check, d.Message)
	}
}
