package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Scenario is a declarative lint test case: a configuration, a styles
// source, one input text, and assertions over the resulting diagnostics.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the settings mapping for the sandbox.
	Config ScenarioConfig `yaml:"config"`

	// Styles maps relative style paths to textual rule content.
	Styles map[string]string `yaml:"styles,omitempty"`

	// StylesDir references an existing styles directory instead of an
	// in-memory tree. Relative paths are resolved against the scenario file.
	StylesDir string `yaml:"styles_dir,omitempty"`

	// Input is the text handed to the engine.
	Input string `yaml:"input"`

	// Ext is the scratch file extension (default ".md").
	Ext string `yaml:"ext,omitempty"`

	// MinAlertLevel is the severity floor for every invocation.
	MinAlertLevel string `yaml:"min_alert_level,omitempty"`

	// Assertions validate the diagnostic set.
	Assertions []ScenarioAssertion `yaml:"assertions"`
}

// ScenarioConfig mirrors Config with YAML field tags. Settings stay in
// slices so the file's order survives into the serialized configuration.
type ScenarioConfig struct {
	Root     []Setting         `yaml:"root,omitempty"`
	Sections []ScenarioSection `yaml:"sections,omitempty"`
}

// ScenarioSection is a scoped configuration block in a scenario file.
type ScenarioSection struct {
	Pattern  string    `yaml:"pattern"`
	Settings []Setting `yaml:"settings"`
}

// ScenarioAssertion is one declarative predicate over the diagnostic set.
type ScenarioAssertion struct {
	// Type selects the predicate:
	//   - "no_diagnostics": the set must be empty
	//   - "has_diagnostic": at least one diagnostic matches the filter fields
	//   - "only_checks": every check identifier is within Checks
	//   - "diagnostic_count": exactly Count diagnostics match the filter fields
	Type string `yaml:"type"`

	Check           string   `yaml:"check,omitempty"`
	Severity        string   `yaml:"severity,omitempty"`
	Line            int      `yaml:"line,omitempty"`
	MatchContains   string   `yaml:"match_contains,omitempty"`
	MessageContains string   `yaml:"message_contains,omitempty"`
	Checks          []string `yaml:"checks,omitempty"`
	Count           int      `yaml:"count,omitempty"`
}

// Assertion type discriminators for ScenarioAssertion.Type.
const (
	assertTypeNoDiagnostics   = "no_diagnostics"
	assertTypeHasDiagnostic   = "has_diagnostic"
	assertTypeOnlyChecks      = "only_checks"
	assertTypeDiagnosticCount = "diagnostic_count"
)

// scenarioSchema is the CUE contract every scenario file must satisfy.
// Closed structs catch typos beyond what strict YAML decoding reports, and
// the enum constraints reject invalid severities and assertion types with a
// field-level message.
const scenarioSchema = `
#Setting: close({
	key:   string & !=""
	value: string
})

#Level: "suggestion" | "warning" | "error"

#Assertion: close({
	type:             "no_diagnostics" | "has_diagnostic" | "only_checks" | "diagnostic_count"
	check?:            string & !=""
	severity?:         #Level
	line?:             int & >=1
	match_contains?:   string & !=""
	message_contains?: string & !=""
	checks?:           [...string & !=""]
	count?:            int & >=0
})

#Scenario: close({
	name:        string & !=""
	description: string & !=""
	config: close({
		root?: [...#Setting]
		sections?: [...close({
			pattern:  string & !=""
			settings: [...#Setting]
		})]
	})
	styles?: {[string]: string}
	styles_dir?:      string & !=""
	input:            string
	ext?:             string & !=""
	min_alert_level?: #Level
	assertions:       [#Assertion, ...#Assertion]
})
`

// LoadScenario reads, strictly decodes, and validates a scenario YAML file.
// A relative styles_dir is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(data); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	if sc.StylesDir != "" && !filepath.IsAbs(sc.StylesDir) {
		sc.StylesDir = filepath.Join(filepath.Dir(path), sc.StylesDir)
	}
	return &sc, nil
}

// validateScenario checks the raw document against the CUE schema.
func validateScenario(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(scenarioSchema).LookupPath(cue.ParsePath("#Scenario"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	if err := schema.Unify(cctx.Encode(raw)).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// Result is the outcome of one scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Diagnostics is the engine's report for the scenario input.
	Diagnostics Diagnostics `json:"diagnostics"`

	// Errors holds the failed assertions' messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// RunOptions configure scenario execution.
type RunOptions struct {
	// Engine overrides the engine executable (default "vale").
	Engine string

	// Timeout bounds each invocation (default 30s).
	Timeout time.Duration

	// Logger receives sandbox lifecycle events.
	Logger *slog.Logger
}

// sandboxOptions converts scenario fields and run options into sandbox
// options.
func (s *Scenario) sandboxOptions(opts RunOptions) ([]Option, error) {
	var sbOpts []Option
	if s.Ext != "" {
		sbOpts = append(sbOpts, WithExt(s.Ext))
	}
	if s.MinAlertLevel != "" {
		level, err := ParseSeverity(s.MinAlertLevel)
		if err != nil {
			return nil, err
		}
		sbOpts = append(sbOpts, WithMinAlertLevel(level))
	}
	if opts.Engine != "" {
		sbOpts = append(sbOpts, WithEngine(opts.Engine))
	}
	if opts.Timeout > 0 {
		sbOpts = append(sbOpts, WithTimeout(opts.Timeout))
	}
	if opts.Logger != nil {
		sbOpts = append(sbOpts, WithLogger(opts.Logger))
	}
	return sbOpts, nil
}

// RunScenario opens a fresh sandbox for the scenario, lints its input, and
// evaluates the assertions. Harness failures (setup, execution, parse)
// return an error; assertion failures are reported in the Result.
func RunScenario(ctx context.Context, s *Scenario, opts RunOptions) (*Result, error) {
	cfg := Config{Root: s.Config.Root}
	for _, sec := range s.Config.Sections {
		cfg.Sections = append(cfg.Sections, ScopedSection{
			Pattern:  sec.Pattern,
			Settings: sec.Settings,
		})
	}

	var styles Styles
	switch {
	case s.StylesDir != "":
		styles = Dir(s.StylesDir)
	case len(s.Styles) > 0:
		tree := make(Tree, len(s.Styles))
		for p, content := range s.Styles {
			tree[p] = Text(content)
		}
		styles = tree
	}

	sbOpts, err := s.sandboxOptions(opts)
	if err != nil {
		return nil, err
	}
	sb, err := Open(cfg, styles, sbOpts...)
	if err != nil {
		return nil, err
	}
	defer sb.Close()

	diags, err := sb.LintContext(ctx, s.Input)
	if err != nil {
		return nil, err
	}

	result := &Result{Name: s.Name, Pass: true, Diagnostics: diags}
	evaluateAssertions(result, s.Assertions)
	return result, nil
}

// evaluateAssertions applies each scenario assertion, collecting failures.
func evaluateAssertions(res *Result, assertions []ScenarioAssertion) {
	for i, a := range assertions {
		filter := Filter{
			Check:           a.Check,
			Severity:        Severity(a.Severity),
			Line:            a.Line,
			MatchContains:   a.MatchContains,
			MessageContains: a.MessageContains,
		}

		var err error
		switch a.Type {
		case assertTypeNoDiagnostics:
			err = NoDiagnostics(res.Diagnostics)
		case assertTypeHasDiagnostic:
			_, err = HasDiagnostic(res.Diagnostics, filter)
		case assertTypeOnlyChecks:
			err = OnlyChecks(res.Diagnostics, a.Checks...)
		case assertTypeDiagnosticCount:
			err = CountDiagnostics(res.Diagnostics, filter, a.Count)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			res.Pass = false
		}
	}
}
