package harness

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// sandboxState tracks the sandbox lifecycle.
type sandboxState int

const (
	stateUnopened sandboxState = iota
	stateActive
	stateClosed
)

func (s sandboxState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultEngine  = "vale"
	defaultExt     = ".md"
	defaultTimeout = 30 * time.Second
	stylesDirName  = "styles"
	configFileName = ".vale.ini"
)

// Sandbox is an ephemeral, self-contained engine environment: a generated
// configuration file, a materialized rules tree, and a scratch area for
// per-call inputs, all under one exclusively-owned temporary directory.
//
// A sandbox moves through three states: unopened, active, closed. Lint is
// only valid while active; Close is idempotent and terminal.
//
// One sandbox serves one caller. Lint must not be invoked concurrently on
// the same instance (the scratch input file and lifecycle state are not
// synchronized). Concurrent *instances* are fine: every sandbox gets a
// collision-free root, so parallel test workers can each hold one.
type Sandbox struct {
	config  Config
	styles  Styles
	engine  string
	ext     string
	minimum Severity // "" means no floor
	timeout time.Duration
	logger  *slog.Logger

	state      sandboxState
	root       string
	configPath string
	enginePath string
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithEngine overrides the engine executable name or path (default "vale").
func WithEngine(bin string) Option {
	return func(s *Sandbox) { s.engine = bin }
}

// WithExt sets the extension given to scratch input files (default ".md").
// The extension drives the engine's format detection and scope-pattern
// matching, so it should match how the text would be linted in production.
func WithExt(ext string) Option {
	return func(s *Sandbox) { s.ext = ext }
}

// WithMinAlertLevel sets an inclusive severity floor threaded into every
// invocation. Diagnostics strictly below the floor are suppressed by the
// engine itself, matching its own minimum-alert-level semantics.
func WithMinAlertLevel(level Severity) Option {
	return func(s *Sandbox) { s.minimum = level }
}

// WithTimeout bounds the wall-clock budget of each invocation (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.timeout = d }
}

// WithLogger sets the logger used for lifecycle events and best-effort
// cleanup warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) { s.logger = logger }
}

// New builds an unopened sandbox. Nothing touches the filesystem until Open.
func New(cfg Config, styles Styles, opts ...Option) *Sandbox {
	s := &Sandbox{
		config:  cfg,
		styles:  styles,
		engine:  defaultEngine,
		ext:     defaultExt,
		timeout: defaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds and opens a sandbox in one call.
func Open(cfg Config, styles Styles, opts ...Option) (*Sandbox, error) {
	s := New(cfg, styles, opts...)
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenT builds and opens a sandbox for a test, failing the test on setup
// errors and registering Close with t.Cleanup so the sandbox directory is
// released on every exit path, including mid-lint failures.
func OpenT(t testing.TB, cfg Config, styles Styles, opts ...Option) *Sandbox {
	t.Helper()
	s, err := Open(cfg, styles, opts...)
	if err != nil {
		t.Fatalf("open sandbox: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Open allocates the sandbox directory, materializes the rules tree, writes
// the configuration file, and transitions to active.
//
// The directory name embeds a fresh UUID, so concurrent sandboxes never
// collide. If any setup step fails, the partial tree is removed before
// returning and the sandbox stays unopened.
func (s *Sandbox) Open() (err error) {
	if s.state != stateUnopened {
		return newLifecycleError("Open", s.state)
	}
	if s.minimum != "" {
		if _, err := ParseSeverity(string(s.minimum)); err != nil {
			return err
		}
	}

	enginePath, err := exec.LookPath(s.engine)
	if err != nil {
		return newExecutionError(ReasonMissingBinary,
			"engine executable "+s.engine+" not found on PATH", err)
	}

	root := filepath.Join(os.TempDir(), "valetest-"+uuid.NewString())
	if err := os.Mkdir(root, 0o700); err != nil {
		return newExecutionError(ReasonSetup, "create sandbox directory", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(root)
		}
	}()

	stylesDir := filepath.Join(root, stylesDirName)
	if err := os.Mkdir(stylesDir, 0o755); err != nil {
		return newStylesError("create rules tree root: %v", err)
	}
	if s.styles != nil {
		if err := s.styles.materialize(stylesDir); err != nil {
			return err
		}
	}

	iniText, err := s.config.render(stylesDirName)
	if err != nil {
		return err
	}
	configPath := filepath.Join(root, configFileName)
	if err := os.WriteFile(configPath, []byte(iniText), 0o644); err != nil {
		return newConfigError("write configuration file: %v", err)
	}

	s.root = root
	s.configPath = configPath
	s.enginePath = enginePath
	s.state = stateActive
	s.logger.Debug("sandbox opened", "root", root, "engine", enginePath)
	return nil
}

// Root returns the sandbox directory. Empty unless the sandbox is active.
func (s *Sandbox) Root() string {
	if s.state != stateActive {
		return ""
	}
	return s.root
}

// LintOpts are per-call overrides for a single lint invocation.
type LintOpts struct {
	// Ext overrides the scratch file extension for this call.
	Ext string

	// MinAlertLevel overrides the sandbox's severity floor for this call.
	MinAlertLevel Severity
}

// Lint runs the engine against text and returns its findings in report
// order. An empty result is an empty set, not an error.
func (s *Sandbox) Lint(text string) (Diagnostics, error) {
	return s.LintContext(context.Background(), text)
}

// LintContext is Lint with caller-controlled cancellation.
func (s *Sandbox) LintContext(ctx context.Context, text string) (Diagnostics, error) {
	return s.LintWith(ctx, text, LintOpts{})
}

// LintWith lints text with per-call overrides applied.
func (s *Sandbox) LintWith(ctx context.Context, text string, opts LintOpts) (Diagnostics, error) {
	if s.state != stateActive {
		return nil, newLifecycleError("Lint", s.state)
	}

	ext := s.ext
	if opts.Ext != "" {
		ext = opts.Ext
	}
	level := s.minimum
	if opts.MinAlertLevel != "" {
		var err error
		if level, err = ParseSeverity(string(opts.MinAlertLevel)); err != nil {
			return nil, err
		}
	}

	// The scratch file keeps its extension so scope-pattern matching behaves
	// exactly as it would against a real document. It is removed with the
	// sandbox on Close, not per call.
	input := filepath.Join(s.root, "input"+ext)
	if err := os.WriteFile(input, []byte(text), 0o600); err != nil {
		return nil, newExecutionError(ReasonSetup, "write scratch input file", err)
	}

	raw, err := s.invoke(ctx, input, level)
	if err != nil {
		return nil, err
	}
	byPath, err := parseOutput(raw)
	if err != nil {
		return nil, err
	}
	return alertsForInput(byPath, input), nil
}

// LintPath lints an existing file or directory tree and groups the findings
// by the path the engine reports them under.
func (s *Sandbox) LintPath(ctx context.Context, path string) (map[string]Diagnostics, error) {
	if s.state != stateActive {
		return nil, newLifecycleError("LintPath", s.state)
	}
	raw, err := s.invoke(ctx, path, s.minimum)
	if err != nil {
		return nil, err
	}
	return parseOutput(raw)
}

// Close recursively removes the sandbox directory and transitions to closed.
// Close is idempotent. Removal failure is logged, never returned: teardown
// must not be the cause of a false test failure.
func (s *Sandbox) Close() error {
	if s.state == stateClosed {
		return nil
	}
	if s.state == stateActive {
		if err := os.RemoveAll(s.root); err != nil {
			s.logger.Warn("sandbox removal failed", "root", s.root, "error", err)
		}
	}
	s.state = stateClosed
	return nil
}

// alertsForInput picks the diagnostic set belonging to the scratch input.
// The engine keys its report by path; with a single target any sole entry
// is the input's.
func alertsForInput(byPath map[string]Diagnostics, input string) Diagnostics {
	if ds, ok := byPath[input]; ok {
		return ds
	}
	for reported, ds := range byPath {
		if filepath.Base(reported) == filepath.Base(input) || len(byPath) == 1 {
			return ds
		}
	}
	return Diagnostics{}
}
