// Package harness exercises the Vale prose-linting engine from test code
// inside an ephemeral, hermetic sandbox.
//
// A sandbox owns a temporary directory holding a generated .vale.ini, a
// materialized styles tree, and a scratch input file. Every Lint call
// shells out to a real vale binary; nothing here emulates or mocks the
// engine, so tests observe exactly the behavior production linting would.
// The host machine's ambient linter configuration is never read (the engine
// is invoked with --no-global and an explicit --config).
//
// # Usage
//
// Build a sandbox from a settings mapping and an in-memory styles tree,
// lint text, and assert over the findings:
//
//	cfg := harness.Config{
//		Root: harness.Settings{{Key: "MinAlertLevel", Value: "suggestion"}},
//		Sections: []harness.ScopedSection{{
//			Pattern:  "*.md",
//			Settings: harness.Settings{{Key: "BasedOnStyles", Value: "Test"}},
//		}},
//	}
//	styles := harness.Tree{
//		"Test/NoFoo.yml": harness.Text(`
//			extends: existence
//			message: "Avoid 'foo'."
//			level: warning
//			tokens:
//			  - foo
//		`),
//	}
//
//	sb := harness.OpenT(t, cfg, styles)
//	diags, err := sb.Lint("foo shows up here")
//	if err != nil {
//		t.Fatal(err)
//	}
//	harness.AssertHasDiagnostic(t, diags, harness.Filter{Check: "Test.NoFoo"})
//
// # Lifecycle
//
// A sandbox is unopened until Open, active afterwards, and closed once
// Close runs. Close is idempotent and removes the whole directory; any
// operation on an unopened or closed sandbox fails with ErrCodeLifecycle.
// OpenT registers Close with t.Cleanup so the directory never leaks, even
// when a lint call fails mid-test.
//
// # Scenarios
//
// Lint test cases can also live in YAML scenario files (validated against a
// CUE schema) and run via RunScenario or, with golden-file comparison of
// the resulting diagnostics, RunWithGolden. See LoadScenario for the file
// format.
//
// # Concurrency
//
// Sandboxes are single-caller: do not share one instance between
// goroutines. Distinct instances are fully independent; parallel test
// workers may each hold an active sandbox simultaneously.
package harness
