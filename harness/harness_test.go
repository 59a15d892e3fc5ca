package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordat/valetest/internal/testutil"
)

// Integration coverage against a real engine install. Skipped when no engine
// binary is on PATH, so the suite stays green on bare CI runners.

func nofooStyles() Tree {
	return Tree{
		"Test/NoFoo.yml": Text(`
			extends: existence
			message: "Avoid foo."
			level: warning
			tokens:
			  - foo
		`),
	}
}

func TestIntegrationRuleFires(t *testing.T) {
	testutil.RequireRealEngine(t)

	s := OpenT(t, testConfig(), nofooStyles())
	ds, err := s.Lint("This line has foo in it.\n")
	require.NoError(t, err)

	d := AssertHasDiagnostic(t, ds, Filter{Check: "Test.NoFoo"})
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, 1, d.Line)
	assert.Equal(t, "foo", d.Match)
	AssertOnlyChecks(t, ds, "Test.NoFoo")
}

func TestIntegrationCleanInput(t *testing.T) {
	testutil.RequireRealEngine(t)

	s := OpenT(t, testConfig(), nofooStyles())
	ds, err := s.Lint("Nothing objectionable here.\n")
	require.NoError(t, err)
	AssertNoDiagnostics(t, ds)

	// Empty input never trips the rule set either.
	ds, err = s.Lint("")
	require.NoError(t, err)
	AssertNoDiagnostics(t, ds)
}

func TestIntegrationSeverityFloor(t *testing.T) {
	testutil.RequireRealEngine(t)

	s := OpenT(t, testConfig(), nofooStyles(), WithMinAlertLevel(SeverityError))
	ds, err := s.Lint("This line has foo in it.\n")
	require.NoError(t, err)
	// The warning-level rule falls below the error floor.
	AssertNoDiagnostics(t, ds)
}

func TestIntegrationPerCallFloor(t *testing.T) {
	testutil.RequireRealEngine(t)

	s := OpenT(t, testConfig(), nofooStyles())

	ds, err := s.LintWith(t.Context(), "This line has foo in it.\n", LintOpts{
		MinAlertLevel: SeverityError,
	})
	require.NoError(t, err)
	AssertNoDiagnostics(t, ds)

	// The floor applies per call, not permanently.
	ds, err = s.Lint("This line has foo in it.\n")
	require.NoError(t, err)
	_ = AssertHasDiagnostic(t, ds, Filter{Check: "Test.NoFoo"})
}

func TestIntegrationDirAndTreeEquivalent(t *testing.T) {
	testutil.RequireRealEngine(t)

	dir := t.TempDir()
	require.NoError(t, nofooStyles().materialize(dir))

	fromTree := OpenT(t, testConfig(), nofooStyles())
	fromDir := OpenT(t, testConfig(), Dir(dir))

	input := "This line has foo in it.\n"
	a, err := fromTree.Lint(input)
	require.NoError(t, err)
	b, err := fromDir.Lint(input)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
