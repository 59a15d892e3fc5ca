package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordat/valetest/internal/testutil"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "nofoo.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "nofoo", sc.Name)
	require.Len(t, sc.Config.Root, 1)
	assert.Equal(t, Setting{Key: "MinAlertLevel", Value: "suggestion"}, sc.Config.Root[0])
	require.Len(t, sc.Config.Sections, 1)
	assert.Equal(t, "*", sc.Config.Sections[0].Pattern)
	assert.Contains(t, sc.Styles, "Test/NoFoo.yml")
	assert.Equal(t, "This line has foo in it.\n", sc.Input)

	require.Len(t, sc.Assertions, 2)
	assert.Equal(t, assertTypeHasDiagnostic, sc.Assertions[0].Type)
	assert.Equal(t, "Test.NoFoo", sc.Assertions[0].Check)
	assert.Equal(t, assertTypeOnlyChecks, sc.Assertions[1].Type)
	assert.Equal(t, []string{"Test.NoFoo"}, sc.Assertions[1].Checks)
}

func TestLoadScenarioResolvesStylesDir(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "dirstyles.yaml"))
	require.NoError(t, err)

	// Relative styles_dir anchors to the scenario file, not the working
	// directory of the process.
	assert.Equal(t, filepath.Join("testdata", "scenarios", "styles"), sc.StylesDir)
	assert.Equal(t, "warning", sc.MinAlertLevel)
}

func writeScenarioFile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadScenarioRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			"unknown field",
			`name: x
description: y
descriptionn: typo
input: ""
assertions:
  - type: no_diagnostics
`,
		},
		{
			"empty name",
			`name: ""
description: y
config: {}
input: ""
assertions:
  - type: no_diagnostics
`,
		},
		{
			"missing assertions",
			`name: x
description: y
config: {}
input: ""
`,
		},
		{
			"empty assertions",
			`name: x
description: y
config: {}
input: ""
assertions: []
`,
		},
		{
			"bad assertion type",
			`name: x
description: y
config: {}
input: ""
assertions:
  - type: expect_diagnostic
`,
		},
		{
			"bad severity",
			`name: x
description: y
config: {}
input: ""
assertions:
  - type: has_diagnostic
    severity: critical
`,
		},
		{
			"negative line",
			`name: x
description: y
config: {}
input: ""
assertions:
  - type: has_diagnostic
    line: -1
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenarioFile(t, tt.doc)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRunScenarioPass(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[
		{"Check": "Test.NoFoo", "Severity": "warning", "Line": 1,
		 "Span": [1, 3], "Match": "foo", "Message": "Avoid foo."}
	]`))

	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "nofoo.yaml"))
	require.NoError(t, err)

	res, err := RunScenario(t.Context(), sc, RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "nofoo", res.Name)
	require.Len(t, res.Diagnostics, 1)

	// The declarative has_diagnostic assertion and the helper reach the
	// same verdict on the same set.
	AssertHasDiagnostic(t, res.Diagnostics, Filter{Check: "Test.NoFoo"})
}

func TestRunScenarioAssertionFailure(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[
		{"Check": "Test.NoBar", "Severity": "error", "Line": 2,
		 "Span": [1, 3], "Match": "bar", "Message": "Avoid bar."}
	]`))

	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "nofoo.yaml"))
	require.NoError(t, err)

	res, err := RunScenario(t.Context(), sc, RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Pass)
	// Both the has_diagnostic and the only_checks assertion fail.
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "check=Test.NoFoo")
	assert.Contains(t, res.Errors[1], "unexpected checks [Test.NoBar]")
}

func TestRunScenarioDirStyles(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[
		{"Check": "Test.NoFoo", "Severity": "warning", "Line": 1,
		 "Span": [1, 3], "Match": "foo", "Message": "Avoid foo."}
	]`))

	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "dirstyles.yaml"))
	require.NoError(t, err)

	res, err := RunScenario(t.Context(), sc, RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestRunScenarioHarnessFailure(t *testing.T) {
	testutil.InstallStubEngine(t, `echo "E100 broken" >&2
exit 2`)

	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "nofoo.yaml"))
	require.NoError(t, err)

	_, err = RunScenario(t.Context(), sc, RunOptions{})
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
}
