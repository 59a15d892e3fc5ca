package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordat/valetest/internal/testutil"
)

func testConfig() Config {
	return Config{
		Root: Settings{{Key: "MinAlertLevel", Value: "suggestion"}},
		Sections: []ScopedSection{
			{Pattern: "*", Settings: Settings{{Key: "BasedOnStyles", Value: "Test"}}},
		},
	}
}

func TestSandboxLifecycle(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	s := New(testConfig(), nil)

	// Unopened: lint refused before any setup has happened.
	_, err := s.Lint("hello\n")
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))
	assert.Contains(t, err.Error(), "state=unopened")
	assert.Empty(t, s.Root())

	require.NoError(t, s.Open())
	root := s.Root()
	require.NotEmpty(t, root)
	require.DirExists(t, root)

	// Active: a second Open is refused, the first stays usable.
	err = s.Open()
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))
	assert.Contains(t, err.Error(), "state=active")

	ds, err := s.Lint("hello\n")
	require.NoError(t, err)
	assert.Empty(t, ds)

	require.NoError(t, s.Close())
	assert.NoDirExists(t, root)
	assert.Empty(t, s.Root())

	// Closed: terminal and idempotent.
	_, err = s.Lint("hello\n")
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))
	assert.Contains(t, err.Error(), "state=closed")

	require.NoError(t, s.Close())
	err = s.Open()
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))
}

func TestOpenWritesConfigAndStyles(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	styles := Tree{
		"Test/NoFoo.yml": Text(`
			extends: existence
			message: "Avoid foo."
			level: warning
			tokens:
			  - foo
		`),
	}
	s := OpenT(t, testConfig(), styles)

	ini, err := os.ReadFile(filepath.Join(s.Root(), ".vale.ini"))
	require.NoError(t, err)
	assert.Contains(t, string(ini), "StylesPath = styles\n")
	assert.Contains(t, string(ini), "MinAlertLevel = suggestion\n")
	assert.Contains(t, string(ini), "[*]\nBasedOnStyles = Test\n")

	rule, err := os.ReadFile(filepath.Join(s.Root(), "styles", "Test", "NoFoo.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(rule), "extends: existence\n")
}

func TestOpenUniqueRoots(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	a := OpenT(t, testConfig(), nil)
	b := OpenT(t, testConfig(), nil)
	assert.NotEqual(t, a.Root(), b.Root())
}

func TestOpenMissingEngine(t *testing.T) {
	s := New(testConfig(), nil, WithEngine("valetest-no-such-engine"))
	err := s.Open()
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))

	var he *Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, ReasonMissingBinary, he.Reason)
}

func TestOpenRootCreationFailure(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	// A TMPDIR that is a regular file makes the root Mkdir fail before any
	// engine process exists; the error must not read as an engine exit.
	notADir := filepath.Join(t.TempDir(), "tmpdir")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))
	t.Setenv("TMPDIR", notADir)

	s := New(testConfig(), nil)
	err := s.Open()
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))

	var he *Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, ReasonSetup, he.Reason)
}

func TestOpenInvalidMinAlertLevel(t *testing.T) {
	s := New(testConfig(), nil, WithMinAlertLevel("critical"))
	err := s.Open()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "critical")
}

func TestOpenFailureLeavesSandboxUnopened(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	s := New(Config{Root: Settings{{Key: "", Value: "x"}}}, nil)
	err := s.Open()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Empty(t, s.root)

	// Setup failure keeps the sandbox unopened, so a corrected
	// configuration can be opened on the same instance.
	s.config = testConfig()
	require.NoError(t, s.Open())
	t.Cleanup(func() { s.Close() })
	require.DirExists(t, s.Root())
}

func TestOpenTReleasesRoot(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	var root string
	t.Run("scoped", func(t *testing.T) {
		s := OpenT(t, testConfig(), nil)
		root = s.Root()
		require.DirExists(t, root)
	})
	assert.NoDirExists(t, root)
}

func TestLintWithInvalidLevel(t *testing.T) {
	testutil.InstallStubEngine(t, testutil.StubReport(`[]`))

	s := OpenT(t, testConfig(), nil)
	_, err := s.LintWith(t.Context(), "hello\n", LintOpts{MinAlertLevel: "blocker"})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestAlertsForInput(t *testing.T) {
	foo := Diagnostics{{Check: "Test.NoFoo"}}

	// Exact key.
	got := alertsForInput(map[string]Diagnostics{"/tmp/sb/input.md": foo}, "/tmp/sb/input.md")
	assert.Equal(t, foo, got)

	// Engine reported a relative path for the same file.
	got = alertsForInput(map[string]Diagnostics{"input.md": foo}, "/tmp/sb/input.md")
	assert.Equal(t, foo, got)

	// Sole entry under an unrelated key still belongs to the one target.
	got = alertsForInput(map[string]Diagnostics{"<stdin>": foo}, "/tmp/sb/input.md")
	assert.Equal(t, foo, got)

	got = alertsForInput(map[string]Diagnostics{}, "/tmp/sb/input.md")
	assert.Empty(t, got)
}
