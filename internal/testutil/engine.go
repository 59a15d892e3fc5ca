// Package testutil provides engine test doubles for harness tests.
//
// Unit tests of harness plumbing run against a stub vale executable (a
// shell script installed on a private PATH entry) so they stay hermetic on
// machines without the real engine. Integration tests that must observe
// production linting behavior gate on RequireRealEngine instead.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// InstallStubEngine writes an executable shell script named vale into a
// fresh directory and prepends that directory to PATH for the duration of
// the test. The script body receives the engine's argv ("$@") and should
// emit a JSON report on stdout.
//
// Returns the stub's path.
func InstallStubEngine(t testing.TB, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub engine requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "vale")
	body := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("install stub engine: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return path
}

// StubReport returns a stub script that prints the given alert array keyed
// by the engine's target file (the last argument), mirroring the real
// engine's path-keyed output shape.
func StubReport(alertsJSON string) string {
	return `for target do :; done
cat <<EOF
{"$target": ` + alertsJSON + `}
EOF`
}

// RequireRealEngine skips the test unless a real vale binary is installed,
// and returns its path. PATH entries added by InstallStubEngine shadow the
// real engine, so call this before any stub installation.
func RequireRealEngine(t testing.TB) string {
	t.Helper()
	path, err := exec.LookPath("vale")
	if err != nil {
		t.Skip("vale not installed; skipping real-engine test")
	}
	return path
}
