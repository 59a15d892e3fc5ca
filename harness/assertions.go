package harness

import (
	"fmt"
	"strings"
	"testing"
)

// AssertionError is returned when a diagnostic predicate fails.
// It embeds the full actual diagnostic set, rendered, so a rule author can
// diagnose a mismatch without re-running the engine.
type AssertionError struct {
	Op          string // predicate name for categorization
	Expected    string // human-readable expected outcome
	Actual      string // human-readable actual outcome
	Diagnostics Diagnostics
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n", e.Op)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&b, "\nDiagnostics:\n%s", renderDiagnostics(e.Diagnostics))
	return b.String()
}

// Filter selects diagnostics by any combination of criteria.
// Zero-valued fields are not applied.
type Filter struct {
	// Check matches the fully-qualified check identifier exactly.
	Check string

	// Severity matches the alert level exactly.
	Severity Severity

	// Line matches the one-based source line.
	Line int

	// MatchContains requires the matched text span to contain a substring.
	MatchContains string

	// MessageContains requires the message to contain a substring.
	MessageContains string
}

func (f Filter) matches(d Diagnostic) bool {
	if f.Check != "" && d.Check != f.Check {
		return false
	}
	if f.Severity != "" && d.Severity != f.Severity {
		return false
	}
	if f.Line != 0 && d.Line != f.Line {
		return false
	}
	if f.MatchContains != "" && !strings.Contains(d.Match, f.MatchContains) {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(d.Message, f.MessageContains) {
		return false
	}
	return true
}

// String describes the applied criteria for failure messages.
func (f Filter) String() string {
	var parts []string
	if f.Check != "" {
		parts = append(parts, fmt.Sprintf("check=%s", f.Check))
	}
	if f.Severity != "" {
		parts = append(parts, fmt.Sprintf("severity=%s", f.Severity))
	}
	if f.Line != 0 {
		parts = append(parts, fmt.Sprintf("line=%d", f.Line))
	}
	if f.MatchContains != "" {
		parts = append(parts, fmt.Sprintf("match~%q", f.MatchContains))
	}
	if f.MessageContains != "" {
		parts = append(parts, fmt.Sprintf("message~%q", f.MessageContains))
	}
	if len(parts) == 0 {
		return "(any diagnostic)"
	}
	return strings.Join(parts, " ")
}

// NoDiagnostics fails if the set is non-empty.
func NoDiagnostics(ds Diagnostics) error {
	if len(ds) == 0 {
		return nil
	}
	return &AssertionError{
		Op:          "no_diagnostics",
		Expected:    "no diagnostics",
		Actual:      fmt.Sprintf("%d diagnostic(s)", len(ds)),
		Diagnostics: ds,
	}
}

// HasDiagnostic returns the first diagnostic matching the filter, or fails
// if none match.
func HasDiagnostic(ds Diagnostics, f Filter) (Diagnostic, error) {
	for _, d := range ds {
		if f.matches(d) {
			return d, nil
		}
	}
	return Diagnostic{}, &AssertionError{
		Op:          "has_diagnostic",
		Expected:    "a diagnostic matching " + f.String(),
		Actual:      "no match",
		Diagnostics: ds,
	}
}

// CountDiagnostics fails unless exactly want diagnostics match the filter.
func CountDiagnostics(ds Diagnostics, f Filter, want int) error {
	got := 0
	for _, d := range ds {
		if f.matches(d) {
			got++
		}
	}
	if got == want {
		return nil
	}
	return &AssertionError{
		Op:          "diagnostic_count",
		Expected:    fmt.Sprintf("%d diagnostic(s) matching %s", want, f),
		Actual:      fmt.Sprintf("%d diagnostic(s)", got),
		Diagnostics: ds,
	}
}

// OnlyChecks fails if any diagnostic's check identifier falls outside the
// expected set, enumerating the unexpected identifiers.
func OnlyChecks(ds Diagnostics, checks ...string) error {
	allowed := make(map[string]bool, len(checks))
	for _, c := range checks {
		allowed[c] = true
	}

	var unexpected []string
	seen := make(map[string]bool)
	for _, d := range ds {
		if !allowed[d.Check] && !seen[d.Check] {
			seen[d.Check] = true
			unexpected = append(unexpected, d.Check)
		}
	}
	if len(unexpected) == 0 {
		return nil
	}
	return &AssertionError{
		Op:          "only_checks",
		Expected:    fmt.Sprintf("checks limited to %v", checks),
		Actual:      fmt.Sprintf("unexpected checks %v", unexpected),
		Diagnostics: ds,
	}
}

// AssertNoDiagnostics fails the test if the set is non-empty.
func AssertNoDiagnostics(t testing.TB, ds Diagnostics) {
	t.Helper()
	if err := NoDiagnostics(ds); err != nil {
		t.Fatal(err)
	}
}

// AssertHasDiagnostic fails the test unless a diagnostic matches the
// filter, and returns the first match.
func AssertHasDiagnostic(t testing.TB, ds Diagnostics, f Filter) Diagnostic {
	t.Helper()
	d, err := HasDiagnostic(ds, f)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// AssertOnlyChecks fails the test if any diagnostic's check identifier is
// outside the expected set.
func AssertOnlyChecks(t testing.TB, ds Diagnostics, checks ...string) {
	t.Helper()
	if err := OnlyChecks(ds, checks...); err != nil {
		t.Fatal(err)
	}
}
