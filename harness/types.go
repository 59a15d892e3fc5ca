package harness

import (
	"fmt"
	"strings"
)

// Severity is the engine's ordered alert scale.
// Ordering: suggestion < warning < error.
type Severity string

// Severity levels recognized by the engine.
const (
	SeveritySuggestion Severity = "suggestion"
	SeverityWarning    Severity = "warning"
	SeverityError      Severity = "error"
)

var severityRank = map[Severity]int{
	SeveritySuggestion: 0,
	SeverityWarning:    1,
	SeverityError:      2,
}

// ParseSeverity validates a severity string against the engine's scale.
// Unknown values are a configuration error, never silently ignored.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", newConfigError("unknown alert level %q (want suggestion, warning, or error)", s)
	}
	return sev, nil
}

// AtLeast reports whether s is at or above the floor level.
func (s Severity) AtLeast(floor Severity) bool {
	return severityRank[s] >= severityRank[floor]
}

// Action is the engine's optional remediation payload attached to an alert.
type Action struct {
	Name   string   `json:"Name"`
	Params []string `json:"Params"`
}

// Diagnostic is one reported finding from a single lint invocation.
//
// Field names and JSON tags follow the engine's core.Alert payload.
// Diagnostics are immutable value objects once parsed; they hold no
// reference to the sandbox that produced them.
type Diagnostic struct {
	// Check is the fully-qualified rule name (namespace.RuleName).
	Check string `json:"Check"`

	// Severity is the alert level reported by the engine.
	Severity Severity `json:"Severity"`

	// Line is the one-based source line of the match.
	Line int `json:"Line"`

	// Span holds the start and end columns of the match within the line.
	Span [2]int `json:"Span"`

	// Match is the matched text snippet.
	Match string `json:"Match"`

	// Message is the human-readable explanation attached to the alert.
	Message string `json:"Message"`

	// Link is an optional documentation link for the rule.
	Link string `json:"Link,omitempty"`

	// Description is an optional long-form explanation of the rule.
	Description string `json:"Description,omitempty"`

	// Action is optional remediation metadata exposed by the rule.
	Action *Action `json:"Action,omitempty"`
}

// Column returns the one-based start column of the match.
func (d Diagnostic) Column() int {
	return d.Span[0]
}

// Diagnostics is the ordered findings of one lint call.
// Ordering matches the engine's own report order and is never re-sorted.
type Diagnostics []Diagnostic

// Checks returns the distinct check identifiers present, in order of first
// appearance.
func (ds Diagnostics) Checks() []string {
	seen := make(map[string]bool, len(ds))
	var checks []string
	for _, d := range ds {
		if !seen[d.Check] {
			seen[d.Check] = true
			checks = append(checks, d.Check)
		}
	}
	return checks
}

// renderDiagnostics formats a set as a readable listing for failure messages.
func renderDiagnostics(ds Diagnostics) string {
	if len(ds) == 0 {
		return "(no diagnostics)"
	}
	var b strings.Builder
	for i, d := range ds {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s [%s] line %d: %s", d.Check, d.Severity, d.Line, d.Message)
	}
	return b.String()
}
