package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// goldenSnapshot is the stable rendering compared against golden files.
// Only deterministic diagnostic fields appear; links and descriptions vary
// between engine versions and are excluded.
type goldenSnapshot struct {
	Scenario    string          `json:"scenario"`
	Diagnostics []goldenFinding `json:"diagnostics"`
}

type goldenFinding struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Span     [2]int `json:"span"`
	Match    string `json:"match"`
	Message  string `json:"message"`
}

// RunWithGolden executes a scenario and compares its diagnostic rendering
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./harness -update
func RunWithGolden(t *testing.T, s *Scenario, opts RunOptions) *Result {
	t.Helper()

	result, err := RunScenario(context.Background(), s, opts)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}

	snapshot := goldenSnapshot{
		Scenario:    s.Name,
		Diagnostics: make([]goldenFinding, 0, len(result.Diagnostics)),
	}
	for _, d := range result.Diagnostics {
		snapshot.Diagnostics = append(snapshot.Diagnostics, goldenFinding{
			Check:    d.Check,
			Severity: string(d.Severity),
			Line:     d.Line,
			Span:     d.Span,
			Match:    d.Match,
			Message:  d.Message,
		})
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, payload)

	return result
}
