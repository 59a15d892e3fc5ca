package harness

import (
	"bytes"
	"encoding/json"
)

// fileReport is the engine's alternate list-of-files output shape.
type fileReport struct {
	Path   string      `json:"Path"`
	Alerts Diagnostics `json:"Alerts"`
}

// parseOutput decodes the engine's raw JSON report into diagnostics grouped
// by reported path.
//
// Three shapes are accepted, matching what the engine emits across
// versions: an object keyed by path, a list of {Path, Alerts} objects, or a
// bare alert array (keyed under "<stdin>"). Empty or whitespace-only output
// means no findings and yields an empty grouping, not an error. Alert order
// within each file is the engine's own and is preserved.
func parseOutput(raw []byte) (map[string]Diagnostics, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]Diagnostics{}, nil
	}

	switch trimmed[0] {
	case '{':
		var byPath map[string]Diagnostics
		if err := json.Unmarshal(trimmed, &byPath); err != nil {
			return nil, newParseError(raw, err)
		}
		return byPath, nil
	case '[':
		return parseListOutput(raw, trimmed)
	default:
		return nil, newParseError(raw, nil)
	}
}

func parseListOutput(raw, trimmed []byte) (map[string]Diagnostics, error) {
	var reports []fileReport
	if err := json.Unmarshal(trimmed, &reports); err == nil && isFileReportList(trimmed) {
		byPath := make(map[string]Diagnostics, len(reports))
		for _, r := range reports {
			byPath[r.Path] = r.Alerts
		}
		return byPath, nil
	}

	var alerts Diagnostics
	if err := json.Unmarshal(trimmed, &alerts); err != nil {
		return nil, newParseError(raw, err)
	}
	return map[string]Diagnostics{"<stdin>": alerts}, nil
}

// isFileReportList peeks at the first element to distinguish the
// {Path, Alerts} list shape from a bare alert array.
func isFileReportList(trimmed []byte) bool {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil || len(probe) == 0 {
		return false
	}
	_, hasPath := probe[0]["Path"]
	_, hasAlerts := probe[0]["Alerts"]
	return hasPath && hasAlerts
}
