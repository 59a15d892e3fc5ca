package harness

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Styles is the source of the sandbox's rules tree: either an existing
// directory on disk (Dir) or an in-memory tree (Tree). A nil Styles leaves
// the rules tree empty, for configurations that only use built-in styles.
type Styles interface {
	materialize(dst string) error
}

// Dir references a pre-existing styles directory whose contents are copied
// into the sandbox without alteration.
type Dir string

// Tree is an in-memory styles tree: relative file path to content.
// Every path must stay under the rules-tree root; traversal outside it is
// rejected.
type Tree map[string]Content

type contentKind int

const (
	contentInvalid contentKind = iota
	contentText
	contentBinary
)

// Content is the tagged union of style file content. Textual content is
// normalized (dedent, NFC, trailing newline); binary content is written
// verbatim. The tag is set explicitly via Text or Binary, never inferred.
type Content struct {
	kind contentKind
	text string
	data []byte
}

// Text wraps textual content. It is dedented on write so inline multi-line
// literals written with natural code indentation round-trip to
// properly-indented files.
func Text(s string) Content {
	return Content{kind: contentText, text: s}
}

// Binary wraps raw content written without modification.
func Binary(b []byte) Content {
	return Content{kind: contentBinary, data: b}
}

func (t Tree) materialize(dst string) error {
	// Sorted so materialization order is deterministic.
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rel := filepath.Clean(filepath.FromSlash(p))
		if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
			return newStylesError("style path %q escapes the rules tree", p)
		}
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return newStylesError("create style directory for %q: %v", p, err)
		}

		var data []byte
		switch c := t[p]; c.kind {
		case contentText:
			data = []byte(Dedent(c.text))
		case contentBinary:
			data = c.data
		default:
			return newStylesError("style file %q has no content (use Text or Binary)", p)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return newStylesError("write style file %q: %v", p, err)
		}
	}
	return nil
}

func (d Dir) materialize(dst string) error {
	src := string(d)
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return newStylesError("styles tree %s doesn't exist", src)
	}
	if err != nil {
		return newStylesError("stat styles tree %s: %v", src, err)
	}
	if !info.IsDir() {
		return newStylesError("styles tree %s must be a directory", src)
	}

	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return newStylesError("walk styles tree: %v", err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return newStylesError("resolve style path %s: %v", path, err)
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return newStylesError("create style directory %s: %v", rel, err)
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return newStylesError("read style file %s: %v", rel, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return newStylesError("copy style file %s: %v", rel, err)
		}
		return nil
	})
}

// Dedent strips the common leading indentation shared by all non-blank
// lines, normalizes whitespace-only lines to empty, drops a single leading
// blank line, ensures a trailing newline, and NFC-normalizes the result.
// Rule definitions embedded as indented Go string literals come out as
// valid, left-aligned files.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")

	margin := ""
	found := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		if !found {
			margin = indent
			found = true
			continue
		}
		i := 0
		for i < len(margin) && i < len(indent) && margin[i] == indent[i] {
			i++
		}
		margin = margin[:i]
	}

	for i, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	if len(lines) > 1 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return norm.NFC.String(out)
}
