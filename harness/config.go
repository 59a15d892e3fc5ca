package harness

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// stylesPathKey is the one engine-managed configuration key. The harness
// always points it at the sandbox's rules tree; caller-supplied values are
// dropped to prevent sandbox escape.
const stylesPathKey = "StylesPath"

// Setting is a single key/value assignment in the engine configuration.
// Keys and values are opaque to the harness; engine-specific semantics are
// not validated here.
type Setting struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Settings is an ordered list of assignments. A slice rather than a map:
// the engine's scope matching can be order-sensitive for overlapping
// patterns, so caller order must survive serialization.
type Settings []Setting

// ScopedSection is a configuration block that applies only to files
// matching a glob pattern. The pattern is emitted verbatim.
type ScopedSection struct {
	Pattern  string   `yaml:"pattern"`
	Settings Settings `yaml:"settings"`
}

// Config is the settings mapping for one sandbox: a root section applied
// globally plus zero or more scoped sections in caller order.
type Config struct {
	Root     Settings
	Sections []ScopedSection
}

// render serializes the configuration into the engine's ini-style text.
//
// StylesPath is injected first and always harness-managed. Root settings
// become top-level assignments; each scoped section becomes a bracketed
// block with its glob pattern verbatim. Output is NFC-normalized with a
// trailing newline so serialization is byte-deterministic.
func (c Config) render(stylesDirName string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s\n", stylesPathKey, stylesDirName)

	if err := renderSettings(&b, c.Root, "root section"); err != nil {
		return "", err
	}

	for _, sec := range c.Sections {
		if sec.Pattern == "" {
			return "", newConfigError("scoped section has an empty pattern")
		}
		fmt.Fprintf(&b, "\n[%s]\n", sec.Pattern)
		if err := renderSettings(&b, sec.Settings, fmt.Sprintf("section [%s]", sec.Pattern)); err != nil {
			return "", err
		}
	}

	return norm.NFC.String(b.String()), nil
}

func renderSettings(b *strings.Builder, settings Settings, where string) error {
	for _, s := range settings {
		if s.Key == "" {
			return newConfigError("%s has a setting with an empty key", where)
		}
		if s.Key == stylesPathKey {
			// Engine-managed; the injected value wins.
			continue
		}
		if strings.ContainsAny(s.Key, "\n=[]") {
			return newConfigError("%s: key %q is not serializable", where, s.Key)
		}
		if strings.ContainsRune(s.Value, '\n') {
			return newConfigError("%s: value for %q spans multiple lines", where, s.Key)
		}
		fmt.Fprintf(b, "%s = %s\n", s.Key, s.Value)
	}
	return nil
}
