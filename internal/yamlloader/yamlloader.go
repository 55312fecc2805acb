// Package yamlloader parses translation YAML files into a flat
// dotted-key map (spec.md §4.E). Nested maps flatten to dotted keys;
// lists of strings become one joined value (clients needing per-line
// semantics split on LineSeparator); keys ending in a pluralization
// suffix (.zero/.one/.two/.few/.many/.other) are left for the
// Namespace Manager to recognize as members of a plural group.
package yamlloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/afterlands/langforge/internal/apperr"
)

// LineSeparator joins list-of-strings values into one scalar; clients
// that need per-line semantics split on it (spec.md §4.E).
const LineSeparator = "\n"

// PluralSuffixes are the recognized pluralization key suffixes.
var PluralSuffixes = []string{".zero", ".one", ".two", ".few", ".many", ".other"}

// LoadFile parses a single YAML file into a flat dotted-key map.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("reading %s", path), err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Parse(path, err)
	}

	flat := make(map[string]string)
	flatten("", raw, flat)
	return flat, nil
}

// flatten walks a decoded YAML tree, writing scalar and
// list-of-string leaves into out under their dotted path.
func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(joinPath(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(joinPath(prefix, fmt.Sprintf("%v", k)), child, out)
		}
	case []any:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			lines = append(lines, fmt.Sprintf("%v", item))
		}
		out[prefix] = strings.Join(lines, LineSeparator)
	case nil:
		// skip
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// LoadNamespace loads and merges all *.yml files directly under dir,
// in deterministic (sorted) filename order so later files win ties.
func LoadNamespace(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("reading directory %s", dir), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yml") || strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := make(map[string]string)
	for _, name := range names {
		flat, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			// A single malformed file does not abort the whole
			// namespace load (spec.md §7: ParseError -> file skipped).
			continue
		}
		for k, v := range flat {
			merged[k] = v
		}
	}
	return merged, nil
}

// PluralBaseKey strips a recognized pluralization suffix, returning
// the base key and whether a suffix was found.
func PluralBaseKey(key string) (base string, found bool) {
	for _, suffix := range PluralSuffixes {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), true
		}
	}
	return key, false
}

// ToNestedYAML serializes a flat dotted-key map back into a nested
// YAML document (spec.md §4.L step 6: the upload pipeline serializes
// all translations to a nested document via dot-path insertion).
func ToNestedYAML(flat map[string]string) ([]byte, error) {
	tree := make(map[string]any)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		insertDotted(tree, strings.Split(k, "."), flat[k])
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshaling nested YAML: %w", err)
	}
	return out, nil
}

func insertDotted(tree map[string]any, parts []string, value string) {
	if len(parts) == 1 {
		tree[parts[0]] = value
		return
	}
	child, ok := tree[parts[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		tree[parts[0]] = child
	}
	insertDotted(child, parts[1:], value)
}
