// Package extractor implements the Content Extractor (spec.md §4.J):
// walking a foreign YAML file and emitting a translatable source YAML,
// either by copying the whole tree (extractAll) or by a key-name
// whitelist (extractFields). The whitelist predicate is pluggable —
// a Go table by default, or a Starlark script for hosts that want to
// customize extraction without a recompile, reusing the teacher's
// go.starlark.net dependency (internal/tagging's Starlark-tagger
// integration) repurposed from chat-tag rules to extraction rules.
package extractor

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/afterlands/langforge/internal/apperr"
)

// Predicate decides whether the value at dotted path key should be
// extracted as translatable content.
type Predicate func(key string) bool

// DefaultWhitelist is the Go-table predicate named in spec.md §4.J:
// "e.g. name, lore, title, description".
var DefaultWhitelist = NewFieldNameWhitelist("name", "lore", "title", "description")

// NewFieldNameWhitelist builds a predicate matching on the final dotted
// path segment (the leaf key name), case-sensitively, against names.
func NewFieldNameWhitelist(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(key string) bool {
		leaf := key
		if idx := strings.LastIndexByte(key, '.'); idx != -1 {
			leaf = key[idx+1:]
		}
		_, ok := set[leaf]
		return ok
	}
}

// NewStarlarkPredicate compiles a Starlark script exposing a top-level
// function `should_extract(key)` returning a bool, and returns a
// Predicate backed by it. The script is executed once, here; the
// predicate then calls should_extract through the interpreter once
// per key checked (extraction runs are infrequent, I/O-bound
// operations, so the interpreter overhead is immaterial relative to
// the file walk).
func NewStarlarkPredicate(script string) (Predicate, error) {
	thread := &starlark.Thread{Name: "extractor-whitelist"}
	globals, err := starlark.ExecFile(thread, "whitelist.star", script, nil)
	if err != nil {
		return nil, apperr.Parse("whitelist.star", err)
	}
	fn, ok := globals["should_extract"]
	if !ok {
		return nil, apperr.Config("starlark whitelist script must define should_extract(key)")
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, apperr.Config("should_extract must be a function")
	}
	return func(key string) bool {
		result, err := starlark.Call(thread, callable, starlark.Tuple{starlark.String(key)}, nil)
		if err != nil {
			return false
		}
		return bool(result.Truth())
	}, nil
}

// ExtractAll copies the entire decoded tree verbatim (spec.md §4.J
// extractAll mode).
func ExtractAll(tree map[string]any) map[string]any {
	return tree
}

// ExtractFields recursively walks tree; at each node, if the key name
// matches whitelist, the value at its full dotted path is copied;
// recursion into sub-maps happens regardless of whether the current
// key matched (spec.md §4.J extractFields mode).
func ExtractFields(tree map[string]any, whitelist Predicate) map[string]any {
	out := make(map[string]any)
	walkFields("", tree, whitelist, out)
	return out
}

func walkFields(prefix string, node map[string]any, whitelist Predicate, out map[string]any) {
	for key, value := range node {
		path := joinPath(prefix, key)
		if whitelist(path) {
			insertDotted(out, strings.Split(path, "."), value)
		}
		if child, ok := value.(map[string]any); ok {
			walkFields(path, child, whitelist, out)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func insertDotted(tree map[string]any, parts []string, value any) {
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

// LoadTree parses a foreign YAML file into a generic tree, normalizing
// map[any]any nodes (as yaml.v3 can still produce for non-string keys)
// into map[string]any so ExtractFields's type switch is uniform.
func LoadTree(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("reading %s", path), err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Parse(path, err)
	}
	return normalize(raw).(map[string]any), nil
}

func normalize(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = normalize(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[fmt.Sprintf("%v", k)] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// WriteOutput implements spec.md §4.J's output policy: the source
// language file is always overwritten; other-language files are
// created only if absent, to preserve human translations.
func WriteOutput(tree map[string]any, path string, isSourceLanguage bool) error {
	if !isSourceLanguage {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	data, err := yaml.Marshal(sortedTree(tree))
	if err != nil {
		return fmt.Errorf("marshaling extracted tree: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// sortedTree returns a deep copy of tree's nested maps as plain
// map[string]any values. The copy carries no key order of its own;
// the stable output order across extraction runs comes from yaml.v3
// sorting map[string]any keys lexically on Marshal.
func sortedTree(tree map[string]any) map[string]any {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(tree))
	for _, k := range keys {
		v := tree[k]
		if child, ok := v.(map[string]any); ok {
			out[k] = sortedTree(child)
		} else {
			out[k] = v
		}
	}
	return out
}
