package yamlloader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFileFlattensNestedKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yml", "app:\n  hello: \"Olá\"\n  items:\n    one: \"1 item\"\n    other: \"{count} items\"\n")

	flat, err := LoadFile(filepath.Join(dir, "app.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat["app.hello"] != "Olá" {
		t.Fatalf("got %q", flat["app.hello"])
	}
	if flat["app.items.one"] != "1 item" {
		t.Fatalf("got %q", flat["app.items.one"])
	}
}

func TestLoadFileListsJoinWithSeparator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lore.yml", "lore:\n  - line one\n  - line two\n")

	flat, err := LoadFile(filepath.Join(dir, "lore.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "line one" + LineSeparator + "line two"
	if flat["lore"] != want {
		t.Fatalf("got %q, want %q", flat["lore"], want)
	}
}

func TestLoadNamespaceMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", "k1: v1\n")
	writeFile(t, dir, "b.yml", "k2: v2\n")

	merged, err := LoadNamespace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged["k1"] != "v1" || merged["k2"] != "v2" {
		t.Fatalf("got %+v", merged)
	}
}

func TestLoadNamespaceSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yml", "k: v\n")
	writeFile(t, dir, "bad.yml", "k: [unterminated\n")

	merged, err := LoadNamespace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged["k"] != "v" {
		t.Fatalf("expected good.yml's key to survive, got %+v", merged)
	}
}

func TestPluralBaseKey(t *testing.T) {
	base, found := PluralBaseKey("items.other")
	if !found || base != "items" {
		t.Fatalf("base=%q found=%v", base, found)
	}
	_, found = PluralBaseKey("items")
	if found {
		t.Fatal("expected no suffix found")
	}
}

func TestToNestedYAMLRoundTrip(t *testing.T) {
	flat := map[string]string{"app.hello": "Olá", "app.items.one": "1 item"}
	data, err := ToNestedYAML(flat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "roundtrip.yml", string(data))
	reloaded, err := LoadFile(filepath.Join(dir, "roundtrip.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded["app.hello"] != "Olá" || reloaded["app.items.one"] != "1 item" {
		t.Fatalf("got %+v", reloaded)
	}
}
