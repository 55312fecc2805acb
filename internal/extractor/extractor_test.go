package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestExtractFieldsMatchesWhitelistAndRecurses(t *testing.T) {
	tree := map[string]any{
		"npc": map[string]any{
			"name":     "Old Man",
			"material": "PLAYER_HEAD",
			"dialogue": map[string]any{
				"title": "Greeting",
				"id":    "dlg-1",
			},
		},
	}
	got := ExtractFields(tree, DefaultWhitelist)
	npc, ok := got["npc"].(map[string]any)
	if !ok || npc["name"] != "Old Man" {
		t.Fatalf("got %+v", got)
	}
	if _, ok := npc["material"]; ok {
		t.Fatal("expected non-whitelisted key to be skipped")
	}
	dialogue, ok := npc["dialogue"].(map[string]any)
	if !ok || dialogue["title"] != "Greeting" {
		t.Fatalf("expected recursion into sub-map, got %+v", got)
	}
	if _, ok := dialogue["id"]; ok {
		t.Fatal("expected non-whitelisted leaf to be skipped")
	}
}

func TestExtractInventorySkipsFillerAndTemplateItems(t *testing.T) {
	tree := map[string]any{
		"shop": map[string]any{
			"title": "Shop",
			"items": map[string]any{
				"0": map[string]any{"name": "Sword", "type": "weapon", "lore": []any{"Sharp"}},
				"1": map[string]any{"name": "", "type": "filler"},
				"2": map[string]any{"name": "Template", "material": "item:custom_sword"},
			},
		},
	}
	got := ExtractInventory(tree)
	shop, ok := got["shop"].(map[string]any)
	if !ok || shop["title"] != "Shop" {
		t.Fatalf("got %+v", got)
	}
	items, ok := shop["items"].(map[string]any)
	if !ok {
		t.Fatalf("expected items map, got %+v", shop)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one surviving item, got %+v", items)
	}
	weapon, ok := items["weapon"].(map[string]any)
	if !ok || weapon["name"] != "Sword" {
		t.Fatalf("got %+v", items)
	}
}

func TestExtractInventoryRecursesIntoVariants(t *testing.T) {
	tree := map[string]any{
		"shop": map[string]any{
			"title": "Shop",
			"variant0": map[string]any{
				"title": "Shop (Winter)",
			},
		},
	}
	got := ExtractInventory(tree)
	shop := got["shop"].(map[string]any)
	variant, ok := shop["variant0"].(map[string]any)
	if !ok || variant["title"] != "Shop (Winter)" {
		t.Fatalf("got %+v", shop)
	}
}

func TestStarlarkPredicate(t *testing.T) {
	pred, err := NewStarlarkPredicate(`
def should_extract(key):
    return key == "name" or key.endswith(".lore")
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pred("name") {
		t.Fatal("expected name to match")
	}
	if !pred("item.lore") {
		t.Fatal("expected item.lore to match")
	}
	if pred("material") {
		t.Fatal("expected material not to match")
	}
}

func TestWriteOutputOverwritesSourceOnlyCreatesOther(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "pt_br.yml")
	otherPath := filepath.Join(dir, "en_us.yml")

	tree := map[string]any{"hello": "Olá"}
	if err := WriteOutput(tree, sourcePath, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteOutput(tree, otherPath, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-running with different content: source is overwritten, other is not.
	tree2 := map[string]any{"hello": "Oi"}
	if err := WriteOutput(tree2, sourcePath, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteOutput(tree2, otherPath, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sourceData, _ := os.ReadFile(sourcePath)
	otherData, _ := os.ReadFile(otherPath)

	if got := string(sourceData); got == "" {
		t.Fatal("expected source file to have content")
	}
	if got := string(otherData); got == "" {
		t.Fatal("expected other-language file to have content")
	}
	// other file must still hold the first-written translation.
	firstWrite, err := yaml.Marshal(sortedTree(tree))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(otherData) != string(firstWrite) {
		t.Fatalf("expected other-language file to be untouched, got %q want %q", otherData, firstWrite)
	}
}
