package extractor

import "strings"

// The inventory walker below only ever reads title/items/type/name/lore
// and variantN sub-sections; every other key (material, actions,
// conditions, nbt, enchantments, ...) is implicitly non-translatable
// and left untouched (spec.md §4.J: "ignore known non-translatable
// keys: materials, actions, conditions, NBT, etc.").

// variantPrefix matches the recursive variant0..N child sections
// spec.md §4.J names.
const variantPrefix = "variant"

// ExtractInventory implements the inventory-extractor variant
// (spec.md §4.J): top-level keys are inventory IDs; for each
// inventory, extract `title`, and for each item under `items.<slot>`,
// extract `name`/`lore` keyed by the item's `type` (falling back to
// `slot-<slot>`), skipping filler items (blank name) and template
// references (`material` beginning with `item:`), and recursing into
// `variant0..N` child sections.
func ExtractInventory(tree map[string]any) map[string]any {
	out := make(map[string]any)
	for invID, raw := range tree {
		inv, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		extracted := extractInventoryBody(inv)
		if len(extracted) > 0 {
			out[invID] = extracted
		}
	}
	return out
}

func extractInventoryBody(inv map[string]any) map[string]any {
	out := make(map[string]any)

	if title, ok := inv["title"].(string); ok && title != "" {
		out["title"] = title
	}

	if items, ok := inv["items"].(map[string]any); ok {
		extractedItems := make(map[string]any)
		for slot, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if entry, pathKey, ok := extractItem(slot, item); ok {
				extractedItems[pathKey] = entry
			}
		}
		if len(extractedItems) > 0 {
			out["items"] = extractedItems
		}
	}

	for key, raw := range inv {
		if !strings.HasPrefix(key, variantPrefix) {
			continue
		}
		child, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if extracted := extractInventoryBody(child); len(extracted) > 0 {
			out[key] = extracted
		}
	}

	return out
}

// extractItem returns the translatable {name, lore} entry for one item
// slot, the dotted-path segment to file it under, and whether it
// should be extracted at all.
func extractItem(slot string, item map[string]any) (entry map[string]any, pathKey string, ok bool) {
	name, _ := item["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, "", false // filler item
	}

	if material, isStr := item["material"].(string); isStr && strings.HasPrefix(material, "item:") {
		return nil, "", false // template reference, not translatable source
	}

	pathKey = "slot-" + slot
	if itemType, isStr := item["type"].(string); isStr && itemType != "" {
		pathKey = itemType
	}

	entry = map[string]any{"name": name}
	if lore, ok := item["lore"]; ok {
		entry["lore"] = lore
	}
	return entry, pathKey, true
}

// ExtractMessages implements the messages-extractor variant (spec.md
// §4.J): the file is fully translatable, so extraction is just
// ExtractAll; the distinguishing behavior is in the output policy
// (overwrite only the source language), applied by the caller via
// WriteOutput.
func ExtractMessages(tree map[string]any) map[string]any {
	return ExtractAll(tree)
}
