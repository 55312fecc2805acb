package syncengine

import (
	"context"
	"fmt"

	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/yamlloader"
)

// uploadLocked implements spec.md §4.L's upload pipeline. Caller must
// already hold the engine's busy flag.
func (e *Engine) uploadLocked(ctx context.Context, ns string) (Result, error) {
	r := Result{Namespace: ns}

	// Step 1: snapshot source-language translations for ns.
	snapshot := e.reg.Snapshot(e.cfg.SourceLanguage, ns)
	flat := flattenSnapshot(snapshot)
	if len(flat) == 0 {
		r.Status = Success
		return r, nil
	}

	// Steps 2-4: hash diff against stored crowdinHash.
	stored, err := e.dyn.GetCrowdinHashes(ns)
	if err != nil {
		return r, err
	}
	changedKeys := make([]string, 0, len(flat))
	for key, text := range flat {
		fk := fullKey(ns, key, e.cfg.SourceLanguage)
		current := dynamic.Hash(text)
		if prev, ok := stored[fk]; !ok || prev != current {
			changedKeys = append(changedKeys, fk)
		}
	}

	// Step 5: nothing changed, short-circuit.
	if len(changedKeys) == 0 {
		r.Status = Success
		r.Skipped = len(flat)
		return r, nil
	}

	// Step 6: serialize ALL translations (not just changed ones) — the
	// remote replaces the file wholesale.
	body, err := yamlloader.ToNestedYAML(flat)
	if err != nil {
		return r, fmt.Errorf("serializing namespace %s for upload: %w", ns, err)
	}

	// Step 7: upload bytes to storage.
	filename := ns + ".yml"
	storageID, err := e.client.UploadStorage(ctx, filename, body)
	if err != nil {
		return r, err
	}

	// Step 8: resolve the target directory, creating missing segments.
	dirPath := e.cfg.DirectoryPath(ns)
	dirID, fileName, err := splitDirectoryAndFile(dirPath)
	if err != nil {
		return r, err
	}
	directoryID, err := e.client.ResolveOrCreateDirectoryPath(ctx, dirID)
	if err != nil {
		return r, err
	}

	// Step 9: add or update the remote file.
	existingID, found, err := e.client.GetFile(ctx, directoryID, fileName)
	if err != nil {
		return r, err
	}
	if found {
		if err := e.client.UpdateFile(ctx, existingID, storageID); err != nil {
			return r, err
		}
	} else if _, err := e.client.AddFile(ctx, storageID, fileName, directoryID); err != nil {
		return r, err
	}

	// Step 10: persist new hashes and mark synced. A changed key may
	// come from a Registry-only (file-loaded) translation that has no
	// Dynamic Store row yet; Save upserts one so the hash has somewhere
	// to live before BatchUpdateSyncStatus/UpdateCrowdinHash touch it.
	for key, text := range flat {
		fk := fullKey(ns, key, e.cfg.SourceLanguage)
		if !containsKey(changedKeys, fk) {
			continue
		}
		exists, err := e.dyn.Exists(ns, key, e.cfg.SourceLanguage)
		if err != nil {
			return r, err
		}
		if !exists {
			if err := e.dyn.Save(ns, key, e.cfg.SourceLanguage, text, "crowdin-sync"); err != nil {
				return r, err
			}
		}
	}
	if err := e.dyn.BatchUpdateSyncStatus(changedKeys, dynamic.StatusSynced); err != nil {
		return r, err
	}
	for key, text := range flat {
		fk := fullKey(ns, key, e.cfg.SourceLanguage)
		if !containsKey(changedKeys, fk) {
			continue
		}
		if err := e.dyn.UpdateCrowdinHash(ns, key, e.cfg.SourceLanguage, dynamic.Hash(text)); err != nil {
			return r, err
		}
	}

	r.Status = Success
	r.Uploaded = len(changedKeys)
	r.Skipped = len(flat) - len(changedKeys)
	return r, nil
}

// flattenSnapshot expands a Registry snapshot into a flat dotted-key
// map, exploding plural forms into their suffixed keys the same way
// internal/dynamic registers them.
func flattenSnapshot(snapshot []registry.Translation) map[string]string {
	flat := make(map[string]string, len(snapshot))
	for _, t := range snapshot {
		flat[t.Key] = t.Text
		for cat, text := range t.PluralForms {
			flat[t.Key+"."+cat.Suffix()] = text
		}
	}
	return flat
}

func containsKey(keys []string, k string) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}

// splitDirectoryAndFile splits a "a/b/file.yml" path into its
// directory portion ("a/b") and leaf filename ("file.yml").
func splitDirectoryAndFile(path string) (dir string, file string, err error) {
	idx := lastSlash(path)
	if idx < 0 {
		return "", path, nil
	}
	return path[:idx], path[idx+1:], nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
