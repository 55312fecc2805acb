package syncengine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/afterlands/langforge/internal/crowdin"
	"github.com/afterlands/langforge/internal/dynamic"
)

// backupEntry is one namespace/key/language/text row captured before a
// download pipeline run, the unit spec.md §7 restores on rollback.
type backupEntry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}

// downloadLocked implements spec.md §4.L's download pipeline. Caller
// must already hold the engine's busy flag.
func (e *Engine) downloadLocked(ctx context.Context, ns string) (Result, error) {
	r := Result{Namespace: ns}

	// Step 1: pre-sync backup.
	backupPath, err := e.backupNamespace(ns)
	if err != nil {
		return r, fmt.Errorf("backing up namespace %s before sync: %w", ns, err)
	}

	buildCtx, cancel := context.WithTimeout(ctx, e.cfg.BuildTimeout)
	defer cancel()

	if err := e.runDownload(buildCtx, ns, &r); err != nil {
		if rbErr := e.restoreBackup(ns, backupPath); rbErr != nil {
			e.logWarn("rollback after failed download failed", ns, rbErr)
		}
		r.Status = Failed
		return r, err
	}

	if r.Status == "" {
		r.Status = Success
	}
	return r, nil
}

func (e *Engine) runDownload(ctx context.Context, ns string, r *Result) error {
	// Step 2: request and poll the build.
	buildID, err := e.client.RequestBuild(ctx, buildOptionsFor(e.cfg))
	if err != nil {
		return fmt.Errorf("requesting build for namespace %s: %w", ns, err)
	}
	if err := e.client.PollBuild(ctx, buildID, 2*time.Second); err != nil {
		return fmt.Errorf("waiting for build of namespace %s: %w", ns, err)
	}

	// Step 3: download and unpack the archive.
	archive, err := e.client.DownloadBuild(ctx, buildID)
	if err != nil {
		return fmt.Errorf("downloading build for namespace %s: %w", ns, err)
	}
	entries, err := unpackTranslations(archive, ns, e.cfg.LocaleMapping)
	if err != nil {
		return fmt.Errorf("unpacking build archive: %w", err)
	}

	// Steps 4-6: classify and apply each incoming value.
	for _, incoming := range entries {
		applied, conflicted, err := e.reconcileOne(incoming)
		if err != nil {
			return err
		}
		if conflicted {
			r.Conflicts++
		} else if applied {
			r.Downloaded++
		}
	}
	return nil
}

func buildOptionsFor(cfg Config) crowdin.BuildOptions {
	langs := make([]string, 0, len(cfg.LocaleMapping))
	for remote := range cfg.LocaleMapping {
		langs = append(langs, remote)
	}
	return crowdin.BuildOptions{
		TargetLanguageIDs:  langs,
		SkipUntranslated:   cfg.SkipUntranslated,
		ExportApprovedOnly: cfg.ExportApprovedOnly,
	}
}

// reconcileOne applies spec.md §4.L step 4's classification and step
// 5's conflict policy to a single incoming (ns, key, lang) -> text
// value, returning whether it was applied and whether it was a
// conflict.
func (e *Engine) reconcileOne(incoming translationUnit) (applied bool, conflicted bool, err error) {
	existing, hasExisting, err := e.currentValue(incoming.Namespace, incoming.Key, incoming.Language)
	if err != nil {
		return false, false, err
	}

	if !hasExisting {
		// new
		return true, false, e.dyn.Save(incoming.Namespace, incoming.Key, incoming.Language, incoming.Text, "crowdin-sync")
	}
	if existing == incoming.Text {
		// unchanged
		return false, false, nil
	}

	localEdited, err := e.hasLocalEdit(incoming.Namespace, incoming.Key, incoming.Language)
	if err != nil {
		return false, false, err
	}
	if !localEdited {
		// No conflicting local edit: the remote value simply supersedes.
		return true, false, e.dyn.Save(incoming.Namespace, incoming.Key, incoming.Language, incoming.Text, "crowdin-sync")
	}

	switch e.cfg.ConflictPolicy {
	case RemoteWins:
		return true, false, e.dyn.Save(incoming.Namespace, incoming.Key, incoming.Language, incoming.Text, "crowdin-sync")
	case LocalWins:
		return false, false, e.dyn.UpdateSyncStatus(incoming.Namespace, incoming.Key, incoming.Language, dynamic.StatusSynced)
	default: // Manual
		if _, recErr := e.dyn.RecordConflict(incoming.Namespace, incoming.Key, incoming.Language, existing, incoming.Text); recErr != nil {
			return false, true, recErr
		}
		return false, true, e.dyn.UpdateSyncStatus(incoming.Namespace, incoming.Key, incoming.Language, dynamic.StatusConflict)
	}
}

// currentValue resolves the current translation text, preferring the
// Registry (authoritative for both static and dynamic content) and
// falling back to false when nothing is registered yet.
func (e *Engine) currentValue(ns, key, lang string) (string, bool, error) {
	t, ok := e.reg.Get(lang, ns, key)
	if !ok {
		return "", false, nil
	}
	return t.Text, true, nil
}

// hasLocalEdit reports whether the dynamic entry has been modified
// locally since its last successful sync (localHash != lastSyncedHash,
// spec.md §4.L step 4's conflict test).
func (e *Engine) hasLocalEdit(ns, key, lang string) (bool, error) {
	hashes, err := e.dyn.GetCrowdinHashes(ns)
	if err != nil {
		return false, err
	}
	stored, ok := hashes[fullKey(ns, key, lang)]
	if !ok {
		// never synced before: treat any existing local value as an edit.
		return true, nil
	}
	current, hasCurrent, err := e.currentValue(ns, key, lang)
	if err != nil || !hasCurrent {
		return false, err
	}
	return dynamic.Hash(current) != stored, nil
}

func (e *Engine) logWarn(msg, ns string, err error) {
	if e.log == nil {
		return
	}
	e.log.Warn(msg, logrus.Fields{"namespace": ns, "error": err.Error()})
}

// translationUnit is one decoded entry from a downloaded build archive.
type translationUnit struct {
	Namespace string
	Key       string
	Language  string
	Text      string
}

// unpackTranslations reads every YAML file in the zip archive whose
// path maps, via localeMapping, to a recognized internal language
// code, flattening each into translationUnits for namespace ns. Using
// archive/zip here mirrors the teacher's own use of it in
// internal/web/log_handlers.go (there for writing, here for reading).
func unpackTranslations(archive []byte, ns string, localeMapping map[string]string) ([]translationUnit, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}

	var out []translationUnit
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(f.Name, ".yml") && !strings.HasSuffix(f.Name, ".yaml") {
			continue
		}
		remoteLang := localeFromArchivePath(f.Name)
		internalLang, ok := localeMapping[remoteLang]
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			continue // malformed entry, skip rather than abort the whole download
		}
		flat := make(map[string]string)
		flattenYAML("", raw, flat)
		for key, text := range flat {
			out = append(out, translationUnit{Namespace: ns, Key: key, Language: internalLang, Text: text})
		}
	}
	return out, nil
}

// localeFromArchivePath extracts the locale segment from a Crowdin
// build archive path such as "pt-BR/shop.yml" -> "pt-BR".
func localeFromArchivePath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func flattenYAML(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flattenYAML(p, child, out)
		}
	case nil:
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
}

// backupNamespace snapshots the current registry contents for ns
// across every mapped internal language, writing one JSON file per
// run under cfg.BackupDir.
func (e *Engine) backupNamespace(ns string) (string, error) {
	if err := ensureDir(e.cfg.BackupDir); err != nil {
		return "", err
	}

	var entries []backupEntry
	langs := map[string]struct{}{e.cfg.SourceLanguage: {}}
	for _, internal := range e.cfg.LocaleMapping {
		langs[internal] = struct{}{}
	}
	for lang := range langs {
		for _, t := range e.reg.Snapshot(lang, ns) {
			entries = append(entries, backupEntry{Namespace: ns, Key: t.Key, Language: lang, Text: t.Text})
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	path := filepath.Join(e.cfg.BackupDir, fmt.Sprintf("%s-%d.json", ns, time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// restoreBackup reapplies a previously captured backup file through
// the normal Dynamic Store save path, so the Registry/cache/event
// contract stays intact during rollback.
func (e *Engine) restoreBackup(ns, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []backupEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := e.dyn.Save(entry.Namespace, entry.Key, entry.Language, entry.Text, "rollback"); err != nil {
			return err
		}
	}
	return nil
}
