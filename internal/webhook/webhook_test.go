package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/sqlitestore"
	"github.com/afterlands/langforge/internal/syncengine"
)

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	reg := registry.New()
	tiered := cache.NewTiered(cache.Config{L1MaxSize: 10, L3MaxSize: 10})
	bus := events.NewBus()
	dir := t.TempDir()
	dyn, err := dynamic.Open(sqlitestore.Config{Path: filepath.Join(dir, "d.db")}, reg, tiered, bus, logging.NewDiscard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine := syncengine.New(syncengine.Config{SourceLanguage: "pt_br", BackupDir: filepath.Join(dir, "backups")}, nil, reg, dyn, logging.NewDiscard())
	return New(Config{Port: 0, Secret: secret}, engine, logging.NewDiscard(), nil)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleRejectsMissingSignature(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodPost, "/crowdin-webhook", bytes.NewBufferString(`{"event":"translation.updated"}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleRejectsTamperedBody(t *testing.T) {
	s := newTestServer(t, "secret")
	body := []byte(`{"event":"translation.updated"}`)
	req := httptest.NewRequest(http.MethodPost, "/crowdin-webhook", bytes.NewBuffer(body))
	req.Header.Set(signatureHeader, sign("secret", []byte(`{"event":"different"}`)))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleAcceptsValidSignatureAndLogsTranslationUpdated(t *testing.T) {
	s := newTestServer(t, "secret")
	body := []byte(`{"event":"translation.updated"}`)
	req := httptest.NewRequest(http.MethodPost, "/crowdin-webhook", bytes.NewBuffer(body))
	req.Header.Set(signatureHeader, sign("secret", body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d body %s", rec.Code, rec.Body.String())
	}
	stats := s.Stats()
	if stats.Requests != 1 || stats.Success != 1 || stats.Errors != 0 {
		t.Fatalf("got %+v", stats)
	}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, "secret")
	body := []byte(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/crowdin-webhook", bytes.NewBuffer(body))
	req.Header.Set(signatureHeader, sign("secret", body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleFileApprovedWithoutNamespaceResolverTriggersFullSync(t *testing.T) {
	s := newTestServer(t, "secret")
	body := []byte(`{"event":"file.approved","file":{"name":"shop.yml","path":"shop/shop.yml"}}`)
	req := httptest.NewRequest(http.MethodPost, "/crowdin-webhook", bytes.NewBuffer(body))
	req.Header.Set(signatureHeader, sign("secret", body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	// No namespaces are configured for this engine, so SyncAll is a
	// no-op and the request is accepted.
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d body %s", rec.Code, rec.Body.String())
	}
}
