// Package webhook implements the Webhook Receiver (spec.md §4.M): a
// minimal gin HTTP server listening on a configured port at a fixed
// path, verifying Crowdin's HMAC-SHA256 request signature and
// dispatching file/project events to the Sync Engine. Generalized from
// the teacher's internal/web.AdminServer / internal/proxy.Server
// gin wiring (internal/web/admin.go, internal/proxy/server.go).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/syncengine"
)

const signatureHeader = "X-Crowdin-Webhook-Signature"

// Config configures the webhook server.
type Config struct {
	Port   int
	Path   string // defaults to "/crowdin-webhook"
	Secret string
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/crowdin-webhook"
	}
	return c
}

// Stats tracks request outcomes for admin inspection (spec.md §4.M
// "Statistics: request count, success count, error count").
type Stats struct {
	Requests atomic.Int64
	Success  atomic.Int64
	Errors   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats, safe to serialize.
type Snapshot struct {
	Requests int64 `json:"requests"`
	Success  int64 `json:"success"`
	Errors   int64 `json:"errors"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{Requests: s.Requests.Load(), Success: s.Success.Load(), Errors: s.Errors.Load()}
}

// payload is the subset of Crowdin's webhook JSON body this receiver
// understands (spec.md §4.M step 2).
type payload struct {
	Event string `json:"event"`
	File  *struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"file"`
}

// Server is the webhook receiver.
type Server struct {
	cfg    Config
	engine *syncengine.Engine
	log    *logging.Logger
	stats  Stats
	router *gin.Engine

	// namespaceForPath maps a remote file path (as reported in the
	// webhook payload) to the namespace that owns it, since Crowdin's
	// event payload carries a file identity, not a namespace name.
	namespaceForPath func(path string) (string, bool)
}

// New builds a Server. namespaceForPath resolves an incoming file path
// to the namespace it belongs to; returning false triggers a full
// sync instead of a targeted download (spec.md §4.M step 3).
func New(cfg Config, engine *syncengine.Engine, log *logging.Logger, namespaceForPath func(path string) (string, bool)) *Server {
	s := &Server{cfg: cfg.withDefaults(), engine: engine, log: log, namespaceForPath: namespaceForPath}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.POST(s.cfg.Path, s.handle)
}

// Router exposes the underlying gin.Engine, e.g. for embedding into a
// larger admin surface or for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Stats returns a snapshot of request/success/error counters.
func (s *Server) Stats() Snapshot { return s.stats.Snapshot() }

// ListenAndServe starts the HTTP server, blocking until it exits.
func (s *Server) ListenAndServe() error {
	addr := ":" + strconv.Itoa(s.cfg.Port)
	s.log.Info("starting webhook receiver", nil)
	return s.router.Run(addr)
}

func (s *Server) handle(c *gin.Context) {
	s.stats.Requests.Add(1)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.stats.Errors.Add(1)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if !s.verifySignature(body, c.GetHeader(signatureHeader)) {
		s.stats.Errors.Add(1)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		s.stats.Errors.Add(1)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook body"})
		return
	}

	if err := s.dispatch(c.Request.Context(), p); err != nil {
		s.stats.Errors.Add(1)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.stats.Success.Add(1)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// verifySignature computes HMAC-SHA256(secret, body) and compares it
// to the header value in constant time (spec.md §4.M step 1 / §8
// invariant 9: "a request whose computed HMAC differs from the header
// by any single bit returns 401").
func (s *Server) verifySignature(body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}

func (s *Server) dispatch(ctx context.Context, p payload) error {
	switch p.Event {
	case "file.approved", "file.translated":
		ns, ok := s.resolveNamespace(p)
		if !ok {
			_, err := s.engine.SyncAll(ctx)
			return busyIsNotError(err)
		}
		_, err := s.engine.DownloadNamespace(ctx, ns)
		return busyIsNotError(err)
	case "project.approved", "project.translated":
		_, err := s.engine.SyncAll(ctx)
		return busyIsNotError(err)
	case "translation.updated":
		s.log.Info("translation updated upstream", nil)
		return nil
	default:
		s.log.Info(fmt.Sprintf("ignoring unrecognized webhook event %q", p.Event), nil)
		return nil
	}
}

func (s *Server) resolveNamespace(p payload) (string, bool) {
	if p.File == nil || s.namespaceForPath == nil {
		return "", false
	}
	return s.namespaceForPath(p.File.Path)
}

// busyIsNotError maps a busy sync-engine response to success: a
// webhook firing while a sync is already in flight is the expected
// "202 Accepted equivalent" of spec.md §4.L's concurrency guard, not
// an error the caller should surface as a 5xx.
func busyIsNotError(err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsKind(err, apperr.KindBusy) {
		return nil
	}
	return err
}
