// Package web is the optional admin HTTP surface (spec.md §6): a
// small gin API for inspecting namespace/sync state and triggering
// reloads and Crowdin syncs by hand. Generalized from the teacher's
// internal/web.AdminServer and internal/proxy.Server.setupRoutes gin
// wiring — struct-holds-managers, RegisterRoutes attaches a route
// group to an externally owned *gin.Engine — with the HTML template
// rendering and endpoint/tagger CRUD stripped out, since nothing in
// this domain is configured through a browser form.
package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/afterlands/langforge/internal/i18n"
	"github.com/afterlands/langforge/internal/security"
)

// AdminServer exposes read/trigger endpoints over the i18n Engine.
// It holds no state of its own; every request reads through to the
// Engine, which already serializes writes per spec.md's subsystem
// contracts.
type AdminServer struct {
	engine  *i18n.Engine
	version string
}

func NewAdminServer(engine *i18n.Engine, version string) *AdminServer {
	return &AdminServer{engine: engine, version: version}
}

// RegisterRoutes attaches the admin API under /admin to router, the
// way the teacher's AdminServer attaches its own route group to the
// proxy's shared *gin.Engine rather than owning a listener itself.
func (s *AdminServer) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/admin")
	api.GET("/status", s.handleStatus)
	api.GET("/languages", s.handleLanguages)
	api.POST("/namespaces/:ns/reload", s.handleReloadNamespace)
	api.POST("/namespaces/:ns/sync", s.handleSyncNamespace)
	api.POST("/sync", s.handleSyncAll)
	api.GET("/namespaces/:ns/export", s.handleExportNamespace)
	api.PUT("/namespaces/:ns/translations/:lang/:key", s.handleSetTranslation)
}

func (s *AdminServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":          s.version,
		"default_language": s.engine.DefaultLanguage(),
		"languages":        s.engine.AvailableLanguages(),
		"sync_in_progress": s.engine.IsSyncInProgress(),
	})
}

func (s *AdminServer) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.engine.AvailableLanguages()})
}

func (s *AdminServer) handleReloadNamespace(c *gin.Context) {
	ns := c.Param("ns")
	if err := security.ValidateNamespaceName(ns); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.engine.ReloadNamespace(ns).Wait(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespace": ns, "reloaded": true})
}

func (s *AdminServer) handleSyncNamespace(c *gin.Context) {
	ns := c.Param("ns")
	if err := security.ValidateNamespaceName(ns); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.engine.SyncNamespace(c.Request.Context(), ns)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *AdminServer) handleSyncAll(c *gin.Context) {
	results, err := s.engine.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// maxTranslationTextLength bounds a single hand-entered translation
// value submitted through the admin API.
const maxTranslationTextLength = 10000

// handleSetTranslation creates or overwrites one dynamic translation
// (namespace, key, language) with admin-supplied text.
func (s *AdminServer) handleSetTranslation(c *gin.Context) {
	ns := c.Param("ns")
	if err := security.ValidateNamespaceName(ns); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lang := c.Param("lang")
	if err := security.ValidateLanguageCode(lang); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := c.Param("key")

	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := security.ValidateGenericText(body.Text, maxTranslationTextLength, "text"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.engine.UpdateTranslation(ns, key, lang, body.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespace": ns, "key": key, "language": lang, "updated": true})
}

func (s *AdminServer) handleExportNamespace(c *gin.Context) {
	ns := c.Param("ns")
	if err := security.ValidateNamespaceName(ns); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lang := c.DefaultQuery("lang", s.engine.DefaultLanguage())
	if err := security.ValidateLanguageCode(lang); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := s.engine.ExportNamespace(lang, ns)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/x-yaml", data)
}
