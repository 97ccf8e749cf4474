package http

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ftm-project/ftm/internal/errors"
)

// EFS holds the embedded minimal web UI.
//
//go:embed static
var EFS embed.FS

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initAPIRouter()
}

func (s *Service) initBaseRouter() {
	staticDir, _ := fs.Sub(EFS, "static")

	s.router.StaticFS("/static", http.FS(staticDir))
	s.router.StaticFileFS("/", "./index.html", http.FS(staticDir))

	s.router.NoRoute(s.NoRoute)
}

func (s *Service) initAPIRouter() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/files", s.handleFiles)
		api.GET("/history", s.handleHistory)
		api.GET("/activity", s.handleActivity)
		api.GET("/diff", s.handleDiff)
		api.GET("/snapshot", s.handleSnapshot)
		api.POST("/scan", s.handleScan)
		api.POST("/restore", s.handleRestore)
		api.GET("/stats", s.handleStats)
		api.POST("/clean", s.handleClean)
		api.POST("/shutdown", s.handleShutdown)

		api.GET("/config", s.handleConfigGet)
		api.POST("/config", s.handleConfigSet)
	}
}

func (s *Service) handleClean(c *gin.Context) {
	s.engine.Clean()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Service) handleConfigGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetConfig())
}

func (s *Service) handleConfigSet(c *gin.Context) {
	body := struct {
		Key   string `json:"key" binding:"required"`
		Value any    `json:"value"`
	}{}
	if err := c.BindJSON(&body); err != nil {
		errors.Err(c, err)
		return
	}
	if err := s.engine.SetConfig(body.Key, body.Value); err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleShutdown backs `ftm stop`: not part of spec.md's response table,
// but required for the CLI surface it promises in §6 ("stop") to work
// over HTTP rather than process signals.
func (s *Service) handleShutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
	if s.onShutdown != nil {
		go s.onShutdown()
	}
}

// NoRoute mirrors the teacher's split: JSON 404 under /api or /static,
// otherwise redirect to the embedded UI's root.
func (s *Service) NoRoute(c *gin.Context) {
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, "/api"), strings.HasPrefix(path, "/static"):
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	default:
		c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
		c.Redirect(http.StatusFound, "/")
	}
}

func (s *Service) handleHealth(c *gin.Context) {
	body := gin.H{"watch_dir": s.engine.WatchDir()}
	if free, err := s.engine.DiskFree(); err == nil {
		body["disk_free"] = free
	}
	c.JSON(http.StatusOK, body)
}

func (s *Service) handleFiles(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"
	c.JSON(http.StatusOK, s.engine.Files(includeDeleted))
}

func (s *Service) handleHistory(c *gin.Context) {
	file := c.Query("file")
	if file == "" {
		errors.Err(c, errors.InvalidConfig("file", "required"))
		return
	}
	c.JSON(http.StatusOK, s.engine.History(file))
}

func (s *Service) handleActivity(c *gin.Context) {
	since, err := parseOptionalTime(c.Query("since"))
	if err != nil {
		errors.Err(c, errors.InvalidConfig("since", "must be RFC3339"))
		return
	}
	until, err := parseOptionalTime(c.Query("until"))
	if err != nil {
		errors.Err(c, errors.InvalidConfig("until", "must be RFC3339"))
		return
	}
	includeDeleted := c.Query("include_deleted") == "true"
	c.JSON(http.StatusOK, s.engine.Activity(since, until, includeDeleted))
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Service) handleDiff(c *gin.Context) {
	to := c.Query("to")
	if to == "" {
		errors.Err(c, errors.InvalidConfig("to", "required"))
		return
	}
	from := c.Query("from")

	result, err := s.engine.Diff(from, to)
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Service) handleSnapshot(c *gin.Context) {
	checksum := c.Query("checksum")
	if checksum == "" {
		errors.Err(c, errors.InvalidConfig("checksum", "required"))
		return
	}
	data, err := s.engine.Snapshot(checksum)
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (s *Service) handleScan(c *gin.Context) {
	result, err := s.engine.Scan()
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Service) handleRestore(c *gin.Context) {
	body := struct {
		File     string `json:"file" binding:"required"`
		Checksum string `json:"checksum" binding:"required"`
	}{}
	if err := c.BindJSON(&body); err != nil {
		errors.Err(c, err)
		return
	}

	if err := s.engine.Restore(body.File, body.Checksum); err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Service) handleStats(c *gin.Context) {
	count, maxHistory, quotaBytes, maxQuota := s.engine.Stats()
	body := gin.H{
		"history":     count,
		"max_history": maxHistory,
		"quota":       quotaBytes,
		"max_quota":   maxQuota,
	}
	if free, err := s.engine.DiskFree(); err == nil {
		body["disk_free"] = free
	}
	body["tracked_size"] = s.engine.TrackedSize()
	c.JSON(http.StatusOK, body)
}
