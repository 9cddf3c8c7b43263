// Package server exposes the migration over a small REST API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"neon2retro/internal/migration"
	"neon2retro/internal/neon"
	"neon2retro/internal/normalize"
)

// Runner runs migrations and connection checks.
type Runner interface {
	Run(ctx context.Context, req migration.Request) (*migration.Summary, error)
	CheckConnections(ctx context.Context) migration.ConnectionStatus
}

// RecordLister lists source invoices.
type RecordLister interface {
	ListSummaries(ctx context.Context, limit int) ([]neon.RecordSummary, error)
}

// RecordListerFunc adapts a function to RecordLister.
type RecordListerFunc func(ctx context.Context, limit int) ([]neon.RecordSummary, error)

func (f RecordListerFunc) ListSummaries(ctx context.Context, limit int) ([]neon.RecordSummary, error) {
	return f(ctx, limit)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Runner         Runner
	Records        RecordLister
	AllowedOrigins []string
	Version        string
}

type handler struct {
	deps Deps

	// Guards the shared destination session: one push or connection check at a time.
	running sync.Mutex
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{deps: deps}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/", h.index)
	router.GET("/health", h.health)
	router.GET("/mappings", h.mappings)
	router.GET("/records", h.records)
	router.GET("/test-connection", h.testConnection)
	router.POST("/push", h.push)

	return router
}

func (h *handler) index(c *gin.Context) {
	ok(c, "Neon to Retro invoice migration API", gin.H{
		"version": h.deps.Version,
		"endpoints": []string{
			"GET /health",
			"GET /mappings",
			"GET /records?limit=N",
			"GET /test-connection",
			"POST /push",
		},
	})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.deps.Version})
}

func (h *handler) mappings(c *gin.Context) {
	ok(c, "Field mappings", normalize.Fields)
}

func (h *handler) records(c *gin.Context) {
	limit := migration.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer", gin.H{"limit": raw})
			return
		}
		limit = n
	}

	summaries, err := h.deps.Records.ListSummaries(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, "Could not list source records", nil)
		return
	}
	ok(c, "Source records", summaries)
}

func (h *handler) testConnection(c *gin.Context) {
	// The check logs in again; it must not replace the session of a running push.
	if !h.running.TryLock() {
		fail(c, http.StatusConflict, "A migration is already running", nil)
		return
	}
	defer h.running.Unlock()

	status := h.deps.Runner.CheckConnections(c.Request.Context())
	if !status.OK() {
		fail(c, http.StatusServiceUnavailable, "Connection check failed", status)
		return
	}
	ok(c, "All connections healthy", status)
}

// pushRequest is the body of POST /push. Both fields are optional.
type pushRequest struct {
	RecordID *int64 `json:"record_id"`
	Limit    *int   `json:"limit"`
}

func (h *handler) push(c *gin.Context) {
	var body pushRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid request body", err.Error())
			return
		}
	}

	req := migration.Request{RecordID: body.RecordID}
	if body.Limit != nil {
		if *body.Limit <= 0 {
			badRequest(c, "limit must be a positive integer", gin.H{"limit": *body.Limit})
			return
		}
		req.Limit = *body.Limit
	}

	if !h.running.TryLock() {
		fail(c, http.StatusConflict, "A migration is already running", nil)
		return
	}
	defer h.running.Unlock()

	summary, err := h.deps.Runner.Run(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		fail(c, statusFor(err), err.Error(), summary)
		return
	}

	ok(c, "Migration finished", summary)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, migration.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, migration.ErrNoRecords):
		return http.StatusNotFound
	case errors.Is(err, migration.ErrAuthentication):
		return http.StatusBadGateway
	case errors.Is(err, migration.ErrSourceUnavailable), errors.Is(err, migration.ErrFetch):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
