// Package http exposes the import control surface consumed by the
// dashboard: enqueueing, queue status, registry listing and run history.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/infrastructure/registry"
	"jobfeed/src/storage/postgres/importrunctrl"
)

// ImportQueue is the enqueue-side of the work queue.
type ImportQueue interface {
	Enqueue(ctx context.Context, feedURL, source string, delay time.Duration) (*queue.Enqueued, error)
	Counts(ctx context.Context) (*queue.Counts, error)
}

// Sweeper triggers a full-registry import on demand.
type Sweeper interface {
	ImportAll(ctx context.Context) ([]queue.Enqueued, error)
}

// RunReader reads the import ledger.
type RunReader interface {
	Get(ctx context.Context, id int64) (*importrunctrl.ImportRun, error)
	List(ctx context.Context, page, limit int, source string) ([]importrunctrl.ImportRun, int64, error)
}

type ImportHandler struct {
	queue   ImportQueue
	sweeper Sweeper
	runs    RunReader
}

func NewImportHandler(q ImportQueue, sweeper Sweeper, runs RunReader) *ImportHandler {
	return &ImportHandler{
		queue:   q,
		sweeper: sweeper,
		runs:    runs,
	}
}

// RegisterRoutes registers the import control routes.
func (h *ImportHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	imp := r.Group("/import")
	imp.POST("/start", h.StartImport)
	imp.POST("/auto", h.StartAutoImport)
	imp.GET("/endpoints", h.ListEndpoints)
	imp.GET("/queue/status", h.QueueStatus)
	imp.GET("/history", h.ImportHistory)
	imp.GET("/history/:id", h.ImportRunDetails)
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func sendData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func sendMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Message: message})
}

type startImportRequest struct {
	URLs []string `json:"urls"`
}

// StartImport enqueues one import task per given feed URL, inferring the
// provider from the URL pattern.
func (h *ImportHandler) StartImport(c *gin.Context) {
	var req startImportRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		sendError(c, http.StatusBadRequest, "urls array is required")
		return
	}

	var queued []queue.Enqueued
	for _, url := range req.URLs {
		source := registry.SourceForURL(url)
		enq, err := h.queue.Enqueue(c.Request.Context(), url, string(source), 0)
		if err != nil {
			sendError(c, http.StatusInternalServerError, "failed to start import: "+err.Error())
			return
		}
		queued = append(queued, *enq)
	}

	sendMessage(c, http.StatusOK,
		strconv.Itoa(len(queued))+" import jobs queued successfully", queued)
}

// StartAutoImport triggers the scheduler's full-registry sweep on demand.
func (h *ImportHandler) StartAutoImport(c *gin.Context) {
	queued, err := h.sweeper.ImportAll(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "failed to start auto import: "+err.Error())
		return
	}

	sendMessage(c, http.StatusOK,
		strconv.Itoa(len(queued))+" auto import jobs queued successfully", queued)
}

// ListEndpoints returns the endpoint catalogue plus per-source endpoint
// counts and the category tags parsable from endpoint URLs.
func (h *ImportHandler) ListEndpoints(c *gin.Context) {
	endpoints := registry.Endpoints()

	summary := make(map[string]int)
	for _, e := range endpoints {
		summary[string(e.Source)]++
	}

	sendData(c, http.StatusOK, gin.H{
		"endpoints":  endpoints,
		"sources":    summary,
		"categories": registry.Categories(),
	})
}

// QueueStatus reports waiting/active/completed/failed task counts.
func (h *ImportHandler) QueueStatus(c *gin.Context) {
	counts, err := h.queue.Counts(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "failed to get queue status: "+err.Error())
		return
	}
	sendData(c, http.StatusOK, counts)
}

// ImportHistory returns a page of import runs, newest first.
func (h *ImportHandler) ImportHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	source := c.Query("source")

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	runs, total, err := h.runs.List(c.Request.Context(), page, limit, source)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "failed to get import history: "+err.Error())
		return
	}

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}

	sendData(c, http.StatusOK, gin.H{
		"logs": runs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": pages,
		},
	})
}

// ImportRunDetails returns one ledger entry by id.
func (h *ImportHandler) ImportRunDetails(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "invalid import run id")
		return
	}

	run, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, importrunctrl.ErrRunNotFound) {
			sendError(c, http.StatusNotFound, "import run not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "failed to get import run: "+err.Error())
		return
	}

	sendData(c, http.StatusOK, run)
}

// Health is a plain liveness probe.
func (h *ImportHandler) Health(c *gin.Context) {
	sendData(c, http.StatusOK, gin.H{"status": "ok"})
}
