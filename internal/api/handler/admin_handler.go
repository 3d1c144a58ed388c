package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/service"
	"github.com/timmy/imageguard/internal/source/localdir"
)

// AdminHandler handles bulk import operations.
type AdminHandler struct {
	importService *service.ImportService
	importRoot    string
	localizer     *i18n.Localizer

	// Import job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.ImportStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - importService: import service instance.
//   - importRoot: directory that import requests are confined to.
//   - localizer: message catalog for error responses.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(importService *service.ImportService, importRoot string, localizer *i18n.Localizer) *AdminHandler {
	return &AdminHandler{
		importService: importService,
		importRoot:    importRoot,
		localizer:     localizer,
	}
}

// ImportRequest represents the import API request.
type ImportRequest struct {
	Scope string `json:"scope" binding:"required"`
	Dir   string `json:"dir"` // relative to the import root
	Limit int    `json:"limit" binding:"required,min=1,max=10000"`
}

// ImportResponse represents the import API response.
type ImportResponse struct {
	Message string               `json:"message"`
	Stats   *service.ImportStats `json:"stats,omitempty"`
}

// ImportStatusResponse represents the import status.
type ImportStatusResponse struct {
	IsRunning     bool                 `json:"is_running"`
	LastRunTime   string               `json:"last_run_time,omitempty"`
	LastRunStatus string               `json:"last_run_status,omitempty"`
	CurrentStats  *service.ImportStats `json:"current_stats,omitempty"`
}

// TriggerImport handles POST /api/v1/admin/import. The import runs to
// completion before the response is written; only one runs at a time.
func (h *AdminHandler) TriggerImport(c *gin.Context) {
	ctx := c.Request.Context()

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.localizer, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	dir, err := h.resolveDir(req.Dir)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Import request rejected: already running, scope=%s", req.Scope)
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:      i18n.KeyImportRunning,
			Message:   h.localizer.Text(c.GetHeader("Accept-Language"), i18n.KeyImportRunning),
			RequestID: logger.GetRequestID(ctx),
		})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting import: scope=%s, dir=%s, limit=%d", req.Scope, dir, req.Limit)

	// Detached from the request so a client timeout does not abort the run
	importCtx := logger.FromContext(ctx).WithContext(context.Background())
	startTime := time.Now()
	stats, err := h.importService.ImportFromSource(importCtx, req.Scope, localdir.NewAdapter(dir), req.Limit)
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{logger.FieldScopeID: req.Scope}).
			WithDuration(duration.Milliseconds()).
			Error(ctx, "Import failed: scope=%s, error=%v", req.Scope, err)
		respondError(c, h.localizer, err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Message: "Import completed",
		Stats:   stats,
	})
}

// GetImportStatus handles GET /api/v1/admin/import/status.
func (h *AdminHandler) GetImportStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := ImportStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// resolveDir joins rel onto the import root, refusing paths that escape it.
func (h *AdminHandler) resolveDir(rel string) (string, error) {
	root, err := filepath.Abs(h.importRoot)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if dir != root && !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: dir must stay inside the import root", domain.ErrInvalidInput)
	}
	return dir, nil
}
