package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/service"
)

// RegistryHandler serves the add / del / list command surface.
type RegistryHandler struct {
	registry  *service.RegistryService
	localizer *i18n.Localizer
	maxUpload int64
}

// NewRegistryHandler creates a new registry handler.
// Parameters:
//   - registry: registry service instance.
//   - localizer: message catalog for responses.
//   - maxUpload: largest accepted multipart file in bytes.
//
// Returns:
//   - *RegistryHandler: initialized handler.
func NewRegistryHandler(registry *service.RegistryService, localizer *i18n.Localizer, maxUpload int64) *RegistryHandler {
	return &RegistryHandler{
		registry:  registry,
		localizer: localizer,
		maxUpload: maxUpload,
	}
}

// AddImageRequest is the JSON form of an add command.
type AddImageRequest struct {
	ContentID string `json:"content_id"`
	URL       string `json:"url"`
}

// AddImageResponse reports the stored reference.
type AddImageResponse struct {
	Message string                 `json:"message"`
	Image   *domain.ReferenceImage `json:"image"`
}

// AddImage handles POST /api/v1/scopes/:scope/images.
// Accepts JSON {content_id, url} or a multipart "file" with optional "content_id".
func (h *RegistryHandler) AddImage(c *gin.Context) {
	candidate, err := h.bindCandidate(c)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	ref, err := h.registry.Add(c.Request.Context(), c.Param("scope"), candidate)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	c.JSON(http.StatusCreated, AddImageResponse{
		Message: h.localizer.Text(c.GetHeader("Accept-Language"), i18n.KeySuccessToAdd, ref.Seq),
		Image:   ref,
	})
}

func (h *RegistryHandler) bindCandidate(c *gin.Context) (domain.Candidate, error) {
	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("file")
		if err != nil {
			return domain.Candidate{}, withKey(i18n.KeyImageToAdd, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		}
		if h.maxUpload > 0 && fh.Size > h.maxUpload {
			return domain.Candidate{}, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, h.maxUpload)
		}
		f, err := fh.Open()
		if err != nil {
			return domain.Candidate{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return domain.Candidate{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return domain.Candidate{ContentID: c.PostForm("content_id"), Data: data}, nil
	}

	var req AddImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if req.URL == "" && req.ContentID == "" {
		return domain.Candidate{}, withKey(i18n.KeyImageToAdd, fmt.Errorf("%w: url or content_id is required", domain.ErrInvalidInput))
	}
	return domain.Candidate{ContentID: req.ContentID, URL: req.URL}, nil
}

// ListImagesResponse is one page of a scope's images.
type ListImagesResponse struct {
	*service.Page
	Message string `json:"message,omitempty"`
}

// ListImages handles GET /api/v1/scopes/:scope/images?page=N.
func (h *RegistryHandler) ListImages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		respondError(c, h.localizer, fmt.Errorf("%w: page must be a number", domain.ErrInvalidInput))
		return
	}

	result, err := h.registry.List(c.Request.Context(), c.Param("scope"), page)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	resp := ListImagesResponse{Page: result}
	if len(result.Items) == 0 {
		resp.Message = h.localizer.Text(c.GetHeader("Accept-Language"), i18n.KeyHasNoImage)
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteImage handles DELETE /api/v1/scopes/:scope/images/:seq.
func (h *RegistryHandler) DeleteImage(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	ref, err := h.registry.Delete(c.Request.Context(), c.Param("scope"), seq)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": h.localizer.Text(c.GetHeader("Accept-Language"), i18n.KeyDelSuccess),
		"image":   ref,
	})
}

// GetImageFile handles GET /api/v1/images/:seq/file.
func (h *RegistryHandler) GetImageFile(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}

	rc, err := h.registry.OpenImage(c.Request.Context(), seq)
	if err != nil {
		respondError(c, h.localizer, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, "image/png", rc, nil)
}

// parseSeq reads the :seq path parameter. A non-numeric value is reported
// as text-only, an out-of-range number as non-exist.
func parseSeq(c *gin.Context) (uint, error) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return 0, fmt.Errorf("sequence %s: %w", c.Param("seq"), domain.ErrNotFound)
		}
		return 0, withKey(i18n.KeyTextOnly, fmt.Errorf("%w: sequence number must be numeric", domain.ErrInvalidInput))
	}
	return uint(seq), nil
}
