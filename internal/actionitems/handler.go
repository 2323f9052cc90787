package actionitems

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"situation-backend/internal/analyses"
	"situation-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the action-items service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches checklist routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analyses/:id/action-items", h.listItems)
	rg.PATCH("/analyses/:id/action-items", h.toggleItem)
	rg.GET("/analyses/:id/action-items/progress", h.progress)
}

func (h *Handler) listItems(c *gin.Context) {
	analysisID := c.Param("id")
	items, err := h.Svc.EnsureItems(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, analyses.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "analysis has no result yet", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load action items", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": items})
}

type toggleRequest struct {
	Section   string `json:"section" binding:"required"`
	StepIndex *int   `json:"stepIndex" binding:"required"`
	Completed *bool  `json:"completed" binding:"required"`
}

func (h *Handler) toggleItem(c *gin.Context) {
	analysisID := c.Param("id")
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "section, stepIndex and completed are required", nil)
		return
	}

	item, err := h.Svc.Toggle(c.Request.Context(), analysisID, req.Section, *req.StepIndex, *req.Completed)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "action item not found", nil)
		default:
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"item": item})
}

func (h *Handler) progress(c *gin.Context) {
	analysisID := c.Param("id")
	sections, overall, err := h.Svc.Progress(c.Request.Context(), analysisID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute progress", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"sections": sections,
		"overall":  overall,
	})
}
