package analyses

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"situation-backend/internal/llm"
	"situation-backend/internal/shared/server/respond"
)

// Operator-facing hint appended when the upstream assistant misbehaves.
const upstreamChecklist = "check: assistant id matches the configured project, response schema is attached to the assistant, and the API key has Assistants access"

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	Watcher Waiter
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, watcher Waiter) *Handler {
	return &Handler{
		Svc:     svc,
		Watcher: watcher,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/wait", h.waitAnalysis)
}

type submitRequest struct {
	InputText string       `json:"inputText" binding:"required"`
	UserID    string       `json:"userId" binding:"required"`
	UserEmail string       `json:"userEmail"`
	Files     []fileUpload `json:"files"`
}

type fileUpload struct {
	Name     string `json:"name" binding:"required"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "inputText and userId are required", nil)
		return
	}

	attachments := make([]llm.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file "+f.Name+" is not valid base64", nil)
			return
		}
		attachments = append(attachments, llm.Attachment{
			Name:     f.Name,
			MimeType: f.MimeType,
			Data:     data,
		})
	}

	out, err := h.Svc.Submit(c.Request.Context(), SubmitInput{
		InputText:   req.InputText,
		UserID:      req.UserID,
		UserEmail:   req.UserEmail,
		Attachments: attachments,
	})
	if err != nil {
		code := ClassifyFailure(err)
		status := http.StatusInternalServerError
		if code == ErrorCodeValidation {
			status = http.StatusBadRequest
		}
		msg := sanitizeError(err)
		if code == ErrorCodeUpstream || code == ErrorCodeConfiguration {
			msg = msg + "; " + upstreamChecklist
		}
		body := gin.H{
			"success": false,
			"error":   gin.H{"code": code, "message": msg},
		}
		if out.JobID != "" {
			body["jobId"] = out.JobID
		}
		respond.JSON(c, status, body)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"success":     true,
		"jobId":       out.JobID,
		"elapsedTime": out.ElapsedMs,
		"data":        out.Result,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	jobID := c.Param("id")
	userID := c.Query("userId")
	if !h.limiter.Allow(userID, jobID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too fast, retry shortly", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "analysis id is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, analysisResponse(analysis))
}

func (h *Handler) waitAnalysis(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "analysis id is required", nil)
		return
	}

	analysis, err := h.Watcher.Wait(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWatchTimeout):
			respond.Error(c, http.StatusGatewayTimeout, ErrorCodeTimeout, sanitizeError(err), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, sanitizeError(err), nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, analysisResponse(analysis))
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "userId is required", nil)
		return
	}

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list analyses", nil)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, a := range items {
		out = append(out, analysisResponse(a))
	}
	respond.JSON(c, http.StatusOK, gin.H{"analyses": out})
}

func analysisResponse(a Analysis) gin.H {
	resp := gin.H{
		"id":        a.ID,
		"status":    a.Status,
		"isReady":   a.IsReady,
		"createdAt": a.CreatedAt,
	}
	if a.IsReady && a.Result != nil {
		resp["data"] = a.Result
	}
	if a.ErrorMessage != nil && *a.ErrorMessage != "" {
		resp["error"] = *a.ErrorMessage
	}
	if a.ProcessingCompletedAt != nil {
		resp["completedAt"] = *a.ProcessingCompletedAt
	}
	return resp
}
