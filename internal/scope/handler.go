package scope

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/metrics"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/respond"
)

// Handler exposes scope endpoints.
type Handler struct {
	Engine *Engine
}

// NewHandler constructs a Handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{Engine: engine}
}

// RegisterRoutes attaches scope routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/projects/:id/scope", h.getScope)
	rg.POST("/projects/:id/upsell", h.acceptUpsell)
}

func (h *Handler) getScope(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}

	sc, err := h.Engine.Get(c.Request.Context(), projectID)
	if err != nil {
		respondScopeError(c, err, "failed to fetch scope")
		return
	}

	respond.JSON(c, http.StatusOK, scopePayload(sc))
}

type upsellRequest struct {
	AdditionalRevisions int `json:"additionalRevisions"`
}

func (h *Handler) acceptUpsell(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}

	var req upsellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	if req.AdditionalRevisions <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "additionalRevisions must be positive", nil)
		return
	}

	sc, err := h.Engine.AcceptUpsell(c.Request.Context(), projectID, req.AdditionalRevisions)
	if err != nil {
		respondScopeError(c, err, "failed to accept upsell")
		return
	}
	metrics.IncUpsellAccepted()

	respond.JSON(c, http.StatusOK, scopePayload(sc))
}

func scopePayload(sc Scope) gin.H {
	return gin.H{
		"projectId":          sc.ProjectID,
		"allowedRevisions":   sc.AllowedRevisions,
		"usedRevisions":      sc.UsedRevisions,
		"remainingRevisions": sc.Remaining(),
		"upsellOffered":      sc.UpsellOffered,
		"upsellAccepted":     sc.UpsellAccepted,
	}
}

func respondScopeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "project scope not found", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "scope update conflicted, try again", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
