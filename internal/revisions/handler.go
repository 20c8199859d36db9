package revisions

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/projects"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/respond"
)

// Handler exposes revision endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches revision routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/revisions", h.requestRevision)
	rg.GET("/projects/:id/revisions", h.listRevisions)
	rg.GET("/revisions/:id", h.getRevision)
}

type revisionRequest struct {
	PostNumbers []int  `json:"postNumbers"`
	Feedback    string `json:"feedback"`
}

func (h *Handler) requestRevision(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}

	var req revisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}

	rev, dec, err := h.Svc.Request(c.Request.Context(), RequestInput{
		ProjectID:   projectID,
		PostNumbers: req.PostNumbers,
		Feedback:    req.Feedback,
	})
	if err != nil {
		respondRevisionError(c, err, "failed to request revision")
		return
	}
	if !dec.Allowed {
		respond.JSON(c, http.StatusPaymentRequired, gin.H{
			"error": gin.H{
				"code":    "revision_scope_exhausted",
				"message": "included revisions are used up",
			},
			"upsell": gin.H{
				"offered":          true,
				"offeredNow":       dec.OfferedNow,
				"allowedRevisions": dec.Scope.AllowedRevisions,
				"usedRevisions":    dec.Scope.UsedRevisions,
				"acceptPath":       "/v1/projects/" + projectID + "/upsell",
			},
		})
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"revision":           rev,
		"attemptNumber":      rev.AttemptNumber,
		"remainingRevisions": dec.Scope.Remaining(),
	})
}

func (h *Handler) listRevisions(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id is required", nil)
		return
	}

	revs, err := h.Svc.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondRevisionError(c, err, "failed to list revisions")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"revisions": revs})
}

func (h *Handler) getRevision(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "revision id is required", nil)
		return
	}

	rev, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		respondRevisionError(c, err, "failed to fetch revision")
		return
	}
	respond.JSON(c, http.StatusOK, rev)
}

func respondRevisionError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "revision not found", nil)
	case errors.Is(err, projects.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
	case errors.Is(err, scope.ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "scope update conflicted, try again", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
