package projects

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/respond"
)

// BatchStarter dispatches the initial generation batch for a project. The
// revisions service implements it; the indirection keeps this package free
// of the orchestration wiring.
type BatchStarter interface {
	StartInitial(ctx context.Context, projectID string) (jobID string, err error)
}

// Handler exposes project endpoints.
type Handler struct {
	Svc     *Service
	Starter BatchStarter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, starter BatchStarter) *Handler {
	return &Handler{Svc: svc, Starter: starter}
}

// RegisterRoutes attaches project routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects", h.create)
	rg.GET("/projects/:id", h.get)
	rg.GET("/projects/:id/posts", h.listPosts)
	rg.POST("/projects/:id/generate", h.generate)
}

type createRequest struct {
	ClientName   string     `json:"clientName"`
	BriefSummary string     `json:"briefSummary"`
	Plan         []PlanItem `json:"plan"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}

	p, planned, err := h.Svc.Create(c.Request.Context(), CreateInput{
		ClientName:   req.ClientName,
		BriefSummary: req.BriefSummary,
		Plan:         req.Plan,
	})
	if err != nil {
		respondProjectError(c, err, "failed to create project")
		return
	}

	respond.Created(c, gin.H{"project": p, "posts": planned})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondProjectError(c, err, "failed to fetch project")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"project": p})
}

func (h *Handler) listPosts(c *gin.Context) {
	items, err := h.Svc.ListPosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondProjectError(c, err, "failed to fetch posts")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"posts": items})
}

func (h *Handler) generate(c *gin.Context) {
	projectID := c.Param("id")
	jobID, err := h.Starter.StartInitial(c.Request.Context(), projectID)
	if err != nil {
		respondProjectError(c, err, "failed to start generation")
		return
	}
	respond.Accepted(c, gin.H{"projectId": projectID, "jobId": jobID, "status": StatusGenerating})
}

func respondProjectError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
