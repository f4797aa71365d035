package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
)

// Handler exposes entitlement endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches entitlement routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

// RegisterDevRoutes attaches dev-only entitlement routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
	rg.POST("/usage/plan", h.setPlan)
}

func (h *Handler) getUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	e, err := h.Svc.Get(c.Request.Context(), userID)
	if err != nil {
		respondUsageError(c, err, "failed to fetch entitlements")
		return
	}
	respond.JSON(c, http.StatusOK, e)
}

func (h *Handler) resetUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	e, err := h.Svc.Reset(c.Request.Context(), userID)
	if err != nil {
		respondUsageError(c, err, "failed to reset entitlements")
		return
	}
	respond.JSON(c, http.StatusOK, e)
}

func (h *Handler) setPlan(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	if _, ok := Plans[req.Plan]; !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unknown plan", nil)
		return
	}
	e, err := h.Svc.SetPlan(c.Request.Context(), userID, req.Plan)
	if err != nil {
		respondUsageError(c, err, "failed to set plan")
		return
	}
	respond.JSON(c, http.StatusOK, e)
}

func respondUsageError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
