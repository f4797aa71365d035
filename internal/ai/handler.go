package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
	"cvbuilder-backend/internal/shared/telemetry"
	"cvbuilder-backend/internal/usage"
)

// Handler exposes writing-assistance endpoints.
type Handler struct {
	Client Client
	Usage  *usage.Service
}

// NewHandler constructs a Handler.
func NewHandler(client Client, usageSvc *usage.Service) *Handler {
	return &Handler{Client: client, Usage: usageSvc}
}

// RegisterRoutes attaches AI routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/generate", h.generate)
}

type generateRequest struct {
	Target         string `json:"target"`
	Existing       string `json:"existing"`
	Role           string `json:"role"`
	Company        string `json:"company"`
	JobDescription string `json:"jobDescription"`
}

func (h *Handler) generate(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	req.Target = strings.TrimSpace(req.Target)
	if !KnownTarget(req.Target) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unknown generation target", gin.H{
			"target": req.Target,
		})
		return
	}

	ent, err := h.Usage.ConsumeAI(c.Request.Context(), userID, 1)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrUpgradeRequired):
			respond.Error(c, http.StatusForbidden, "upgrade_required", "AI assistance requires a Pro plan", nil)
		case errors.Is(err, usage.ErrLimitReached):
			respond.Error(c, http.StatusForbidden, "limit_reached", "AI credit limit reached for this period", nil)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check entitlements", nil)
		}
		return
	}

	text, err := h.Client.GenerateText(c.Request.Context(), GenerateInput{
		Target:         req.Target,
		Existing:       req.Existing,
		Role:           req.Role,
		Company:        req.Company,
		JobDescription: req.JobDescription,
	})
	if err != nil {
		telemetry.Error("ai generate failed", map[string]any{
			"user_id": userID,
			"target":  req.Target,
			"error":   err.Error(),
		})
		if errors.Is(err, ErrNotImplemented) {
			respond.Error(c, http.StatusNotImplemented, "not_implemented", "no LLM provider configured", nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "llm_error", "text generation failed", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"text":          text,
		"aiCreditsUsed": ent.AICreditsUsed,
		"aiCredits":     ent.AICredits,
	})
}
