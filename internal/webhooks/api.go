package webhooks

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
)

// HTTPHandler handles webhook management HTTP requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	subjects authz.SubjectProvider
	logger   *zap.Logger
}

// NewHTTPHandler creates a new webhooks HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, subjects authz.SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, subjects: subjects, logger: logger}
}

// RegisterRoutes registers webhook management routes. Webhook registration is
// organization configuration, so it is gated by organization:update.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	hooks := rg.Group("/webhooks")
	{
		hooks.POST("", h.create)
		hooks.GET("", h.list)
		hooks.GET("/:id", h.get)
		hooks.DELETE("/:id", h.delete)
	}
}

func (h *HTTPHandler) guard(c *gin.Context) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.subjects)
	if !ok {
		return authz.Subject{}, false
	}
	err := h.authzSvc.CheckPermission(c.Request.Context(), subject, authz.EnvironmentFromRequest(c), authz.ActionOrgUpdate, nil)
	if err != nil {
		authz.WriteError(c, h.logger, err)
		return authz.Subject{}, false
	}
	return subject, true
}

type webhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret" binding:"required,min=16"`
	Events []string `json:"events" binding:"required,min=1"`
}

func (h *HTTPHandler) create(c *gin.Context) {
	subject, ok := h.guard(c)
	if !ok {
		return
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.svc.Create(c.Request.Context(), subject.OrganizationID, req.URL, req.Secret, req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *HTTPHandler) list(c *gin.Context) {
	subject, ok := h.guard(c)
	if !ok {
		return
	}

	hooks, err := h.svc.List(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h *HTTPHandler) get(c *gin.Context) {
	subject, ok := h.guard(c)
	if !ok {
		return
	}

	w, err := h.svc.Get(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *HTTPHandler) delete(c *gin.Context) {
	subject, ok := h.guard(c)
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
