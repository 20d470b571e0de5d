package period

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
)

// HTTPHandler handles fiscal period HTTP requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	subjects authz.SubjectProvider
	logger   *zap.Logger
}

// NewHTTPHandler creates a new fiscal period HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, subjects authz.SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, subjects: subjects, logger: logger}
}

// RegisterRoutes registers fiscal period routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	periods := rg.Group("/periods")
	{
		periods.POST("", h.create)
		periods.GET("", h.list)
		periods.GET("/:id", h.get)
		periods.PUT("/:id", h.update)
		periods.POST("/:id/close", h.close)
		periods.POST("/:id/lock", h.lock)
		periods.POST("/:id/reopen", h.reopen)
	}
}

// guard checks the action against the period's own attributes, so deny
// policies on periodStatus apply to status transitions too.
func (h *HTTPHandler) guard(c *gin.Context, action authz.Action, periodID string) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.subjects)
	if !ok {
		return authz.Subject{}, false
	}

	var resource *authz.ResourceContext
	if periodID != "" {
		rc, err := h.svc.ResourceContext(c.Request.Context(), subject.OrganizationID, periodID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fiscal period not found"})
			return authz.Subject{}, false
		}
		if err != nil {
			h.logger.Error("failed to load period attributes", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return authz.Subject{}, false
		}
		resource = &rc
	}

	err := h.authzSvc.CheckPermission(c.Request.Context(), subject, authz.EnvironmentFromRequest(c), action, resource)
	if err != nil {
		authz.WriteError(c, h.logger, err)
		return authz.Subject{}, false
	}
	return subject, true
}

type periodRequest struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

func (h *HTTPHandler) create(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionPeriodCreate, "")
	if !ok {
		return
	}

	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.Create(c.Request.Context(), FiscalPeriod{
		OrganizationID: subject.OrganizationID,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		h.logger.Error("failed to create period", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *HTTPHandler) list(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionPeriodRead, "")
	if !ok {
		return
	}

	periods, err := h.svc.List(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list periods", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (h *HTTPHandler) get(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionPeriodRead, "")
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "fiscal period not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get period", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) update(c *gin.Context) {
	id := c.Param("id")
	subject, ok := h.guard(c, authz.ActionPeriodUpdate, id)
	if !ok {
		return
	}

	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.Update(c.Request.Context(), FiscalPeriod{
		ID:             id,
		OrganizationID: subject.OrganizationID,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) close(c *gin.Context) {
	h.statusChange(c, authz.ActionPeriodClose, Service.Close)
}

func (h *HTTPHandler) lock(c *gin.Context) {
	h.statusChange(c, authz.ActionPeriodLock, Service.Lock)
}

func (h *HTTPHandler) reopen(c *gin.Context) {
	h.statusChange(c, authz.ActionPeriodReopen, Service.Reopen)
}

func (h *HTTPHandler) statusChange(c *gin.Context, action authz.Action, op func(Service, context.Context, string, string) error) {
	id := c.Param("id")
	subject, ok := h.guard(c, action, id)
	if !ok {
		return
	}

	if err := op(h.svc, c.Request.Context(), subject.OrganizationID, id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(c *gin.Context, err error) {
	var transition *ErrInvalidTransition
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "fiscal period not found"})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("period operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
