package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
)

// HTTPHandler handles denial audit review requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	subjects authz.SubjectProvider
	logger   *zap.Logger
}

// NewHTTPHandler creates a new audit HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, subjects authz.SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, subjects: subjects, logger: logger}
}

// RegisterRoutes registers audit routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/denials", h.listDenials)
	rg.GET("/denials/export", h.exportDenials)
	rg.GET("/denials/:id", h.getDenial)
}

func (h *HTTPHandler) guard(c *gin.Context, action authz.Action) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.subjects)
	if !ok {
		return authz.Subject{}, false
	}
	err := h.authzSvc.CheckPermission(c.Request.Context(), subject, authz.EnvironmentFromRequest(c), action, nil)
	if err != nil {
		authz.WriteError(c, h.logger, err)
		return authz.Subject{}, false
	}
	return subject, true
}

func (h *HTTPHandler) params(c *gin.Context, organizationID string) QueryParams {
	params := QueryParams{OrganizationID: organizationID}
	if v := c.Query("user_id"); v != "" {
		params.UserID = &v
	}
	if v := c.Query("action"); v != "" {
		params.Action = &v
	}
	if v := c.Query("resource_type"); v != "" {
		params.ResourceType = &v
	}
	if v := c.Query("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := c.Query("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}
	return params
}

func (h *HTTPHandler) listDenials(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAuditRead)
	if !ok {
		return
	}

	denials, total, err := h.svc.Query(c.Request.Context(), h.params(c, subject.OrganizationID))
	if err != nil {
		h.logger.Error("failed to query denials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"denials": denials, "total": total})
}

func (h *HTTPHandler) exportDenials(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAuditExport)
	if !ok {
		return
	}

	denials, err := h.svc.Export(c.Request.Context(), h.params(c, subject.OrganizationID))
	if err != nil {
		h.logger.Error("failed to export denials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"denials": denials})
}

func (h *HTTPHandler) getDenial(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAuditRead)
	if !ok {
		return
	}

	d, err := h.svc.Get(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "denial entry not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get denial", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}
