package authz

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclose/ledger/pkg/middleware"
)

// SubjectProvider resolves the authenticated principal's membership within an
// organization into subject attributes. Implemented by the org package.
type SubjectProvider interface {
	Subject(ctx context.Context, organizationID, userID string) (Subject, error)
}

// HTTPHandler handles authorization HTTP requests: decision checks, capability
// probing, and policy administration.
type HTTPHandler struct {
	svc      *Service
	store    Store
	subjects SubjectProvider
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new authorization HTTP handler.
func NewHTTPHandler(svc *Service, store Store, subjects SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, store: store, subjects: subjects, logger: logger, validate: validator.New()}
}

// RegisterRoutes registers authorization routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/check", h.check)
	rg.POST("/check-batch", h.checkBatch)
	rg.GET("/permissions", h.effectivePermissions)

	policies := rg.Group("/policies")
	{
		policies.POST("", h.createPolicy)
		policies.GET("", h.listPolicies)
		policies.GET("/:id", h.getPolicy)
		policies.PUT("/:id", h.updatePolicy)
		policies.POST("/:id/deactivate", h.deactivatePolicy)
		policies.DELETE("/:id", h.deletePolicy)
	}
}

// EnvironmentFromRequest builds the environment attributes for a check from
// the incoming request.
func EnvironmentFromRequest(c *gin.Context) EnvironmentContext {
	return EnvironmentContext{
		CurrentTime: time.Now(),
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	}
}

func (h *HTTPHandler) subject(c *gin.Context) (Subject, bool) {
	return SubjectFromRequest(c, h.subjects)
}

// SubjectFromRequest resolves the request's authenticated principal and
// organization header into subject attributes. On failure it writes the error
// response itself and returns false.
func SubjectFromRequest(c *gin.Context, subjects SubjectProvider) (Subject, bool) {
	orgID, err := middleware.OrgIDFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization id required"})
		return Subject{}, false
	}
	userID, err := middleware.UserIDFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return Subject{}, false
	}
	subject, err := subjects.Subject(c.Request.Context(), orgID, userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this organization"})
		return Subject{}, false
	}
	return subject, true
}

// WriteError maps authorization errors onto HTTP responses. Infrastructure
// failures deliberately surface as generic server errors, never as
// "permission denied".
func WriteError(c *gin.Context, logger *zap.Logger, err error) {
	var denied *PermissionDeniedError
	if errors.As(err, &denied) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":         "permission denied",
			"action":        denied.Action,
			"resource_type": denied.ResourceType,
			"reason":        denied.Reason,
		})
		return
	}
	var loadErr *PolicyLoadError
	var auditErr *AuditError
	if errors.As(err, &loadErr) || errors.As(err, &auditErr) {
		logger.Error("authorization infrastructure failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type checkRequest struct {
	Action   Action `json:"action" binding:"required"`
	Resource *struct {
		Type       ResourceType   `json:"type" binding:"required"`
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"resource"`
}

func (h *HTTPHandler) check(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}

	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var resource *ResourceContext
	if req.Resource != nil {
		resource = &ResourceContext{
			Type:       req.Resource.Type,
			ID:         req.Resource.ID,
			Attributes: req.Resource.Attributes,
		}
	}

	err := h.svc.CheckPermission(c.Request.Context(), subject, EnvironmentFromRequest(c), req.Action, resource)
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true})
}

type checkBatchRequest struct {
	Actions []Action `json:"actions" binding:"required,min=1"`
}

func (h *HTTPHandler) checkBatch(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}

	var req checkBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.svc.CheckPermissions(c.Request.Context(), subject, EnvironmentFromRequest(c), req.Actions)
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *HTTPHandler) effectivePermissions(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}

	actions, err := h.svc.GetEffectivePermissions(c.Request.Context(), subject, EnvironmentFromRequest(c))
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": actions})
}

type policyRequest struct {
	Name        string     `json:"name" binding:"required" validate:"max=200"`
	Subject     *Condition `json:"subject_condition"`
	Resource    *Condition `json:"resource_condition"`
	Action      *Condition `json:"action_condition"`
	Environment *Condition `json:"environment_condition"`
	Effect      Effect     `json:"effect" binding:"required,oneof=allow deny"`
	Priority    int        `json:"priority" validate:"gte=0,lte=1000"`
	IsActive    *bool      `json:"is_active"`
}

func (r policyRequest) toPolicy(organizationID string) (Policy, error) {
	p := Policy{
		OrganizationID: organizationID,
		Name:           r.Name,
		Subject:        r.Subject,
		Resource:       r.Resource,
		Action:         r.Action,
		Environment:    r.Environment,
		Effect:         r.Effect,
		Priority:       r.Priority,
		IsActive:       true,
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	for _, cond := range []*Condition{p.Subject, p.Resource, p.Action, p.Environment} {
		if cond == nil {
			continue
		}
		if err := cond.validate(); err != nil {
			return Policy{}, err
		}
	}
	return p, nil
}

func (h *HTTPHandler) authorize(c *gin.Context, subject Subject, action Action) bool {
	err := h.svc.CheckPermission(c.Request.Context(), subject, EnvironmentFromRequest(c), action, nil)
	if err != nil {
		WriteError(c, h.logger, err)
		return false
	}
	return true
}

func (h *HTTPHandler) createPolicy(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyCreate) {
		return
	}

	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.toPolicy(subject.OrganizationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.store.Create(c.Request.Context(), p)
	if err != nil {
		h.logger.Error("failed to create policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *HTTPHandler) listPolicies(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyRead) {
		return
	}

	policies, err := h.store.List(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list policies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

func (h *HTTPHandler) getPolicy(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyRead) {
		return
	}

	p, err := h.store.Get(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrPolicyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) updatePolicy(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyUpdate) {
		return
	}

	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.toPolicy(subject.OrganizationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.ID = c.Param("id")

	updated, err := h.store.Update(c.Request.Context(), p)
	if err != nil {
		h.writePolicyStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *HTTPHandler) deactivatePolicy(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyUpdate) {
		return
	}

	if err := h.store.SetActive(c.Request.Context(), subject.OrganizationID, c.Param("id"), false); err != nil {
		h.writePolicyStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *HTTPHandler) deletePolicy(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !h.authorize(c, subject, ActionPolicyDelete) {
		return
	}

	if err := h.store.Delete(c.Request.Context(), subject.OrganizationID, c.Param("id")); err != nil {
		h.writePolicyStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) writePolicyStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
	case errors.Is(err, ErrSystemPolicyImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "system policies are immutable"})
	default:
		h.logger.Error("policy store operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
