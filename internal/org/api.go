package org

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
	"github.com/openclose/ledger/pkg/middleware"
)

// HTTPHandler handles organization and membership HTTP requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	logger   *zap.Logger
}

// NewHTTPHandler creates a new organization HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, logger: logger}
}

// RegisterRoutes registers organization routes. createOrganization and
// listMyOrganizations only need an authenticated user, not an organization
// header, so they register on the authenticated group.
func (h *HTTPHandler) RegisterRoutes(authed, scoped *gin.RouterGroup) {
	authed.POST("/organizations", h.createOrganization)
	authed.GET("/organizations", h.listMyOrganizations)

	o := scoped.Group("/organization")
	{
		o.GET("", h.getOrganization)
		o.PUT("", h.updateOrganization)
		o.GET("/members", h.listMembers)
		o.PUT("/members/:userId", h.setMember)
		o.DELETE("/members/:userId", h.removeMember)
	}
}

func (h *HTTPHandler) guard(c *gin.Context, action authz.Action) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.svc)
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

type createOrganizationRequest struct {
	Name         string `json:"name" binding:"required"`
	BaseCurrency string `json:"base_currency"`
}

func (h *HTTPHandler) createOrganization(c *gin.Context) {
	userID, err := middleware.UserIDFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.svc.CreateOrganization(c.Request.Context(), req.Name, req.BaseCurrency, userID)
	if err != nil {
		h.logger.Error("failed to create organization", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *HTTPHandler) listMyOrganizations(c *gin.Context) {
	userID, err := middleware.UserIDFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	orgs, err := h.svc.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list organizations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (h *HTTPHandler) getOrganization(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionOrgRead)
	if !ok {
		return
	}

	o, err := h.svc.GetOrganization(c.Request.Context(), subject.OrganizationID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get organization", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

type updateOrganizationRequest struct {
	Name         string `json:"name" binding:"required"`
	BaseCurrency string `json:"base_currency" binding:"required,len=3"`
}

func (h *HTTPHandler) updateOrganization(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionOrgUpdate)
	if !ok {
		return
	}

	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.UpdateOrganization(c.Request.Context(), Organization{
		ID:           subject.OrganizationID,
		Name:         req.Name,
		BaseCurrency: req.BaseCurrency,
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update organization", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) listMembers(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionOrgRead)
	if !ok {
		return
	}

	members, err := h.svc.ListMemberships(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list members", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type setMemberRequest struct {
	BaseRole        string   `json:"base_role" binding:"required,oneof=owner admin member viewer"`
	FunctionalRoles []string `json:"functional_roles"`
}

func (h *HTTPHandler) setMember(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionOrgManageMembers)
	if !ok {
		return
	}

	var req setMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.SetMembership(c.Request.Context(), Membership{
		UserID:          c.Param("userId"),
		OrganizationID:  subject.OrganizationID,
		BaseRole:        req.BaseRole,
		FunctionalRoles: pq.StringArray(req.FunctionalRoles),
	})
	if err != nil {
		h.logger.Error("failed to set membership", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *HTTPHandler) removeMember(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionOrgManageMembers)
	if !ok {
		return
	}

	if err := h.svc.RemoveMembership(c.Request.Context(), subject.OrganizationID, c.Param("userId")); err != nil {
		h.logger.Error("failed to remove membership", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
