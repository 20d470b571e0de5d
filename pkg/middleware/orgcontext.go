package middleware

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// DefaultOrgHeader is the HTTP header used to carry the organization
// identifier when no custom header name is provided.
const DefaultOrgHeader = "X-Org-ID"

// orgContextKey is an unexported key type to avoid collisions in the Gin
// context store.
type orgContextKey string

const orgIDContextKey orgContextKey = "orgID"

// uuidRegex is the regular expression for validating UUIDs.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// OrgConfig captures the knobs for organization extraction.
type OrgConfig struct {
	// HeaderName is the HTTP header inspected for the organization
	// identifier. Defaults to DefaultOrgHeader when empty.
	HeaderName string
}

// OrgExtractor returns a Gin middleware that reads the organization
// identifier from the configured header and stores it on the Gin context for
// downstream handlers. Every policy read and audit write downstream is scoped
// by this id.
func OrgExtractor(cfg OrgConfig) gin.HandlerFunc {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultOrgHeader
	}

	return func(c *gin.Context) {
		orgID := c.GetHeader(headerName)
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing organization identifier",
			})
			return
		}

		if !uuidRegex.MatchString(orgID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid organization id format",
			})
			return
		}

		c.Set(string(orgIDContextKey), orgID)
		ctx := context.WithValue(c.Request.Context(), orgIDContextKey, orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgIDFromGinContext extracts the organization identifier previously stored
// by OrgExtractor.
func OrgIDFromGinContext(c *gin.Context) (string, error) {
	if value, ok := c.Get(string(orgIDContextKey)); ok {
		if orgID, ok := value.(string); ok && orgID != "" {
			return orgID, nil
		}
	}
	return "", errors.New("organization id not found in context")
}

// OrgIDFromContext extracts the organization identifier from a standard
// context. It is useful in service layers where only context.Context is
// available.
func OrgIDFromContext(ctx context.Context) (string, error) {
	if value := ctx.Value(orgIDContextKey); value != nil {
		if orgID, ok := value.(string); ok && orgID != "" {
			return orgID, nil
		}
	}
	return "", errors.New("organization id not found in context")
}
