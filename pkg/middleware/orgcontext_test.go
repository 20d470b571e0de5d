package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

const testOrgUUID = "11111111-1111-1111-1111-111111111111"

func TestOrgExtractorSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OrgExtractor(OrgConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		orgID, err := OrgIDFromGinContext(c)
		if err != nil {
			t.Fatalf("expected org id, got error: %v", err)
		}
		if orgID != testOrgUUID {
			t.Fatalf("unexpected org id: %s", orgID)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(DefaultOrgHeader, testOrgUUID)
	res := httptest.NewRecorder()

	r.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestOrgExtractorMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OrgExtractor(OrgConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	res := httptest.NewRecorder()

	r.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestOrgExtractorInvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OrgExtractor(OrgConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(DefaultOrgHeader, "invalid-org-id")
	res := httptest.NewRecorder()

	r.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid UUID, got %d", res.Code)
	}
}

func TestOrgExtractorCustomHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OrgExtractor(OrgConfig{HeaderName: "X-Customer-Org"}))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Customer-Org", testOrgUUID)
	res := httptest.NewRecorder()

	r.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with custom header, got %d", res.Code)
	}
}

func TestOrgIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), orgIDContextKey, testOrgUUID)
	orgID, err := OrgIDFromContext(ctx)
	if err != nil {
		t.Fatalf("expected org id, got error: %v", err)
	}
	if orgID != testOrgUUID {
		t.Fatalf("unexpected org id: %s", orgID)
	}

	if _, err := OrgIDFromContext(context.Background()); err == nil {
		t.Fatal("expected error for empty context")
	}
}
