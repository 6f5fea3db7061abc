package validation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func failJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// fakeLanding mimics the landing routes the validator touches.
func fakeLanding(healthStatus string) *httptest.Server {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": healthStatus})
	})
	r.GET("/api/public/:tenant/*rest", func(c *gin.Context) {
		if c.Param("tenant") != "azul" {
			failJSON(c, http.StatusNotFound, "tenant not found")
			return
		}
		switch c.Param("rest") {
		case "/site":
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"brand": gin.H{}, "layout": gin.H{}}})
		case "/events":
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"items": []gin.H{{"id": "e1"}}, "total": 1}})
		case "/events/e1/availability":
			c.JSON(http.StatusOK, gin.H{"success": true, "data": []gin.H{}})
		case "/persons/12ab":
			failJSON(c, http.StatusBadRequest, "document must be 8 digits")
		default:
			failJSON(c, http.StatusNotFound, "not found")
		}
	})
	r.POST("/api/public/:tenant/checkout", func(c *gin.Context) {
		failJSON(c, http.StatusBadRequest, "invalid request body")
	})
	return httptest.NewServer(r)
}

func fakeBackoffice(token string) *httptest.Server {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	authed := func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+token {
			failJSON(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
	}
	r.GET("/api/me", authed)
	r.GET("/api/events", authed)
	return httptest.NewServer(r)
}

func TestValidateAllPasses(t *testing.T) {
	landing := fakeLanding("healthy")
	defer landing.Close()
	backoffice := fakeBackoffice("good-token")
	defer backoffice.Close()

	v := NewSmokeValidator(Config{
		LandingURL:    landing.URL + "/",
		BackofficeURL: backoffice.URL,
		Tenant:        "azul",
		Token:         "good-token",
	})
	require.NoError(t, v.ValidateAll(context.Background()))
}

func TestValidateAllReportsFailingCheck(t *testing.T) {
	landing := fakeLanding("unhealthy")
	defer landing.Close()

	err := NewSmokeValidator(Config{LandingURL: landing.URL, Tenant: "azul"}).ValidateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "landing health")
}

func TestValidateAllWrongToken(t *testing.T) {
	backoffice := fakeBackoffice("good-token")
	defer backoffice.Close()

	err := NewSmokeValidator(Config{BackofficeURL: backoffice.URL, Token: "stale"}).ValidateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoffice events")
}

func TestValidateAllNeedsURL(t *testing.T) {
	assert.Error(t, NewSmokeValidator(Config{}).ValidateAll(context.Background()))
}
