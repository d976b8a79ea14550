package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "ratelimit:u1:/api/projects", GenerateKey("", "u1", "/api/projects"))
	assert.Equal(t, "custom:1.2.3.4:/login", GenerateKey("custom", "1.2.3.4", "/login"))
}

func TestIdentityPrefersUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/projects", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"
	c.Set("userID", "u1")

	assert.Equal(t, "u1", Identity(c))
}

func TestIdentityFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/projects", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"

	assert.Equal(t, "1.2.3.4", Identity(c))
}

func TestIdentityUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/projects", nil)
	c.Request.RemoteAddr = ""

	assert.Equal(t, "unknown", Identity(c))
}
