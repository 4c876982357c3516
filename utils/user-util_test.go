package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTenantIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, GetTenantIdentity(c.Request.Context()))

	SetTenantIdentity(c, "alpha")
	assert.Equal(t, "alpha", GetTenantIdentity(c.Request.Context()))
	assert.Empty(t, GetTenantIdentity(context.Background()))
}
