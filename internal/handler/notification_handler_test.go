package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/uniportal/registrar-api/internal/middleware"
)

func TestNotificationHandlerListUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNotificationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notifications", nil)
	c.Request = req

	handler.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandlerMarkReadUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNotificationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/notifications/n1/read", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	// A stray non-claims value under the user key must not authenticate.
	c.Set(middleware.ContextUserKey, "not-claims")

	handler.MarkRead(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
