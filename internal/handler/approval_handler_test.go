package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/registrar-api/internal/middleware"
	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

func registrarClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin", Role: models.RoleRegistrar, Email: "admin@uni.edu"}
}

func TestApprovalHandlerRejectUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApprovalHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/approvals/uploads/u1/reject", bytes.NewReader([]byte(`{"reason":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, envelope.Error.Code)
}

func TestApprovalHandlerRejectInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApprovalHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/approvals/uploads/u1/reject", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	c.Set(middleware.ContextUserKey, registrarClaims())

	handler.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovalHandlerBulkApproveInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApprovalHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/approvals/uploads/bulk-approve", bytes.NewReader([]byte(`{"upload_ids": "not-a-list"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, registrarClaims())

	handler.BulkApprove(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
