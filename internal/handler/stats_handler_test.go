package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

func TestStatsHandlerOverviewMissingSemester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/stats/overview", nil)
	c.Request = req

	handler.Overview(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "semesterId")
}
