package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"payloom/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestOK(t *testing.T) {
	c, w := newTestContext()
	OK(c, map[string]string{"wallet_ref": "ESW-001"})

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.NotEmpty(t, env.RequestID)
}

func TestError_AppError(t *testing.T) {
	c, w := newTestContext()
	Error(c, apperror.ErrWalletAlreadyExists())

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ESC_003", env.Error.Code)
}

func TestError_WrappedAppError(t *testing.T) {
	c, w := newTestContext()
	Error(c, errors.Join(errors.New("context"), apperror.ErrOrderNotFound()))

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.Equal(t, "ESC_001", env.Error.Code)
}

func TestError_UnknownError(t *testing.T) {
	c, w := newTestContext()
	Error(c, errors.New("something broke"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, "SYS_000", env.Error.Code)
	// Internal detail must not leak to the client.
	assert.NotContains(t, w.Body.String(), "something broke")
}

func TestBusinessConflict(t *testing.T) {
	c, w := newTestContext()
	BusinessConflict(c, apperror.ErrDisputeAlreadyExists())

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "ESC_008", env.Error.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	c, w := newTestContext()
	c.Set("request_id", "req-123")
	OK(c, nil)

	env := decode(t, w)
	assert.Equal(t, "req-123", env.RequestID)
}
