package authgate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(key))
	r.GET("/geminicli/v1beta/models", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestMiddleware_BearerAuthorizationHeader(t *testing.T) {
	r := newTestRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_GoogleAPIKeyHeader(t *testing.T) {
	r := newTestRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	req.Header.Set("x-goog-api-key", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_QueryParamKey(t *testing.T) {
	r := newTestRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models?key=secret", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_WrongKeyRejected(t *testing.T) {
	r := newTestRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_MissingKeyRejected(t *testing.T) {
	r := newTestRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/geminicli/v1beta/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
