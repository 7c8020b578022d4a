package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"member/models"
	"member/services"
)

type fakeSessions struct {
	users map[string]*models.User
	err   error
}

func (f *fakeSessions) Resolve(_ context.Context, token string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[token]
	if !ok {
		return nil, services.ErrUnauthorized
	}
	return user, nil
}

func (f *fakeSessions) RequireActive(user *models.User) (*models.User, error) {
	if user == nil || !user.IsActive {
		return nil, services.ErrUnauthorized
	}
	return user, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProtectedRouter(sessions SessionResolver) *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(sessions, discardLogger()))
	router.GET("/open", func(c *gin.Context) {
		_, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"logged_in": ok})
	})
	router.GET("/me", CheckLoginMiddleware(sessions), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return router
}

func doRequest(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}

func TestAuthMiddleware_SoftResolve(t *testing.T) {
	sessions := &fakeSessions{users: map[string]*models.User{
		"good": {ID: 7, Username: "alice", IsActive: true},
	}}
	router := newProtectedRouter(sessions)

	w := doRequest(router, http.MethodGet, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":false}`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/open", "Bearer bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":false}`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/open", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":true}`, w.Body.String())
}

func TestAuthMiddleware_StoreFailure(t *testing.T) {
	router := newProtectedRouter(&fakeSessions{err: errors.New("db down")})

	w := doRequest(router, http.MethodGet, "/open", "Bearer good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCheckLoginMiddleware(t *testing.T) {
	sessions := &fakeSessions{users: map[string]*models.User{
		"active":   {ID: 1, IsActive: true},
		"inactive": {ID: 2, IsActive: false},
	}}
	router := newProtectedRouter(sessions)

	w := doRequest(router, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = doRequest(router, http.MethodGet, "/me", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/me", "Bearer inactive")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = doRequest(router, http.MethodGet, "/me", "Bearer active")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := doRequest(router, http.MethodGet, "/", "")
	generated := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(RequestIDMiddleware(), RequestLogMiddleware(logger))
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "req-log")
	router.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"path":"/missing"`)
	assert.Contains(t, out, `"request_id":"req-log"`)
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodOptions, "/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Authorization")
}
