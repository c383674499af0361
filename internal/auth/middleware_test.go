package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/moodguard/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(t *testing.T, header string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/v1/risk/analyze", nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	return c, w
}

func validToken(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := Sign(testSecret, "", "user_1", sessionID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestMiddleware_ValidToken_SetsContext(t *testing.T) {
	c, _ := newContext(t, validToken(t, "sess_1"))
	Middleware(NewVerifier(testSecret, ""))(c)

	assert.True(t, IsAuthenticated(c))
	assert.Equal(t, "user_1", GetUserID(c))
	assert.Equal(t, "sess_1", GetSessionID(c))
	assert.Equal(t, "user_1", logging.UserID(c.Request.Context()))
}

func TestMiddleware_InvalidToken_DoesNotAbort(t *testing.T) {
	c, _ := newContext(t, "Bearer garbage")
	Middleware(NewVerifier(testSecret, ""))(c)

	assert.False(t, c.IsAborted())
	assert.False(t, IsAuthenticated(c))
	assert.Empty(t, GetUserID(c))
	assert.Empty(t, GetSessionID(c))
}

func TestRequireAuth(t *testing.T) {
	c, w := newContext(t, "")
	RequireAuth()(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = newContext(t, validToken(t, "sess_1"))
	Middleware(NewVerifier(testSecret, ""))(c)
	RequireAuth()(c)
	assert.False(t, c.IsAborted())
}

func TestRequireSession(t *testing.T) {
	c, w := newContext(t, validToken(t, ""))
	Middleware(NewVerifier(testSecret, ""))(c)
	RequireSession()(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_session")

	c, _ = newContext(t, validToken(t, "sess_1"))
	Middleware(NewVerifier(testSecret, ""))(c)
	RequireSession()(c)
	assert.False(t, c.IsAborted())
}

func TestRequireAdmin_DevMode_AuthenticatedPasses(t *testing.T) {
	c, _ := newContext(t, validToken(t, "sess_1"))
	Middleware(NewVerifier(testSecret, ""))(c)
	RequireAdmin("")(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, "user_1", AdminID(c))
}

func TestRequireAdmin_DevMode_UnauthenticatedRejects(t *testing.T) {
	c, w := newContext(t, "")
	RequireAdmin("")(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_Secret(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"correct", "supersecret123", http.StatusOK},
		{"wrong", "wrongsecret", http.StatusForbidden},
		{"missing", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext(t, "")
			if tt.header != "" {
				c.Request.Header.Set(HeaderAdminSecret, tt.header)
			}
			RequireAdmin("supersecret123")(c)
			if tt.want == http.StatusOK {
				assert.False(t, c.IsAborted())
				assert.Equal(t, "admin", AdminID(c))
				return
			}
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
