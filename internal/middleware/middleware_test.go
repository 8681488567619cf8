package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/authz"
	"leadflow/internal/logging"
)

var secret = []byte("test-secret")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logging.NewNop()), Auth(secret), ReadOnlyGuard())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(CtxUserID), "role_id": c.GetInt(CtxRoleID)})
	})
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/admin", RequireRoles(authz.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/reopen", RequireRole(authz.IsElevated), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, userID int64, roleID int) string {
	t.Helper()
	tok, err := IssueToken(secret, userID, roleID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/whoami", "garbage").Code)

	w := do(r, http.MethodGet, "/whoami", token(t, 42, authz.RoleSales))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42,"role_id":10}`, w.Body.String())

	w = do(r, http.MethodGet, "/whoami?access_token="+token(t, 7, authz.RoleSales), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	r := newRouter()

	expired, err := IssueToken(secret, 1, authz.RoleAdmin, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/whoami", expired).Code)

	foreign, err := IssueToken([]byte("other"), 1, authz.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/whoami", foreign).Code)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/whoami", none).Code)
}

func TestRolesAndReadOnly(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/write", token(t, 1, authz.RoleAudit)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/whoami", token(t, 1, authz.RoleAudit)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/write", token(t, 1, authz.RoleSales)).Code)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/admin", token(t, 1, authz.RoleSales)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/admin", token(t, 1, authz.RoleAdmin)).Code)

	for _, role := range []int{authz.RoleOperations, authz.RoleManagement, authz.RoleAdmin} {
		assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/reopen", token(t, 1, role)).Code, role)
	}
	for _, role := range []int{authz.RoleSales, authz.RoleAutomation} {
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/reopen", token(t, 1, role)).Code, role)
	}
}
