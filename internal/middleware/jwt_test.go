package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkline/tonpark/internal/utils"
)

const testSecret = "test-secret"

func runProtected(t *testing.T, authHeader string, scopes ...string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTAuth(testSecret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if len(scopes) > 0 {
		h = JWTAuth(testSecret)(RequireScope(scopes...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}))
	}
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuthAccepts(t *testing.T) {
	tok, err := utils.NewServiceToken(testSecret, "bot-backend", "operator", time.Minute)
	require.NoError(t, err)

	rec, c := runProtected(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bot-backend", c.Get("svc"))
	assert.Equal(t, "operator", c.Get("scope"))
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	rec, _ := runProtected(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsBadSecret(t *testing.T) {
	tok, err := utils.NewServiceToken("other-secret", "bot-backend", "operator", time.Minute)
	require.NoError(t, err)

	rec, _ := runProtected(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsExpired(t *testing.T) {
	tok, err := utils.NewServiceToken(testSecret, "bot-backend", "operator", -time.Minute)
	require.NoError(t, err)

	rec, _ := runProtected(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireScope(t *testing.T) {
	operator, err := utils.NewServiceToken(testSecret, "bot-backend", "operator", time.Minute)
	require.NoError(t, err)
	viewer, err := utils.NewServiceToken(testSecret, "dashboard", "viewer", time.Minute)
	require.NoError(t, err)

	rec, _ := runProtected(t, "Bearer "+operator.Token, "operator", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = runProtected(t, "Bearer "+viewer.Token, "operator", "admin")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
