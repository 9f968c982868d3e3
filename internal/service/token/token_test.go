package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))
	return db
}

func newService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		DB:            setupDB(t),
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
}

func TestSignAndValidateRefresh(t *testing.T) {
	svc := newService(t)

	refresh, err := SignRefreshToken(7, "user", svc.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 7))

	claims, err := ValidateRefresh(refresh, svc.RefreshSecret, svc.DB)
	require.NoError(t, err)
	assert.Equal(t, float64(7), claims["sub"])
	assert.Equal(t, "user", claims["role"])
	assert.Equal(t, "refresh", claims["typ"])
}

func TestValidateRefresh_RejectsAccessToken(t *testing.T) {
	svc := newService(t)

	access, err := SignAccessToken(7, "user", svc.RefreshSecret)
	require.NoError(t, err)

	_, err = ValidateRefresh(access, svc.RefreshSecret, svc.DB)
	assert.Error(t, err)
}

func TestValidateRefresh_RejectsUnknownToken(t *testing.T) {
	svc := newService(t)

	refresh, err := SignRefreshToken(7, "user", svc.RefreshSecret)
	require.NoError(t, err)

	_, err = ValidateRefresh(refresh, svc.RefreshSecret, svc.DB)
	assert.Error(t, err)
}

func TestRotateToken_RevokesOldToken(t *testing.T) {
	svc := newService(t)

	refresh, err := SignRefreshToken(3, "admin", svc.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 3))

	access, newRefresh, claims, err := svc.RotateToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, newRefresh)
	assert.Equal(t, "admin", claims["role"])

	_, err = ValidateRefresh(refresh, svc.RefreshSecret, svc.DB)
	assert.Error(t, err, "rotated token must be revoked")

	_, err = ValidateRefresh(newRefresh, svc.RefreshSecret, svc.DB)
	assert.NoError(t, err)
}

func requestWithCookies(cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCheckCookie_ValidAccessToken(t *testing.T) {
	svc := newService(t)

	access, err := SignAccessToken(11, "user", svc.JWTSecret)
	require.NoError(t, err)

	c, _ := requestWithCookies(CreateCookie("access_token", access, "/", time.Now().Add(AccessTokenTTL)))

	role, err := svc.CheckCookie(c)
	require.NoError(t, err)
	assert.Equal(t, "user", role)

	id, err := UserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(11), id)
}

func TestCheckCookie_RotatesWithRefreshOnly(t *testing.T) {
	svc := newService(t)

	refresh, err := SignRefreshToken(5, "user", svc.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 5))

	c, rec := requestWithCookies(CreateCookie("refresh_token", refresh, "/", time.Now().Add(RefreshTokenTTL)))

	role, err := svc.CheckCookie(c)
	require.NoError(t, err)
	assert.Equal(t, "user", role)

	id, err := UserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(5), id)

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
	}
	assert.Contains(t, names, "access_token")
	assert.Contains(t, names, "refresh_token")
}

func TestCheckCookie_NoCookies(t *testing.T) {
	svc := newService(t)

	c, _ := requestWithCookies()

	_, err := svc.CheckCookie(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAutoRefreshMiddlewareAdmin_RejectsUserRole(t *testing.T) {
	svc := newService(t)

	access, err := SignAccessToken(2, "user", svc.JWTSecret)
	require.NoError(t, err)

	c, _ := requestWithCookies(CreateCookie("access_token", access, "/", time.Now().Add(AccessTokenTTL)))

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err = svc.AutoRefreshMiddlewareAdmin(next)(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestAutoRefreshMiddlewareAdmin_AllowsAdmin(t *testing.T) {
	svc := newService(t)

	access, err := SignAccessToken(2, "admin", svc.JWTSecret)
	require.NoError(t, err)

	c, rec := requestWithCookies(CreateCookie("access_token", access, "/", time.Now().Add(AccessTokenTTL)))

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, svc.AutoRefreshMiddlewareAdmin(next)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
