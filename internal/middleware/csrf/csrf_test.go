package csrf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/page", ok)
	e.POST("/submit", ok)
	e.POST("/open", ok)
	return e
}

func issuedToken(t *testing.T, e *echo.Echo, cookieName string) (*http.Cookie, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookieName {
			require.NotEmpty(t, ck.Value)
			return ck, ck.Value
		}
	}
	t.Fatalf("no %s cookie issued", cookieName)
	return nil, ""
}

func TestSafeMethodIssuesToken(t *testing.T) {
	e := newApp(DefaultConfig())
	ck, token := issuedToken(t, e, "XSRF-TOKEN")
	assert.False(t, ck.HttpOnly, "the client script must be able to read the token")

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, token, rec.Header().Get("X-CSRF-Token"))
}

func TestMutationWithoutTokenRejected(t *testing.T) {
	e := newApp(DefaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Origin", "http://example.com")
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMutationWithMatchingHeaderAllowed(t *testing.T) {
	e := newApp(DefaultConfig())
	ck, token := issuedToken(t, e, "XSRF-TOKEN")

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-CSRF-Token", token)
	req.Header.Set("Origin", "http://example.com")
	req.Host = "example.com"
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationWithWrongHeaderRejected(t *testing.T) {
	e := newApp(DefaultConfig())
	ck, _ := issuedToken(t, e, "XSRF-TOKEN")

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-CSRF-Token", "forged")
	req.Header.Set("Origin", "http://example.com")
	req.Host = "example.com"
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCrossOriginMutationRejected(t *testing.T) {
	e := newApp(DefaultConfig())
	ck, token := issuedToken(t, e, "XSRF-TOKEN")

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-CSRF-Token", token)
	req.Header.Set("Origin", "http://evil.example.net")
	req.Host = "example.com"
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSkipPathBypassesCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipPaths = []string{"/open"}
	e := newApp(cfg)

	req := httptest.NewRequest(http.MethodPost, "/open", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
