package token

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Service issues, validates and rotates the JWT pair kept in cookies.
type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func SignAccessToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func SignRefreshToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"typ":  "refresh",
		"exp":  time.Now().Add(RefreshTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func SaveRefreshToken(db *gorm.DB, raw string, userID uint) error {
	rt := models.RefreshToken{
		Token:     raw,
		UserID:    userID,
		ExpiresAt: time.Now().Add(RefreshTokenTTL).Unix(),
	}
	return db.Create(&rt).Error
}

// ValidateRefresh checks signature, typ claim and the revocation flag in the
// database. It returns the parsed claims so rotation can reuse sub and role.
func ValidateRefresh(raw string, secret []byte, db *gorm.DB) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return nil, fmt.Errorf("token is not a refresh token")
	}

	var stored models.RefreshToken
	if err := db.Where("token = ?", raw).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("refresh token not found: %w", err)
	}
	if stored.Revoked {
		return nil, fmt.Errorf("refresh token revoked")
	}
	if stored.ExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("refresh token expired")
	}
	return claims, nil
}

// RotateToken exchanges a valid refresh token for a fresh pair and revokes
// the old one so it cannot be replayed.
func (t *Service) RotateToken(raw string) (string, string, jwt.MapClaims, error) {
	claims, err := ValidateRefresh(raw, t.RefreshSecret, t.DB)
	if err != nil {
		return "", "", nil, err
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return "", "", nil, fmt.Errorf("invalid sub claim")
	}
	userID := uint(sub)
	role, _ := claims["role"].(string)

	access, err := SignAccessToken(userID, role, t.JWTSecret)
	if err != nil {
		return "", "", nil, err
	}
	refresh, err := SignRefreshToken(userID, role, t.RefreshSecret)
	if err != nil {
		return "", "", nil, err
	}

	err = t.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RefreshToken{}).
			Where("token = ?", raw).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return SaveRefreshToken(tx, refresh, userID)
	})
	if err != nil {
		return "", "", nil, err
	}
	return access, refresh, claims, nil
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func parseAccess(raw string, secret []byte) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

// CheckCookie validates the access cookie and transparently rotates the pair
// when the access token expired but the refresh token is still good. It
// returns the role of the authenticated user.
func (t *Service) CheckCookie(c echo.Context) (string, error) {
	accessCookie, err := c.Cookie("access_token")
	if err == nil {
		if claims, perr := parseAccess(accessCookie.Value, t.JWTSecret); perr == nil {
			setUserContext(c, claims)
			role, _ := claims["role"].(string)
			return role, nil
		}
	}

	refreshCookie, err := c.Cookie("refresh_token")
	if err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
	}

	access, refresh, claims, err := t.RotateToken(refreshCookie.Value)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}

	c.SetCookie(CreateCookie("access_token", access, "/", time.Now().Add(AccessTokenTTL)))
	c.SetCookie(CreateCookie("refresh_token", refresh, "/", time.Now().Add(RefreshTokenTTL)))
	setUserContext(c, claims)
	role, _ := claims["role"].(string)
	return role, nil
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	if sub, ok := claims["sub"].(float64); ok {
		c.Set("userID", uint(sub))
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}
}

// UserID returns the authenticated user id placed into the context by the
// middleware.
func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
	}
	return id, nil
}

func (t *Service) AutoRefreshMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := t.CheckCookie(c); err != nil {
			return err
		}
		return next(c)
	}
}

func (t *Service) AutoRefreshMiddlewareAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, err := t.CheckCookie(c)
		if err != nil {
			return err
		}
		if role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}
