package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/service/token"
)

type PushHandler struct {
	DB          *gorm.DB
	VAPIDPublic string
}

// PublicKey hands out the VAPID public key the browser needs to subscribe.
func (h *PushHandler) PublicKey(c echo.Context) error {
	if h.VAPIDPublic == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "push is not configured")
	}
	return c.JSON(http.StatusOK, echo.Map{"key": h.VAPIDPublic})
}

// Subscribe stores a browser push subscription. Re-subscribing with a known
// endpoint refreshes its keys and owner.
func (h *PushHandler) Subscribe(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint, p256dh and auth are required")
	}

	var sub models.PushSubscription
	err = h.DB.Where("endpoint = ?", req.Endpoint).First(&sub).Error
	switch {
	case err == nil:
		sub.UserID = userID
		sub.P256dh = req.Keys.P256dh
		sub.Auth = req.Keys.Auth
		if err := h.DB.Save(&sub).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not update subscription")
		}
		return c.JSON(http.StatusOK, echo.Map{"id": sub.ID})
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = models.PushSubscription{
			UserID:   userID,
			Endpoint: req.Endpoint,
			P256dh:   req.Keys.P256dh,
			Auth:     req.Keys.Auth,
		}
		if err := h.DB.Create(&sub).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not store subscription")
		}
		return c.JSON(http.StatusCreated, echo.Map{"id": sub.ID})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read subscriptions")
	}
}

// Unsubscribe drops the caller's subscription for the given endpoint.
func (h *PushHandler) Unsubscribe(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.Bind(&req); err != nil || req.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	if err := h.DB.
		Where("user_id = ? AND endpoint = ?", userID, req.Endpoint).
		Delete(&models.PushSubscription{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not remove subscription")
	}
	return c.NoContent(http.StatusNoContent)
}
