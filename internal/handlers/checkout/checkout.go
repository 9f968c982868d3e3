package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/geo"
	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/mykafka"
	"github.com/sundarv/curryleaf/internal/pricing"
	"github.com/sundarv/curryleaf/internal/service/token"
)

type CheckoutHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Geo      geo.Validator
	Pricing  pricing.Calculator
}

type addressInput struct {
	Label string  `json:"label"`
	Line  string  `json:"line"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type checkoutRequest struct {
	AddressID uint          `json:"address_id"`
	Address   *addressInput `json:"address"`
	Notes     string        `json:"notes"`
}

// resolveAddress returns the delivery coordinates plus the address row to
// create inside the order transaction. Saved addresses are owner-scoped.
func (h *CheckoutHandler) resolveAddress(userID uint, req checkoutRequest) (*models.Address, error) {
	if req.AddressID != 0 {
		var addr models.Address
		err := h.DB.Where("id = ? AND user_id = ?", req.AddressID, userID).First(&addr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "address not found")
		}
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "could not load address")
		}
		return &addr, nil
	}

	if req.Address == nil || req.Address.Line == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "a delivery address is required")
	}
	if req.Address.Lat == 0 && req.Address.Lng == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "address coordinates are required")
	}
	return &models.Address{
		UserID: userID,
		Label:  req.Address.Label,
		Line:   req.Address.Line,
		Lat:    req.Address.Lat,
		Lng:    req.Address.Lng,
	}, nil
}

func newOrderReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("CL-%s-%s", time.Now().Format("20060102"), suffix)
}

// MakeOrder turns the cart into an order. The distance gate runs before any
// row is written; the address, order, item snapshots, status log and cart
// wipe then commit or roll back together.
func (h *CheckoutHandler) MakeOrder(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	addr, err := h.resolveAddress(userID, req)
	if err != nil {
		return err
	}

	distance, err := h.Geo.Check(addr.Lat, addr.Lng)
	if err != nil {
		if errors.Is(err, geo.ErrOutOfRange) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{
				"error":       "address is outside our delivery area",
				"distance_km": pricing.Round2(distance),
				"max_km":      h.Geo.MaxKm,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not validate address")
	}

	var order models.Order

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var cartItems []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&cartItems).Error; err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		}

		snapshots := make([]models.OrderItem, 0, len(cartItems))
		priceLines := make([]pricing.Line, 0, len(cartItems))
		for _, it := range cartItems {
			var menuItem models.MenuItem
			if err := tx.First(&menuItem, it.MenuItemID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusConflict, "a cart item is no longer on the menu")
				}
				return err
			}
			if !menuItem.Available {
				return echo.NewHTTPError(http.StatusConflict,
					fmt.Sprintf("%q is no longer available", menuItem.Title))
			}
			snapshots = append(snapshots, models.OrderItem{
				MenuItemID: menuItem.ID,
				Title:      menuItem.Title,
				Price:      menuItem.Price,
				Quantity:   it.Quantity,
			})
			priceLines = append(priceLines, pricing.Line{Price: menuItem.Price, Quantity: it.Quantity})
		}

		if addr.ID == 0 {
			if err := tx.Create(addr).Error; err != nil {
				return err
			}
		}

		quote := h.Pricing.Quote(priceLines)
		order = models.Order{
			Reference:   newOrderReference(),
			UserID:      userID,
			AddressID:   addr.ID,
			Status:      models.OrderStatusPlaced,
			Subtotal:    quote.Subtotal,
			Tax:         quote.Tax,
			DeliveryFee: quote.DeliveryFee,
			Total:       quote.Total,
			DistanceKm:  pricing.Round2(distance),
			Notes:       req.Notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range snapshots {
			snapshots[i].OrderID = order.ID
		}
		if err := tx.Create(&snapshots).Error; err != nil {
			return err
		}
		order.Items = snapshots
		order.Address = *addr

		log := models.OrderStatusLog{
			OrderID:   order.ID,
			ToStatus:  models.OrderStatusPlaced,
			ChangedBy: userID,
		}
		if err := tx.Create(&log).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		c.Logger().Errorf("checkout transaction error: %v", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not place order")
	}

	h.publish(c, map[string]interface{}{
		"type":      "order_placed",
		"order_id":  order.ID,
		"reference": order.Reference,
		"user_id":   userID,
		"status":    string(order.Status),
		"total":     order.Total,
	})

	return c.JSON(http.StatusCreated, order)
}

// Quote previews pricing and the distance gate for the current cart without
// writing anything.
func (h *CheckoutHandler) Quote(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	addr, err := h.resolveAddress(userID, req)
	if err != nil {
		return err
	}

	distance, gateErr := h.Geo.Check(addr.Lat, addr.Lng)
	if gateErr != nil && !errors.Is(gateErr, geo.ErrOutOfRange) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not validate address")
	}

	var cartItems []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&cartItems).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load cart")
	}

	priceLines := make([]pricing.Line, 0, len(cartItems))
	for _, it := range cartItems {
		var menuItem models.MenuItem
		if err := h.DB.First(&menuItem, it.MenuItemID).Error; err != nil {
			continue
		}
		priceLines = append(priceLines, pricing.Line{Price: menuItem.Price, Quantity: it.Quantity})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"distance_km":  pricing.Round2(distance),
		"within_range": gateErr == nil,
		"quote":        h.Pricing.Quote(priceLines),
	})
}

func (h *CheckoutHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["order_id"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}
