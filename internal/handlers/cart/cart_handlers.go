package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/mykafka"
	"github.com/sundarv/curryleaf/internal/pricing"
	"github.com/sundarv/curryleaf/internal/service/token"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Pricing  pricing.Calculator
}

type cartLine struct {
	ID         uint    `json:"id"`
	MenuItemID uint    `json:"menu_item_id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Quantity   uint    `json:"quantity"`
	LineTotal  float64 `json:"line_total"`
}

func (h *CartHandler) loadLines(userID uint) ([]cartLine, []pricing.Line, error) {
	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, nil, err
	}

	lines := make([]cartLine, 0, len(items))
	priceLines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		var menuItem models.MenuItem
		if err := h.DB.First(&menuItem, it.MenuItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, nil, err
		}
		lines = append(lines, cartLine{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Title:      menuItem.Title,
			Price:      menuItem.Price,
			Quantity:   it.Quantity,
			LineTotal:  pricing.Round2(menuItem.Price * float64(it.Quantity)),
		})
		priceLines = append(priceLines, pricing.Line{Price: menuItem.Price, Quantity: it.Quantity})
	}
	return lines, priceLines, nil
}

// GetCart returns the cart lines joined with menu data plus a running quote,
// so the client can render totals without a separate call.
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	lines, priceLines, err := h.loadLines(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load cart")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": lines,
		"quote": h.Pricing.Quote(priceLines),
	})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		MenuItemID uint `json:"menu_item_id"`
		Quantity   uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var menuItem models.MenuItem
	if err := h.DB.First(&menuItem, req.MenuItemID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
	}
	if !menuItem.Available {
		return echo.NewHTTPError(http.StatusConflict, "menu item is not available")
	}

	var item models.CartItem
	err = h.DB.Where("user_id = ? AND menu_item_id = ?", userID, req.MenuItemID).First(&item).Error
	switch {
	case err == nil:
		item.Quantity += req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not update cart")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{
			UserID:     userID,
			MenuItemID: req.MenuItemID,
			Quantity:   req.Quantity,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not add to cart")
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read cart")
	}

	h.publish(c, map[string]interface{}{
		"type":         "cart_item_added",
		"user_id":      userID,
		"menu_item_id": req.MenuItemID,
		"quantity":     item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

// DeleteOneFromCart decrements a line by one, removing it at quantity zero.
func (h *CartHandler) DeleteOneFromCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart item id")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read cart")
	}

	if item.Quantity > 1 {
		item.Quantity--
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not update cart")
		}
		h.publish(c, map[string]interface{}{
			"type":         "cart_item_decremented",
			"user_id":      userID,
			"cart_item_id": item.ID,
			"quantity":     item.Quantity,
		})
		return c.JSON(http.StatusOK, item)
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update cart")
	}
	h.publish(c, map[string]interface{}{
		"type":         "cart_item_removed",
		"user_id":      userID,
		"cart_item_id": item.ID,
	})
	return c.JSON(http.StatusOK, echo.Map{"deleted_item": item.ID})
}

// DeleteAllFromCart removes a line regardless of quantity and returns what
// is left in the cart.
func (h *CartHandler) DeleteAllFromCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart item id")
	}

	if err := h.DB.
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update cart")
	}

	lines, priceLines, err := h.loadLines(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load cart")
	}

	h.publish(c, map[string]interface{}{
		"type":         "cart_item_removed",
		"user_id":      userID,
		"cart_item_id": uint(id),
	})
	return c.JSON(http.StatusOK, echo.Map{
		"items": lines,
		"quote": h.Pricing.Quote(priceLines),
	})
}
