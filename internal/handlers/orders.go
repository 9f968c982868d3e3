package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/mykafka"
	"github.com/sundarv/curryleaf/internal/service/token"
	"github.com/sundarv/curryleaf/internal/util"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["order_id"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// GetMyOrders lists the caller's orders, newest first.
func (h *OrderHandler) GetMyOrders(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	page, size := util.PageFromQuery(c)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not count orders")
	}

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("user_id = ?", userID).
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load orders")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": orders,
		"meta": pageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	})
}

func (h *OrderHandler) loadOrder(c echo.Context, ownerOnly bool) (*models.Order, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	query := h.DB.Preload("Items").Preload("Address")
	if ownerOnly {
		userID, err := token.UserID(c)
		if err != nil {
			return nil, err
		}
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "could not load order")
	}
	return &order, nil
}

// GetOrder returns one of the caller's orders with items, address and the
// full status history.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.loadOrder(c, true)
	if err != nil {
		return err
	}

	var history []models.OrderStatusLog
	if err := h.DB.Where("order_id = ?", order.ID).Order("id ASC").Find(&history).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load status history")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order":   order,
		"history": history,
	})
}

// changeStatus applies a validated transition and logs it atomically.
func (h *OrderHandler) changeStatus(order *models.Order, next models.OrderStatus, changedBy uint) error {
	from := order.Status
	return h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Update("status", next).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusLog{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   next,
			ChangedBy:  changedBy,
		}).Error
	})
}

// CancelOrder lets a customer back out while the kitchen has not started.
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	order, err := h.loadOrder(c, true)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPlaced {
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("order can no longer be cancelled in status %q", order.Status))
	}

	if err := h.changeStatus(order, models.OrderStatusCancelled, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not cancel order")
	}

	h.publish(c, map[string]interface{}{
		"type":     "order_status_changed",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"status":   string(models.OrderStatusCancelled),
	})
	return c.JSON(http.StatusOK, order)
}

// AdminListOrders lists all orders, optionally filtered by status.
func (h *OrderHandler) AdminListOrders(c echo.Context) error {
	page, size := util.PageFromQuery(c)
	offset, limit := util.Calculate(page, size)

	query := h.DB.Model(&models.Order{})
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not count orders")
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Address").
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load orders")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": orders,
		"meta": pageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	})
}

// AdminUpdateStatus advances an order along the fulfilment chain. Illegal
// jumps are rejected with the transitions that would have been allowed.
func (h *OrderHandler) AdminUpdateStatus(c echo.Context) error {
	adminID, err := token.UserID(c)
	if err != nil {
		return err
	}

	order, err := h.loadOrder(c, false)
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	next, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
	}
	if !order.Status.CanTransitionTo(next) {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf(
			"cannot move order from %q to %q, allowed: %v",
			order.Status, next, order.Status.NextStatuses()))
	}

	if err := h.changeStatus(order, next, adminID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update order status")
	}

	h.publish(c, map[string]interface{}{
		"type":     "order_status_changed",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"status":   string(next),
	})
	return c.JSON(http.StatusOK, order)
}
