package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/service/token"
	"github.com/sundarv/curryleaf/internal/service/tracking"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

type TrackHandler struct {
	DB       *gorm.DB
	Hub      *tracking.Hub
	upgrader websocket.Upgrader
}

func NewTrackHandler(db *gorm.DB, hub *tracking.Hub) *TrackHandler {
	return &TrackHandler{
		DB:  db,
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func isTerminal(status string) bool {
	return status == string(models.OrderStatusDelivered) || status == string(models.OrderStatusCancelled)
}

// StreamOrderEvents upgrades to a websocket and relays status changes for
// one order. The current state is sent immediately so a client that missed
// an update while connecting still converges. The stream ends after a
// terminal status.
func (h *TrackHandler) StreamOrderEvents(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	query := h.DB.Where("id = ?", id)
	if role, _ := c.Get("role").(string); role != "admin" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&order).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	// Subscribe before the snapshot so no transition can slip between them.
	events, cancel := h.Hub.Subscribe(order.ID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	snapshot := tracking.OrderEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		UpdatedAt: order.UpdatedAt.Format(time.RFC3339),
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return nil
	}
	if isTerminal(snapshot.Status) {
		return nil
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
			if isTerminal(ev.Status) {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "order complete"))
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}
