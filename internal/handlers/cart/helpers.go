package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *CartHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["user_id"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}
