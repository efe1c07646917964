package order

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
)

func (h *OrderHandler) publish(c echo.Context, userID uint, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicOrderEvents, fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
