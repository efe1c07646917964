package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
)

// publish emits the cart-changed notification. Badge counters and any other
// display surface subscribe to the topic instead of being wired to the call
// site.
func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicCartEvents, fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
