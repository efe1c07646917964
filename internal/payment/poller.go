package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
)

// Poller reconciles pendente orders against the payment provider on a fixed
// interval. The provider settles asynchronously in the buyer's browser, so
// without a push channel this loop is what discovers terminal outcomes.
// A transient provider or DB error never stops the next tick; cancelling the
// context stops the loop for good.
type Poller struct {
	DB       *gorm.DB
	Provider StatusFetcher
	Producer *mykafka.Producer
	Interval time.Duration
	Logger   *slog.Logger
}

func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("payment poller stopped")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	var pending []models.Order
	if err := p.DB.WithContext(ctx).
		Where("status = ?", models.OrderStatusPendente).
		Find(&pending).Error; err != nil {
		p.Logger.Error("payment poll: listing pending orders failed", "error", err)
		return
	}

	for _, order := range pending {
		if err := p.resolve(ctx, order); err != nil {
			p.Logger.Error("payment poll: order reconciliation failed",
				"pedido", order.ID, "error", err)
		}
	}
}

func (p *Poller) resolve(ctx context.Context, order models.Order) error {
	status, err := p.Provider.PaymentStatus(ctx, order.PaymentRef.String())
	if err != nil {
		return err
	}
	if status == models.OrderStatusPendente {
		return nil
	}

	transitioned, orderID, err := ResolveOrder(ctx, p.DB, order.PaymentRef.String(), status)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	p.Logger.Info("payment resolved", "pedido", orderID, "novo_status", status)
	if p.Producer != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Producer.PublishEvent(pubCtx, mykafka.TopicPaymentEvents,
			fmt.Sprint(orderID), map[string]any{
				"type":    "payment_resolved",
				"orderID": orderID,
				"status":  status,
				"source":  "poller",
			}); err != nil {
			p.Logger.Error("kafka publish error", "error", err)
		}
	}
	return nil
}
