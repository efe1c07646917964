package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/service"
)

type PaymentHandler struct {
	DB       *gorm.DB
	Client   *Client
	Producer *mykafka.Producer
}

// CriarPreferencia generates a provider checkout URL for an existing order.
// The order was already persisted by checkout; a failure here never mutates it,
// so the caller can retry from "meus pedidos" at any time. The charged amount
// is the stored order total, whatever the client sent.
func (h *PaymentHandler) CriarPreferencia(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pagamento.criar_preferencia")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("pagamento_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var req struct {
		PedidoID uint `json:"pedidoId"`
	}
	if err := c.Bind(&req); err != nil || req.PedidoID == 0 {
		l.Warn("pagamento_error", "status", 400, "reason", "invalid body")
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "pedidoId é obrigatório"})
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", req.PedidoID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("pagamento_error", "status", 404, "pedido", req.PedidoID)
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "pedido não encontrado"})
		}
		l.Error("pagamento_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	if order.Status != models.OrderStatusPendente {
		l.Warn("pagamento_error", "status", 400, "reason", "pedido não está pendente")
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "pedido não está aguardando pagamento"})
	}

	initPoint, err := h.Client.CreatePreference(ctx, order.PaymentRef.String(), order.ID, order.Total)
	if err != nil {
		l.Error("pagamento_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"erro": "Erro ao gerar o link de pagamento."})
	}

	l.Info("preferencia_criada", "pedido", order.ID)
	return c.JSON(http.StatusOK, echo.Map{"initPoint": initPoint})
}

// Webhook is the provider push channel. It applies the same guarded
// transition the poller does, so duplicated notifications are harmless.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pagamento.webhook")

	var req struct {
		ExternalReference string `json:"external_reference"`
		Status            string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.ExternalReference == "" {
		l.Warn("webhook_error", "status", 400, "reason", "invalid body")
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}

	status := MapProviderStatus(req.Status)
	if status == models.OrderStatusPendente {
		return c.NoContent(http.StatusOK)
	}

	transitioned, orderID, err := ResolveOrder(ctx, h.DB, req.ExternalReference, status)
	if err != nil {
		l.Error("webhook_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	if transitioned {
		h.publish(c, map[string]any{
			"type":    "payment_resolved",
			"orderID": orderID,
			"status":  status,
			"source":  "webhook",
		})
		l.Info("pagamento_resolvido", "pedido", orderID, "novo_status", status)
	}
	return c.NoContent(http.StatusOK)
}

// ResolveOrder moves the order with the given payment reference out of
// pendente. The status guard in the WHERE clause makes terminal transitions
// happen exactly once, whoever observes the outcome first.
func ResolveOrder(ctx context.Context, db *gorm.DB, reference, status string) (bool, uint, error) {
	var order models.Order
	if err := db.WithContext(ctx).
		Where("payment_ref = ?", reference).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}

	res := db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPendente).
		Update("status", status)
	if res.Error != nil {
		return false, 0, res.Error
	}
	return res.RowsAffected > 0, order.ID, nil
}

func (h *PaymentHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicPaymentEvents, "webhook", event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
