package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/service"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type createOrderRequest struct {
	Frete decimal.Decimal `json:"frete"`
}

type createOrderResponse struct {
	PedidoID uint            `json:"pedidoId"`
	Total    decimal.Decimal `json:"total"`
}

// CreateOrder turns the caller's cart plus the selected shipping price into a
// persisted pendente order. The total is recomputed from current product
// prices; whatever total the client believes in is never read. Product and
// customer fields are snapshotted so later edits cannot rewrite history. The
// cart is cleared in the same transaction — any failure leaves it intact.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pedido.criar")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("criar_pedido_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("criar_pedido_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}
	if req.Frete.LessThanOrEqual(decimal.Zero) {
		l.Warn("criar_pedido_error", "status", 400, "reason", "frete ausente")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"erro": "Selecione uma opção de frete antes de finalizar a compra.",
		})
	}

	var order models.Order
	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return errEmptyCart
		}

		total := req.Frete
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errProductGone
				}
				return err
			}

			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			total = total.Add(lineTotal)

			orderItems = append(orderItems, models.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				UnitPrice: p.Price,
				Quantity:  it.Quantity,
				ImageURL:  p.ImageURL,
				Color:     p.Color,
				Model:     p.Model,
			})
		}

		order = models.Order{
			UserID:     userID,
			Name:       user.Name,
			Email:      user.Email,
			Phone:      user.Phone,
			Address:    user.Address,
			CEP:        user.CEP,
			Frete:      req.Frete,
			Total:      total,
			Status:     models.OrderStatusPendente,
			PaymentRef: uuid.New(),
			Items:      orderItems,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})

	if txErr != nil {
		switch {
		case errors.Is(txErr, errEmptyCart):
			l.Warn("criar_pedido_error", "status", 400, "reason", "carrinho vazio")
			return c.JSON(http.StatusBadRequest, echo.Map{"erro": "Seu carrinho está vazio."})
		case errors.Is(txErr, errProductGone):
			l.Warn("criar_pedido_error", "status", 400, "reason", "produto removido")
			return c.JSON(http.StatusBadRequest, echo.Map{"erro": "um dos produtos não está mais disponível"})
		default:
			l.Error("criar_pedido_error", "status", 500, "error", txErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
		}
	}

	h.publish(c, userID, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
		"total":   order.Total,
	})

	l.Info("pedido_criado", "pedido", order.ID, "total", order.Total)
	return c.JSON(http.StatusCreated, createOrderResponse{
		PedidoID: order.ID,
		Total:    order.Total,
	})
}

var (
	errEmptyCart   = errors.New("carrinho vazio")
	errProductGone = errors.New("produto indisponível")
)

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pedido.listar")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("listar_pedidos_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var orders []models.Order
	if err := h.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		l.Error("listar_pedidos_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	return c.JSON(http.StatusOK, orders)
}

// UpdateShipped flips the fulfilment flag. Only approved orders ship; the
// flag means nothing on a pendente or cancelado order.
func (h *OrderHandler) UpdateShipped(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pedido.enviado")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "id inválido"})
	}

	var req struct {
		Enviado bool `json:"enviado"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("enviado_error", "status", 404, "pedido", id)
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "pedido não encontrado"})
		}
		l.Error("enviado_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	if order.Status != models.OrderStatusAprovado {
		l.Warn("enviado_error", "status", 400, "pedido", id, "pedido_status", order.Status)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "apenas pedidos aprovados podem ser enviados"})
	}

	order.Shipped = req.Enviado
	if req.Enviado {
		now := time.Now()
		order.ShippedAt = &now
	} else {
		order.ShippedAt = nil
	}

	if err := h.DB.WithContext(ctx).Save(&order).Error; err != nil {
		l.Error("enviado_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	h.publish(c, order.UserID, map[string]any{
		"type":    "order_shipped_updated",
		"orderID": order.ID,
		"enviado": order.Shipped,
	})

	l.Info("pedido_enviado_atualizado", "pedido", order.ID, "enviado", order.Shipped)
	return c.JSON(http.StatusOK, order)
}
