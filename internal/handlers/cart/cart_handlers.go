package cart

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/service"
)

// ErrOutOfStock gets a dedicated message so the client can show its
// "quantidade indisponível" notice instead of a generic error.
var ErrOutOfStock = errors.New("quantidade indisponível em estoque")

const OutOfStockMessage = "Quantidade indisponível em estoque"

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// CartLine is a cart item joined with the product display fields at read
// time. Nothing here is cached; a stale price never survives a GET.
type CartLine struct {
	ProductID uint            `json:"produto_id"`
	Name      string          `json:"nome"`
	Price     decimal.Decimal `json:"preco"`
	ImageURL  string          `json:"imagem"`
	Color     string          `json:"cor"`
	Model     string          `json:"modelo"`
	Quantity  uint            `json:"quantidade"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "carrinho.get")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("get_cart_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var items []models.CartItem
	if err := h.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		l.Error("get_cart_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		var p models.Product
		if err := h.DB.WithContext(ctx).First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			l.Error("get_cart_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
		}
		lines = append(lines, CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Color:     p.Color,
			Model:     p.Model,
			Quantity:  it.Quantity,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"produtos": lines})
}

// AddToCart increments the line for a product, bounded by stock. The stock
// check covers the requested total for the line, not just the increment, and
// a rejected add leaves the line untouched.
func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "carrinho.add")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("add_cart_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var req struct {
		ProductID uint `json:"produtoId"`
		Quantity  uint `json:"quantidade"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("add_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}
	if req.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "produtoId é obrigatório"})
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var item models.CartItem
	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, req.ProductID).Error; err != nil {
			return err
		}

		err := tx.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		wanted := item.Quantity + req.Quantity
		if wanted > product.Stock {
			return ErrOutOfStock
		}

		if item.ID == 0 {
			item = models.CartItem{
				UserID:    userID,
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
			}
			return tx.Create(&item).Error
		}
		item.Quantity = wanted
		return tx.Save(&item).Error
	})

	if txErr != nil {
		switch {
		case errors.Is(txErr, ErrOutOfStock):
			l.Warn("add_cart_estoque", "status", 400, "produto", req.ProductID)
			return c.JSON(http.StatusBadRequest, echo.Map{"erro": OutOfStockMessage})
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			l.Warn("add_cart_error", "status", 404, "produto", req.ProductID)
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "produto não encontrado"})
		default:
			l.Error("add_cart_error", "status", 500, "error", txErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
		}
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})

	l.Info("cart_item_added", "userID", userID, "produto", req.ProductID)
	return c.JSON(http.StatusOK, item)
}

// RemoveItem decrements the line by one; the last unit removes the line.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "carrinho.remove")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("remove_cart_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var req struct {
		ProductID uint `json:"produtoId"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "produtoId é obrigatório"})
	}

	var item models.CartItem
	removed := false
	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error; err != nil {
			return err
		}
		if item.Quantity > 1 {
			item.Quantity--
			return tx.Save(&item).Error
		}
		removed = true
		return tx.Delete(&item).Error
	})

	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			l.Warn("remove_cart_error", "status", 404, "produto", req.ProductID)
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "item não encontrado"})
		}
		l.Error("remove_cart_error", "status", 500, "error", txErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": req.ProductID,
		"removed":   removed,
	})

	if removed {
		return c.JSON(http.StatusOK, echo.Map{"removido": req.ProductID})
	}
	return c.JSON(http.StatusOK, item)
}
