package shipping

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/service"
)

type FreteHandler struct {
	DB        *gorm.DB
	Client    *Client
	OriginCEP string
}

type freteResponse struct {
	Opcoes []QuoteOption `json:"opcoes"`
	Padrao int           `json:"padrao"`
}

// Calcular quotes delivery for the caller's current cart against the CEP on
// their profile. The destination check runs before any external call.
func (h *FreteHandler) Calcular(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "frete.calcular")

	userID, err := service.UserID(c)
	if err != nil {
		l.Warn("frete_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		l.Error("frete_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	cep := strings.TrimSpace(user.CEP)
	if len(cep) < 8 {
		l.Warn("frete_error", "status", 400, "reason", "cep ausente ou inválido")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"erro": "Cadastre um CEP válido na sua conta para calcular o frete.",
		})
	}

	var items []models.CartItem
	if err := h.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		l.Error("frete_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}
	if len(items) == 0 {
		l.Warn("frete_error", "status", 400, "reason", "carrinho vazio")
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "Seu carrinho está vazio."})
	}

	pkgItems := make([]PackageItem, 0, len(items))
	for _, it := range items {
		var p models.Product
		if err := h.DB.WithContext(ctx).First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			l.Error("frete_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
		}
		pkgItems = append(pkgItems, PackageItem{
			Width:    p.Width,
			Height:   p.Height,
			Length:   p.Length,
			Weight:   p.Weight,
			Quantity: it.Quantity,
		})
	}

	dims := ComputePackageDimensions(pkgItems)

	options, err := h.Client.Quote(ctx, h.OriginCEP, cep, dims)
	if err != nil {
		if errors.Is(err, ErrNoShippingOptions) {
			l.Warn("frete_sem_opcoes", "status", 400, "cep", cep)
			return c.JSON(http.StatusBadRequest, echo.Map{
				"erro": "Nenhuma opção de frete disponível para este endereço no momento.",
			})
		}
		l.Error("frete_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"erro": "Erro ao calcular frete."})
	}

	l.Info("frete_calculado", "opcoes", len(options))
	return c.JSON(http.StatusOK, freteResponse{
		Opcoes: options,
		Padrao: Cheapest(options).ID,
	})
}
