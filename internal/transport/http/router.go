package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mcoutinho/atelie-shop/internal/handlers"
	"github.com/mcoutinho/atelie-shop/internal/handlers/cart"
	"github.com/mcoutinho/atelie-shop/internal/handlers/order"
	"github.com/mcoutinho/atelie-shop/internal/payment"
	"github.com/mcoutinho/atelie-shop/internal/service"
	"github.com/mcoutinho/atelie-shop/internal/shipping"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *order.OrderHandler
	FreteHandler   *shipping.FreteHandler
	PaymentHandler *payment.PaymentHandler
	Tokens         *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	usuario := api.Group("/usuario", d.Tokens.RequireAuth)
	usuario.GET("", d.AuthHandler.GetUsuario)
	usuario.PUT("", d.AuthHandler.UpdateUsuario)

	produtos := api.Group("/produtos")
	produtos.GET("", d.ProductHandler.GetProdutos)
	produtos.GET("/:id", d.ProductHandler.GetProduto)

	carrinho := api.Group("/carrinho", d.Tokens.RequireAuth)
	carrinho.GET("", d.CartHandler.GetCart)
	carrinho.POST("", d.CartHandler.AddToCart)
	carrinho.DELETE("/item", d.CartHandler.RemoveItem)

	frete := api.Group("/frete", d.Tokens.RequireAuth)
	frete.GET("/calcular", d.FreteHandler.Calcular)

	pedidos := api.Group("/pedidos", d.Tokens.RequireAuth)
	pedidos.POST("", d.OrderHandler.CreateOrder)
	pedidos.GET("", d.OrderHandler.ListOrders)

	pagamento := api.Group("/pagamento")
	pagamento.POST("", d.PaymentHandler.CriarPreferencia, d.Tokens.RequireAuth)
	pagamento.POST("/webhook", d.PaymentHandler.Webhook)

	admin := api.Group("/admin", d.Tokens.RequireAdmin)
	admin.GET("/usuarios", d.AuthHandler.GetUsuarios)
	admin.POST("/produtos", d.ProductHandler.CreateProduto)
	admin.PUT("/produtos/:id", d.ProductHandler.UpdateProduto)
	admin.DELETE("/produtos/:id", d.ProductHandler.DeleteProduto)
	admin.PUT("/pedidos/:id", d.OrderHandler.UpdateShipped)
}
