package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/config"
	"github.com/mcoutinho/atelie-shop/internal/models"
)

type testEnv struct {
	E  *echo.Echo
	DB *gorm.DB
	H  *CartHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	return &testEnv{
		E:  echo.New(),
		DB: db,
		H:  &CartHandler{DB: db},
	}
}

func (env *testEnv) doJSON(method, path string, body any, userID uint) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if userID != 0 {
		c.Set("userID", userID)
	}
	return rec, c
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price string, stock uint) models.Product {
	t.Helper()
	p := models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Color:    "dourado",
		Model:    "classico",
		ImageURL: "https://cdn.example/" + name + ".jpg",
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestGetCartJoinsProductFields(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.DB, "anel", "50.00", 10)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 2}).Error)

	rec, c := env.doJSON(http.MethodGet, "/api/carrinho", nil, 1)
	require.NoError(t, env.H.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Produtos []CartLine `json:"produtos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Produtos, 1)
	require.Equal(t, "anel", resp.Produtos[0].Name)
	require.Equal(t, "dourado", resp.Produtos[0].Color)
	require.Equal(t, uint(2), resp.Produtos[0].Quantity)
	require.True(t, resp.Produtos[0].Price.Equal(decimal.RequireFromString("50.00")))
}

func TestGetCartUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodGet, "/api/carrinho", nil, 0)
	require.NoError(t, env.H.GetCart(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddToCartIncrementsLine(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.DB, "colar", "30.00", 5)

	rec, c := env.doJSON(http.MethodPost, "/api/carrinho", map[string]any{"produtoId": p.ID, "quantidade": 2}, 1)
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.doJSON(http.MethodPost, "/api/carrinho", map[string]any{"produtoId": p.ID, "quantidade": 1}, 1)
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", 1, p.ID).First(&item).Error)
	require.Equal(t, uint(3), item.Quantity)
}

func TestAddToCartOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.DB, "brinco", "20.00", 1)

	rec, c := env.doJSON(http.MethodPost, "/api/carrinho", map[string]any{"produtoId": p.ID, "quantidade": 1}, 1)
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second unit exceeds the single item in stock.
	rec, c = env.doJSON(http.MethodPost, "/api/carrinho", map[string]any{"produtoId": p.ID, "quantidade": 1}, 1)
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, OutOfStockMessage, resp["erro"])

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", 1, p.ID).First(&item).Error)
	require.Equal(t, uint(1), item.Quantity)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodPost, "/api/carrinho", map[string]any{"produtoId": 999}, 1)
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveItemDecrements(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.DB, "pulseira", "15.00", 10)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 2}).Error)

	rec, c := env.doJSON(http.MethodDelete, "/api/carrinho/item", map[string]any{"produtoId": p.ID}, 1)
	require.NoError(t, env.H.RemoveItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", 1, p.ID).First(&item).Error)
	require.Equal(t, uint(1), item.Quantity)

	// Last unit removes the line entirely.
	rec, c = env.doJSON(http.MethodDelete, "/api/carrinho/item", map[string]any{"produtoId": p.ID}, 1)
	require.NoError(t, env.H.RemoveItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	err := env.DB.Where("user_id = ? AND product_id = ?", 1, p.ID).First(&item).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRemoveItemNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodDelete, "/api/carrinho/item", map[string]any{"produtoId": 42}, 1)
	require.NoError(t, env.H.RemoveItem(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
