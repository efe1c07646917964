package shipping

import (
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
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	return &testEnv{E: echo.New(), DB: db}
}

func (env *testEnv) handler(baseURL string) *FreteHandler {
	return &FreteHandler{
		DB:        env.DB,
		Client:    NewClient(baseURL, ""),
		OriginCEP: "18190-011",
	}
}

func (env *testEnv) doGet(userID uint) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(http.MethodGet, "/api/frete/calcular", nil)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if userID != 0 {
		c.Set("userID", userID)
	}
	return rec, c
}

func seedUser(t *testing.T, db *gorm.DB, cep string) models.User {
	t.Helper()
	u := models.User{
		Name:         "Maria",
		Email:        "maria@example.com",
		PasswordHash: "x",
		Role:         models.RoleUser,
		CEP:          cep,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedCartWithProduct(t *testing.T, db *gorm.DB, userID uint) models.Product {
	t.Helper()
	p := models.Product{
		Name:   "anel",
		Price:  decimal.RequireFromString("50.00"),
		Stock:  10,
		Weight: 0.5,
		Width:  12,
		Height: 3,
		Length: 20,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: userID, ProductID: p.ID, Quantity: 1}).Error)
	return p
}

// neverCalled fails the test if the aggregator receives any request.
func neverCalled(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("aggregator was contacted: %s %s", r.Method, r.URL)
	}))
}

func TestCalcularUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	srv := neverCalled(t)
	defer srv.Close()

	rec, c := env.doGet(0)
	require.NoError(t, env.handler(srv.URL).Calcular(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalcularMissingDestination(t *testing.T) {
	srv := neverCalled(t)
	defer srv.Close()

	for _, cep := range []string{"", "  ", "1234567"} {
		env := newTestEnv(t)
		user := seedUser(t, env.DB, cep)
		seedCartWithProduct(t, env.DB, user.ID)

		rec, c := env.doGet(user.ID)
		require.NoError(t, env.handler(srv.URL).Calcular(c))
		require.Equal(t, http.StatusBadRequest, rec.Code, "cep %q", cep)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Contains(t, resp["erro"], "CEP")
	}
}

func TestCalcularEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	srv := neverCalled(t)
	defer srv.Close()

	user := seedUser(t, env.DB, "01001-000")

	rec, c := env.doGet(user.ID)
	require.NoError(t, env.handler(srv.URL).Calcular(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalcularNoShippingOptions(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.DB, "99999-999")
	seedCartWithProduct(t, env.DB, user.ID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"PAC","company":{"name":"Correios"},"error":"fora de área"}]`))
	}))
	defer srv.Close()

	rec, c := env.doGet(user.ID)
	require.NoError(t, env.handler(srv.URL).Calcular(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp["erro"], "Nenhuma opção de frete")
}

func TestCalcularAggregatorFailure(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.DB, "01001-000")
	seedCartWithProduct(t, env.DB, user.ID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec, c := env.doGet(user.ID)
	require.NoError(t, env.handler(srv.URL).Calcular(c))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCalcularReturnsCheapestAsDefault(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.DB, "01001-000")
	seedCartWithProduct(t, env.DB, user.ID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "18190-011", r.URL.Query().Get("from"))
		require.Equal(t, "01001-000", r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":2,"name":"SEDEX","company":{"name":"Correios"},"price":"41.20","delivery_range":{"min":1,"max":3}},
			{"id":1,"name":"PAC","company":{"name":"Correios"},"price":"25.90","delivery_range":{"min":5,"max":8}}
		]`))
	}))
	defer srv.Close()

	rec, c := env.doGet(user.ID)
	require.NoError(t, env.handler(srv.URL).Calcular(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Opcoes []QuoteOption `json:"opcoes"`
		Padrao int           `json:"padrao"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Opcoes, 2)
	require.Equal(t, 1, resp.Padrao)
}
