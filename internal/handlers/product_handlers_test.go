package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mcoutinho/atelie-shop/internal/models"
)

func seedProduct(t *testing.T, env *testEnv, name string, price string, stock uint) models.Product {
	t.Helper()
	p := models.Product{
		Name:        name,
		Description: "peça artesanal",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}
	require.NoError(t, env.DB.Create(&p).Error)
	return p
}

func TestGetProdutosOnlyAvailable(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(t, env, "anel", "50.00", 3)
	seedProduct(t, env, "colar esgotado", "70.00", 0)

	rec, c := env.doJSON(http.MethodGet, "/api/produtos?somenteDisponiveis=1", nil)
	require.NoError(t, env.P.GetProdutos(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "anel", resp.Data[0].Name)
}

func TestGetProdutosSearchFallback(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(t, env, "anel solitário", "50.00", 3)
	seedProduct(t, env, "colar de pérolas", "70.00", 2)

	rec, c := env.doJSON(http.MethodGet, "/api/produtos?q=anel", nil)
	require.NoError(t, env.P.GetProdutos(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "anel solitário", resp.Data[0].Name)
}

func TestGetProdutosSearchMatchesCategory(t *testing.T) {
	env := newTestEnv(t)
	joia := models.Product{
		Name:     "anel solitário",
		Category: "joias",
		Price:    decimal.RequireFromString("50.00"),
		Stock:    3,
	}
	require.NoError(t, env.DB.Create(&joia).Error)
	seedProduct(t, env, "caneca", "20.00", 5)

	rec, c := env.doJSON(http.MethodGet, "/api/produtos?q=joias", nil)
	require.NoError(t, env.P.GetProdutos(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "anel solitário", resp.Data[0].Name)
}

func TestOrderByIDsKeepsRelevanceOrder(t *testing.T) {
	items := []models.Product{{ID: 1}, {ID: 2}, {ID: 3}}

	got := orderByIDs(items, []uint{3, 1, 2})
	require.Equal(t, []uint{3, 1, 2}, []uint{got[0].ID, got[1].ID, got[2].ID})

	// IDs without a matching row are skipped.
	got = orderByIDs(items, []uint{2, 9, 1})
	require.Len(t, got, 2)
	require.Equal(t, uint(2), got[0].ID)
	require.Equal(t, uint(1), got[1].ID)
}

func TestGetProdutoNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodGet, "/api/produtos/99", nil)
	c.SetParamNames("id")
	c.SetParamValues("99")
	require.NoError(t, env.P.GetProduto(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProdutoValidation(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodPost, "/api/admin/produtos", map[string]any{
		"nome":  "anel",
		"preco": "-5.00",
	})
	require.NoError(t, env.P.CreateProduto(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = env.doJSON(http.MethodPost, "/api/admin/produtos", map[string]any{
		"nome":        "anel",
		"preco":       "49.90",
		"estoque":     5,
		"peso":        0.05,
		"largura":     4,
		"altura":      2,
		"comprimento": 4,
	})
	require.NoError(t, env.P.CreateProduto(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.True(t, created.Price.Equal(decimal.RequireFromString("49.90")))
}

func TestUpdateProduto(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env, "anel", "50.00", 3)

	rec, c := env.doJSON(http.MethodPut, "/api/admin/produtos/1", map[string]any{
		"nome":    "anel ajustado",
		"preco":   "55.00",
		"estoque": 8,
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.UpdateProduto(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Product
	require.NoError(t, env.DB.First(&updated, p.ID).Error)
	require.Equal(t, "anel ajustado", updated.Name)
	require.Equal(t, uint(8), updated.Stock)
}

func TestDeleteProduto(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env, "anel", "50.00", 3)

	rec, c := env.doJSON(http.MethodDelete, "/api/admin/produtos/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.DeleteProduto(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Where("id = ?", p.ID).Count(&count).Error)
	require.Zero(t, count)
}
