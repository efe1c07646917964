package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/es"
	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Producer *mykafka.Producer
}

type productRequest struct {
	Code        string          `json:"codigo"`
	Name        string          `json:"nome"`
	Description string          `json:"descricao"`
	Price       decimal.Decimal `json:"preco"`
	Stock       uint            `json:"estoque"`
	Category    string          `json:"categoria"`
	Color       string          `json:"cor"`
	Model       string          `json:"modelo"`
	ImageURL    string          `json:"imagem"`
	Weight      float64         `json:"peso"`
	Width       float64         `json:"largura"`
	Height      float64         `json:"altura"`
	Length      float64         `json:"comprimento"`
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// GetProdutos lists the catalog. `q` goes through Elasticsearch when a client
// is configured, SQL LIKE otherwise; `somenteDisponiveis=1` keeps only
// products with stock.
func (h *ProductHandler) GetProdutos(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "produto.listar")

	q := c.QueryParam("q")
	onlyAvailable := c.QueryParam("somenteDisponiveis") == "1"
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	query := h.DB.WithContext(ctx).Model(&models.Product{})

	if q != "" {
		if h.ES != nil {
			total, ids, err := es.SearchProducts(ctx, h.ES, q, onlyAvailable, offset, limit)
			if err != nil {
				l.Error("busca_error", "status", 500, "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro na busca"})
			}
			var items []models.Product
			if len(ids) > 0 {
				if err := query.Where("id IN ?", ids).Find(&items).Error; err != nil {
					l.Error("busca_error", "status", 500, "error", err)
					return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
				}
				items = orderByIDs(items, ids)
			}
			return c.JSON(http.StatusOK, listResponse(items, page, limit, total, offset))
		}
		like := "%" + q + "%"
		query = query.Where("name LIKE ? OR description LIKE ? OR category LIKE ?", like, like, like)
	}

	if onlyAvailable {
		query = query.Where("stock > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error("listar_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	var items []models.Product
	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("listar_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	return c.JSON(http.StatusOK, listResponse(items, page, limit, total, offset))
}

// orderByIDs restores the relevance order of the search result; the database
// hands the rows back in primary-key order.
func orderByIDs(items []models.Product, ids []uint) []models.Product {
	byID := make(map[uint]models.Product, len(items))
	for _, p := range items {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(items))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func listResponse(items []models.Product, page, limit int, total int64, offset int) map[string]any {
	return map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	}
}

func (h *ProductHandler) GetProduto(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "id inválido"})
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "produto não encontrado"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduto(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "produto.criar")

	var req productRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("criar_produto_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "nome é obrigatório"})
	}
	if req.Price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "preço deve ser maior ou igual a zero"})
	}

	product := models.Product{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Color:       req.Color,
		Model:       req.Model,
		ImageURL:    req.ImageURL,
		Weight:      req.Weight,
		Width:       req.Width,
		Height:      req.Height,
		Length:      req.Length,
	}
	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		l.Error("criar_produto_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})

	l.Info("produto_criado", "productID", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduto(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "produto.atualizar")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "id inválido"})
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}
	if req.Price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "preço deve ser maior ou igual a zero"})
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"erro": "produto não encontrado"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	product.Code = req.Code
	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price
	product.Stock = req.Stock
	product.Category = req.Category
	product.Color = req.Color
	product.Model = req.Model
	product.ImageURL = req.ImageURL
	product.Weight = req.Weight
	product.Width = req.Width
	product.Height = req.Height
	product.Length = req.Length

	if err := h.DB.WithContext(ctx).Save(&product).Error; err != nil {
		l.Error("atualizar_produto_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduto(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "produto.excluir")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "id inválido"})
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Product{}, id).Error; err != nil {
		l.Error("excluir_produto_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	if h.ES != nil {
		if err := es.DeleteProduct(ctx, h.ES, uint(id)); err != nil {
			l.Error("es delete error", "error", err)
		}
	}
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) index(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	ctx := c.Request().Context()
	if err := es.IndexProduct(ctx, h.ES, p); err != nil {
		logging.FromContext(ctx).Error("es index error", "error", err)
	}
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicProductEvents, fmt.Sprint(event["productID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
