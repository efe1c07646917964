package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoShippingOptions = errors.New("nenhuma opção de frete disponível")

type DeliveryRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Company struct {
	Name string `json:"name"`
}

type QuoteOption struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Company       Company         `json:"company"`
	Price         decimal.Decimal `json:"price"`
	DeliveryRange DeliveryRange   `json:"delivery_range"`
}

// rawOption mirrors the aggregator payload; price comes as a string and
// unavailable services carry an error marker instead of a price.
type rawOption struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Company       Company       `json:"company"`
	Price         string        `json:"price"`
	DeliveryRange DeliveryRange `json:"delivery_range"`
	Error         string        `json:"error"`
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Quote asks the carrier aggregator for every available service between the
// two postal codes. Options with an error marker or no price are dropped; an
// empty remainder is ErrNoShippingOptions.
func (c *Client) Quote(ctx context.Context, from, to string, dims Dimensions) ([]QuoteOption, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("width", strconv.FormatFloat(dims.Width, 'f', -1, 64))
	q.Set("height", strconv.FormatFloat(dims.Height, 'f', -1, 64))
	q.Set("length", strconv.FormatFloat(dims.Length, 'f', -1, 64))
	q.Set("weight", strconv.FormatFloat(dims.Weight, 'f', -1, 64))
	q.Set("insurance_value", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v2/me/shipment/calculate?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("frete: chamada à transportadora falhou: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("frete: transportadora respondeu %d: %s", resp.StatusCode, body)
	}

	var raw []rawOption
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("frete: resposta inválida: %w", err)
	}

	options := make([]QuoteOption, 0, len(raw))
	for _, r := range raw {
		if r.Error != "" || r.Price == "" {
			continue
		}
		price, err := decimal.NewFromString(r.Price)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		options = append(options, QuoteOption{
			ID:            r.ID,
			Name:          r.Name,
			Company:       r.Company,
			Price:         price,
			DeliveryRange: r.DeliveryRange,
		})
	}

	if len(options) == 0 {
		return nil, ErrNoShippingOptions
	}
	return options, nil
}

// Cheapest returns the default pre-selection for a non-empty option set.
func Cheapest(options []QuoteOption) QuoteOption {
	best := options[0]
	for _, o := range options[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best
}
