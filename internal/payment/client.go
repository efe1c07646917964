package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcoutinho/atelie-shop/internal/models"
)

// StatusFetcher is what the poller needs from the provider.
type StatusFetcher interface {
	PaymentStatus(ctx context.Context, reference string) (string, error)
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

type preferenceRequest struct {
	ExternalReference string          `json:"external_reference"`
	Total             decimal.Decimal `json:"total"`
	Description       string          `json:"description"`
}

type preferenceResponse struct {
	InitPoint string `json:"init_point"`
}

// CreatePreference asks the provider for a hosted checkout session and returns
// its URL.
func (c *Client) CreatePreference(ctx context.Context, reference string, orderID uint, total decimal.Decimal) (string, error) {
	body := preferenceRequest{
		ExternalReference: reference,
		Total:             total,
		Description:       fmt.Sprintf("Pedido #%d", orderID),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/checkout/preferences", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("pagamento: chamada ao provedor falhou: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pagamento: provedor respondeu %d: %s", resp.StatusCode, raw)
	}

	var pref preferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pref); err != nil {
		return "", fmt.Errorf("pagamento: resposta inválida: %w", err)
	}
	if pref.InitPoint == "" {
		return "", fmt.Errorf("pagamento: provedor não retornou init_point")
	}
	return pref.InitPoint, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// PaymentStatus resolves the provider status for an external reference and
// maps it onto the order state machine.
func (c *Client) PaymentStatus(ctx context.Context, reference string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+reference, nil)
	if err != nil {
		return "", err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("pagamento: consulta de status falhou: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.OrderStatusPendente, nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pagamento: provedor respondeu %d: %s", resp.StatusCode, raw)
	}

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return "", fmt.Errorf("pagamento: resposta inválida: %w", err)
	}
	return MapProviderStatus(st.Status), nil
}

// MapProviderStatus collapses provider vocabulary onto the order statuses.
// Anything unknown stays pending so the poller keeps watching it.
func MapProviderStatus(s string) string {
	switch s {
	case "approved", "paid":
		return models.OrderStatusAprovado
	case "cancelled", "rejected", "refunded", "charged_back":
		return models.OrderStatusCancelado
	default:
		return models.OrderStatusPendente
	}
}
