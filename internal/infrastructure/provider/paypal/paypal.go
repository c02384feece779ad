package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/domain/provider"
)

// Client calls the PayPal order API (create/get/capture) using
// client-credential OAuth tokens.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new PayPal API client
func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// token returns a cached OAuth access token, refreshing it when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create token request",
			Details: err.Error(),
		}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("PayPal: token request failed", zap.Error(err))
		return "", &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal token request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read token response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &provider.ProviderError{
			Code:    "AUTH_ERROR",
			Message: "PayPal token request rejected",
			Details: string(respBody),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse token response",
			Details: err.Error(),
		}
	}

	c.accessToken = tokenResp.AccessToken
	// Refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return c.accessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &provider.ProviderError{
				Code:    "MARSHAL_ERROR",
				Message: "Failed to prepare request",
				Details: err.Error(),
			}
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("PayPal: API request failed",
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	return resp.StatusCode, respBody, nil
}

// orderResponse is the subset of the PayPal order resource the adapter needs.
type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Payer struct {
		PayerID string `json:"payer_id"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID         string `json:"id"`
				Status     string `json:"status"`
				CreateTime string `json:"create_time"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o *orderResponse) toOrder() *provider.Order {
	order := &provider.Order{
		OrderID: o.ID,
		Status:  o.Status,
		PayerID: o.Payer.PayerID,
	}

	for _, link := range o.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
		}
	}

	for _, unit := range o.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			order.CaptureID = capture.ID
			if parsed, err := time.Parse(time.RFC3339, capture.CreateTime); err == nil {
				order.CompletedAt = &parsed
			}
		}
	}

	return order
}

func (c *Client) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.Order, error) {
	c.logger.Info("PayPal: Creating order",
		zap.String("reference_id", req.ReferenceID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", req.Currency))

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": req.ReferenceID,
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         req.Amount.StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusCreated && status != http.StatusOK {
		c.logger.Error("PayPal: Order creation failed",
			zap.Int("status_code", status),
			zap.String("response", string(respBody)))
		return nil, parseAPIError(respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse order response",
			Details: err.Error(),
		}
	}

	c.logger.Info("PayPal: Order created",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status))

	return order.toOrder(), nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, parseAPIError(respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse order response",
			Details: err.Error(),
		}
	}

	return order.toOrder(), nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	c.logger.Info("PayPal: Capturing order", zap.String("order_id", orderID))

	status, respBody, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID), map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnprocessableEntity {
		var errResp struct {
			Details []struct {
				Issue string `json:"issue"`
			} `json:"details"`
		}
		json.Unmarshal(respBody, &errResp)

		for _, detail := range errResp.Details {
			if detail.Issue == "ORDER_ALREADY_CAPTURED" {
				c.logger.Warn("PayPal: Duplicate capture",
					zap.String("order_id", orderID))
				return nil, &provider.DuplicateCaptureError{OrderID: orderID}
			}
		}
		return nil, parseAPIError(respBody)
	}

	if status != http.StatusCreated && status != http.StatusOK {
		c.logger.Error("PayPal: Capture failed",
			zap.Int("status_code", status),
			zap.String("response", string(respBody)))
		return nil, parseAPIError(respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse capture response",
			Details: err.Error(),
		}
	}

	c.logger.Info("PayPal: Order captured",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status))

	return order.toOrder(), nil
}

func parseAPIError(respBody []byte) error {
	var errResp struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	json.Unmarshal(respBody, &errResp)

	if errResp.Name == "" {
		errResp.Name = "API_ERROR"
	}
	if errResp.Message == "" {
		errResp.Message = "PayPal API request rejected"
	}

	return &provider.ProviderError{
		Code:    errResp.Name,
		Message: errResp.Message,
		Details: string(respBody),
	}
}
