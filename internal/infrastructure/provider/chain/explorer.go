package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/domain/provider"
)

// Explorer is a read-only HTTP client for a blockchain explorer API.
type Explorer struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewExplorer creates a new blockchain explorer client
func NewExplorer(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Explorer {
	return &Explorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// chainTxResponse is the explorer's transaction resource.
type chainTxResponse struct {
	Hash          string `json:"hash"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Confirmations int    `json:"confirmations"`
	Timestamp     int64  `json:"timestamp"`
}

func (t *chainTxResponse) toChainTransaction() (provider.ChainTransaction, error) {
	amount, err := decimal.NewFromString(t.Value)
	if err != nil {
		return provider.ChainTransaction{}, fmt.Errorf("invalid amount %q: %w", t.Value, err)
	}

	return provider.ChainTransaction{
		Hash:          t.Hash,
		Recipient:     t.To,
		Amount:        amount,
		Confirmations: t.Confirmations,
		Timestamp:     time.Unix(t.Timestamp, 0).UTC(),
	}, nil
}

func (e *Explorer) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create explorer request",
			Details: err.Error(),
		}
	}

	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("Explorer request failed",
			zap.String("path", path),
			zap.Error(err))
		return &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "Explorer API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read explorer response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &provider.ProviderError{
			Code:    "API_ERROR",
			Message: fmt.Sprintf("explorer returned status %d", resp.StatusCode),
			Details: string(respBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse explorer response",
			Details: err.Error(),
		}
	}

	return nil
}

func (e *Explorer) GetTransaction(ctx context.Context, hash string) (*provider.ChainTransaction, error) {
	var raw chainTxResponse
	if err := e.get(ctx, "/api/v1/tx/"+hash, &raw); err != nil {
		return nil, err
	}

	tx, err := raw.toChainTransaction()
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Invalid transaction payload",
			Details: err.Error(),
		}
	}

	return &tx, nil
}

func (e *Explorer) GetConfirmations(ctx context.Context, hash string) (int, error) {
	var raw struct {
		Confirmations int `json:"confirmations"`
	}
	if err := e.get(ctx, "/api/v1/tx/"+hash+"/confirmations", &raw); err != nil {
		return 0, err
	}

	return raw.Confirmations, nil
}

func (e *Explorer) ListTransactionsTo(ctx context.Context, address string, limit int) ([]provider.ChainTransaction, error) {
	var raw []chainTxResponse
	path := fmt.Sprintf("/api/v1/address/%s/txs?limit=%d", address, limit)
	if err := e.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	txs := make([]provider.ChainTransaction, 0, len(raw))
	for _, r := range raw {
		tx, err := r.toChainTransaction()
		if err != nil {
			e.logger.Warn("Skipping malformed explorer transaction",
				zap.String("hash", r.Hash),
				zap.Error(err))
			continue
		}
		txs = append(txs, tx)
	}

	return txs, nil
}
