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

// RateSource fetches the current fiat -> crypto exchange rate over HTTP.
type RateSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewRateSource creates a new exchange-rate client
func NewRateSource(baseURL string, timeout time.Duration, logger *zap.Logger) *RateSource {
	return &RateSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (r *RateSource) GetRate(ctx context.Context, fiatCurrency, asset string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/api/v1/rates?fiat=%s&asset=%s", fiatCurrency, asset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return decimal.Zero, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create rate request",
			Details: err.Error(),
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Rate source request failed",
			zap.String("fiat", fiatCurrency),
			zap.String("asset", asset),
			zap.Error(err))
		return decimal.Zero, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "Rate source request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read rate response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: fmt.Sprintf("rate source returned status %d", resp.StatusCode),
			Details: string(respBody),
		}
	}

	var rateResp struct {
		Rate string `json:"rate"`
	}
	if err := json.Unmarshal(respBody, &rateResp); err != nil {
		return decimal.Zero, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse rate response",
			Details: err.Error(),
		}
	}

	rate, err := decimal.NewFromString(rateResp.Rate)
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Rate source returned an unusable rate",
			Details: rateResp.Rate,
		}
	}

	return rate, nil
}
