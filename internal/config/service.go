package config

import "time"

type ServiceConfig struct {
	Name          string `yaml:"name"`
	Environment   string `yaml:"environment"`
	Version       string `yaml:"version"`
	EncryptionKey string `yaml:"encryption_key"`
}

// CryptoConfig configures the on-chain settlement rail.
type CryptoConfig struct {
	Asset                 string        `yaml:"asset"`
	RateSourceURL         string        `yaml:"rate_source_url"`
	ExplorerURL           string        `yaml:"explorer_url"`
	ExplorerAPIKey        string        `yaml:"explorer_api_key"`
	FallbackRate          string        `yaml:"fallback_rate"`
	AmountTolerancePct    string        `yaml:"amount_tolerance_pct"`
	ConfirmationThreshold int           `yaml:"confirmation_threshold"`
	PaymentExpiry         time.Duration `yaml:"payment_expiry"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
}

// PaypalConfig configures the PayPal settlement rail.
type PaypalConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SweeperConfig configures the background runner.
type SweeperConfig struct {
	Interval       time.Duration `yaml:"interval"`
	CaptureAge     time.Duration `yaml:"capture_age"`
	BatchSize      int           `yaml:"batch_size"`
	CryptoPolling  bool          `yaml:"crypto_polling"`
	TokenSweeping  bool          `yaml:"token_sweeping"`
	ExpireSweeping bool          `yaml:"expire_sweeping"`
}
