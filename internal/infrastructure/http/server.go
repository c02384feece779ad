package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/meridianpay/payments/internal/adapter/handler/http"
	"github.com/meridianpay/payments/internal/config"
	"github.com/meridianpay/payments/internal/middleware/correlation"
	"github.com/meridianpay/payments/internal/usecase"
	"go.uber.org/zap"
)

// Services bundles the use cases the HTTP surface exposes. They are built in
// main so the sweeper shares the same instances.
type Services struct {
	Ledger       *usecase.LedgerService
	Transactions *usecase.TransactionService
	Tokens       *usecase.TokenService
	Crypto       *usecase.CryptoService
	Paypal       *usecase.PaypalService
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services *Services
}

func NewServer(cfg *config.Config, logger *zap.Logger, services *Services) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(correlation.Middleware(logger))

	return &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		services: services,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(s.services.Ledger, s.logger)
	paymentHandler := handlers.NewPaymentHandler(s.services.Transactions, s.services.Tokens, s.services.Ledger, s.logger)
	cryptoHandler := handlers.NewCryptoHandler(s.services.Crypto, s.logger)
	paypalHandler := handlers.NewPaypalHandler(s.services.Paypal, s.logger)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Ledger accounts
	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.GET("/:id/can-reserve", accountHandler.CanReserve)

	// Bank rail payments
	payments := v1.Group("/payments")
	payments.POST("", paymentHandler.CreatePayment)
	payments.GET("/:id", paymentHandler.GetPayment)
	payments.POST("/:id/authorize", paymentHandler.AuthorizePayment)
	payments.POST("/:id/capture", paymentHandler.CapturePayment)
	payments.POST("/:id/cancel", paymentHandler.CancelPayment)

	// Crypto rail
	cryptoPayments := v1.Group("/crypto/payments")
	cryptoPayments.POST("", cryptoHandler.CreatePayment)
	cryptoPayments.POST("/:id/confirm", cryptoHandler.ConfirmPayment)
	cryptoPayments.POST("/:id/cancel", cryptoHandler.CancelPayment)
	cryptoPayments.GET("/:pspTransactionID", cryptoHandler.GetStatus)

	// PayPal rail
	paypalOrders := v1.Group("/paypal/orders")
	paypalOrders.POST("", paypalHandler.CreateOrder)
	paypalOrders.POST("/:pspTransactionID/capture", paypalHandler.CaptureOrder)
	paypalOrders.GET("/:pspTransactionID", paypalHandler.GetOrder)
}
