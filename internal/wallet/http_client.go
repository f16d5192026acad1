package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/cyclebet/internal/config"
)

const circuitBreakerMax = 5

// HTTPWallet talks to the wallet service over HTTP with retries, rate
// limiting and a circuit breaker
type HTTPWallet struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	baseURL           string
	apiKey            string
	consecutiveErrors int
	isOpen            bool
	lastError         error
	logger            *logrus.Logger
}

// NewHTTPWallet creates a wallet client from configuration
func NewHTTPWallet(cfg *config.WalletConfig, logger *logrus.Logger) *HTTPWallet {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	return &HTTPWallet{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type walletRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type walletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Freeze moves funds from available to frozen
func (w *HTTPWallet) Freeze(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	return w.post(ctx, account, "freeze", amount)
}

// Capture realizes frozen funds as platform revenue
func (w *HTTPWallet) Capture(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	return w.post(ctx, account, "capture", amount)
}

// Release returns frozen funds to the available balance
func (w *HTTPWallet) Release(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error {
	return w.post(ctx, account, "release", amount)
}

func (w *HTTPWallet) post(ctx context.Context, account uuid.UUID, op string, amount decimal.Decimal) error {
	if w.isOpen {
		return fmt.Errorf("wallet circuit breaker open: %v", w.lastError)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	body, err := json.Marshal(walletRequest{Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to marshal wallet request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/%s", w.baseURL, account, op)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build wallet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		w.recordFailure(err)
		return fmt.Errorf("wallet %s failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var werr walletError
		data, _ := io.ReadAll(resp.Body)
		if unmarshalErr := json.Unmarshal(data, &werr); unmarshalErr == nil && werr.Code != "" {
			err = fmt.Errorf("wallet %s rejected: %s (%s)", op, werr.Message, werr.Code)
		} else {
			err = fmt.Errorf("wallet %s returned status %d", op, resp.StatusCode)
		}
		w.recordFailure(err)
		return err
	}

	w.recordSuccess()
	return nil
}

func (w *HTTPWallet) recordFailure(err error) {
	w.consecutiveErrors++
	w.lastError = err
	if w.consecutiveErrors >= circuitBreakerMax && !w.isOpen {
		w.isOpen = true
		w.logger.WithError(err).WithField("consecutive_errors", w.consecutiveErrors).
			Error("Wallet circuit breaker opened")
	}
}

func (w *HTTPWallet) recordSuccess() {
	w.consecutiveErrors = 0
	w.isOpen = false
}

// ResetCircuitBreaker manually closes the circuit breaker
func (w *HTTPWallet) ResetCircuitBreaker() {
	w.consecutiveErrors = 0
	w.isOpen = false
	w.lastError = nil
	w.logger.Info("Wallet circuit breaker reset")
}
