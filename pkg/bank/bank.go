// Package bank talks to the Nessie sandbox banking API: account balance,
// purchase history and recording new purchases.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/caching"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountUnavailable means the balance could not be read. Purchase
	// history failures never produce it.
	ErrAccountUnavailable = errors.New("bank: account unavailable")
	// ErrNotConfigured means the API key or account id is missing.
	ErrNotConfigured = errors.New("bank: api key and account id required")
	// ErrInvalidAmount rejects purchases that are not strictly positive.
	ErrInvalidAmount = errors.New("bank: purchase amount must be positive")
)

// Client is a Nessie client bound to one account.
type Client struct {
	baseURL    string
	apiKey     string
	accountID  string
	merchantID string
	httpClient *http.Client
	cache      *caching.Cache
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a client. cache may be nil.
func New(cfg models.BankConfig, cache *caching.Cache, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.AccountID == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		accountID:  cfg.AccountID,
		merchantID: cfg.MerchantID,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type account struct {
	ID       string          `json:"_id"`
	Nickname string          `json:"nickname"`
	Balance  decimal.Decimal `json:"balance"`
}

type purchaseRequest struct {
	MerchantID   string  `json:"merchant_id"`
	Medium       string  `json:"medium"`
	PurchaseDate string  `json:"purchase_date"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
}

func (c *Client) cacheKey() string { return caching.Key("bank", c.baseURL, c.accountID) }

// FetchData returns the balance and purchase history. A failed balance
// lookup is an error wrapping ErrAccountUnavailable; a failed history
// lookup is logged and yields an empty history.
func (c *Client) FetchData(ctx context.Context) (models.BankData, error) {
	var data models.BankData
	if c.cache.GetJSON(c.cacheKey(), &data) {
		c.logger.Debug("bank: cache hit", "account", c.accountID)
		return data, nil
	}

	var acct account
	if err := c.getJSON(ctx, c.endpoint(""), &acct); err != nil {
		return models.BankData{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
	}
	data.Balance = acct.Balance

	var purchases []models.PurchaseRecord
	historyErr := c.getJSON(ctx, c.endpoint("/purchases"), &purchases)
	if historyErr != nil {
		c.logger.Warn("bank: purchase history unavailable", "account", c.accountID, "error", historyErr)
		purchases = nil
	}
	if purchases == nil {
		purchases = []models.PurchaseRecord{}
	}
	data.Purchases = purchases

	// A degraded answer is never cached; the next call retries the history.
	if historyErr == nil {
		if err := c.cache.SetJSON(c.cacheKey(), data); err != nil {
			c.logger.Warn("bank: cache write failed", "error", err)
		}
	}
	return data, nil
}

// RecordPurchase posts a purchase against the account, dated today.
func (c *Client) RecordPurchase(ctx context.Context, info models.PurchaseInfo) error {
	if !info.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	body, err := json.Marshal(purchaseRequest{
		MerchantID:   c.merchantID,
		Medium:       "balance",
		PurchaseDate: c.now().Format(models.DateLayout),
		Amount:       info.Amount.InexactFloat64(),
		Description:  info.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal purchase: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/purchases"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("record purchase: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	// The cached history no longer includes this purchase.
	if err := c.cache.Invalidate(c.cacheKey()); err != nil {
		c.logger.Warn("bank: cache invalidate failed", "error", err)
	}
	c.logger.Info("bank: purchase recorded", "amount", info.Amount.StringFixed(2), "description", info.Description)
	return nil
}

func (c *Client) endpoint(suffix string) string {
	return fmt.Sprintf("%s/accounts/%s%s?key=%s",
		c.baseURL, url.PathEscape(c.accountID), suffix, url.QueryEscape(c.apiKey))
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
