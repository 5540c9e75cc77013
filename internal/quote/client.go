package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	// BaseURL of the EODHD-compatible API. Defaults to the hosted service;
	// tests point it at a local server.
	BaseURL string
	APIKey  string
}

// Client fetches real-time quotes and symbol search results over HTTP.
// Transient upstream failures (network errors, 429, 5xx) are retried with
// fibonacci backoff before giving up.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://eodhd.com"
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "quote"),
	}
}

func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	addr := fmt.Sprintf("%s/api/real-time/%s?fmt=json&api_token=%s",
		c.cfg.BaseURL, url.PathEscape(symbol), url.QueryEscape(c.cfg.APIKey))

	var payload struct {
		Code      string      `json:"code"`
		Close     json.Number `json:"close"`
		Timestamp int64       `json:"timestamp"`
	}
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(payload.Close.String())
	if err != nil {
		// The API reports "NA" for symbols it cannot price.
		return Quote{}, fmt.Errorf("quote %s: no price in response", symbol)
	}

	return Quote{
		Symbol:    symbol,
		Price:     price,
		FetchedAt: time.Unix(payload.Timestamp, 0),
	}, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]Security, error) {
	addr := fmt.Sprintf("%s/api/search/%s?fmt=json&api_token=%s",
		c.cfg.BaseURL, url.PathEscape(query), url.QueryEscape(c.cfg.APIKey))

	var payload []struct {
		Code     string `json:"Code"`
		Exchange string `json:"Exchange"`
		Name     string `json:"Name"`
		Currency string `json:"Currency"`
	}
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	hits := make([]Security, 0, len(payload))
	for _, h := range payload {
		// The provider's ticker format is CODE.EXCHANGE; that combined form
		// is what the quote endpoint accepts back.
		hits = append(hits, Security{
			Symbol:   h.Code + "." + h.Exchange,
			Name:     h.Name,
			Exchange: h.Exchange,
			Currency: h.Currency,
		})
	}
	return hits, nil
}

func (c *Client) getJSON(ctx context.Context, addr string, v any) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(300*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("upstream retryable status", "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("quote API status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("quote API status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(v)
	})
}
