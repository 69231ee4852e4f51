package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// ClobClient places and cancels orders through the CLOB REST API. It
// authenticates with plain API-key headers; cryptographic order signing is
// handled upstream by the operator's signing proxy.
type ClobClient struct {
	host       string
	creds      config.PolymarketConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	tokens map[domain.Outcome]string
}

// NewClobClient creates an order client. SetMarket must be called before
// SubmitOrder.
func NewClobClient(cfg config.PolymarketConfig, logger *slog.Logger) *ClobClient {
	return &ClobClient{
		host:       cfg.ClobHost,
		creds:      cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "clob")),
		tokens:     make(map[domain.Outcome]string),
	}
}

// SetMarket retargets order placement to the new window's token ids.
func (c *ClobClient) SetMarket(meta domain.MarketMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = map[domain.Outcome]string{
		domain.OutcomeYes: meta.YesAssetID,
		domain.OutcomeNo:  meta.NoAssetID,
	}
	return nil
}

func (c *ClobClient) tokenFor(o domain.Outcome) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.tokens[o]
	return id, ok && id != ""
}

// SubmitOrder posts one limit order and returns the venue order id. A venue
// rejection comes back as domain.ErrOrderRejected so the executor can absorb
// it and re-decide next cycle.
func (c *ClobClient) SubmitOrder(ctx context.Context, o domain.Order) (string, error) {
	token, ok := c.tokenFor(o.Outcome)
	if !ok {
		return "", fmt.Errorf("polymarket: submit: no token for outcome %s", o.Outcome)
	}

	req := apiOrderRequest{
		TokenID: token,
		Price:   tickToPrice(o.Price),
		Size:    formatSize(o.Size),
		Side:    strings.ToUpper(string(o.Direction)),
	}

	var result apiOrderResult
	if err := c.do(ctx, http.MethodPost, "/order", req, &result); err != nil {
		return "", fmt.Errorf("polymarket: submit order: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("polymarket: %s: %w", result.ErrorMsg, domain.ErrOrderRejected)
	}

	c.logger.Debug("order accepted",
		slog.String("api_order_id", result.OrderID),
		slog.String("status", result.Status),
	)
	return result.OrderID, nil
}

// CancelOrder cancels one resting order by venue id. A 404 maps to
// domain.ErrNotFound, which the executor treats as a ghost cancel.
func (c *ClobClient) CancelOrder(ctx context.Context, apiOrderID string) error {
	if apiOrderID == "" {
		return fmt.Errorf("polymarket: cancel without venue id: %w", domain.ErrNotFound)
	}
	body := map[string]string{"orderID": apiOrderID}
	if err := c.do(ctx, http.MethodDelete, "/order", body, nil); err != nil {
		return fmt.Errorf("polymarket: cancel order %s: %w", apiOrderID, err)
	}
	return nil
}

// CancelAll pulls every resting order for the account. Used on teardown.
func (c *ClobClient) CancelAll(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/cancel-all", nil, nil); err != nil {
		return fmt.Errorf("polymarket: cancel all: %w", err)
	}
	return nil
}

func (c *ClobClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY-API-KEY", c.creds.APIKey)
	req.Header.Set("POLY-SECRET", c.creds.APISecret)
	req.Header.Set("POLY-PASSPHRASE", c.creds.APIPassphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
