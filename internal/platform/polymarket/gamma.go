package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

const windowSeconds = 900

// GammaClient discovers tradable market windows through the Gamma REST API.
type GammaClient struct {
	host       string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a discovery client for the given Gamma host.
func NewGammaClient(host string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		host:       host,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "gamma")),
	}
}

// windowSlug builds the deterministic slug for the window containing ts. The
// series publishes one market per 15-minute boundary, slugged by the start
// epoch.
func windowSlug(series string, start int64) string {
	return fmt.Sprintf("%s-%d", series, start)
}

func floorToWindow(ts int64) int64 {
	return ts - ts%windowSeconds
}

// MarketBySlug fetches one market document. Returns domain.ErrNotFound when
// the slug does not exist.
func (c *GammaClient) MarketBySlug(ctx context.Context, slug string) (domain.MarketMetadata, error) {
	var m apiMarket
	if err := c.doGet(ctx, "/markets/slug/"+slug, &m); err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("polymarket: market %s: %w", slug, err)
	}
	return m.metadata()
}

// CurrentWindow returns the window containing now.
func (c *GammaClient) CurrentWindow(ctx context.Context, series string, now time.Time) (domain.MarketMetadata, error) {
	return c.MarketBySlug(ctx, windowSlug(series, floorToWindow(now.Unix())))
}

// NextWindow returns the window after the one containing now. The venue
// publishes the next market a few minutes before the current one expires, so
// ErrNotFound here means "poll again", not failure.
func (c *GammaClient) NextWindow(ctx context.Context, series string, now time.Time) (domain.MarketMetadata, error) {
	return c.MarketBySlug(ctx, windowSlug(series, floorToWindow(now.Unix())+windowSeconds))
}

func (c *GammaClient) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// checkHTTPStatus maps response codes onto domain errors.
func checkHTTPStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: %w", domain.ErrRateLimited)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
