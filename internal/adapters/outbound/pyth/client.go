// Package pyth implements outbound.PriceUpdateProvider against a Pyth price
// service (Hermes) endpoint. Updates are the signed VAAs returned by
// /api/latest_vaas, ready to pass to the on-chain Pyth oracle.
package pyth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/time/rate"

	"github.com/archon-research/snx-sdk/internal/pkg/httpclient"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var (
	_ outbound.PriceUpdateProvider    = (*Client)(nil)
	_ outbound.SettlementDataProvider = (*Client)(nil)
)

// ErrFeedNotFound is returned when the price service does not know a feed id.
var ErrFeedNotFound = errors.New("price feed not found")

var defaultEndpoints = map[int64]string{
	10:    "https://xc-mainnet.pyth.network",
	420:   "https://xc-testnet.pyth.network",
	84531: "https://xc-testnet.pyth.network",
}

// DefaultEndpoint returns the price service used for a network.
func DefaultEndpoint(chainID int64) (string, bool) {
	endpoint, ok := defaultEndpoints[chainID]
	return endpoint, ok
}

type ClientConfig struct {
	// BaseURL is the price service root. Defaults to the endpoint for ChainID.
	BaseURL string

	// ChainID selects the default endpoint when BaseURL is empty.
	ChainID int64

	// MaxFeedsPerRequest splits large requests; order is preserved.
	MaxFeedsPerRequest int

	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RateLimitPerSec bounds requests to the price service.
	RateLimitPerSec float64

	Logger     *slog.Logger
	HTTPClient *http.Client
}

func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		MaxFeedsPerRequest: 64,
		Timeout:            10 * time.Second,
		MaxRetries:         3,
		InitialBackoff:     250 * time.Millisecond,
		MaxBackoff:         5 * time.Second,
		RateLimitPerSec:    10,
		Logger:             slog.Default(),
	}
}

type Client struct {
	config ClientConfig
	http   *httpclient.Client
	logger *slog.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	applyDefaults(&config, ClientConfigDefaults())

	if config.BaseURL == "" {
		endpoint, ok := DefaultEndpoint(config.ChainID)
		if !ok {
			return nil, fmt.Errorf("no default price service endpoint for chain %d, BaseURL is required", config.ChainID)
		}
		config.BaseURL = endpoint
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger.With("component", "pyth-client")

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = config.Timeout
	httpCfg.MaxRetries = config.MaxRetries
	httpCfg.InitialBackoff = config.InitialBackoff
	httpCfg.MaxBackoff = config.MaxBackoff
	httpCfg.RateLimit = rate.Limit(config.RateLimitPerSec)
	httpCfg.RateBurst = 1
	httpCfg.HTTPClient = config.HTTPClient

	return &Client{
		config: config,
		http:   httpclient.NewClient(httpCfg, logger, parseError),
		logger: logger,
	}, nil
}

func applyDefaults(config *ClientConfig, defaults ClientConfig) {
	if config.MaxFeedsPerRequest == 0 {
		config.MaxFeedsPerRequest = defaults.MaxFeedsPerRequest
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.RateLimitPerSec == 0 {
		config.RateLimitPerSec = defaults.RateLimitPerSec
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// BaseURL returns the resolved price service endpoint.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// GetFeedsData returns one signed update per feed id, in request order.
func (c *Client) GetFeedsData(ctx context.Context, feedIDs [][32]byte) ([][]byte, error) {
	if len(feedIDs) == 0 {
		return [][]byte{}, nil
	}

	updates := make([][]byte, 0, len(feedIDs))
	for start := 0; start < len(feedIDs); start += c.config.MaxFeedsPerRequest {
		end := min(start+c.config.MaxFeedsPerRequest, len(feedIDs))

		batch, err := c.latestVAAs(ctx, feedIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetching updates for feeds %d-%d: %w", start, end-1, err)
		}
		updates = append(updates, batch...)
	}

	c.logger.Debug("fetched price updates", "feeds", len(feedIDs))
	return updates, nil
}

func (c *Client) latestVAAs(ctx context.Context, feedIDs [][32]byte) ([][]byte, error) {
	params := url.Values{}
	for _, id := range feedIDs {
		params.Add("ids[]", hexutil.Encode(id[:]))
	}

	var response []string
	err := c.http.GetJSON(ctx, httpclient.RequestConfig{
		URL:   c.config.BaseURL + "/api/latest_vaas",
		Query: params,
	}, &response)
	if err != nil {
		return nil, err
	}

	if len(response) != len(feedIDs) {
		return nil, fmt.Errorf("price service returned %d updates for %d feeds", len(response), len(feedIDs))
	}

	updates := make([][]byte, len(response))
	for i, encoded := range response {
		update, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding update for feed %s: %w", hexutil.Encode(feedIDs[i][:]), err)
		}
		updates[i] = update
	}
	return updates, nil
}

// GetSettlementData fetches the update a settlement strategy serves at
// endpoint, a URL with its {data} placeholder already filled in. The response
// carries the hex-encoded update in its data field.
func (c *Client) GetSettlementData(ctx context.Context, endpoint string) ([]byte, error) {
	var response struct {
		Data string `json:"data"`
	}
	if err := c.http.GetJSON(ctx, httpclient.RequestConfig{URL: endpoint}, &response); err != nil {
		return nil, err
	}
	if response.Data == "" {
		return nil, fmt.Errorf("settlement response from %s has no data", endpoint)
	}
	update, err := hexutil.Decode(response.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding settlement data: %w", err)
	}
	return update, nil
}

// parseError maps Hermes "Price ids not found" responses to ErrFeedNotFound.
func parseError(statusCode int, body []byte) error {
	if statusCode == http.StatusBadRequest || statusCode == http.StatusNotFound {
		msg := strings.TrimSpace(string(body))
		if strings.Contains(strings.ToLower(msg), "not found") {
			return fmt.Errorf("%w: %s", ErrFeedNotFound, msg)
		}
	}
	return nil
}
