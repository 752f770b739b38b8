package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// ErrPipelineUnavailable is returned when the discovery pipeline is down or
// the circuit breaker is rejecting calls to it.
var ErrPipelineUnavailable = errors.New("discovery pipeline unavailable")

// Client fetches findings from the external discovery pipeline over HTTP.
// Calls run through a circuit breaker so a dead pipeline fails fast instead
// of tying up sync workers on timeouts.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a pipeline client. token may be empty when the pipeline
// runs unauthenticated.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:        "DiscoveryPipeline",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("discovery: circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// FetchInteractions retrieves the pipeline's findings for one query protein.
func (c *Client) FetchInteractions(ctx context.Context, query string) ([]DiscoveredInteraction, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrPipelineUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]DiscoveredInteraction), nil
}

func (c *Client) fetch(ctx context.Context, query string) ([]DiscoveredInteraction, error) {
	endpoint := fmt.Sprintf("%s/api/discoveries?protein=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("discovery: pipeline returned %d: %s", resp.StatusCode, body)
	}

	var items []DiscoveredInteraction
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("discovery: failed to decode response: %w", err)
	}
	return items, nil
}
