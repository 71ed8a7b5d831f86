// Package gateway performs the outbound HTTP calls of the pipeline.
//
// Every call runs inside a circuit breaker and reports its duration to an
// optional Observer. The gateway classifies failures into AppError types but
// never retries and never falls back; those decisions belong to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"emojidb/internal/circuitbreaker"
	"emojidb/internal/common/errors"
	commonhttp "emojidb/internal/common/http"
	"emojidb/internal/common/logging"
)

// Fetch kinds reported to the Observer
const (
	KindPage  = "page"
	KindJSON  = "json"
	KindQuery = "query"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"

// Gateway is the set of upstream operations the resolver and driver rely on
type Gateway interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
	FetchEmbedded(ctx context.Context, url string) (*Page, error)
	FetchJSON(ctx context.Context, url string, out interface{}) error
	Query(ctx context.Context, endpoint string, req QueryRequest, headers http.Header, out interface{}) error
}

// Page is an HTML document together with its embedded __NEXT_DATA__ payload
type Page struct {
	URL      string
	HTML     []byte
	NextData json.RawMessage
}

// QueryRequest is the body of a GraphQL POST
type QueryRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Observer receives the duration of each upstream call
type Observer interface {
	ObserveFetch(kind string, d time.Duration)
}

// Config controls the HTTP behaviour of the gateway
type Config struct {
	// Timeout bounds each request; zero leaves requests unbounded
	Timeout      time.Duration
	UserAgent    string
	Accept       string
	MaxBodyBytes int64
	Breaker      circuitbreaker.Config
	// WaitForBreaker holds calls while the breaker is open instead of
	// rejecting them, so an outage pauses the run rather than emptying it
	WaitForBreaker bool
}

// DefaultConfig returns the settings used for a normal run
func DefaultConfig() Config {
	return Config{
		Timeout:        60 * time.Second,
		UserAgent:      DefaultUserAgent,
		Accept:         "text/html,application/json;q=0.9,*/*;q=0.8",
		MaxBodyBytes:   16 << 20,
		Breaker:        circuitbreaker.GatewayConfig,
		WaitForBreaker: true,
	}
}

// Option customizes an HTTPGateway
type Option func(*HTTPGateway)

// WithHTTPClient replaces the client built from Config
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// WithObserver attaches a duration observer
func WithObserver(observer Observer) Option {
	return func(g *HTTPGateway) {
		g.observer = observer
	}
}

// HTTPGateway implements Gateway over net/http
type HTTPGateway struct {
	config   Config
	client   *http.Client
	breaker  *circuitbreaker.GoBreakerAdapter
	observer Observer
	logger   logging.Logger
}

// New creates a gateway. A nil logger uses the global logger.
func New(config Config, logger logging.Logger, opts ...Option) *HTTPGateway {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	defaults := DefaultConfig()
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Accept == "" {
		config.Accept = defaults.Accept
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.Breaker.Validate() != nil {
		config.Breaker = defaults.Breaker
	}

	g := &HTTPGateway{
		config: config,
		client: commonhttp.NewHTTPClient(
			commonhttp.WithTimeout(config.Timeout),
			commonhttp.WithUserAgent(config.UserAgent),
			commonhttp.WithHeader("Accept", config.Accept),
		),
		breaker: circuitbreaker.NewGoBreaker("gateway", config.Breaker, logger),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Breaker exposes the circuit breaker guarding upstream calls
func (g *HTTPGateway) Breaker() *circuitbreaker.GoBreakerAdapter {
	return g.breaker
}

// FetchPage GETs url and returns the body
func (g *HTTPGateway) FetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	return g.do(ctx, req, KindPage)
}

// FetchEmbedded GETs an HTML page and extracts its __NEXT_DATA__ payload.
// When the payload is missing or malformed the page is still returned,
// alongside a not_found or malformed error, so the HTML remains usable.
func (g *HTTPGateway) FetchEmbedded(ctx context.Context, url string) (*Page, error) {
	body, err := g.FetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: url, HTML: body}
	nextData, err := ExtractNextData(body)
	if err != nil {
		return page, err
	}
	page.NextData = nextData
	return page, nil
}

// FetchJSON GETs url and decodes the JSON body into out
func (g *HTTPGateway) FetchJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.InternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := g.do(ctx, req, KindJSON)
	if err != nil {
		return err
	}
	return decode(url, body, out)
}

// Query POSTs a GraphQL request and decodes the JSON response into out.
// headers are set on the request after the defaults.
func (g *HTTPGateway) Query(ctx context.Context, endpoint string, query QueryRequest, headers http.Header, out interface{}) error {
	payload, err := json.Marshal(query)
	if err != nil {
		return errors.InternalError("failed to marshal query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.InternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	body, err := g.do(ctx, req, KindQuery)
	if err != nil {
		return err
	}
	return decode(endpoint, body, out)
}

// do executes req within the breaker and returns the size-limited body
func (g *HTTPGateway) do(ctx context.Context, req *http.Request, kind string) ([]byte, error) {
	var body []byte
	start := time.Now()

	execute := g.breaker.Execute
	if g.config.WaitForBreaker {
		execute = g.breaker.ExecuteWhenReady
	}

	err := execute(ctx, func() error {
		resp, err := g.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.ConnectionError(fmt.Sprintf("request to %s failed", req.URL), err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxBodyBytes+1))
		if err != nil {
			return errors.ConnectionError(fmt.Sprintf("failed to read response from %s", req.URL), err)
		}
		if int64(len(data)) > g.config.MaxBodyBytes {
			return errors.MalformedError(
				fmt.Sprintf("response from %s exceeds %d bytes", req.URL, g.config.MaxBodyBytes), nil)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errors.StatusError(req.URL.String(), resp.StatusCode)
		}

		body = data
		return nil
	})

	elapsed := time.Since(start)
	if g.observer != nil {
		g.observer.ObserveFetch(kind, elapsed)
	}

	if err != nil {
		g.logger.Debug("Upstream call failed",
			logging.String("kind", kind),
			logging.String("url", req.URL.String()),
			logging.Duration("elapsed", elapsed),
			logging.Err(err),
		)
		return nil, err
	}

	g.logger.Debug("Upstream call completed",
		logging.String("kind", kind),
		logging.String("url", req.URL.String()),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", elapsed),
	)
	return body, nil
}

func decode(url string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.MalformedError(fmt.Sprintf("invalid JSON from %s", url), err)
	}
	return nil
}
