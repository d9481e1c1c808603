package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var jsonFast = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultConnectTimeout = 10 * time.Second
	defaultTotalTimeout   = 30 * time.Second
	maxRedirects          = 5
)

// Client is a thin I/O facade shared by all adapters and strategies in a process: one connection
// pool, explicit construction (never a package-level global), so tests can substitute a mock
// transport via WithHTTPClient/WithDialer.
//
// Grounded on the teacher library's inline *http.Client{Timeout: 10*time.Second} in
// candles/binance/api_klines.go, generalized into an injectable, pooled facade shared across
// adapters and exposing a WebSocket surface the teacher never needed.
type Client struct {
	httpClient *http.Client
	dialer     *websocketDialer
	logger     zerolog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the pooled *http.Client, e.g. to inject a transport that talks to an
// httptest server without touching the network.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger overrides the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New constructs a Client with the default connect/total timeouts (10s/30s) and a shared
// transport connection pool.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: defaultConnectTimeout}).DialContext,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		dialer: newWebsocketDialer(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRESTData issues an HTTP request and decodes a 2xx JSON body into an interface{}/map value.
// Non-2xx responses return a *TransportError wrapping ErrTransport carrying status and body.
func (c *Client) GetRESTData(ctx context.Context, url string, params map[string]string, headers map[string]string, method string, data []byte) (interface{}, error) {
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(data) > 0 {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       raw,
			Err:        fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode),
		}
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var decoded interface{}
	if err := jsonFast.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return decoded, nil
}

// EstablishWSConnection dials url and returns a WSAssistant handle for it.
func (c *Client) EstablishWSConnection(ctx context.Context, url string) (WSAssistant, error) {
	return c.dialer.dial(ctx, url)
}
