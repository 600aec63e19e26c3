// Package bridge is a venue that talks JSON over HTTP to a terminal bridge
// process running next to the trading terminal.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/market"
)

type Client struct {
	BaseURL string // e.g. http://127.0.0.1:8228
	Token   string // static token; replaced by the session token after Connect
	HTTP    *http.Client

	mu      sync.RWMutex
	session string
}

var _ broker.Venue = (*Client)(nil)

func New(baseURL, token string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token}
}

type sessionRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

type healthResponse struct {
	Connected bool `json:"connected"`
}

type ordersResponse struct {
	Orders []broker.Order `json:"orders"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Connect(ctx context.Context, creds broker.Credentials) error {
	var resp sessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/session", nil, sessionRequest{
		Login:    creds.Login,
		Password: creds.Password,
		Server:   creds.Server,
	}, &resp)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) Healthy(ctx context.Context) bool {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, nil, &resp); err != nil {
		return false
	}
	return resp.Connected
}

func (c *Client) InstrumentInfo(ctx context.Context, symbol string) (market.InstrumentInfo, error) {
	var info market.InstrumentInfo
	err := c.do(ctx, http.MethodGet, "/v1/instruments/"+symbol, nil, nil, &info)
	if err != nil {
		return market.InstrumentInfo{}, err
	}
	if info.Symbol == "" {
		info.Symbol = symbol
	}
	return info, nil
}

func (c *Client) SubmitLimitOrder(ctx context.Context, o broker.LimitOrder) (broker.Execution, error) {
	var exec broker.Execution
	if err := c.do(ctx, http.MethodPost, "/v1/orders", nil, o, &exec); err != nil {
		return broker.Execution{}, err
	}
	return exec, nil
}

func (c *Client) LookupOrder(ctx context.Context, clientRef string) (broker.Execution, bool, error) {
	var exec broker.Execution
	err := c.do(ctx, http.MethodGet, "/v1/orders", map[string]string{"clientRef": clientRef}, nil, &exec)
	if errors.Is(err, errNotFound) {
		return broker.Execution{}, false, nil
	}
	if err != nil {
		return broker.Execution{}, false, err
	}
	return exec, true, nil
}

func (c *Client) PendingOrders(ctx context.Context) ([]broker.Order, error) {
	var resp ordersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/pending", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) OrderDetail(ctx context.Context, orderID string) (broker.Order, error) {
	var o broker.Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, nil, &o); err != nil {
		return broker.Order{}, err
	}
	return o, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil, nil, nil)
}

func (c *Client) Account(ctx context.Context) (broker.AccountInfo, error) {
	var info broker.AccountInfo
	if err := c.do(ctx, http.MethodGet, "/v1/account", nil, nil, &info); err != nil {
		return broker.AccountInfo{}, err
	}
	return info, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
	if c.HTTP != nil {
		c.HTTP.CloseIdleConnections()
	}
	return nil
}

var errNotFound = errors.New("bridge: not found")

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != "" {
		return c.session
	}
	return c.Token
}

// do sends one request and decodes a 2xx body into out. Non-2xx statuses
// map onto the broker error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, opts map[string]string, in, out any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	q := u.Query()
	for k, v := range opts {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", broker.ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", broker.ErrNotConnected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("bridge %s %s: decode: %w", method, path, err)
		}
		return nil
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := strings.TrimSpace(string(b))
	var er errorResponse
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/v1/instruments/"):
		return fmt.Errorf("%w: %s", broker.ErrInstrumentNotFound, strings.TrimPrefix(path, "/v1/instruments/"))
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/v1/orders/"):
		return fmt.Errorf("%w: %s", broker.ErrOrderNotFound, strings.TrimPrefix(path, "/v1/orders/"))
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return broker.Reject(msg)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: bridge http %d: %s", broker.ErrNotConnected, resp.StatusCode, msg)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: bridge http %d: %s", broker.ErrTimeout, resp.StatusCode, msg)
	}
	return fmt.Errorf("bridge http %d: %s", resp.StatusCode, msg)
}
