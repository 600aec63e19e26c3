package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rustyeddy/tradequeue/broker"
	log "github.com/sirupsen/logrus"
)

// ConnOptions tune how a Connection talks to its venue.
type ConnOptions struct {
	CallTimeout         time.Duration // bound on each Connect or Healthy call
	ReconnectMaxElapsed time.Duration // give up a reconnect round after this long
	InitialBackoff      time.Duration
}

// Connection owns one venue session. It connects lazily, tracks health and
// reconnects with exponential backoff. Network calls are made without
// holding the mutex, so readers of the health flag never wait on the venue.
type Connection struct {
	venue broker.Venue
	creds broker.Credentials
	opts  ConnOptions

	mu          sync.Mutex
	connected   bool
	healthy     bool
	lastHealthy time.Time
	lastErr     error
}

func NewConnection(v broker.Venue, creds broker.Credentials, opts ConnOptions) *Connection {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.ReconnectMaxElapsed <= 0 {
		opts.ReconnectMaxElapsed = time.Minute
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	return &Connection{venue: v, creds: creds, opts: opts}
}

// Venue returns the underlying venue.
func (c *Connection) Venue() broker.Venue { return c.venue }

// Healthy reports the result of the last health check.
func (c *Connection) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// LastHealthy is when the venue last answered a health check.
func (c *Connection) LastHealthy() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHealthy
}

// MarkUnhealthy records a failed venue call so the next poll cycle is
// skipped until the health loop has reconnected.
func (c *Connection) MarkUnhealthy(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.setLocked(false, err)
}

// Check probes the venue and reconnects when needed. It returns the new
// health state.
func (c *Connection) Check(ctx context.Context) bool {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	if connected {
		hctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		ok := c.venue.Healthy(hctx)
		cancel()
		if ok {
			c.mu.Lock()
			c.setLocked(true, nil)
			c.mu.Unlock()
			return true
		}
	}

	err := c.reconnect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = err == nil
	c.setLocked(err == nil, err)
	return err == nil
}

func (c *Connection) reconnect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = 10 * c.opts.InitialBackoff
	b.MaxElapsedTime = c.opts.ReconnectMaxElapsed

	op := func() error {
		cctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
		if err := c.venue.Connect(cctx, c.creds); err != nil {
			return err
		}
		if !c.venue.Healthy(cctx) {
			return broker.ErrNotConnected
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.WithError(err).WithField("retry_in", next.Round(time.Millisecond)).Warn("venue connect failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

// setLocked updates health and logs transitions. c.mu must be held.
func (c *Connection) setLocked(healthy bool, err error) {
	was := c.healthy
	c.healthy = healthy
	c.lastErr = err
	if healthy {
		c.lastHealthy = time.Now()
	}

	switch {
	case healthy && !was:
		log.Info("venue connection healthy")
	case !healthy && was:
		log.WithError(err).Warn("venue connection lost")
	}
}

// Close ends the venue session.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.connected = false
	c.setLocked(false, nil)
	c.mu.Unlock()
	return c.venue.Close()
}

// LastError is the error behind the current unhealthy state, if any.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
