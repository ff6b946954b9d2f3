package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wclink/internal/domain"
	"wclink/internal/rpc"
)

// State is the connection state of a Client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	// ErrNotConnected is returned for sends attempted while disconnected.
	ErrNotConnected = errors.New("relay: websocket not connected")
	// ErrSendFailed wraps socket-level send failures.
	ErrSendFailed = errors.New("relay: send message failed")
	// ErrAckTimeout indicates the relay did not acknowledge a call in time.
	ErrAckTimeout = errors.New("relay: ack timeout")
)

// Options configure a Client.
type Options struct {
	DialTimeout time.Duration
	AckTimeout  time.Duration
	Logger      *slog.Logger
}

// Client is a websocket relay transport. One logical connection per instance;
// reconnection is caller-driven via Connect after a drop.
type Client struct {
	url  string
	opts Options
	log  *slog.Logger
	ids  *rpc.IDGenerator

	state   atomic.Int32
	handler atomic.Value // func(domain.RelayMessage)

	mu      sync.Mutex // guards conn and writes
	conn    *websocket.Conn
	done    chan struct{}
	pending map[int64]chan *rpc.Response
	pendMu  sync.Mutex
}

var _ domain.RelayTransport = (*Client)(nil)

// NewClient targets a ws:// or wss:// relay URL.
func NewClient(url string, opts Options) *Client {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.AckTimeout == 0 {
		opts.AckTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		url:     url,
		opts:    opts,
		log:     opts.Logger,
		ids:     rpc.NewIDGenerator(),
		pending: make(map[int64]chan *rpc.Response),
	}
}

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// SetMessageHandler installs the inbound delivery callback. Must be set
// before Connect; the handler must not block.
func (c *Client) SetMessageHandler(fn func(domain.RelayMessage)) {
	c.handler.Store(fn)
}

// Connect dials the relay and starts the receive loop. Connecting while
// connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == Connected {
		return nil
	}
	c.state.Store(int32(Connecting))

	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.state.Store(int32(Disconnected))
		return fmt.Errorf("relay: dial %s: %w", c.url, err)
	}

	c.conn = conn
	c.done = make(chan struct{})
	c.state.Store(int32(Connected))
	c.log.Debug("relay connected", "url", c.url)

	go c.readLoop(conn, c.done)
	return nil
}

// Disconnect closes the connection. Pending acks fail; subscriptions are the
// interactor's to re-establish on the next Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	close(c.done)
	err := c.conn.Close()
	c.conn = nil
	c.state.Store(int32(Disconnected))
	c.failPending()
	return err
}

// Subscribe registers interest in a topic; the returned id names the
// subscription for Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, topic domain.Topic) (string, error) {
	resp, err := c.call(ctx, MethodSubscribe, SubscribeParams{Topic: topic})
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return "", fmt.Errorf("relay: subscribe ack: %w", err)
	}
	return id, nil
}

// Unsubscribe tears down one subscription.
func (c *Client) Unsubscribe(ctx context.Context, topic domain.Topic, subscriptionID string) error {
	_, err := c.call(ctx, MethodUnsubscribe, UnsubscribeParams{ID: subscriptionID, Topic: topic})
	return err
}

// Publish sends message to topic and blocks until the relay acknowledges
// acceptance.
func (c *Client) Publish(ctx context.Context, topic domain.Topic, message string, opts domain.RelayPublishOptions) error {
	_, err := c.call(ctx, MethodPublish, PublishParams{
		Topic:   topic,
		Message: message,
		TTL:     int64(opts.TTL.Seconds()),
		Tag:     opts.Tag,
		Prompt:  opts.Prompt,
	})
	return err
}

// call performs one relay RPC and waits for its network-level ack.
func (c *Client) call(ctx context.Context, method string, params any) (*rpc.Response, error) {
	req, err := rpc.NewRequest(c.ids.Next(), method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan *rpc.Response, 1)
	c.pendMu.Lock()
	c.pending[req.ID] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, req.ID)
		c.pendMu.Unlock()
	}()

	if err := c.writeJSON(req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, ErrNotConnected
		}
		if resp.Err != nil {
			return nil, fmt.Errorf("relay: %s rejected: %w", method, resp.Err)
		}
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrAckTimeout, method)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.State() != Connected {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(v); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

// readLoop runs for the lifetime of one connection. It must never block on a
// slow consumer: handler dispatch happens on this goroutine only because the
// interactor's fanout is non-blocking.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.state.Store(int32(Disconnected))
		}
		c.mu.Unlock()
		c.failPending()
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("relay connection closed unexpectedly", "error", err)
			}
			return
		}

		env, err := rpc.DecodeEnvelope(raw)
		if err != nil {
			c.log.Debug("relay sent undecodable frame", "error", err)
			continue
		}

		switch {
		case env.Response != nil:
			c.resolve(env.Response)
		case env.Request != nil && env.Request.Method == MethodSubscription:
			var params SubscriptionParams
			if err := json.Unmarshal(env.Request.Params, &params); err != nil {
				c.log.Debug("malformed subscription delivery", "error", err)
				continue
			}
			if fn, ok := c.handler.Load().(func(domain.RelayMessage)); ok && fn != nil {
				fn(domain.RelayMessage{Topic: params.Data.Topic, Message: params.Data.Message})
			}
			ack, err := rpc.NewResponse(env.Request.ID, true)
			if err == nil {
				_ = c.writeJSON(ack)
			}
		default:
			c.log.Debug("relay sent unexpected method", "method", env.Request.Method)
		}
	}
}

func (c *Client) resolve(resp *rpc.Response) {
	c.pendMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendMu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Client) failPending() {
	c.pendMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendMu.Unlock()
}
