package wsclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"cryptocrawl/logger"
	"cryptocrawl/models"
)

// State of one connection engine.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Streaming
	Reconnecting
	Terminated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Options tune reconnection and liveness behaviour.
type Options struct {
	IdleTimeout   time.Duration // no inbound traffic beyond this is a disconnect
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	MaxReconnects int
	DialTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = time.Minute
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 10
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Client owns one physical duplex websocket connection and its subscription
// set. Raw inbound data frames are delivered, in receive order, to the
// registered sink function from a single goroutine.
type Client struct {
	endpoint string
	proto    Protocol
	onFrame  func(raw []byte)
	opts     Options
	log      *logger.Entry

	mu     sync.Mutex
	subs   []string
	subset map[string]struct{}
	conn   *websocket.Conn

	writeMu sync.Mutex
	state   atomic.Int32
}

// New creates a connection engine for one endpoint. onFrame receives every
// raw data frame; it is never invoked concurrently by the same client.
func New(endpoint string, proto Protocol, onFrame func(raw []byte), opts Options) *Client {
	return &Client{
		endpoint: endpoint,
		proto:    proto,
		onFrame:  onFrame,
		opts:     opts.withDefaults(),
		subset:   make(map[string]struct{}),
		log:      logger.GetLogger().WithComponent("wsclient").WithFields(logger.Fields{"endpoint": endpoint}),
	}
}

// State returns the engine's current state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Subscriptions returns a copy of the active subscription set in
// subscription order.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.subs))
	copy(out, c.subs)
	return out
}

// Subscribe records the channels in the subscription set and, when the
// connection is live, sends the subscribe commands immediately. Channels
// recorded before Run are replayed on connect and after every reconnect.
func (c *Client) Subscribe(channels ...string) error {
	c.mu.Lock()
	fresh := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := c.subset[ch]; ok {
			continue
		}
		c.subset[ch] = struct{}{}
		c.subs = append(c.subs, ch)
		fresh = append(fresh, ch)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || len(fresh) == 0 {
		return nil
	}
	cmds, err := c.proto.SubscribeCommands(fresh)
	if err != nil {
		return err
	}
	return c.sendCommands(conn, cmds)
}

// Unsubscribe removes the channels from the subscription set and sends the
// venue's unsubscribe commands when it has any.
func (c *Client) Unsubscribe(channels ...string) error {
	c.mu.Lock()
	removed := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := c.subset[ch]; !ok {
			continue
		}
		delete(c.subset, ch)
		removed = append(removed, ch)
	}
	if len(removed) > 0 {
		kept := c.subs[:0]
		for _, ch := range c.subs {
			if _, ok := c.subset[ch]; ok {
				kept = append(kept, ch)
			}
		}
		c.subs = kept
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || len(removed) == 0 {
		return nil
	}
	cmds, err := c.proto.UnsubscribeCommands(removed)
	if err != nil || cmds == nil {
		return err
	}
	return c.sendCommands(conn, cmds)
}

// Run connects, replays the full subscription set and streams until the
// duration elapses, the context is cancelled, or the connection cannot be
// recovered. A zero duration streams indefinitely. Run returns nil on a
// clean stop and a terminal error once the reconnect policy is exhausted.
// The connection is closed before Run returns.
func (c *Client) Run(ctx context.Context, duration time.Duration) error {
	var deadline time.Time
	if duration > 0 {
		deadline = time.Now().Add(duration)
	}

	bo := &backoff.Backoff{
		Min:    c.opts.BackoffMin,
		Max:    c.opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}
	attempts := 0

	for {
		if done(ctx, deadline) {
			c.setState(Disconnected)
			return nil
		}

		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			if attempts > c.opts.MaxReconnects {
				c.setState(Terminated)
				return fmt.Errorf("%w: dial %s failed after %d attempts: %v",
					models.ErrConnection, c.endpoint, attempts, err)
			}
			c.log.WithError(err).WithFields(logger.Fields{"attempt": attempts}).Warn("dial failed, backing off")
			if !c.wait(ctx, deadline, bo.Duration()) {
				c.setState(Disconnected)
				return nil
			}
			continue
		}

		if err := c.replaySubscriptions(conn); err != nil {
			conn.Close()
			attempts++
			if attempts > c.opts.MaxReconnects {
				c.setState(Terminated)
				return fmt.Errorf("%w: subscribe on %s failed after %d attempts: %v",
					models.ErrConnection, c.endpoint, attempts, err)
			}
			c.log.WithError(err).Warn("subscribe failed, reconnecting")
			if !c.wait(ctx, deadline, bo.Duration()) {
				c.setState(Disconnected)
				return nil
			}
			continue
		}

		attempts = 0
		bo.Reset()
		c.setState(Streaming)

		stopHeartbeat := c.startHeartbeat(conn)
		err = c.readLoop(ctx, conn, deadline)
		stopHeartbeat()

		if err == nil {
			// clean stop: duration elapsed or context cancelled
			c.shutdown(conn)
			c.setState(Disconnected)
			return nil
		}

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		c.setState(Reconnecting)
		attempts++
		if attempts > c.opts.MaxReconnects {
			c.setState(Terminated)
			return fmt.Errorf("%w: connection to %s lost and not recovered after %d attempts: %v",
				models.ErrConnection, c.endpoint, attempts, err)
		}
		c.log.WithError(err).WithFields(logger.Fields{"attempt": attempts}).Warn("stream interrupted, reconnecting")
		if !c.wait(ctx, deadline, bo.Duration()) {
			c.setState(Disconnected)
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// replaySubscriptions sends the full current subscription set, not a delta.
func (c *Client) replaySubscriptions(conn *websocket.Conn) error {
	subs := c.Subscriptions()
	if len(subs) == 0 {
		return nil
	}
	c.setState(Subscribed)
	cmds, err := c.proto.SubscribeCommands(subs)
	if err != nil {
		return err
	}
	c.log.WithFields(logger.Fields{"channels": len(subs), "commands": len(cmds)}).Info("subscribed")
	return c.sendCommands(conn, cmds)
}

func (c *Client) sendCommands(conn *websocket.Conn, cmds []string) error {
	for _, cmd := range cmds {
		if err := c.write(conn, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) write(conn *websocket.Conn, msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *Client) startHeartbeat(conn *websocket.Conn) func() {
	msg, interval := c.proto.Heartbeat()
	if msg == "" || interval <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.write(conn, msg); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(stop) }
}

// readLoop delivers frames until a clean stop (nil) or a transport error.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, deadline time.Time) error {
	frames := make(chan []byte, 64)
	errc := make(chan error, 1)
	closed := make(chan struct{})
	defer close(closed)

	// Transport level pings never surface through ReadMessage, but a venue
	// that only sends keepalives is still alive. The handler answers with a
	// pong, as the default one does, and counts the ping as traffic.
	pings := make(chan struct{}, 1)
	conn.SetPingHandler(func(message string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				select {
				case errc <- err:
				case <-closed:
				}
				return
			}
			select {
			case frames <- raw:
			case <-closed:
				return
			}
		}
	}()

	var deadlineC <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		deadlineC = timer.C
	}

	idle := time.NewTimer(c.opts.IdleTimeout)
	defer idle.Stop()
	resetIdle := func() {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(c.opts.IdleTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadlineC:
			return nil
		case err := <-errc:
			return fmt.Errorf("%w: read: %v", models.ErrProtocol, err)
		case <-idle.C:
			return fmt.Errorf("%w: no inbound traffic for %s", models.ErrProtocol, c.opts.IdleTimeout)
		case <-pings:
			resetIdle()
		case raw := <-frames:
			resetIdle()
			c.handleFrame(conn, raw)
		}
	}
}

func (c *Client) handleFrame(conn *websocket.Conn, raw []byte) {
	data, err := c.proto.Decompress(raw)
	if err != nil {
		c.log.WithError(err).Warn("failed to decompress frame, dropping")
		return
	}
	if reply, control := c.proto.HandleFrame(data); control {
		if reply != "" {
			if err := c.write(conn, reply); err != nil {
				c.log.WithError(err).Debug("failed to answer control frame")
			}
		}
		return
	}
	c.onFrame(data)
}

// shutdown performs a graceful stop: unsubscribe where the venue supports
// it, then close the websocket.
func (c *Client) shutdown(conn *websocket.Conn) {
	subs := c.Subscriptions()
	if len(subs) > 0 {
		if cmds, err := c.proto.UnsubscribeCommands(subs); err == nil && cmds != nil {
			c.sendCommands(conn, cmds)
		}
	}
	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) wait(ctx context.Context, deadline time.Time, d time.Duration) bool {
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return !done(ctx, deadline)
	}
}

func done(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && !time.Now().Before(deadline)
}
