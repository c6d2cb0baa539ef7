package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cryptocrawl/models"
)

// jsonProtocol frames subscriptions the way most test venues do: one batched
// command listing every channel.
type jsonProtocol struct {
	NopProtocolBase
}

func (jsonProtocol) SubscribeCommands(channels []string) ([]string, error) {
	cmd, err := json.Marshal(map[string]interface{}{"op": "subscribe", "args": channels})
	if err != nil {
		return nil, err
	}
	return []string{string(cmd)}, nil
}

func (jsonProtocol) UnsubscribeCommands(channels []string) ([]string, error) {
	cmd, err := json.Marshal(map[string]interface{}{"op": "unsubscribe", "args": channels})
	if err != nil {
		return nil, err
	}
	return []string{string(cmd)}, nil
}

type subscribeCmd struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// wsServer records every subscribe command it receives and optionally drops
// each connection after acknowledging the subscription.
type wsServer struct {
	*httptest.Server

	mu       sync.Mutex
	received [][]string
	dropped  int
	dropMax  int // drop the first N connections after subscribe
}

func newWSServer(t *testing.T, dropMax int) *wsServer {
	t.Helper()
	s := &wsServer{dropMax: dropMax}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd subscribeCmd
			if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Op != "subscribe" {
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, cmd.Args)
			drop := s.dropped < s.dropMax
			if drop {
				s.dropped++
			}
			s.mu.Unlock()
			if drop {
				return // simulated mid-stream disconnect
			}
			conn.WriteMessage(websocket.TextMessage, []byte(`{"data":"tick"}`))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.received))
	copy(out, s.received)
	return out
}

func testOptions() Options {
	return Options{
		IdleTimeout:   time.Second,
		BackoffMin:    10 * time.Millisecond,
		BackoffMax:    50 * time.Millisecond,
		MaxReconnects: 5,
	}
}

func TestRunDurationBound(t *testing.T) {
	server := newWSServer(t, 0)
	var frames int
	var mu sync.Mutex
	c := New(server.url(), jsonProtocol{}, func([]byte) {
		mu.Lock()
		frames++
		mu.Unlock()
	}, testOptions())
	if err := c.Subscribe("trade.BTCUSDT"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := c.Run(context.Background(), 300*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("Run returned after %v, expected to honor the duration", elapsed)
	}
	if c.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", c.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if frames == 0 {
		t.Error("expected at least one data frame")
	}
}

func TestRunResubscribesFullSetAfterDisconnect(t *testing.T) {
	server := newWSServer(t, 1)
	c := New(server.url(), jsonProtocol{}, func([]byte) {}, testOptions())
	channels := []string{"trade.BTCUSDT", "trade.ETHUSDT", "trade.SOLUSDT"}
	if err := c.Subscribe(channels...); err != nil {
		t.Fatal(err)
	}

	if err := c.Run(context.Background(), 500*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cmds := server.commands()
	if len(cmds) < 2 {
		t.Fatalf("expected at least 2 subscribe commands (initial + replay), got %d", len(cmds))
	}
	replay := cmds[1]
	if len(replay) != len(channels) {
		t.Fatalf("replayed %d channels, want full set of %d", len(replay), len(channels))
	}
	for i, ch := range channels {
		if replay[i] != ch {
			t.Errorf("replay[%d] = %q, want %q", i, replay[i], ch)
		}
	}
}

func TestRunContextCancel(t *testing.T) {
	server := newWSServer(t, 0)
	c := New(server.url(), jsonProtocol{}, func([]byte) {}, testOptions())
	if err := c.Subscribe("trade.BTCUSDT"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if err := c.Run(ctx, 0); err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
	if c.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", c.State())
	}
}

func TestRunPingFramesResetIdleTimer(t *testing.T) {
	// A venue that only sends transport keepalives is quiet but alive; the
	// idle timer must not cut the connection.
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		conns++
		mu.Unlock()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		ticker := time.NewTicker(30 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	opts := testOptions()
	opts.IdleTimeout = 120 * time.Millisecond
	c := New("ws"+strings.TrimPrefix(server.URL, "http"), jsonProtocol{}, func([]byte) {}, opts)
	if err := c.Run(context.Background(), 400*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Errorf("conns = %d, want a single connection kept alive by pings", conns)
	}
}

func TestRunTerminalAfterRetriesExhausted(t *testing.T) {
	opts := testOptions()
	opts.MaxReconnects = 2
	opts.DialTimeout = 200 * time.Millisecond
	// Nothing listens on this endpoint.
	c := New("ws://127.0.0.1:1", jsonProtocol{}, func([]byte) {}, opts)

	err := c.Run(context.Background(), 0)
	if !errors.Is(err, models.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if c.State() != Terminated {
		t.Errorf("state = %v, want terminated", c.State())
	}
}

func TestSubscribeDeduplicates(t *testing.T) {
	c := New("ws://example.invalid", jsonProtocol{}, func([]byte) {}, testOptions())
	c.Subscribe("a", "b")
	c.Subscribe("b", "c")
	subs := c.Subscriptions()
	if len(subs) != 3 {
		t.Fatalf("subscriptions = %v, want 3 unique entries", subs)
	}
	c.Unsubscribe("b")
	subs = c.Subscriptions()
	if len(subs) != 2 || subs[0] != "a" || subs[1] != "c" {
		t.Fatalf("after unsubscribe: %v, want [a c]", subs)
	}
}
