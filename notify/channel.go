package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoCredential is returned by Connect when no bearer token is available;
// the push endpoint authenticates by token and an anonymous dial is refused
// client-side.
var ErrNoCredential = errors.New("notify: no credential available")

// HistoryStore persists delivered events, e.g. SQLiteHistory.
type HistoryStore interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// URL is the push endpoint, e.g. "ws://localhost:8081/ws/notifications".
	URL string

	// Token yields the bearer passed as a query parameter at dial time.
	Token func() string

	// Dialer overrides the websocket dialer (default websocket.DefaultDialer).
	Dialer *websocket.Dialer

	// SubscriberBuffer is the channel buffer per subscriber (default 256).
	SubscriberBuffer int

	// RecentSize caps the in-memory ring of recent events (default 100).
	RecentSize int

	// History optionally persists every delivered event. May be nil.
	History HistoryStore

	Logger *slog.Logger
}

// Channel is the push connection to the library service. Events are
// delivered in arrival order to every subscriber, at most once, with no
// acknowledgement and no delivery guarantee across reconnects. Malformed
// frames are logged and dropped without closing the connection.
//
// Subscriptions survive a Reconnect; the session observer uses that to
// re-key the connection when the credential changes without tearing down
// consumers.
type Channel struct {
	url     string
	token   func() string
	dialer  *websocket.Dialer
	bufSize int
	history HistoryStore
	logger  *slog.Logger
	ring    *Ring

	mu         sync.Mutex
	conn       *websocket.Conn
	readerDone chan struct{}
	subs       []*channelSub
}

// NewChannel creates a Channel; call Connect to dial.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("notify: endpoint url is required")
	}
	if cfg.Token == nil {
		return nil, fmt.Errorf("notify: token source is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("notify: parse endpoint url %q: %w", cfg.URL, err)
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	bufSize := cfg.SubscriberBuffer
	if bufSize <= 0 {
		bufSize = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:     cfg.URL,
		token:   cfg.Token,
		dialer:  dialer,
		bufSize: bufSize,
		history: cfg.History,
		logger:  logger,
		ring:    NewRing(cfg.RecentSize),
	}, nil
}

// Connect dials the push endpoint with the credential available right now.
// Connecting an already-open channel is a no-op. Without a credential it
// returns ErrNoCredential.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	token := c.token()
	if token == "" {
		return ErrNoCredential
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("notify: parse endpoint url %q: %w", c.url, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", c.url, err)
	}

	done := make(chan struct{})
	c.conn = conn
	c.readerDone = done
	go c.readLoop(conn, done)

	c.logger.Debug("notification channel connected", "url", c.url)
	return nil
}

// Reconnect closes any open connection and dials again with the current
// credential. Subscribers keep their subscriptions.
func (c *Channel) Reconnect(ctx context.Context) error {
	_ = c.Close()
	return c.Connect(ctx)
}

// Close closes the connection if it is currently open; closing an
// already-closed or never-opened channel is a no-op, not an error.
// Subscriptions are not cancelled; they simply go quiet.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	done := c.readerDone
	c.conn = nil
	c.readerDone = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best-effort close handshake; the hard close below unblocks the reader
	// either way.
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	if done != nil {
		<-done
	}
	return nil
}

// IsOpen reports whether the connection is currently open.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Recent returns the buffered recent events, newest first.
func (c *Channel) Recent() []Event {
	return c.ring.Recent()
}

// Subscribe registers a subscriber for inbound events. The returned
// Subscription must be closed when done.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &channelSub{ch: make(chan Event, c.bufSize)}
	c.subs = append(c.subs, sub)
	return &Subscription{owner: c, sub: sub}
}

func (c *Channel) unsubscribe(target *channelSub) {
	c.mu.Lock()
	for i, sub := range c.subs {
		if sub == target {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	target.close()
}

// readLoop pumps frames from one connection until it fails or is closed.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("notification channel read failed", "error", err)
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.readerDone = nil
			}
			c.mu.Unlock()
			return
		}

		event, err := parseEvent(data, time.Now())
		if err != nil {
			// Contained: a malformed frame is dropped, the connection stays up.
			c.logger.Warn("dropping malformed notification", "error", err)
			continue
		}

		c.deliver(event)
	}
}

func (c *Channel) deliver(e Event) {
	c.ring.Add(e)

	if c.history != nil {
		if err := c.history.Append(context.Background(), e); err != nil {
			c.logger.Error("failed to persist notification", "error", err)
		}
	}

	c.mu.Lock()
	subs := make([]*channelSub, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.send(e)
	}
}

// Subscription receives events from a Channel.
type Subscription struct {
	owner *Channel
	sub   *channelSub
}

// Events returns the subscription's event stream.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Close unsubscribes and releases resources. Safe to call more than once.
func (s *Subscription) Close() error {
	s.owner.unsubscribe(s.sub)
	return nil
}

type channelSub struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// send delivers an event; if the buffer is full or the subscription is
// closed, the event is dropped.
func (s *channelSub) send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// Drop if channel full.
	}
}

func (s *channelSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
