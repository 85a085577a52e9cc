// Package stream owns the persistent streaming connection to the exchange:
// one WebSocket per session, a subscription registry, reconnection with
// bounded linear backoff, subscription replay, and periodic liveness pings.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

// State is the connection state of a session. Transitions are serialized
// under the session mutex; no caller observes a partial transition.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrAlreadyConnected is returned by Connect when the session is not
// disconnected.
var ErrAlreadyConnected = fmt.Errorf("session is already connected")

// ErrConnectionLost reports an exhausted reconnection budget. The session is
// left disconnected and requires an explicit Connect to resume.
type ErrConnectionLost struct {
	Attempts int
	Cause    error
}

func (e *ErrConnectionLost) Error() string {
	return fmt.Sprintf("connection lost after %d reconnect attempts: %v", e.Attempts, e.Cause)
}

func (e *ErrConnectionLost) Unwrap() error {
	return e.Cause
}

// Handler receives decoded payloads for a subscribed channel.
type Handler func(channel string, data any)

type subscription struct {
	key     string
	handler Handler
}

// Config holds the configuration for a streaming session
type Config struct {
	URL    string
	Logger *zap.Logger
	Dialer *websocket.Dialer

	HeartbeatInterval time.Duration // default 30s
	MaxReconnects     int           // default 5
	ReconnectUnit     time.Duration // default 1s

	// OnConnectionLost is invoked once when the reconnect budget is exhausted.
	OnConnectionLost func(error)
}

// Session owns one streaming connection and its subscription registry. All
// public methods, the receive loop, and the heartbeat loop mutate state under
// a single mutex, so operations apply one at a time in calling order.
type Session struct {
	url               string
	logger            *zap.Logger
	dialer            *websocket.Dialer
	heartbeatInterval time.Duration
	maxReconnects     int
	reconnectUnit     time.Duration
	onConnectionLost  func(error)

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	gen        int // bumped per connection; stale loops see a mismatch and stand down
	connCancel context.CancelFunc
	subs       []subscription
	index      map[string]int
}

// NewSession creates a new streaming session
func NewSession(cfg Config) (*Session, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectUnit == 0 {
		cfg.ReconnectUnit = time.Second
	}

	return &Session{
		url:               cfg.URL,
		logger:            cfg.Logger,
		dialer:            cfg.Dialer,
		heartbeatInterval: cfg.HeartbeatInterval,
		maxReconnects:     cfg.MaxReconnects,
		reconnectUnit:     cfg.ReconnectUnit,
		onConnectionLost:  cfg.OnConnectionLost,
		index:             make(map[string]int),
	}, nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the stream, replays any queued subscriptions, and starts the
// receive and heartbeat loops. Fails with ErrAlreadyConnected unless the
// session is disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	s.state = StateConnecting

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	if err := s.attachLocked(conn); err != nil {
		s.state = StateDisconnected
		return err
	}

	s.logger.Sugar().Infow("Stream connected", "url", s.url, "subscriptions", len(s.subs))
	return nil
}

// attachLocked installs a fresh connection, replays every registry entry in
// order, transitions to Connected, and starts the loops. Caller holds the mutex.
func (s *Session) attachLocked(conn *websocket.Conn) error {
	s.conn = conn
	s.gen++
	gen := s.gen

	for _, sub := range s.subs {
		msg := types.StreamControl{Method: types.StreamMethodSubscribe, Subscription: sub.key}
		if err := conn.WriteJSON(msg); err != nil {
			_ = conn.Close()
			s.conn = nil
			return fmt.Errorf("failed to replay subscription %q: %w", sub.key, err)
		}
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s.connCancel = cancel
	s.state = StateConnected

	go s.readLoop(conn, gen)
	go s.heartbeatLoop(connCtx, conn, gen)
	return nil
}

// Subscribe upserts a handler for a channel key. When connected the control
// message is sent immediately; otherwise the entry is queued and replayed on
// the next successful (re)connection.
func (s *Session) Subscribe(channelKey string, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[channelKey]; ok {
		s.subs[i].handler = handler
		return nil
	}
	s.index[channelKey] = len(s.subs)
	s.subs = append(s.subs, subscription{key: channelKey, handler: handler})

	if s.state != StateConnected {
		return nil
	}

	msg := types.StreamControl{Method: types.StreamMethodSubscribe, Subscription: channelKey}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.failLocked(s.gen, err)
		return fmt.Errorf("failed to send subscribe for %q: %w", channelKey, err)
	}
	return nil
}

// Unsubscribe removes a registry entry. Unsubscribing a channel that was
// never subscribed is a no-op.
func (s *Session) Unsubscribe(channelKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[channelKey]
	if !ok {
		return nil
	}
	s.subs = append(s.subs[:i], s.subs[i+1:]...)
	delete(s.index, channelKey)
	for j := i; j < len(s.subs); j++ {
		s.index[s.subs[j].key] = j
	}

	if s.state != StateConnected {
		return nil
	}

	msg := types.StreamControl{Method: types.StreamMethodUnsubscribe, Subscription: channelKey}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.failLocked(s.gen, err)
		return fmt.Errorf("failed to send unsubscribe for %q: %w", channelKey, err)
	}
	return nil
}

// Disconnect terminates the session: loops are cancelled, the connection is
// closed, and the registry is cleared. This is the only operation that clears
// subscriptions.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return nil
	}

	s.gen++ // invalidate any loop or reconnect attempt still in flight
	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.subs = nil
	s.index = make(map[string]int)
	s.state = StateDisconnected

	s.logger.Sugar().Infow("Stream disconnected by caller")
	return nil
}

// readLoop consumes frames until the connection fails. Unmatched or
// undecodable frames are dropped; feed noise must never take the session down.
func (s *Session) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleTransportError(gen, err)
			return
		}
		s.dispatch(raw)
	}
}

func (s *Session) dispatch(raw []byte) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Sugar().Debugw("Dropping undecodable frame", "error", err)
		return
	}

	s.mu.Lock()
	var handler Handler
	if i, ok := s.index[env.Channel]; ok {
		handler = s.subs[i].handler
	}
	s.mu.Unlock()

	if handler == nil {
		s.logger.Sugar().Debugw("Dropping frame for unsubscribed channel", "channel", env.Channel)
		return
	}

	handler(env.Channel, types.DecodeStreamData(env.Data))
}

// heartbeatLoop sends a liveness ping on a fixed interval while connected. A
// failed send follows the same reconnection path as a receive failure.
func (s *Session) heartbeatLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.gen != gen || s.state != StateConnected {
				s.mu.Unlock()
				return
			}
			err := conn.WriteJSON(types.NewStreamPing())
			if err != nil {
				s.failLocked(gen, err)
			}
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Session) handleTransportError(gen int, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(gen, cause)
}

// failLocked transitions Connected -> Reconnecting and kicks off the
// reconnect goroutine. Stale generations and already-failed connections are
// ignored so only one reconnect runs per failure. Caller holds the mutex.
func (s *Session) failLocked(gen int, cause error) {
	if s.gen != gen || s.state != StateConnected {
		return
	}

	s.logger.Sugar().Warnw("Stream transport error, reconnecting", "error", cause)

	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.gen++
	s.state = StateReconnecting

	go s.reconnect(s.gen, cause)
}

// reconnect retries the dial with a linear backoff, replaying the full
// registry on success. Exceeding the budget settles the session in
// Disconnected and reports ConnectionLost exactly once.
func (s *Session) reconnect(gen int, cause error) {
	for attempt := 1; attempt <= s.maxReconnects; attempt++ {
		time.Sleep(time.Duration(attempt) * s.reconnectUnit)

		s.mu.Lock()
		if s.gen != gen || s.state != StateReconnecting {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		conn, _, err := s.dialer.Dial(s.url, nil)
		if err != nil {
			s.logger.Sugar().Warnw("Reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", s.maxReconnects,
				"error", err,
			)
			continue
		}

		s.mu.Lock()
		if s.gen != gen || s.state != StateReconnecting {
			_ = conn.Close()
			s.mu.Unlock()
			return
		}
		if err := s.attachLocked(conn); err != nil {
			// attachLocked advanced the generation; keep tracking the live one
			gen = s.gen
			s.mu.Unlock()
			s.logger.Sugar().Warnw("Subscription replay failed after reconnect",
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		s.logger.Sugar().Infow("Stream reconnected",
			"attempt", attempt,
			"subscriptions", len(s.subs),
		)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	settled := s.gen == gen && s.state == StateReconnecting
	if settled {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	if settled {
		lost := &ErrConnectionLost{Attempts: s.maxReconnects, Cause: cause}
		s.logger.Sugar().Errorw("Reconnect budget exhausted", "attempts", s.maxReconnects, "cause", cause)
		if s.onConnectionLost != nil {
			s.onConnectionLost(lost)
		}
	}
}
