// Package realtime is the websocket channel that carries live query updates
// from the backend (the equivalent of a snapshot listener).
package realtime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/logger"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// ErrNotConnected is returned by Send before Connect succeeds.
var ErrNotConnected = errors.New("not connected")

// MessageType is the envelope discriminator.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeChange      MessageType = "change"
	MessageTypeHeartbeat   MessageType = "heartbeat"
	MessageTypePong        MessageType = "pong"
	MessageTypeError       MessageType = "error"
)

// Message is one frame on the wire. ID names the subscription it belongs to.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Config holds websocket client configuration
type Config struct {
	URL                  string
	ConnectTimeoutMs     int
	HeartbeatIntervalMs  int
	ReconnectBaseDelayMs int
	ReconnectMaxDelayMs  int
	MaxReconnectAttempts int
}

// DefaultConfig returns a development configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8787/api/v1/ws",
		ConnectTimeoutMs:     15000,
		HeartbeatIntervalMs:  30000,
		ReconnectBaseDelayMs: 2000,
		ReconnectMaxDelayMs:  30000,
		MaxReconnectAttempts: -1, // unlimited
	}
}

// ConnectionState represents the state of the websocket connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

type listener struct {
	id int
	fn func(Message)
}

type liveQuery struct {
	q  backend.Query
	fn func(backend.Change)
}

// Client manages one websocket connection and the live queries riding on it.
type Client struct {
	config Config
	token  string
	state  atomic.Value // ConnectionState

	connectMu         sync.Mutex
	mu                sync.RWMutex
	conn              *websocket.Conn
	writeMu           sync.Mutex
	reconnectAttempts int
	reconnectDelay    int

	listenersMu sync.RWMutex
	nextID      int
	listeners   map[MessageType][]listener

	queriesMu sync.RWMutex
	nextQuery int64
	queries   map[string]*liveQuery

	ctx    context.Context
	cancel context.CancelFunc

	statsLock sync.RWMutex
	stats     ConnectionStats
}

// NewClient creates a new websocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:         config,
		listeners:      make(map[MessageType][]listener),
		queries:        make(map[string]*liveQuery),
		ctx:            ctx,
		cancel:         cancel,
		reconnectDelay: config.ReconnectBaseDelayMs,
	}
	c.state.Store(StateDisconnected)
	c.On(MessageTypeChange, c.dispatchChange)
	return c
}

// SetAuthToken sets the bearer token sent on dial.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Connect establishes the websocket connection
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	if c.IsConnected() {
		return nil
	}
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateError)
		c.recordError(err.Error())
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.reconnectAttempts = 0
	c.reconnectDelay = c.config.ReconnectBaseDelayMs
	c.mu.Unlock()

	c.setState(StateConnected)
	c.recordConnected()

	go c.readLoop(conn)
	go c.heartbeatLoop()

	logger.Debug("Realtime connected", "url", c.config.URL)
	return nil
}

// Disconnect closes the websocket connection
func (c *Client) Disconnect() error {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.setState(StateDisconnected)
	c.recordDisconnected()

	logger.Debug("Realtime disconnected")
	return nil
}

// IsConnected returns true if the connection is established
func (c *Client) IsConnected() bool {
	return c.getState() == StateConnected
}

// State is the current connection state.
func (c *Client) State() ConnectionState { return c.getState() }

// On registers fn for a message type. The returned func removes it.
func (c *Client) On(msgType MessageType, fn func(Message)) func() {
	c.listenersMu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[msgType] = append(c.listeners[msgType], listener{id: id, fn: fn})
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		ls := c.listeners[msgType]
		for i, l := range ls {
			if l.id == id {
				c.listeners[msgType] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Send writes one message.
func (c *Client) Send(msg Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := codec.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	c.recordMessageSent()
	return nil
}

// Subscribe registers a live query and asks the server to stream its changes.
// Queries survive reconnects and are re-sent when the connection comes back.
func (c *Client) Subscribe(ctx context.Context, q backend.Query, fn func(backend.Change)) (func(), error) {
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect realtime: %w", err)
	}

	id := "q" + strconv.FormatInt(atomic.AddInt64(&c.nextQuery, 1), 10)
	c.queriesMu.Lock()
	c.queries[id] = &liveQuery{q: q, fn: fn}
	c.queriesMu.Unlock()

	if err := c.sendSubscribe(id, q); err != nil {
		c.queriesMu.Lock()
		delete(c.queries, id)
		c.queriesMu.Unlock()
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.queriesMu.Lock()
			delete(c.queries, id)
			c.queriesMu.Unlock()
			if err := c.Send(Message{Type: MessageTypeUnsubscribe, ID: id}); err != nil {
				logger.Debug("Failed to send unsubscribe", "id", id, "error", err)
			}
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-c.ctx.Done():
			}
		}()
	}
	return cancel, nil
}

func (c *Client) sendSubscribe(id string, q backend.Query) error {
	payload, err := codec.Marshal(q)
	if err != nil {
		return err
	}
	return c.Send(Message{Type: MessageTypeSubscribe, ID: id, Payload: payload})
}

func (c *Client) dispatchChange(msg Message) {
	c.queriesMu.RLock()
	lq, ok := c.queries[msg.ID]
	c.queriesMu.RUnlock()
	if !ok {
		return
	}
	var change backend.Change
	if err := codec.Unmarshal(msg.Payload, &change); err != nil {
		logger.Error("Bad change payload", "id", msg.ID, "error", err)
		return
	}
	lq.fn(change)
}

// GetStats returns connection statistics
func (c *Client) GetStats() ConnectionStats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	return c.stats
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(c.config.ConnectTimeoutMs)*time.Millisecond)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			c.recordError(err.Error())
			logger.Error("Realtime read error", "error", err)
			c.handleDisconnect()
			return
		}

		var msg Message
		if err := codec.Unmarshal(data, &msg); err != nil {
			logger.Debug("Dropping malformed realtime frame", "error", err)
			continue
		}
		c.recordMessageReceived()

		if msg.Type == MessageTypeError {
			logger.Warn("Realtime server error", "id", msg.ID, "payload", string(msg.Payload))
		}

		c.listenersMu.RLock()
		ls := append([]listener(nil), c.listeners[msg.Type]...)
		c.listenersMu.RUnlock()
		for _, l := range ls {
			l.fn(msg)
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(time.Duration(c.config.HeartbeatIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.IsConnected() {
				if err := c.Send(Message{Type: MessageTypeHeartbeat}); err != nil {
					logger.Debug("Failed to send heartbeat", "error", err)
				}
			}
		}
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.setState(StateReconnecting)
	c.recordDisconnected()

	for {
		c.mu.RLock()
		attempts, delay := c.reconnectAttempts, c.reconnectDelay
		c.mu.RUnlock()

		if c.config.MaxReconnectAttempts >= 0 && attempts >= c.config.MaxReconnectAttempts {
			c.setState(StateError)
			logger.Error("Max reconnection attempts reached")
			return
		}

		wait := time.Duration(delay)*time.Millisecond + time.Duration(rand.Intn(1000))*time.Millisecond
		logger.Debug("Reconnecting realtime", "attempt", attempts+1, "wait_ms", wait.Milliseconds())

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}

		conn, err := c.dial(c.ctx)
		if err != nil {
			c.mu.Lock()
			c.reconnectAttempts++
			c.reconnectDelay = int(math.Min(float64(c.reconnectDelay*2), float64(c.config.ReconnectMaxDelayMs)))
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.reconnectAttempts = 0
		c.reconnectDelay = c.config.ReconnectBaseDelayMs
		c.mu.Unlock()

		c.setState(StateConnected)
		c.recordConnected()
		c.statsLock.Lock()
		c.stats.ReconnectCount++
		c.statsLock.Unlock()

		go c.readLoop(conn)
		c.resubscribe()

		logger.Debug("Realtime reconnected")
		return
	}
}

func (c *Client) resubscribe() {
	c.queriesMu.RLock()
	defer c.queriesMu.RUnlock()
	for id, lq := range c.queries {
		if err := c.sendSubscribe(id, lq.q); err != nil {
			logger.Warn("Failed to resubscribe", "id", id, "error", err)
		}
	}
}

func (c *Client) setState(state ConnectionState) {
	c.state.Store(state)
}

func (c *Client) getState() ConnectionState {
	return c.state.Load().(ConnectionState)
}

func (c *Client) recordMessageReceived() {
	c.statsLock.Lock()
	c.stats.MessagesReceived++
	c.statsLock.Unlock()
}

func (c *Client) recordMessageSent() {
	c.statsLock.Lock()
	c.stats.MessagesSent++
	c.statsLock.Unlock()
}

func (c *Client) recordError(errMsg string) {
	c.statsLock.Lock()
	c.stats.LastError = errMsg
	c.statsLock.Unlock()
}

func (c *Client) recordConnected() {
	c.statsLock.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsLock.Unlock()
}

func (c *Client) recordDisconnected() {
	c.statsLock.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsLock.Unlock()
}
