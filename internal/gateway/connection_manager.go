package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/quizroom/internal/room"
	"github.com/rs/zerolog/log"
)

// Dispatcher is what the gateway needs from the room lifecycle engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, act room.Action) error
	HandleDisconnect(connID string)
}

// Envelope is the wire format for every outbound message.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ClientMessage is the wire format for inbound actions.
type ClientMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectionConfig holds tuning for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket tuning.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

type outbound struct {
	roomCode string // fan out to a room group when set
	connID   string // deliver to a single connection when set
	data     []byte
}

// ConnectionManager owns every live WebSocket connection and the room-group
// index used for fan-out. It implements the engine's Broadcaster contract:
// Join/Leave maintain the groups synchronously, Publish/Reply enqueue
// pre-marshalled frames onto a single delivery loop so subscribers observe
// events in the order the engine emitted them.
type ConnectionManager struct {
	conns     map[string]*Connection
	roomConns map[string]map[string]*Connection
	mu        sync.RWMutex

	upgrader   websocket.Upgrader
	config     ConnectionConfig
	dispatcher Dispatcher

	sendCh chan outbound
}

// Connection represents one WebSocket client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// NewConnectionManager creates a connection manager. The dispatcher is set
// separately because the engine is constructed with the manager as its
// broadcaster.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		conns:     make(map[string]*Connection),
		roomConns: make(map[string]map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		sendCh: make(chan outbound, 1024),
	}
}

// SetDispatcher wires the inbound side to the lifecycle engine.
func (cm *ConnectionManager) SetDispatcher(d Dispatcher) {
	cm.dispatcher = d
}

// Start drains the delivery queue until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.sendCh:
			cm.deliver(msg)
		}
	}
}

// Join attaches a connection to a room group.
func (cm *ConnectionManager) Join(connID, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.conns[connID]
	if !ok {
		return
	}
	if cm.roomConns[roomCode] == nil {
		cm.roomConns[roomCode] = make(map[string]*Connection)
	}
	cm.roomConns[roomCode][connID] = conn
}

// Leave detaches a connection from a room group.
func (cm *ConnectionManager) Leave(connID, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if group, ok := cm.roomConns[roomCode]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(cm.roomConns, roomCode)
		}
	}
}

// Publish fans an event out to every connection in the room group. The
// envelope is marshalled here, while the engine still holds its lock, so the
// payload cannot be mutated underneath the delivery loop.
func (cm *ConnectionManager) Publish(roomCode, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast envelope")
		return
	}
	select {
	case cm.sendCh <- outbound{roomCode: roomCode, data: data}:
	default:
		log.Warn().Str("room_code", roomCode).Str("event", event).Msg("delivery queue full, dropping broadcast")
	}
}

// Reply delivers an event to a single connection.
func (cm *ConnectionManager) Reply(connID, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal reply envelope")
		return
	}
	select {
	case cm.sendCh <- outbound{connID: connID, data: data}:
	default:
		log.Warn().Str("conn_id", connID).Str("event", event).Msg("delivery queue full, dropping reply")
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{Event: event, Payload: body})
}

func (cm *ConnectionManager) deliver(msg outbound) {
	// Sends happen under the read lock: unregisterConnection closes Send
	// under the write lock, so a send can never race the close. The sends are
	// non-blocking, so holding the lock here cannot stall.
	cm.mu.RLock()
	var targets []*Connection
	if msg.connID != "" {
		if conn, ok := cm.conns[msg.connID]; ok {
			targets = append(targets, conn)
		}
	} else if group, ok := cm.roomConns[msg.roomCode]; ok {
		for _, conn := range group {
			targets = append(targets, conn)
		}
	}

	var dead []*Connection
	for _, conn := range targets {
		select {
		case conn.Send <- msg.data:
		default:
			dead = append(dead, conn)
		}
	}
	cm.mu.RUnlock()

	// Slow or dead clients are dropped rather than stalling the room.
	for _, conn := range dead {
		log.Warn().Str("conn_id", conn.ID).Msg("send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket and starts its
// read/write pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.mu.Lock()
	cm.conns[conn.ID] = conn
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	// The client needs its connection id to interpret playerId fields.
	cm.Reply(conn.ID, "connected", map[string]string{"connectionId": conn.ID})

	log.Info().
		Str("conn_id", conn.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, ok := cm.conns[conn.ID]; !ok {
		cm.mu.Unlock()
		return
	}
	delete(cm.conns, conn.ID)
	close(conn.Send)
	for code, group := range cm.roomConns {
		delete(group, conn.ID)
		if len(group) == 0 {
			delete(cm.roomConns, code)
		}
	}
	cm.mu.Unlock()

	log.Info().Str("conn_id", conn.ID).Msg("connection unregistered")

	if cm.dispatcher != nil {
		cm.dispatcher.HandleDisconnect(conn.ID)
	}
}

// Stats returns connection/room-group counts for the stats endpoint.
func (cm *ConnectionManager) Stats() (connections, roomGroups int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns), len(cm.roomConns)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("conn_id", c.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn_id", c.ID).Msg("unexpected WebSocket close")
			}
			break
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID).Msg("discarding malformed client message")
		return
	}
	if c.Manager.dispatcher == nil {
		return
	}

	act := room.Action{
		Kind:     room.ActionKind(msg.Action),
		CallerID: c.ID,
		Payload:  msg.Payload,
	}

	// The engine replies to the caller on failure; the error return is only
	// logged here.
	if err := c.Manager.dispatcher.Dispatch(context.Background(), act); err != nil {
		log.Debug().
			Err(err).
			Str("conn_id", c.ID).
			Str("action", msg.Action).
			Msg("action rejected")
	}
}
