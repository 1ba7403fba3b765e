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
	"github.com/rs/zerolog/log"
)

// LeagueFeed is the pool key of connections that see every trade, such as
// the league admin's dashboard.
var LeagueFeed = uuid.Nil

// ConnectionManager manages WebSocket connections, pooled by franchise.
type ConnectionManager struct {
	pools map[uuid.UUID]map[*Connection]bool
	mu    sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan *TradeEvent
}

// Connection is one WebSocket client.
type Connection struct {
	ID          string
	PersonID    string
	FranchiseID uuid.UUID
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	ConnectedAt time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		pools: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *TradeEvent, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket subscribed to
// one franchise's trades, or to LeagueFeed.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, personID string, franchiseID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PersonID:    personID,
		FranchiseID: franchiseID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("person_id", personID).
		Str("franchise_id", franchiseID.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.pools[conn.FranchiseID] == nil {
		cm.pools[conn.FranchiseID] = make(map[*Connection]bool)
	}
	cm.pools[conn.FranchiseID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeLocked(conn)
}

// removeLocked drops conn from its pool and closes its send channel. The
// caller holds cm.mu.
func (cm *ConnectionManager) removeLocked(conn *Connection) {
	pool, ok := cm.pools[conn.FranchiseID]
	if !ok {
		return
	}
	if _, ok := pool[conn]; !ok {
		return
	}
	delete(pool, conn)
	close(conn.Send)
	if len(pool) == 0 {
		delete(cm.pools, conn.FranchiseID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("franchise_id", conn.FranchiseID.String()).
		Msg("connection unregistered")
}

// Broadcast queues an event for every party franchise and the league feed.
func (cm *ConnectionManager) Broadcast(event *TradeEvent) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().Str("proposal_id", event.ProposalID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(event *TradeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the write lock so no channel is closed mid-send.
	cm.mu.Lock()
	defer cm.mu.Unlock()

	sent := 0
	for _, key := range append([]uuid.UUID{LeagueFeed}, event.Franchises()...) {
		for conn := range cm.pools[key] {
			select {
			case conn.Send <- data:
				sent++
			default:
				log.Warn().
					Str("connection_id", conn.ID).
					Msg("connection send buffer full, closing connection")
				cm.removeLocked(conn)
				conn.Conn.Close()
			}
		}
	}

	if sent > 0 {
		log.Debug().
			Str("event_type", string(event.Type)).
			Str("proposal_id", event.ProposalID).
			Int("connections", sent).
			Msg("event broadcasted")
	}
}

// Stats summarizes active connections.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	Franchises       int            `json:"franchises"`
	ByFranchise      map[string]int `json:"by_franchise"`
}

func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{ByFranchise: make(map[string]int, len(cm.pools))}
	for id, pool := range cm.pools {
		stats.TotalConnections += len(pool)
		if id != LeagueFeed {
			stats.Franchises++
		}
		stats.ByFranchise[id.String()] = len(pool)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
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
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients do not send commands.
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
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
