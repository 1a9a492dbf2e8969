package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tourney-lite/apps/server/internal/codec"
	"tourney-lite/apps/server/internal/events"
	"tourney-lite/tournament"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// resyncRequest is the only client message: it asks for a fresh snapshot.
const resyncRequest = "resync"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StateSource produces the current snapshot of a tournament.
type StateSource interface {
	GetState(ctx context.Context, tournamentID uint64) (tournament.Snapshot, error)
}

// Connection is one admin display subscribed to one tournament.
type Connection struct {
	ID           string
	TournamentID uint64
	Conn         *websocket.Conn
	Send         chan []byte
	Gateway      *Gateway
	LastPing     time.Time

	cancel    func()
	closeOnce sync.Once
}

// Gateway pushes encoded snapshots to websocket subscribers. Frames are
// codec envelopes; the first frame after connect and any resync reply carry
// ServerSeq 0.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	fanout      events.Fanout
	state       StateSource
}

func New(fanout events.Fanout, state StateSource) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		fanout:      fanout,
		state:       state,
	}
}

// HandleWebSocket upgrades /ws?tournament=ID and starts streaming.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := strconv.ParseUint(strings.TrimSpace(r.URL.Query().Get("tournament")), 10, 64)
	if err != nil || tournamentID == 0 {
		http.Error(w, "invalid tournament", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	feed, cancel := g.fanout.Subscribe(tournamentID)

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:           fmt.Sprintf("conn_%d", g.nextConnID),
		TournamentID: tournamentID,
		Conn:         conn,
		Send:         make(chan []byte, sendBuffer),
		Gateway:      g,
		LastPing:     time.Now(),
		cancel:       cancel,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s (tournament=%d), total: %d", c.ID, tournamentID, total)

	c.resync(r.Context())
	go c.forward(feed)
	go c.readPump()
	go c.writePump()
}

// resync queues a full snapshot for the client.
func (c *Connection) resync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
	defer cancel()
	snap, err := c.Gateway.state.GetState(ctx, c.TournamentID)
	if err != nil {
		log.Printf("[Gateway] Resync failed: conn=%s tournament=%d err=%v", c.ID, c.TournamentID, err)
		return
	}
	c.enqueue(codec.MarshalEnvelope(codec.WrapSnapshot(0, snap, time.Now().UTC())))
}

func (c *Connection) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		// Drop if buffer full; the next snapshot supersedes it.
	}
}

// forward copies fan-out payloads until the subscription closes.
func (c *Connection) forward(feed <-chan []byte) {
	for data := range feed {
		c.enqueue(data)
	}
}

func (c *Connection) readPump() {
	defer c.Gateway.removeConnection(c)

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			return
		}
		if messageType == websocket.TextMessage && strings.TrimSpace(string(message)) == resyncRequest {
			c.resync(context.Background())
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close ends the subscription and the connection. Send is never closed
// because forward and resync may still hold it; writePump exits when the
// socket does.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.Conn.Close()
	})
}

func (g *Gateway) removeConnection(c *Connection) {
	c.close()
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// Connections counts the open sockets, optionally for one tournament.
func (g *Gateway) Connections(tournamentID uint64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if tournamentID == 0 {
		return len(g.connections)
	}
	n := 0
	for _, c := range g.connections {
		if c.TournamentID == tournamentID {
			n++
		}
	}
	return n
}

// Close drops every connection.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}
