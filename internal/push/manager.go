// Package push fans dashboard events out to connected browsers over
// Server-Sent Events or WebSocket.
package push

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types sent to browsers.
const (
	EventConnected = "connected"
	EventURL       = "url"
	EventReload    = "reload"
	EventState     = "state"
)

// Manager defines the interface for push client management
type Manager interface {
	// AddClient registers a client and returns its message channel
	AddClient(clientID string) <-chan Message

	// RemoveClient unregisters a client and closes its channel. Nothing
	// happens unless ch is still the client's current channel, so a stale
	// handler cannot drop a client that reconnected with the same ID.
	RemoveClient(clientID string, ch <-chan Message)

	// HasClients returns true if any client is connected
	HasClients() bool

	// ClientCount returns the number of connected clients
	ClientCount() int

	// Broadcast sends a message to all connected clients without blocking
	Broadcast(message Message)
}

// Message is one pushed event.
type Message struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// clientBuffer is the per-client queue length.
const clientBuffer = 32

type manager struct {
	clients map[string]chan Message
	mu      sync.RWMutex
	seq     int64
	logger  zerolog.Logger
}

// NewManager creates a new push manager
func NewManager(logger zerolog.Logger) Manager {
	return &manager{
		clients: make(map[string]chan Message),
		logger:  logger,
	}
}

func (m *manager) AddClient(clientID string) <-chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A reconnect with the same ID replaces the old channel
	if existing, ok := m.clients[clientID]; ok {
		close(existing)
		delete(m.clients, clientID)
	}

	ch := make(chan Message, clientBuffer)
	m.clients[clientID] = ch

	m.logger.Debug().Str("client", clientID).Int("total", len(m.clients)).Msg("push client connected")
	return ch
}

func (m *manager) RemoveClient(clientID string, ch <-chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.clients[clientID]; ok && current == ch {
		close(current)
		delete(m.clients, clientID)
		m.logger.Debug().Str("client", clientID).Int("remaining", len(m.clients)).Msg("push client disconnected")
	}
}

func (m *manager) HasClients() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients) > 0
}

func (m *manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *manager) Broadcast(message Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	if message.ID == 0 {
		m.seq++
		message.ID = m.seq
	}

	for clientID, ch := range m.clients {
		select {
		case ch <- message:
		default:
			// Slow client, drop rather than stall the writer
			m.logger.Warn().Str("client", clientID).Str("type", message.Type).Msg("push channel full, message dropped")
		}
	}
}
