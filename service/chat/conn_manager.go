package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"BProject/logger"
	"BProject/tools/ids"
)

const sendQueueSize = 256

// WsConn is one live socket. Exclusively owned by the gateway; the presence
// tracker references it by ID only.
type WsConn struct {
	ID         string
	UserID     string // empty until authenticated
	Username   string
	Authorized bool

	Conn   *websocket.Conn
	Remote net.Addr

	ConnectedAt  time.Time
	LastActivity time.Time

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Enqueue hands a frame to the connection's writer. Non-blocking: a full
// queue means a slow or dead client, and dropping beats stalling the caller.
func (c *WsConn) Enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warnf("[conn] send queue full, dropping frame conn=%s user=%s", c.ID, c.UserID)
		return false
	}
}

func (c *WsConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// ConnManager is the registry of live connections, indexed by connection id
// and by owning user.
type ConnManager struct {
	mu     sync.RWMutex
	byID   map[string]*WsConn
	byUser map[string]map[string]*WsConn
	gwID   string
}

func NewConnManager(gwID string) *ConnManager {
	return &ConnManager{
		byID:   make(map[string]*WsConn),
		byUser: make(map[string]map[string]*WsConn),
		gwID:   gwID,
	}
}

func (m *ConnManager) GwID() string { return m.gwID }

// Add registers a fresh, not yet authenticated connection and assigns its id.
func (m *ConnManager) Add(ws *websocket.Conn) *WsConn {
	now := time.Now()
	c := &WsConn{
		ID:           ids.GenerateString(),
		Conn:         ws,
		ConnectedAt:  now,
		LastActivity: now,
		send:         make(chan []byte, sendQueueSize),
		closed:       make(chan struct{}),
	}
	if ws != nil {
		c.Remote = ws.RemoteAddr()
	}
	m.mu.Lock()
	m.byID[c.ID] = c
	m.mu.Unlock()
	return c
}

// Bind marks the connection authorized and indexes it under its user.
func (m *ConnManager) Bind(connID, userID, username string) *WsConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[connID]
	if !ok {
		return nil
	}
	c.UserID = userID
	c.Username = username
	c.Authorized = true
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]*WsConn)
	}
	m.byUser[userID][connID] = c
	return c
}

// Remove drops the connection from both indexes and closes the socket.
func (m *ConnManager) Remove(connID string) *WsConn {
	m.mu.Lock()
	c, ok := m.byID[connID]
	if ok {
		delete(m.byID, connID)
		if c.Authorized && c.UserID != "" {
			if mm := m.byUser[c.UserID]; mm != nil {
				delete(mm, connID)
				if len(mm) == 0 {
					delete(m.byUser, c.UserID)
				}
			}
		}
	}
	m.mu.Unlock()
	if ok {
		c.shutdown()
	}
	return c
}

func (m *ConnManager) Get(connID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[connID]
	return c, ok
}

// Touch refreshes the connection's last-activity timestamp.
func (m *ConnManager) Touch(connID string) {
	m.mu.Lock()
	if c, ok := m.byID[connID]; ok {
		c.LastActivity = time.Now()
	}
	m.mu.Unlock()
}

// UserConns snapshots all of one user's connections.
func (m *ConnManager) UserConns(userID string) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	out := make([]*WsConn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// All snapshots every live connection (broadcast fan-out).
func (m *ConnManager) All() []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close shuts every connection down; used on process exit.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := make([]*WsConn, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.byID = make(map[string]*WsConn)
	m.byUser = make(map[string]map[string]*WsConn)
	m.mu.Unlock()
	for _, c := range conns {
		c.shutdown()
	}
}
