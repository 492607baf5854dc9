package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"BProject/logger"
	errs "BProject/tools/errs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	maxFrameSize     = 1 << 20 // 1MB
	maxContentLength = 1000
	defaultPingEvery = 25 * time.Second
	defaultPongWait  = 60 * time.Second
	defaultWriteWait = 10 * time.Second
)

type Config struct {
	GatewayID    string
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	IdleAfter    time.Duration
}

func (c *Config) norm() {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingEvery
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
}

// Server is the real-time gateway: it owns every connection's lifecycle,
// authenticates it, dispatches inbound protocol events and fans outbound
// events to rooms.
type Server struct {
	cfg Config

	conns *ConnManager
	rooms *Rooms

	presence *PresenceTracker
	typing   *TypingTracker

	convs    ConversationStore
	users    UserStore
	verifier Verifier
	relay    EventRelay // optional
}

func NewServer(cfg Config, convs ConversationStore, users UserStore, verifier Verifier) *Server {
	cfg.norm()
	s := &Server{
		cfg:      cfg,
		conns:    NewConnManager(cfg.GatewayID),
		rooms:    NewRooms(),
		convs:    convs,
		users:    users,
		verifier: verifier,
	}
	s.presence = NewPresenceTracker(s, users, cfg.IdleAfter)
	s.typing = NewTypingTracker(s, convs)
	return s
}

func (s *Server) Presence() *PresenceTracker { return s.presence }
func (s *Server) Typing() *TypingTracker     { return s.typing }
func (s *Server) Conns() *ConnManager        { return s.conns }

// SetRelay attaches the outbound broker relay and threads it through to the
// presence tracker.
func (s *Server) SetRelay(r EventRelay) {
	s.relay = r
	s.presence.SetRelay(r)
}

func (s *Server) SetMirror(m PresenceMirror) { s.presence.SetMirror(m) }

// Close tears down every live connection.
func (s *Server) Close() { s.conns.Close() }

// ===== Emitter =====

func (s *Server) ToUser(userID, event string, payload interface{}) {
	s.emitRoom(UserRoom(userID), "", event, payload)
}

func (s *Server) ToConversation(convID, event string, payload interface{}) {
	s.emitRoom(ConversationRoom(convID), "", event, payload)
}

func (s *Server) ToConversationExcept(convID, exceptConnID, event string, payload interface{}) {
	s.emitRoom(ConversationRoom(convID), exceptConnID, event, payload)
}

func (s *Server) Broadcast(event string, payload interface{}) {
	raw, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[gateway] encode %s: %v", event, err)
		return
	}
	for _, c := range s.conns.All() {
		c.Enqueue(raw)
	}
}

func (s *Server) emitRoom(room, exceptConnID, event string, payload interface{}) {
	raw, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[gateway] encode %s: %v", event, err)
		return
	}
	for _, c := range s.rooms.Members(room) {
		if exceptConnID != "" && c.ID == exceptConnID {
			continue
		}
		c.Enqueue(raw)
	}
}

func (s *Server) sendTo(c *WsConn, event string, payload interface{}) {
	raw, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[gateway] encode %s: %v", event, err)
		return
	}
	c.Enqueue(raw)
}

// ===== Connection lifecycle =====

// HandleWS upgrades the request and runs the connection until it drops.
// A credential presented at handshake time is verified before the upgrade;
// failure rejects the connection outright. Without a credential the socket
// is accepted unauthenticated and must authenticate via the fallback event.
func (s *Server) HandleWS(c *gin.Context) {
	token := handshakeToken(c)

	var ident *Identity
	if token != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), storeCallTimeout)
		id, err := s.verifier.Verify(ctx, token)
		cancel()
		if err != nil {
			logger.Warnf("[gateway] handshake auth failed: %v", err)
			c.JSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}
		ident = id
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[gateway] upgrade failed: %v", err)
		return
	}

	wc := s.conns.Add(ws)
	logger.Infof("[gateway] connected conn=%s remote=%v", wc.ID, wc.Remote)

	if ident != nil {
		s.finishAuth(wc, ident)
	}

	go s.writeLoop(wc)
	s.readLoop(wc)
	s.teardown(wc)
}

func handshakeToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// finishAuth registers an authenticated connection: index under the user,
// join the personal room, hand it to the presence tracker.
func (s *Server) finishAuth(wc *WsConn, ident *Identity) {
	s.conns.Bind(wc.ID, ident.UserID, ident.Username)
	s.rooms.Join(UserRoom(ident.UserID), wc)
	s.presence.AddConnection(wc.ID, ident.UserID)
	logger.Infof("[gateway] authenticated conn=%s user=%s", wc.ID, ident.UserID)
}

func (s *Server) readLoop(wc *WsConn) {
	ws := wc.Conn
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		s.conns.Touch(wc.ID)
		s.presence.RecordActivity(wc.ID)
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[gateway] peer closed conn=%s user=%s", wc.ID, wc.UserID)
			} else {
				logger.Infof("[gateway] read err conn=%s user=%s err=%v", wc.ID, wc.UserID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[gateway] bad frame conn=%s err=%v sample=%q", wc.ID, perr, sample)
			continue
		}

		s.conns.Touch(wc.ID)
		s.presence.RecordActivity(wc.ID)
		s.dispatch(wc, frame)
	}
}

func (s *Server) writeLoop(wc *WsConn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = wc.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		_ = wc.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		wc.shutdown()
	}()

	for {
		select {
		case <-wc.closed:
			return
		case payload := <-wc.send:
			_ = wc.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := wc.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[gateway] write err conn=%s user=%s err=%v", wc.ID, wc.UserID, err)
				return
			}
		case <-ticker.C:
			if err := wc.Conn.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(s.cfg.WriteWait)); err != nil {
				logger.Infof("[gateway] ping err conn=%s user=%s err=%v", wc.ID, wc.UserID, err)
				return
			}
		}
	}
}

// teardown runs the disconnect path: presence deregistration, typing
// cleanup, room and registry removal.
func (s *Server) teardown(wc *WsConn) {
	if wc.Authorized {
		s.presence.RemoveConnection(wc.ID)
		s.typing.CleanupUser(wc.UserID, wc.Username, wc.ID)
	}
	s.rooms.Drop(wc.ID)
	s.conns.Remove(wc.ID)
	logger.Infof("[gateway] closed conn=%s user=%s", wc.ID, wc.UserID)
}
