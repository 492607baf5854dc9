package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recordEmitter captures fan-out calls so tracker tests can assert on exact
// delivery without a live gateway.
type recordEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	kind    string // toUser | toConv | toConvExcept | broadcast
	target  string
	except  string
	event   string
	payload interface{}
}

func (r *recordEmitter) ToUser(userID, event string, payload interface{}) {
	r.record(recordedEvent{kind: "toUser", target: userID, event: event, payload: payload})
}

func (r *recordEmitter) ToConversation(convID, event string, payload interface{}) {
	r.record(recordedEvent{kind: "toConv", target: convID, event: event, payload: payload})
}

func (r *recordEmitter) ToConversationExcept(convID, exceptConnID, event string, payload interface{}) {
	r.record(recordedEvent{kind: "toConvExcept", target: convID, except: exceptConnID, event: event, payload: payload})
}

func (r *recordEmitter) Broadcast(event string, payload interface{}) {
	r.record(recordedEvent{kind: "broadcast", event: event, payload: payload})
}

func (r *recordEmitter) record(e recordedEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordEmitter) byEvent(event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordEmitter) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// memConvStore is an in-memory ConversationStore for handler tests.
type memConvStore struct {
	mu    sync.Mutex
	seq   int
	convs map[string]*Conversation
	msgs  map[string]*Message
}

func newMemConvStore() *memConvStore {
	return &memConvStore{
		convs: make(map[string]*Conversation),
		msgs:  make(map[string]*Message),
	}
}

func (s *memConvStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *memConvStore) FindByID(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memConvStore) FindByParticipants(_ context.Context, a, b string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.HasParticipant(a) && c.HasParticipant(b) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memConvStore) Create(_ context.Context, a, b string) (*Conversation, error) {
	if a == b {
		return nil, fmt.Errorf("two distinct participants required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c := &Conversation{
		ID:           s.nextID("conv"),
		Participants: []string{a, b},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memConvStore) AppendMessage(_ context.Context, convID, senderID, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[convID]; !ok {
		return nil, fmt.Errorf("conversation %s not found", convID)
	}
	m := &Message{
		ID:             s.nextID("msg"),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		ReadBy:         []string{senderID},
		SentAt:         time.Now(),
	}
	s.msgs[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *memConvStore) SetLastMessage(_ context.Context, convID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[convID]
	if !ok {
		return fmt.Errorf("conversation %s not found", convID)
	}
	c.LastMessageID = messageID
	c.UpdatedAt = time.Now()
	return nil
}

func (s *memConvStore) FindMessage(_ context.Context, messageID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.ReadBy = append([]string(nil), m.ReadBy...)
	return &cp, nil
}

func (s *memConvStore) MarkRead(_ context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if !m.ReadByUser(userID) {
		m.ReadBy = append(m.ReadBy, userID)
	}
	return nil
}

// memUserStore serves display lookups and counts last-seen refreshes.
type memUserStore struct {
	mu       sync.Mutex
	views    map[string]*UserView
	lastSeen map[string]int
}

func newMemUserStore(views ...UserView) *memUserStore {
	s := &memUserStore{
		views:    make(map[string]*UserView),
		lastSeen: make(map[string]int),
	}
	for i := range views {
		v := views[i]
		s.views[v.ID] = &v
	}
	return s
}

func (s *memUserStore) FindDisplay(_ context.Context, userID string) (*UserView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[userID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *memUserStore) UpdateLastSeen(_ context.Context, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[userID]++
	return nil
}

// memMirror counts presence mirror calls per user.
type memMirror struct {
	mu       sync.Mutex
	online   map[string]int
	offline  map[string]int
	refreshd map[string]int
}

func newMemMirror() *memMirror {
	return &memMirror{
		online:   make(map[string]int),
		offline:  make(map[string]int),
		refreshd: make(map[string]int),
	}
}

func (m *memMirror) SetOnline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[userID]++
	return nil
}

func (m *memMirror) SetOffline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline[userID]++
	return nil
}

func (m *memMirror) Refresh(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshd[userID]++
	return nil
}

func (m *memMirror) counts(userID string) (online, offline, refreshed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[userID], m.offline[userID], m.refreshd[userID]
}

// newTestServer wires a gateway over in-memory stores. No verifier: these
// tests drive connections past authentication directly.
func newTestServer(t *testing.T) (*Server, *memConvStore, *memUserStore) {
	t.Helper()
	convs := newMemConvStore()
	users := newMemUserStore()
	srv := NewServer(Config{GatewayID: "gw-test"}, convs, users, nil)
	return srv, convs, users
}

// addAuthedConn registers a socketless connection bound to the user and
// joined to their personal room, mirroring finishAuth without a websocket.
func addAuthedConn(t *testing.T, srv *Server, userID, username string) *WsConn {
	t.Helper()
	wc := srv.conns.Add(nil)
	srv.conns.Bind(wc.ID, userID, username)
	srv.rooms.Join(UserRoom(userID), wc)
	srv.presence.AddConnection(wc.ID, userID)
	return wc
}

// drainFrames decodes everything queued on the connection without blocking.
func drainFrames(t *testing.T, wc *WsConn) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case raw := <-wc.send:
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("undecodable frame %q: %v", raw, err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesByEvent(frames []Frame, event string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}
