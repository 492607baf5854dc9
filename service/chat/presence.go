package chat

import (
	"context"
	"sync"
	"time"

	"BProject/logger"
)

// Status is a user's presence status, tracked independently of any single
// connection. Online/offline are derived from the connection set; away and
// busy are client-requested overrides.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

const storeCallTimeout = 3 * time.Second

type presenceConn struct {
	userID       string
	connectedAt  time.Time
	lastActivity time.Time
}

// PresenceTracker is the single source of truth for who is online in this
// process. All state is RWMutex-guarded; no lock is held across a store call.
type PresenceTracker struct {
	mu        sync.RWMutex
	conns     map[string]*presenceConn       // connID -> info
	userConns map[string]map[string]struct{} // userID -> connIDs
	status    map[string]Status              // userID -> status; absent == offline

	emitter Emitter
	users   UserStore
	mirror  PresenceMirror // optional
	relay   EventRelay     // optional

	idleAfter time.Duration
	clock     func() time.Time // injectable for tests
}

func NewPresenceTracker(emitter Emitter, users UserStore, idleAfter time.Duration) *PresenceTracker {
	if idleAfter <= 0 {
		idleAfter = 5 * time.Minute
	}
	return &PresenceTracker{
		conns:     make(map[string]*presenceConn),
		userConns: make(map[string]map[string]struct{}),
		status:    make(map[string]Status),
		emitter:   emitter,
		users:     users,
		idleAfter: idleAfter,
		clock:     time.Now,
	}
}

// SetMirror attaches the external presence shadow (redis). Optional.
func (t *PresenceTracker) SetMirror(m PresenceMirror) { t.mirror = m }

// SetRelay attaches the outbound event relay (nats). Optional.
func (t *PresenceTracker) SetRelay(r EventRelay) { t.relay = r }

// SetClock replaces the time source; tests only.
func (t *PresenceTracker) SetClock(clock func() time.Time) { t.clock = clock }

// AddConnection registers the connection under the user. The user's first
// connection transitions them to online and fans the change out.
func (t *PresenceTracker) AddConnection(connID, userID string) {
	now := t.clock()
	t.mu.Lock()
	t.conns[connID] = &presenceConn{userID: userID, connectedAt: now, lastActivity: now}
	if t.userConns[userID] == nil {
		t.userConns[userID] = make(map[string]struct{})
	}
	t.userConns[userID][connID] = struct{}{}
	first := len(t.userConns[userID]) == 1
	t.mu.Unlock()

	if first {
		t.SetStatus(userID, StatusOnline)
	}
	t.refreshLastSeen(userID)
}

// RemoveConnection deregisters. The user's last connection going away
// transitions them to offline and drops the presence entry entirely.
func (t *PresenceTracker) RemoveConnection(connID string) {
	t.mu.Lock()
	info, ok := t.conns[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.conns, connID)
	userID := info.userID
	last := false
	if mm := t.userConns[userID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(t.userConns, userID)
			last = true
		}
	}
	t.mu.Unlock()

	if last {
		t.SetStatus(userID, StatusOffline)
		t.dropStatusIfDisconnected(userID)
	}
	t.refreshLastSeen(userID)
}

// dropStatusIfDisconnected clears the stored status entry; offline is
// implicit, not stored. A reconnect may have raced in between the offline
// fan-out and this cleanup, so the entry only goes when the user still has
// no connections.
func (t *PresenceTracker) dropStatusIfDisconnected(userID string) {
	t.mu.Lock()
	if len(t.userConns[userID]) == 0 {
		delete(t.status, userID)
	}
	t.mu.Unlock()
}

// SetStatus overwrites the user's status and fans out only on change.
func (t *PresenceTracker) SetStatus(userID string, status Status) {
	t.mu.Lock()
	prev, had := t.status[userID]
	t.status[userID] = status
	t.mu.Unlock()

	if had && prev == status {
		return
	}
	t.emitStatusChange(userID, status)
}

func (t *PresenceTracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.userConns[userID]) > 0
}

func (t *PresenceTracker) GetStatus(userID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.status[userID]; ok {
		return s
	}
	return StatusOffline
}

func (t *PresenceTracker) ListOnlineUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.userConns))
	for u := range t.userConns {
		out = append(out, u)
	}
	return out
}

func (t *PresenceTracker) GetStatuses(userIDs []string) map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Status, len(userIDs))
	for _, u := range userIDs {
		if s, ok := t.status[u]; ok {
			out[u] = s
		} else {
			out[u] = StatusOffline
		}
	}
	return out
}

// RecordActivity feeds idle detection; called on every inbound frame.
func (t *PresenceTracker) RecordActivity(connID string) {
	now := t.clock()
	t.mu.Lock()
	if info, ok := t.conns[connID]; ok {
		info.lastActivity = now
	}
	t.mu.Unlock()
}

// Stats reports connection/user counts for the ops endpoint.
func (t *PresenceTracker) Stats() (totalConns, uniqueUsers int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns), len(t.userConns)
}

// SweepIdle demotes online users whose every recent activity timestamp is
// older than the idle threshold to away. It never removes connections.
func (t *PresenceTracker) SweepIdle() {
	now := t.clock()
	var idle []string
	t.mu.RLock()
	for _, info := range t.conns {
		if now.Sub(info.lastActivity) > t.idleAfter && t.status[info.userID] == StatusOnline {
			idle = append(idle, info.userID)
		}
	}
	t.mu.RUnlock()

	seen := make(map[string]struct{}, len(idle))
	for _, userID := range idle {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		t.SetStatus(userID, StatusAway)
	}
}

// RunSweeper runs the periodic idle sweep and mirror keepalive until ctx is
// done.
func (t *PresenceTracker) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SweepIdle()
			t.refreshMirror()
		}
	}
}

// refreshMirror renews the mirror entry of every user with a live
// connection. Without this, sessions outlasting the mirror TTL would read as
// offline to sibling services.
func (t *PresenceTracker) refreshMirror() {
	if t.mirror == nil {
		return
	}
	t.mu.RLock()
	users := make([]string, 0, len(t.userConns))
	for u := range t.userConns {
		users = append(users, u)
	}
	t.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	for _, userID := range users {
		if err := t.mirror.Refresh(ctx, userID); err != nil {
			logger.Warnf("[presence] mirror refresh user=%s err=%v", userID, err)
		}
	}
}

// emitStatusChange pushes the change to the user's own devices and to the
// global audience, and shadows online/offline into the mirror and relay.
func (t *PresenceTracker) emitStatusChange(userID string, status Status) {
	payload := PresencePayload{UserID: userID, Status: status}
	if view := t.displayOf(userID); view != nil {
		payload.Username = view.Username
	}
	if status == StatusOffline {
		now := t.clock()
		payload.LastSeen = &now
	}

	t.emitter.ToUser(userID, EventUserStatusChanged, payload)

	switch status {
	case StatusOnline:
		t.emitter.Broadcast(EventUserOnline, payload)
	case StatusOffline:
		t.emitter.Broadcast(EventUserOffline, payload)
	default:
		t.emitter.Broadcast(EventUserStatusChanged, payload)
	}

	t.shadow(userID, status, payload)
}

func (t *PresenceTracker) shadow(userID string, status Status, payload PresencePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	switch status {
	case StatusOnline:
		if t.mirror != nil {
			if err := t.mirror.SetOnline(ctx, userID); err != nil {
				logger.Warnf("[presence] mirror online user=%s err=%v", userID, err)
			}
		}
		if t.relay != nil {
			if err := t.relay.Publish(SubjectPresenceOnline, payload); err != nil {
				logger.Warnf("[presence] relay online user=%s err=%v", userID, err)
			}
		}
	case StatusOffline:
		if t.mirror != nil {
			if err := t.mirror.SetOffline(ctx, userID); err != nil {
				logger.Warnf("[presence] mirror offline user=%s err=%v", userID, err)
			}
		}
		if t.relay != nil {
			if err := t.relay.Publish(SubjectPresenceOffline, payload); err != nil {
				logger.Warnf("[presence] relay offline user=%s err=%v", userID, err)
			}
		}
	}
}

func (t *PresenceTracker) displayOf(userID string) *UserView {
	if t.users == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	view, err := t.users.FindDisplay(ctx, userID)
	if err != nil {
		logger.Warnf("[presence] display lookup user=%s err=%v", userID, err)
		return nil
	}
	return view
}

// refreshLastSeen is best-effort: failure is logged, never propagated.
func (t *PresenceTracker) refreshLastSeen(userID string) {
	if t.users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := t.users.UpdateLastSeen(ctx, userID, t.clock()); err != nil {
		logger.Warnf("[presence] last-seen refresh user=%s err=%v", userID, err)
	}
}

// Relay subjects for downstream consumers.
const (
	SubjectMessageNew      = "rt.message.new"
	SubjectPresenceOnline  = "rt.presence.online"
	SubjectPresenceOffline = "rt.presence.offline"
)
