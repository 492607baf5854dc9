package chat

import "sync"

// Rooms tracks broadcast group membership: room name -> connID -> conn.
// Membership is tied to the transport session; Drop cleans up on disconnect.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]*WsConn
	byConn  map[string]map[string]struct{} // connID -> room names
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]*WsConn),
		byConn:  make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(room string, c *WsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[room] == nil {
		r.members[room] = make(map[string]*WsConn)
	}
	r.members[room][c.ID] = c
	if r.byConn[c.ID] == nil {
		r.byConn[c.ID] = make(map[string]struct{})
	}
	r.byConn[c.ID][room] = struct{}{}
}

func (r *Rooms) Leave(room string, c *WsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, c.ID)
}

// Drop removes the connection from every room it joined.
func (r *Rooms) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[connID] {
		r.leaveLocked(room, connID)
	}
}

func (r *Rooms) leaveLocked(room, connID string) {
	if mm := r.members[room]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.members, room)
		}
	}
	if rooms := r.byConn[connID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
}

func (r *Rooms) Contains(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][connID]
	return ok
}

// Members snapshots the room so emission happens outside the lock.
func (r *Rooms) Members(room string) []*WsConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.members[room]
	out := make([]*WsConn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}
