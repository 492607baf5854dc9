package chat

import (
	"sync"

	errs "BProject/tools/errs"
)

// Bridge lets HTTP handlers push the same real-time events the gateway
// emits natively, keeping both entry paths consistent. Callers treat
// delivery as best-effort and must not fail the primary write on error.

var (
	bridgeMu  sync.RWMutex
	bridgeSrv *Server
)

// InitBridge installs the gateway singleton; call once from main after
// NewServer.
func InitBridge(s *Server) {
	bridgeMu.Lock()
	bridgeSrv = s
	bridgeMu.Unlock()
}

func bridge() (*Server, error) {
	bridgeMu.RLock()
	defer bridgeMu.RUnlock()
	if bridgeSrv == nil {
		return nil, errs.ErrBridgeNotReady
	}
	return bridgeSrv, nil
}

// EmitToUser fans the event out to every device in the user's personal room.
func EmitToUser(userID, event string, payload interface{}) error {
	s, err := bridge()
	if err != nil {
		return err
	}
	s.ToUser(userID, event, payload)
	return nil
}

// EmitToConversation fans the event out to the conversation's live room.
func EmitToConversation(convID, event string, payload interface{}) error {
	s, err := bridge()
	if err != nil {
		return err
	}
	s.ToConversation(convID, event, payload)
	return nil
}

// Gateway exposes the installed server to REST handlers that need live
// gateway state (presence reads).
func Gateway() (*Server, error) { return bridge() }

// BridgeEmitter adapts the bridge to the Emitter contract for code running
// outside the gateway. A missing gateway drops the event: REST writes must
// succeed whether or not the realtime side is up.
type BridgeEmitter struct{}

func (BridgeEmitter) ToUser(userID, event string, payload interface{}) {
	if s, err := bridge(); err == nil {
		s.ToUser(userID, event, payload)
	}
}

func (BridgeEmitter) ToConversation(convID, event string, payload interface{}) {
	if s, err := bridge(); err == nil {
		s.ToConversation(convID, event, payload)
	}
}

func (BridgeEmitter) ToConversationExcept(convID, exceptConnID, event string, payload interface{}) {
	if s, err := bridge(); err == nil {
		s.ToConversationExcept(convID, exceptConnID, event, payload)
	}
}

func (BridgeEmitter) Broadcast(event string, payload interface{}) {
	if s, err := bridge(); err == nil {
		s.Broadcast(event, payload)
	}
}
