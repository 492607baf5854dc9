package chat

import (
	"testing"

	errs "BProject/tools/errs"
)

func swapBridge(t *testing.T, s *Server) {
	t.Helper()
	bridgeMu.Lock()
	prev := bridgeSrv
	bridgeSrv = s
	bridgeMu.Unlock()
	t.Cleanup(func() {
		bridgeMu.Lock()
		bridgeSrv = prev
		bridgeMu.Unlock()
	})
}

func TestBridgeNotReady(t *testing.T) {
	swapBridge(t, nil)

	if err := EmitToUser("u1", EventNewMessage, nil); err != errs.ErrBridgeNotReady {
		t.Fatalf("err = %v, want bridge-not-ready", err)
	}
	if err := EmitToConversation("c1", EventNewMessage, nil); err != errs.ErrBridgeNotReady {
		t.Fatalf("err = %v, want bridge-not-ready", err)
	}
	if _, err := Gateway(); err != errs.ErrBridgeNotReady {
		t.Fatalf("err = %v, want bridge-not-ready", err)
	}
}

func TestBridgeEmitterDropsWithoutGateway(t *testing.T) {
	swapBridge(t, nil)

	// no gateway installed: every emit is a silent drop, never a panic
	e := BridgeEmitter{}
	e.ToUser("u1", EventNewMessage, nil)
	e.ToConversation("c1", EventNewMessage, nil)
	e.ToConversationExcept("c1", "conn", EventUserStartedTyping, nil)
	e.Broadcast(EventUserOnline, nil)
}

func TestBridgeEmitterDeliversWithGateway(t *testing.T) {
	srv, _, _ := newTestServer(t)
	swapBridge(t, srv)

	wc := addAuthedConn(t, srv, "u1", "ada")
	drainFrames(t, wc)

	BridgeEmitter{}.ToUser("u1", EventNewMessage, nil)
	if got := framesByEvent(drainFrames(t, wc), EventNewMessage); len(got) != 1 {
		t.Fatalf("want one frame, got %d", len(got))
	}
}

func TestBridgeEmitsThroughGateway(t *testing.T) {
	srv, _, _ := newTestServer(t)
	swapBridge(t, srv)

	wc := addAuthedConn(t, srv, "u1", "ada")
	drainFrames(t, wc)

	if err := EmitToUser("u1", EventMessageRead, MessageReadPayload{MessageID: "m1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := framesByEvent(drainFrames(t, wc), EventMessageRead); len(got) != 1 {
		t.Fatalf("want one frame through the bridge, got %d", len(got))
	}

	g, err := Gateway()
	if err != nil || g != srv {
		t.Fatalf("gateway = %v, %v", g, err)
	}
}
