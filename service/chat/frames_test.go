package chat

import (
	"encoding/json"
	"testing"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"sendMessage","data":{"content":"hi","recipientId":"u2"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Event != EventSendMessage {
		t.Fatalf("event = %q", f.Event)
	}
	if f.Data["content"] != "hi" {
		t.Fatalf("data = %+v", f.Data)
	}

	if _, err := ParseFrame([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("missing event must fail")
	}
	if _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Fatal("garbage must fail")
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	raw, err := EncodeFrame(EventMessagingError, ErrorPayload{Error: "boom"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Event != EventMessagingError || f.Data["error"] != "boom" {
		t.Fatalf("frame = %+v", f)
	}
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload[SendMessagePayload](map[string]interface{}{
		"conversationId": "c1",
		"content":        "hello",
		"unknownField":   true,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ConversationID != "c1" || p.Content != "hello" || p.RecipientID != "" {
		t.Fatalf("payload = %+v", p)
	}

	// weak typing tolerates clients sending numbers where strings belong
	p2, err := DecodePayload[MarkReadPayload](map[string]interface{}{"messageId": 42})
	if err != nil {
		t.Fatalf("weak decode: %v", err)
	}
	if p2.MessageID != "42" {
		t.Fatalf("messageId = %q", p2.MessageID)
	}

	// nil data decodes to the zero payload
	p3, err := DecodePayload[ConversationPayload](nil)
	if err != nil {
		t.Fatalf("nil decode: %v", err)
	}
	if p3.ConversationID != "" {
		t.Fatalf("payload = %+v", p3)
	}
}

func TestRoomNames(t *testing.T) {
	if UserRoom("u1") != "user:u1" {
		t.Fatalf("user room = %q", UserRoom("u1"))
	}
	if ConversationRoom("c1") != "conversation:c1" {
		t.Fatalf("conversation room = %q", ConversationRoom("c1"))
	}
}
