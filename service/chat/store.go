package chat

import (
	"context"
	"time"
)

// Conversation and Message are the gateway-side projections of the durable
// store documents. The store owns persistence; the gateway only enforces
// participation and addressing rules on top of it.
type Conversation struct {
	ID            string
	Participants  []string
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	ReadBy         []string
	SentAt         time.Time
}

func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r == userID {
			return true
		}
	}
	return false
}

// ConversationStore persists two-party conversations and their messages.
// Find* methods return (nil, nil) when nothing matches; errors mean the
// store itself failed. No method spans a transaction: each protocol step is
// a separate call and partial failure leaves recoverable state.
type ConversationStore interface {
	FindByID(ctx context.Context, id string) (*Conversation, error)
	// FindByParticipants matches the unordered pair (a,b).
	FindByParticipants(ctx context.Context, a, b string) (*Conversation, error)
	// Create requires exactly two distinct participants.
	Create(ctx context.Context, a, b string) (*Conversation, error)
	// AppendMessage stores a new message with the read-by set seeded with the sender.
	AppendMessage(ctx context.Context, convID, senderID, content string) (*Message, error)
	SetLastMessage(ctx context.Context, convID, messageID string) error
	FindMessage(ctx context.Context, messageID string) (*Message, error)
	// MarkRead adds userID to the message's read-by set (idempotent server-side).
	MarkRead(ctx context.Context, messageID, userID string) error
}

// UserStore is the read-only display lookup plus the best-effort last-seen
// refresh the presence tracker performs on connect/disconnect.
type UserStore interface {
	FindDisplay(ctx context.Context, userID string) (*UserView, error)
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error
}

// Identity is a verified principal.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Tier     string
}

// Verifier turns a bearer credential into an identity or fails.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// Emitter is the fan-out surface the trackers and handlers write through.
// The gateway implements it over its room registry; tests swap in a recorder.
type Emitter interface {
	ToUser(userID, event string, payload interface{})
	ToConversation(convID, event string, payload interface{})
	// ToConversationExcept skips one connection, for "everyone else in the
	// thread" semantics on typing events.
	ToConversationExcept(convID, exceptConnID, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// PresenceMirror shadows online/offline transitions into an external store so
// sibling services can answer presence queries. Best-effort only. Entries
// carry a TTL, so Refresh must be driven periodically for connected users or
// long-lived sessions read as offline externally.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
}

// EventRelay forwards gateway events to a broker for downstream consumers
// (notification fan-out). Fire-and-forget.
type EventRelay interface {
	Publish(subject string, payload interface{}) error
}
