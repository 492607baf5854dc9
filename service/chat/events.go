package chat

import "time"

// Wire event names, client->server and server->client. These mirror the
// frontend contract and must not drift.
const (
	// client -> server
	EventAuthenticate      = "authenticate"
	EventSendMessage       = "sendMessage"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventMarkMessageRead   = "markMessageAsRead"
	EventStartTyping       = "startTyping"
	EventStopTyping        = "stopTyping"
	EventUpdateStatus      = "updateStatus"

	// server -> client
	EventAuthenticated       = "authenticated"
	EventAuthenticationError = "authenticationError"
	EventNewMessage          = "newMessage"
	EventMessageRead         = "messageRead"
	EventMessagingError      = "messagingError"
	EventUserStartedTyping   = "userStartedTyping"
	EventUserStoppedTyping   = "userStoppedTyping"
	EventUserOnline          = "userOnline"
	EventUserOffline         = "userOffline"
	EventUserStatusChanged   = "userStatusChanged"
)

// Room name prefixes. A user's personal room fans out to every device they
// have connected; a conversation room fans out to sockets viewing the thread.
func UserRoom(userID string) string         { return "user:" + userID }
func ConversationRoom(convID string) string { return "conversation:" + convID }

// SendMessagePayload carries exactly one of ConversationID/RecipientID.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId,omitempty" mapstructure:"conversationId"`
	RecipientID    string `json:"recipientId,omitempty" mapstructure:"recipientId"`
	Content        string `json:"content" mapstructure:"content"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId" mapstructure:"conversationId"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId" mapstructure:"messageId"`
}

type StatusPayload struct {
	Status Status `json:"status" mapstructure:"status"`
}

type AuthenticatePayload struct {
	Token string `json:"token" mapstructure:"token"`
}

// UserView is the display projection of a user attached to outbound events.
type UserView struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Sender         *UserView `json:"sender,omitempty"`
	Content        string    `json:"content"`
	ReadBy         []string  `json:"readBy"`
	SentAt         time.Time `json:"sentAt"`
}

type ConversationView struct {
	ID            string     `json:"id"`
	Participants  []UserView `json:"participants"`
	LastMessageID string     `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type NewMessagePayload struct {
	Message      MessageView      `json:"message"`
	Conversation ConversationView `json:"conversation"`
}

type MessageReadPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
}

type PresencePayload struct {
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	Status   Status     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
