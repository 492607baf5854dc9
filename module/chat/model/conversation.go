package model

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"BProject/service/chat"
)

const (
	CollConversations = "conversations"
	CollMessages      = "messages"
)

// ConversationDoc is a fixed two-party messaging thread.
type ConversationDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Participants  []primitive.ObjectID `bson:"participants"`
	LastMessageID primitive.ObjectID   `bson:"last_message_id,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

// MessageDoc is append-only; the only mutation after insert is growing the
// read-by set.
type MessageDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID   `bson:"conversation_id"`
	SenderID       primitive.ObjectID   `bson:"sender_id"`
	Content        string               `bson:"content"`
	ReadBy         []primitive.ObjectID `bson:"read_by"`
	SentAt         time.Time            `bson:"sent_at"`
}

// Store implements chat.ConversationStore over mongo.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store { return &Store{db: db} }

func (s *Store) conversations() *mongo.Collection { return s.db.Collection(CollConversations) }
func (s *Store) messages() *mongo.Collection      { return s.db.Collection(CollMessages) }

func (s *Store) FindByID(ctx context.Context, id string) (*chat.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // malformed id behaves like a miss
	}
	var doc ConversationDoc
	err = s.conversations().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	return convOut(&doc), nil
}

// FindByParticipants matches the unordered pair: $all on the two ids.
func (s *Store) FindByParticipants(ctx context.Context, a, b string) (*chat.Conversation, error) {
	oa, err := primitive.ObjectIDFromHex(a)
	if err != nil {
		return nil, nil
	}
	ob, err := primitive.ObjectIDFromHex(b)
	if err != nil {
		return nil, nil
	}
	var doc ConversationDoc
	err = s.conversations().FindOne(ctx, bson.M{
		"participants": bson.M{"$all": bson.A{oa, ob}},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find conversation by participants")
	}
	return convOut(&doc), nil
}

func (s *Store) Create(ctx context.Context, a, b string) (*chat.Conversation, error) {
	if a == b {
		return nil, errors.New("conversation requires two distinct participants")
	}
	oa, err := primitive.ObjectIDFromHex(a)
	if err != nil {
		return nil, errors.Wrapf(err, "participant id %q", a)
	}
	ob, err := primitive.ObjectIDFromHex(b)
	if err != nil {
		return nil, errors.Wrapf(err, "participant id %q", b)
	}
	now := time.Now().UTC()
	doc := ConversationDoc{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{oa, ob},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.conversations().InsertOne(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "insert conversation")
	}
	return convOut(&doc), nil
}

func (s *Store) AppendMessage(ctx context.Context, convID, senderID, content string) (*chat.Message, error) {
	oc, err := primitive.ObjectIDFromHex(convID)
	if err != nil {
		return nil, errors.Wrapf(err, "conversation id %q", convID)
	}
	os, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return nil, errors.Wrapf(err, "sender id %q", senderID)
	}
	doc := MessageDoc{
		ID:             primitive.NewObjectID(),
		ConversationID: oc,
		SenderID:       os,
		Content:        content,
		ReadBy:         []primitive.ObjectID{os}, // sender has read their own message
		SentAt:         time.Now().UTC(),
	}
	if _, err := s.messages().InsertOne(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	return msgOut(&doc), nil
}

func (s *Store) SetLastMessage(ctx context.Context, convID, messageID string) error {
	oc, err := primitive.ObjectIDFromHex(convID)
	if err != nil {
		return errors.Wrapf(err, "conversation id %q", convID)
	}
	om, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return errors.Wrapf(err, "message id %q", messageID)
	}
	_, err = s.conversations().UpdateByID(ctx, oc, bson.M{
		"$set": bson.M{"last_message_id": om, "updated_at": time.Now().UTC()},
	})
	return errors.Wrap(err, "set last message")
}

func (s *Store) FindMessage(ctx context.Context, messageID string) (*chat.Message, error) {
	om, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, nil
	}
	var doc MessageDoc
	err = s.messages().FindOne(ctx, bson.M{"_id": om}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find message")
	}
	return msgOut(&doc), nil
}

// MarkRead uses $addToSet so the concurrent double-read race converges.
func (s *Store) MarkRead(ctx context.Context, messageID, userID string) error {
	om, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return errors.Wrapf(err, "message id %q", messageID)
	}
	ou, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(err, "user id %q", userID)
	}
	_, err = s.messages().UpdateByID(ctx, om, bson.M{
		"$addToSet": bson.M{"read_by": ou},
	})
	return errors.Wrap(err, "mark read")
}

func convOut(doc *ConversationDoc) *chat.Conversation {
	out := &chat.Conversation{
		ID:        doc.ID.Hex(),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, p := range doc.Participants {
		out.Participants = append(out.Participants, p.Hex())
	}
	if !doc.LastMessageID.IsZero() {
		out.LastMessageID = doc.LastMessageID.Hex()
	}
	return out
}

func msgOut(doc *MessageDoc) *chat.Message {
	out := &chat.Message{
		ID:             doc.ID.Hex(),
		ConversationID: doc.ConversationID.Hex(),
		SenderID:       doc.SenderID.Hex(),
		Content:        doc.Content,
		SentAt:         doc.SentAt,
	}
	for _, r := range doc.ReadBy {
		out.ReadBy = append(out.ReadBy, r.Hex())
	}
	return out
}

// EnsureIndexes sets up the lookup paths: participant pair match, newest
// messages per conversation, read-by membership.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return errors.Wrap(err, "conversation indexes")
	}
	_, err = s.messages().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}}},
		{Keys: bson.D{{Key: "read_by", Value: 1}}},
	})
	return errors.Wrap(err, "message indexes")
}
