package model

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Malformed ids never reach the database; a nil-backed store proves it.

func TestMalformedIDsBehaveLikeMisses(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	if conv, err := s.FindByID(ctx, "not-an-object-id"); err != nil || conv != nil {
		t.Fatalf("FindByID = (%v, %v), want miss", conv, err)
	}
	if conv, err := s.FindByParticipants(ctx, "bad", "also-bad"); err != nil || conv != nil {
		t.Fatalf("FindByParticipants = (%v, %v), want miss", conv, err)
	}
	if msg, err := s.FindMessage(ctx, "zzz"); err != nil || msg != nil {
		t.Fatalf("FindMessage = (%v, %v), want miss", msg, err)
	}
}

func TestMalformedIDsFailWrites(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	good := primitive.NewObjectID().Hex()

	if _, err := s.AppendMessage(ctx, "bad", good, "hi"); err == nil {
		t.Fatal("bad conversation id must fail the write")
	}
	if err := s.SetLastMessage(ctx, good, "bad"); err == nil {
		t.Fatal("bad message id must fail the write")
	}
	if err := s.MarkRead(ctx, "bad", good); err == nil {
		t.Fatal("bad message id must fail mark-read")
	}
}

func TestCreateRejectsSelfConversation(t *testing.T) {
	s := NewStore(nil)
	id := primitive.NewObjectID().Hex()
	if _, err := s.Create(context.Background(), id, id); err == nil {
		t.Fatal("a conversation needs two distinct participants")
	}
}

func TestDocProjection(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	last := primitive.NewObjectID()
	now := time.Now()

	conv := convOut(&ConversationDoc{
		ID:            a,
		Participants:  []primitive.ObjectID{a, b},
		LastMessageID: last,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if conv.ID != a.Hex() || conv.LastMessageID != last.Hex() {
		t.Fatalf("conv = %+v", conv)
	}
	if len(conv.Participants) != 2 || conv.Participants[1] != b.Hex() {
		t.Fatalf("participants = %+v", conv.Participants)
	}

	// zero last-message id projects as absent
	empty := convOut(&ConversationDoc{ID: a})
	if empty.LastMessageID != "" {
		t.Fatalf("zero last message must project empty, got %q", empty.LastMessageID)
	}

	msg := msgOut(&MessageDoc{
		ID:             last,
		ConversationID: a,
		SenderID:       b,
		Content:        "hi",
		ReadBy:         []primitive.ObjectID{b},
		SentAt:         now,
	})
	if msg.SenderID != b.Hex() || len(msg.ReadBy) != 1 || msg.ReadBy[0] != b.Hex() {
		t.Fatalf("msg = %+v", msg)
	}
}
