package chat

import (
	"context"
	"testing"
)

func typingFixture(t *testing.T) (*TypingTracker, *recordEmitter, *Conversation) {
	t.Helper()
	rec := &recordEmitter{}
	convs := newMemConvStore()
	conv, err := convs.Create(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return NewTypingTracker(rec, convs), rec, conv
}

func TestTypingStartAndStop(t *testing.T) {
	tr, rec, conv := typingFixture(t)
	ctx := context.Background()

	if err := tr.StartTyping(ctx, conv.ID, "u1", "ada", "conn-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !tr.IsTyping(conv.ID, "u1") {
		t.Fatal("u1 should be flagged as typing")
	}

	started := rec.byEvent(EventUserStartedTyping)
	if len(started) != 1 {
		t.Fatalf("want one started event, got %+v", started)
	}
	if started[0].kind != "toConvExcept" || started[0].target != conv.ID || started[0].except != "conn-1" {
		t.Fatalf("started event must skip the typer's own connection, got %+v", started[0])
	}
	p := started[0].payload.(TypingPayload)
	if p.UserID != "u1" || p.Username != "ada" || p.ConversationID != conv.ID {
		t.Fatalf("bad payload %+v", p)
	}

	if err := tr.StopTyping(ctx, conv.ID, "u1", "ada", "conn-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tr.IsTyping(conv.ID, "u1") {
		t.Fatal("u1 should no longer be typing")
	}
	if got := rec.byEvent(EventUserStoppedTyping); len(got) != 1 {
		t.Fatalf("want one stopped event, got %+v", got)
	}
}

func TestTypingNonParticipantIsIgnored(t *testing.T) {
	tr, rec, conv := typingFixture(t)

	if err := tr.StartTyping(context.Background(), conv.ID, "intruder", "eve", "conn-9"); err != nil {
		t.Fatalf("start must not error on rejection: %v", err)
	}
	if tr.IsTyping(conv.ID, "intruder") {
		t.Fatal("non-participant must not be tracked")
	}
	if got := rec.byEvent(EventUserStartedTyping); len(got) != 0 {
		t.Fatalf("non-participant must not fan out, got %+v", got)
	}
}

func TestTypingUnknownConversationIsIgnored(t *testing.T) {
	tr, rec, _ := typingFixture(t)

	if err := tr.StartTyping(context.Background(), "missing", "u1", "ada", "conn-1"); err != nil {
		t.Fatalf("missing conversation must not error: %v", err)
	}
	if got := rec.byEvent(EventUserStartedTyping); len(got) != 0 {
		t.Fatalf("missing conversation must not fan out, got %+v", got)
	}
}

func TestTypingDisconnectCleanup(t *testing.T) {
	rec := &recordEmitter{}
	convs := newMemConvStore()
	ctx := context.Background()
	convA, _ := convs.Create(ctx, "u1", "u2")
	convB, _ := convs.Create(ctx, "u1", "u3")
	tr := NewTypingTracker(rec, convs)

	if err := tr.StartTyping(ctx, convA.ID, "u1", "ada", "conn-1"); err != nil {
		t.Fatalf("start A: %v", err)
	}
	if err := tr.StartTyping(ctx, convB.ID, "u1", "ada", "conn-1"); err != nil {
		t.Fatalf("start B: %v", err)
	}
	rec.reset()

	tr.CleanupUser("u1", "ada", "conn-1")

	stopped := rec.byEvent(EventUserStoppedTyping)
	if len(stopped) != 2 {
		t.Fatalf("cleanup must emit per affected conversation, got %+v", stopped)
	}
	targets := map[string]bool{}
	for _, e := range stopped {
		targets[e.target] = true
	}
	if !targets[convA.ID] || !targets[convB.ID] {
		t.Fatalf("cleanup missed a conversation: %+v", targets)
	}
	if tr.IsTyping(convA.ID, "u1") || tr.IsTyping(convB.ID, "u1") {
		t.Fatal("cleanup must clear every typing flag")
	}

	// second cleanup finds nothing and stays quiet
	rec.reset()
	tr.CleanupUser("u1", "ada", "conn-1")
	if got := rec.byEvent(EventUserStoppedTyping); len(got) != 0 {
		t.Fatalf("repeat cleanup must be silent, got %+v", got)
	}
}
