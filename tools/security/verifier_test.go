package security

import (
	"context"
	"testing"
	"time"

	"BProject/service/chat"
)

type stubUsers struct {
	views map[string]*chat.UserView
}

func (s *stubUsers) FindDisplay(_ context.Context, userID string) (*chat.UserView, error) {
	return s.views[userID], nil
}

func (s *stubUsers) UpdateLastSeen(context.Context, string, time.Time) error { return nil }

func TestTokenVerifierEnrichesUsername(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, err := Generate(opts, Identity{UserID: "u1", Username: "stale-name"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	v := NewTokenVerifier(opts, &stubUsers{views: map[string]*chat.UserView{
		"u1": {ID: "u1", Username: "fresh-name"},
	}})
	ident, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.UserID != "u1" || ident.Username != "fresh-name" {
		t.Fatalf("identity = %+v, want store username to win", ident)
	}
}

func TestTokenVerifierWithoutStoreKeepsClaims(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, err := Generate(opts, Identity{UserID: "u1", Username: "claimed"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ident, err := NewTokenVerifier(opts, nil).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.Username != "claimed" {
		t.Fatalf("username = %q, want claim value", ident.Username)
	}

	if _, err := NewTokenVerifier(opts, nil).Verify(context.Background(), "garbage"); err == nil {
		t.Fatal("bad credential must fail")
	}
}
