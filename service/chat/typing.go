package chat

import (
	"context"
	"sync"

	"BProject/logger"
)

// TypingTracker holds the ephemeral conversation -> typers map. Entries are
// best-effort: no server-side timeout exists, so a crashed client's stale
// indicator lives until its disconnect cleanup fires.
type TypingTracker struct {
	mu     sync.Mutex
	typing map[string]map[string]struct{} // convID -> userIDs

	emitter Emitter
	convs   ConversationStore
}

func NewTypingTracker(emitter Emitter, convs ConversationStore) *TypingTracker {
	return &TypingTracker{
		typing:  make(map[string]map[string]struct{}),
		emitter: emitter,
		convs:   convs,
	}
}

// StartTyping flags the user as typing and tells everyone else in the room.
// Participation is verified against the store on every call, never cached.
// Non-participants are a silent no-op toward the client, logged here.
func (t *TypingTracker) StartTyping(ctx context.Context, convID, userID, username, connID string) error {
	ok, err := t.isParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warnf("[typing] start rejected: user=%s not in conversation=%s", userID, convID)
		return nil
	}

	t.mu.Lock()
	if t.typing[convID] == nil {
		t.typing[convID] = make(map[string]struct{})
	}
	t.typing[convID][userID] = struct{}{}
	t.mu.Unlock()

	t.emitter.ToConversationExcept(convID, connID, EventUserStartedTyping, TypingPayload{
		ConversationID: convID,
		UserID:         userID,
		Username:       username,
	})
	return nil
}

// StopTyping clears the flag and tells everyone else in the room.
func (t *TypingTracker) StopTyping(ctx context.Context, convID, userID, username, connID string) error {
	ok, err := t.isParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warnf("[typing] stop rejected: user=%s not in conversation=%s", userID, convID)
		return nil
	}

	t.removeTyper(convID, userID)

	t.emitter.ToConversationExcept(convID, connID, EventUserStoppedTyping, TypingPayload{
		ConversationID: convID,
		UserID:         userID,
		Username:       username,
	})
	return nil
}

// CleanupUser removes the disconnecting user from every typing set they
// appear in and emits a stopped-typing event for each.
func (t *TypingTracker) CleanupUser(userID, username, connID string) {
	var affected []string
	t.mu.Lock()
	for convID, typers := range t.typing {
		if _, ok := typers[userID]; ok {
			delete(typers, userID)
			if len(typers) == 0 {
				delete(t.typing, convID)
			}
			affected = append(affected, convID)
		}
	}
	t.mu.Unlock()

	for _, convID := range affected {
		t.emitter.ToConversationExcept(convID, connID, EventUserStoppedTyping, TypingPayload{
			ConversationID: convID,
			UserID:         userID,
			Username:       username,
		})
	}
}

// Typers snapshots a conversation's typing set.
func (t *TypingTracker) Typers(convID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.typing[convID]))
	for u := range t.typing[convID] {
		out = append(out, u)
	}
	return out
}

func (t *TypingTracker) IsTyping(convID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.typing[convID][userID]
	return ok
}

func (t *TypingTracker) removeTyper(convID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if typers := t.typing[convID]; typers != nil {
		delete(typers, userID)
		if len(typers) == 0 {
			delete(t.typing, convID)
		}
	}
}

func (t *TypingTracker) isParticipant(ctx context.Context, convID, userID string) (bool, error) {
	conv, err := t.convs.FindByID(ctx, convID)
	if err != nil {
		return false, err
	}
	if conv == nil {
		return false, nil
	}
	return conv.HasParticipant(userID), nil
}
