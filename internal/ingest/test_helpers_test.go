package ingest

import (
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"github.com/nbd-wtf/go-nostr"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (n *recordingNotifier) Publish(reason string) notify.Marker {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
	return notify.Marker{Reason: reason, Sequence: uint64(len(n.reasons))}
}

func (n *recordingNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reasons...)
}

func newTestPipeline(t *testing.T, notifyReactions bool) (*Pipeline, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	pipeline, err := NewPipeline(PipelineConfig{
		Store:           cache.NewStore(),
		Notifier:        notifier,
		NotifyReactions: notifyReactions,
	})
	if err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}
	return pipeline, notifier
}

func pubKeyHex(seed byte) string {
	return identity.PublicKey{0: 0xaa, 31: seed}.Hex()
}

func eventIDHex(seed byte) string {
	return identity.EventID{0: 0xee, 31: seed}.Hex()
}

func textNote(id, author string, createdAt nostr.Timestamp, tags nostr.Tags, content string) *nostr.Event {
	return &nostr.Event{
		ID:        id,
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      KindTextNote,
		Tags:      tags,
		Content:   content,
	}
}

func mustUser(t *testing.T, store *cache.Store, hexKey string) *cache.User {
	t.Helper()
	user, ok := store.User(identity.MustPublicKey(hexKey))
	if !ok {
		t.Fatalf("expected user %s to exist", hexKey)
	}
	return user
}

func mustNote(t *testing.T, store *cache.Store, hexID string) *cache.Note {
	t.Helper()
	note, ok := store.Note(identity.MustEventID(hexID))
	if !ok {
		t.Fatalf("expected note %s to exist", hexID)
	}
	return note
}
