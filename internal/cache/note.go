package cache

import (
	"sync"

	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/nbd-wtf/go-nostr"
)

// Note is a cached event. It may exist before its payload arrives when
// another event references it.
type Note struct {
	id identity.EventID

	mu       sync.RWMutex
	event    *nostr.Event
	author   *User
	mentions []*User
	parents  []*Note

	backlinksMu sync.RWMutex
	replies     noteSet
	boosts      noteSet
	reactions   noteSet
}

func newNote(id identity.EventID) *Note {
	return &Note{id: id}
}

// ID returns the note identifier.
func (n *Note) ID() identity.EventID {
	return n.id
}

// LoadEvent attaches the payload and its resolved references. The first
// call wins; later calls return false and change nothing.
func (n *Note) LoadEvent(event *nostr.Event, author *User, mentions []*User, parents []*Note) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.event != nil || event == nil {
		return false
	}
	n.event = event
	n.author = author
	n.mentions = append([]*User(nil), mentions...)
	n.parents = append([]*Note(nil), parents...)
	return true
}

// Loaded reports whether the payload has been set.
func (n *Note) Loaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.event != nil
}

// Event returns the payload, nil until loaded.
func (n *Note) Event() *nostr.Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.event
}

// Author returns the resolved author, nil until loaded.
func (n *Note) Author() *User {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.author
}

// Mentions returns the resolved mentioned users.
func (n *Note) Mentions() []*User {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*User, len(n.mentions))
	copy(out, n.mentions)
	return out
}

// Parents returns the notes this note replies to, boosts or reacts to.
func (n *Note) Parents() []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Note, len(n.parents))
	copy(out, n.parents)
	return out
}

// Replies returns the notes replying to this one.
func (n *Note) Replies() []*Note {
	n.backlinksMu.RLock()
	defer n.backlinksMu.RUnlock()
	return n.replies.snapshot()
}

// Boosts returns the reposts of this note.
func (n *Note) Boosts() []*Note {
	n.backlinksMu.RLock()
	defer n.backlinksMu.RUnlock()
	return n.boosts.snapshot()
}

// Reactions returns the counted reactions to this note.
func (n *Note) Reactions() []*Note {
	n.backlinksMu.RLock()
	defer n.backlinksMu.RUnlock()
	return n.reactions.snapshot()
}

// AddReply registers a reply.
func (n *Note) AddReply(note *Note) {
	n.backlinksMu.Lock()
	defer n.backlinksMu.Unlock()
	n.replies.add(note)
}

// AddBoost registers a repost.
func (n *Note) AddBoost(note *Note) {
	n.backlinksMu.Lock()
	defer n.backlinksMu.Unlock()
	n.boosts.add(note)
}

// AddReaction registers a reaction.
func (n *Note) AddReaction(note *Note) {
	n.backlinksMu.Lock()
	defer n.backlinksMu.Unlock()
	n.reactions.add(note)
}

// noteSet is an insertion-ordered set. Callers hold the owning lock.
type noteSet struct {
	order []*Note
	index map[identity.EventID]struct{}
}

func (s *noteSet) add(note *Note) bool {
	if note == nil {
		return false
	}
	if s.index == nil {
		s.index = make(map[identity.EventID]struct{})
	}
	if _, ok := s.index[note.id]; ok {
		return false
	}
	s.index[note.id] = struct{}{}
	s.order = append(s.order, note)
	return true
}

func (s *noteSet) snapshot() []*Note {
	out := make([]*Note, len(s.order))
	copy(out, s.order)
	return out
}
