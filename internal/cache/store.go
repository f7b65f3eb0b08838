// Package cache holds the in-memory user and note graph.
package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
)

// Store owns the user and note maps. A single mutex serializes
// find-or-insert on both maps; entity fields carry their own locks.
type Store struct {
	mu    sync.Mutex
	users map[identity.PublicKey]*User
	notes map[identity.EventID]*Note
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[identity.PublicKey]*User),
		notes: make(map[identity.EventID]*Note),
	}
}

// GetOrCreateUser returns the user for pubKey, creating it on first reference.
func (s *Store) GetOrCreateUser(pubKey identity.PublicKey) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[pubKey]; ok {
		return user
	}
	user := newUser(pubKey)
	s.users[pubKey] = user
	return user
}

// GetOrCreateNote returns the note for id, creating it on first reference.
func (s *Store) GetOrCreateNote(id identity.EventID) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note, ok := s.notes[id]; ok {
		return note
	}
	note := newNote(id)
	s.notes[id] = note
	return note
}

// User looks up a user without creating it.
func (s *Store) User(pubKey identity.PublicKey) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[pubKey]
	return user, ok
}

// Note looks up a note without creating it.
func (s *Store) Note(id identity.EventID) (*Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	return note, ok
}

// UserCount returns the number of cached users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// NoteCount returns the number of cached notes, loaded or not.
func (s *Store) NoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// FindUsersStartingWith returns users whose name, display name, NIP-05
// identifier or npub starts with prefix, ignoring case. Results are sorted
// by best display name.
func (s *Store) FindUsersStartingWith(prefix string) []*User {
	lowerPrefix := strings.ToLower(strings.TrimSpace(prefix))
	if lowerPrefix == "" {
		return nil
	}

	s.mu.Lock()
	candidates := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		candidates = append(candidates, user)
	}
	s.mu.Unlock()

	type ranked struct {
		user *User
		name string
	}
	matches := make([]ranked, 0)
	for _, user := range candidates {
		if user.matchesPrefix(lowerPrefix) {
			matches = append(matches, ranked{user: user, name: user.BestDisplayName()})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		left := strings.ToLower(matches[i].name)
		right := strings.ToLower(matches[j].name)
		if left != right {
			return left < right
		}
		return matches[i].user.pubKey.Hex() < matches[j].user.pubKey.Hex()
	})

	out := make([]*User, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.user)
	}
	return out
}
