package cache

import (
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/nbd-wtf/go-nostr"
)

// UserMetadata is the profile payload published in metadata events.
type UserMetadata struct {
	Name        string
	DisplayName string
	About       string
	Website     string
	Picture     string
	Banner      string
	NIP05       string
	LUD16       string
}

// User is a cached public key with its profile, follows and backlinks.
// Metadata and follows are independent field groups with separate locks.
type User struct {
	pubKey identity.PublicKey

	metadataMu        sync.RWMutex
	metadata          UserMetadata
	metadataUpdatedAt nostr.Timestamp

	followsMu        sync.RWMutex
	follows          []*User
	followsUpdatedAt nostr.Timestamp

	backlinksMu sync.RWMutex
	notes       noteSet
	taggedPosts noteSet
}

func newUser(pubKey identity.PublicKey) *User {
	return &User{pubKey: pubKey}
}

// PubKey returns the user's public key.
func (u *User) PubKey() identity.PublicKey {
	return u.pubKey
}

// Metadata returns the current profile and the timestamp it was published at.
func (u *User) Metadata() (UserMetadata, nostr.Timestamp) {
	u.metadataMu.RLock()
	defer u.metadataMu.RUnlock()
	return u.metadata, u.metadataUpdatedAt
}

// MetadataUpdatedAt returns the timestamp of the stored profile, zero if none.
func (u *User) MetadataUpdatedAt() nostr.Timestamp {
	u.metadataMu.RLock()
	defer u.metadataMu.RUnlock()
	return u.metadataUpdatedAt
}

// UpdateMetadata replaces the profile when createdAt is strictly newer than
// the stored one. It reports whether the replacement happened.
func (u *User) UpdateMetadata(metadata UserMetadata, createdAt nostr.Timestamp) bool {
	u.metadataMu.Lock()
	defer u.metadataMu.Unlock()
	if createdAt <= u.metadataUpdatedAt {
		return false
	}
	u.metadata = metadata
	u.metadataUpdatedAt = createdAt
	return true
}

// BestDisplayName prefers the display name, then the name, then the npub.
func (u *User) BestDisplayName() string {
	metadata, _ := u.Metadata()
	if name := strings.TrimSpace(metadata.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(metadata.Name); name != "" {
		return name
	}
	return u.pubKey.Npub()
}

// Follows returns a copy of the follow list and its timestamp.
func (u *User) Follows() ([]*User, nostr.Timestamp) {
	u.followsMu.RLock()
	defer u.followsMu.RUnlock()
	out := make([]*User, len(u.follows))
	copy(out, u.follows)
	return out, u.followsUpdatedAt
}

// FollowsUpdatedAt returns the timestamp of the stored follow list, zero if none.
func (u *User) FollowsUpdatedAt() nostr.Timestamp {
	u.followsMu.RLock()
	defer u.followsMu.RUnlock()
	return u.followsUpdatedAt
}

// UpdateFollows replaces the follow list when createdAt is strictly newer
// than the stored one. It reports whether the replacement happened.
func (u *User) UpdateFollows(follows []*User, createdAt nostr.Timestamp) bool {
	u.followsMu.Lock()
	defer u.followsMu.Unlock()
	if createdAt <= u.followsUpdatedAt {
		return false
	}
	u.follows = append([]*User(nil), follows...)
	u.followsUpdatedAt = createdAt
	return true
}

// Notes returns the notes authored by the user, in insertion order.
func (u *User) Notes() []*Note {
	u.backlinksMu.RLock()
	defer u.backlinksMu.RUnlock()
	return u.notes.snapshot()
}

// TaggedPosts returns the notes that mention the user or reference one of
// the user's notes, in insertion order.
func (u *User) TaggedPosts() []*Note {
	u.backlinksMu.RLock()
	defer u.backlinksMu.RUnlock()
	return u.taggedPosts.snapshot()
}

// AddNote registers an authored note.
func (u *User) AddNote(note *Note) {
	u.backlinksMu.Lock()
	defer u.backlinksMu.Unlock()
	u.notes.add(note)
}

// AddTaggedPost registers a note that tags the user.
func (u *User) AddTaggedPost(note *Note) {
	u.backlinksMu.Lock()
	defer u.backlinksMu.Unlock()
	u.taggedPosts.add(note)
}

func (u *User) matchesPrefix(lowerPrefix string) bool {
	metadata, _ := u.Metadata()
	candidates := []string{metadata.Name, metadata.DisplayName, metadata.NIP05, u.pubKey.Npub()}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(candidate), lowerPrefix) {
			return true
		}
	}
	return false
}
