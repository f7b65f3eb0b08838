// Package compose prepares unsigned text notes from the cached graph: reply
// threading, @npub mention rewriting and mention autocompletion.
package compose

import (
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/nbd-wtf/go-nostr"
)

const (
	mentionMarker    = "@npub"
	mentionWordSize  = 64
	suggestionMarker = "@"
	minSuggestionLen = 3
	tagEvent         = "e"
	tagPubKey        = "p"
)

// Draft accumulates the reply targets and mentioned users of a note being
// written. A Draft is not safe for concurrent use.
type Draft struct {
	replyTos []identity.EventID
	mentions []identity.PublicKey
}

// NewDraft starts a draft. When replyingTo is set, the draft threads under it:
// the parent's own reply targets followed by the parent, and the parent's
// mentions plus its author.
func NewDraft(replyingTo *cache.Note) *Draft {
	draft := &Draft{}
	if replyingTo == nil {
		return draft
	}
	for _, parent := range replyingTo.Parents() {
		draft.replyTos = append(draft.replyTos, parent.ID())
	}
	draft.replyTos = append(draft.replyTos, replyingTo.ID())

	for _, user := range replyingTo.Mentions() {
		draft.AddMention(user.PubKey())
	}
	if author := replyingTo.Author(); author != nil {
		draft.AddMention(author.PubKey())
	}
	return draft
}

// ReplyTos returns the events the draft replies to, oldest ancestor first.
func (d *Draft) ReplyTos() []identity.EventID {
	return append([]identity.EventID(nil), d.replyTos...)
}

// Mentions returns the users the draft tags.
func (d *Draft) Mentions() []identity.PublicKey {
	return append([]identity.PublicKey(nil), d.mentions...)
}

// AddMention tags the user once and returns its position in the event tags,
// which is what a #[index] reference points at.
func (d *Draft) AddMention(pubKey identity.PublicKey) int {
	for index, existing := range d.mentions {
		if existing == pubKey {
			return len(d.replyTos) + index
		}
	}
	d.mentions = append(d.mentions, pubKey)
	return len(d.replyTos) + len(d.mentions) - 1
}

// RemoveMention drops a tagged user. Reply targets are kept.
func (d *Draft) RemoveMention(pubKey identity.PublicKey) {
	kept := d.mentions[:0]
	for _, existing := range d.mentions {
		if existing != pubKey {
			kept = append(kept, existing)
		}
	}
	d.mentions = kept
}

// Build rewrites @npub words in message into #[index] references, tagging
// each user, and returns the unsigned text note. The event id is computed;
// the signature is left empty.
func (d *Draft) Build(author identity.PublicKey, message string, createdAt nostr.Timestamp) *nostr.Event {
	content := d.rewriteMentions(message)

	tags := make(nostr.Tags, 0, len(d.replyTos)+len(d.mentions))
	for _, id := range d.replyTos {
		tags = append(tags, nostr.Tag{tagEvent, id.Hex()})
	}
	for _, pubKey := range d.mentions {
		tags = append(tags, nostr.Tag{tagPubKey, pubKey.Hex()})
	}

	event := &nostr.Event{
		PubKey:    author.Hex(),
		CreatedAt: createdAt,
		Kind:      nostr.KindTextNote,
		Tags:      tags,
		Content:   content,
	}
	event.ID = event.GetID()
	return event
}

func (d *Draft) rewriteMentions(message string) string {
	paragraphs := strings.Split(message, "\n")
	for p, paragraph := range paragraphs {
		words := strings.Split(paragraph, " ")
		for w, word := range words {
			words[w] = d.rewriteWord(word)
		}
		paragraphs[p] = strings.Join(words, " ")
	}
	return strings.Join(paragraphs, "\n")
}

// rewriteWord leaves words it cannot decode untouched.
func (d *Draft) rewriteWord(word string) string {
	if !strings.HasPrefix(word, mentionMarker) || len(word) < mentionWordSize {
		return word
	}
	pubKey, err := identity.DecodePublicKey(word[:mentionWordSize])
	if err != nil {
		return word
	}
	index := d.AddMention(pubKey)
	return "#[" + strconv.Itoa(index) + "]" + word[mentionWordSize:]
}

// Suggest returns users whose names start with the word being typed at the
// end of text, when that word is an @ reference of at least two characters.
func Suggest(store *cache.Store, text string) []*cache.User {
	lastWord := text
	if cut := strings.LastIndex(lastWord, "\n"); cut >= 0 {
		lastWord = lastWord[cut+1:]
	}
	if cut := strings.LastIndex(lastWord, " "); cut >= 0 {
		lastWord = lastWord[cut+1:]
	}
	if !strings.HasPrefix(lastWord, suggestionMarker) || len(lastWord) < minSuggestionLen {
		return nil
	}
	return store.FindUsersStartingWith(strings.TrimPrefix(lastWord, suggestionMarker))
}
