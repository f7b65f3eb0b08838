// Package ingest turns inbound events into cache mutations.
package ingest

import (
	"errors"

	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/sdk"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	opConsume        = "ingest.consume"
	opMetadata       = "ingest.metadata"
	opTextNote       = "ingest.text_note"
	opRepost         = "ingest.repost"
	opReaction       = "ingest.reaction"
	opContactList    = "ingest.contact_list"
	reasonNilEvent   = "nil_event"
	reasonBadID      = "invalid_event_id"
	reasonBadAuthor  = "invalid_author"
	reasonBadMention = "invalid_mention"
	reasonBadParent  = "invalid_parent"
	reasonBadFollow  = "invalid_follow"
	reasonParse      = "metadata_parse_failed"
	reasonUnknown    = "unknown_kind"
	tagPubKey        = "p"
	tagEvent         = "e"
	thumbsUpReaction = "\U0001F919"
)

var (
	errMissingStore      = errors.New("ingest: store is required")
	errMetadataNotObject = errors.New("ingest: metadata content is not a json object")
	noOpLogger      = zap.NewNop()
)

// Notifier receives change announcements after visible mutations.
type Notifier interface {
	Publish(reason string) notify.Marker
}

// PipelineConfig describes the dependencies of a Pipeline.
type PipelineConfig struct {
	Store    *cache.Store
	Notifier Notifier
	Logger   *zap.Logger
	// NotifyReactions also announces counted reactions. Off by default so
	// reaction bursts do not trigger observer refreshes.
	NotifyReactions bool
}

// Pipeline dispatches events by kind to handlers that mutate the Store.
type Pipeline struct {
	store           *cache.Store
	notifier        Notifier
	logger          *zap.Logger
	notifyReactions bool
}

// NewPipeline constructs a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Pipeline{
		store:           cfg.Store,
		notifier:        cfg.Notifier,
		logger:          logger,
		notifyReactions: cfg.NotifyReactions,
	}, nil
}

// Store returns the cache the pipeline writes to.
func (p *Pipeline) Store() *cache.Store {
	return p.store
}

// Consume ingests one event. Failures are logged and reported in the
// Outcome; they never propagate.
func (p *Pipeline) Consume(event *nostr.Event) Outcome {
	if event == nil {
		p.logWarn(opConsume, reasonNilEvent, nil)
		return Outcome{Kind: -1, Status: StatusRejected, Reason: reasonNilEvent}
	}

	switch event.Kind {
	case KindMetadata:
		return p.consumeMetadata(event)
	case KindTextNote:
		return p.consumeTextNote(event)
	case KindContactList:
		return p.consumeContactList(event)
	case KindRepost:
		return p.consumeRepost(event)
	case KindReaction:
		return p.consumeReaction(event)
	case KindRecommendRelay, KindDirectMessage, KindDeletion:
		p.logger.Debug("event accepted without processing",
			zap.String("kind", kindName(event.Kind)),
			zap.String("event_id", event.ID),
			zap.String("pubkey", event.PubKey))
		return Outcome{Kind: event.Kind, EventID: event.ID, Status: StatusIgnored}
	default:
		p.logger.Debug("unsupported event kind",
			zap.Int("kind", event.Kind),
			zap.String("event_id", event.ID))
		return Outcome{Kind: event.Kind, EventID: event.ID, Status: StatusIgnored, Reason: reasonUnknown}
	}
}

func (p *Pipeline) consumeMetadata(event *nostr.Event) Outcome {
	outcome := Outcome{Kind: event.Kind, EventID: event.ID}

	pubKey, err := identity.DecodePublicKey(event.PubKey)
	if err != nil {
		return p.reject(outcome, opMetadata, reasonBadAuthor, err)
	}
	user := p.store.GetOrCreateUser(pubKey)

	storedAt := user.MetadataUpdatedAt()
	if event.CreatedAt <= storedAt {
		p.logger.Debug("stale metadata ignored",
			zap.String("pubkey", pubKey.Hex()),
			zap.Time("event_at", event.CreatedAt.Time()),
			zap.Time("stored_at", storedAt.Time()))
		outcome.Status = StatusStale
		return outcome
	}

	profile, err := parseProfile(event)
	if err != nil {
		return p.reject(outcome, opMetadata, reasonParse, err,
			zap.String("pubkey", pubKey.Hex()),
			zap.String("content", event.Content))
	}

	metadata := cache.UserMetadata{
		Name:        profile.Name,
		DisplayName: profile.DisplayName,
		About:       profile.About,
		Website:     profile.Website,
		Picture:     profile.Picture,
		Banner:      profile.Banner,
		NIP05:       profile.NIP05,
		LUD16:       profile.LUD16,
	}
	if !user.UpdateMetadata(metadata, event.CreatedAt) {
		outcome.Status = StatusStale
		return outcome
	}
	outcome.Status = StatusApplied
	return outcome
}

func (p *Pipeline) consumeTextNote(event *nostr.Event) Outcome {
	linked, outcome, ok := p.link(event, opTextNote)
	if !ok {
		return outcome
	}
	linked.author.AddNote(linked.note)
	for _, parent := range linked.parents {
		parent.AddReply(linked.note)
	}
	return p.announce(outcome, notify.ReasonTextNote)
}

func (p *Pipeline) consumeRepost(event *nostr.Event) Outcome {
	linked, outcome, ok := p.link(event, opRepost)
	if !ok {
		return outcome
	}
	linked.author.AddNote(linked.note)
	for _, parent := range linked.parents {
		parent.AddBoost(linked.note)
	}
	return p.announce(outcome, notify.ReasonRepost)
}

func (p *Pipeline) consumeReaction(event *nostr.Event) Outcome {
	linked, outcome, ok := p.link(event, opReaction)
	if !ok {
		return outcome
	}
	if !countsAsReaction(event.Content) {
		return outcome
	}
	for _, parent := range linked.parents {
		parent.AddReaction(linked.note)
	}
	if p.notifyReactions {
		return p.announce(outcome, notify.ReasonReaction)
	}
	return outcome
}

func (p *Pipeline) consumeContactList(event *nostr.Event) Outcome {
	outcome := Outcome{Kind: event.Kind, EventID: event.ID}

	pubKey, err := identity.DecodePublicKey(event.PubKey)
	if err != nil {
		return p.reject(outcome, opContactList, reasonBadAuthor, err)
	}
	user := p.store.GetOrCreateUser(pubKey)

	outcome.Status = StatusStale
	if event.CreatedAt > user.FollowsUpdatedAt() {
		follows := make([]*cache.User, 0, len(event.Tags))
		for _, value := range tagValues(event.Tags, tagPubKey) {
			followed, err := identity.DecodePublicKey(value)
			if err != nil {
				outcome.Skipped++
				p.logWarn(opContactList, reasonBadFollow, err,
					zap.String("event_id", event.ID),
					zap.String("value", value))
				continue
			}
			follows = append(follows, p.store.GetOrCreateUser(followed))
		}
		if user.UpdateFollows(follows, event.CreatedAt) {
			outcome.Status = StatusApplied
		}
	}

	return p.announce(outcome, notify.ReasonContactList)
}

type linkedEvent struct {
	note     *cache.Note
	author   *cache.User
	mentions []*cache.User
	parents  []*cache.Note
}

// link resolves the note, author, mentions and parents of event, loads the
// payload and registers tagged posts. It returns false when the event is
// malformed or already loaded.
func (p *Pipeline) link(event *nostr.Event, operation string) (linkedEvent, Outcome, bool) {
	outcome := Outcome{Kind: event.Kind, EventID: event.ID}

	noteID, err := identity.DecodeEventID(event.ID)
	if err != nil {
		return linkedEvent{}, p.reject(outcome, operation, reasonBadID, err), false
	}
	authorKey, err := identity.DecodePublicKey(event.PubKey)
	if err != nil {
		return linkedEvent{}, p.reject(outcome, operation, reasonBadAuthor, err,
			zap.String("event_id", event.ID)), false
	}

	note := p.store.GetOrCreateNote(noteID)
	if note.Loaded() {
		outcome.Status = StatusDuplicate
		return linkedEvent{}, outcome, false
	}

	linked := linkedEvent{
		note:   note,
		author: p.store.GetOrCreateUser(authorKey),
	}
	for _, value := range tagValues(event.Tags, tagPubKey) {
		mentioned, err := identity.DecodePublicKey(value)
		if err != nil {
			outcome.Skipped++
			p.logWarn(operation, reasonBadMention, err,
				zap.String("event_id", event.ID),
				zap.String("value", value))
			continue
		}
		linked.mentions = append(linked.mentions, p.store.GetOrCreateUser(mentioned))
	}
	for _, value := range tagValues(event.Tags, tagEvent) {
		parentID, err := identity.DecodeEventID(value)
		if err != nil {
			outcome.Skipped++
			p.logWarn(operation, reasonBadParent, err,
				zap.String("event_id", event.ID),
				zap.String("value", value))
			continue
		}
		linked.parents = append(linked.parents, p.store.GetOrCreateNote(parentID))
	}

	if !note.LoadEvent(event, linked.author, linked.mentions, linked.parents) {
		outcome.Status = StatusDuplicate
		return linkedEvent{}, outcome, false
	}

	for _, mentioned := range linked.mentions {
		mentioned.AddTaggedPost(note)
	}
	for _, parent := range linked.parents {
		if parentAuthor := parent.Author(); parentAuthor != nil {
			parentAuthor.AddTaggedPost(note)
		}
	}

	outcome.Status = StatusApplied
	return linked, outcome, true
}

func (p *Pipeline) announce(outcome Outcome, reason string) Outcome {
	if p.notifier == nil {
		return outcome
	}
	p.notifier.Publish(reason)
	outcome.Notified = true
	return outcome
}

func (p *Pipeline) reject(outcome Outcome, operation, reason string, err error, fields ...zap.Field) Outcome {
	p.logWarn(operation, reason, err, fields...)
	outcome.Status = StatusRejected
	outcome.Reason = reason
	return outcome
}

func (p *Pipeline) logWarn(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	p.logger.Warn("ingest event skipped", attrs...)
}

// parseProfile accepts only a JSON object; null, arrays and scalars would
// otherwise decode into an empty profile.
func parseProfile(event *nostr.Event) (sdk.ProfileMetadata, error) {
	if !gjson.Valid(event.Content) || !gjson.Parse(event.Content).IsObject() {
		return sdk.ProfileMetadata{}, errMetadataNotObject
	}
	return sdk.ParseMetadata(event)
}

func countsAsReaction(content string) bool {
	return content == "" || content == "+" || content == thumbsUpReaction
}

// tagValues returns the second element of every tag named key.
func tagValues(tags nostr.Tags, key string) []string {
	values := make([]string, 0, len(tags))
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != key {
			continue
		}
		values = append(values, tag[1])
	}
	return values
}
