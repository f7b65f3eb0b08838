package ingest

// Event kinds handled by the pipeline.
const (
	KindMetadata       = 0
	KindTextNote       = 1
	KindRecommendRelay = 2
	KindContactList    = 3
	KindDirectMessage  = 4
	KindDeletion       = 5
	KindRepost         = 6
	KindReaction       = 7
)

// Status summarizes what ingestion did with an event.
type Status string

const (
	// StatusApplied means the event mutated the cache.
	StatusApplied Status = "applied"
	// StatusDuplicate means the event id was already loaded.
	StatusDuplicate Status = "duplicate"
	// StatusStale means a newer metadata or follow list was already stored.
	StatusStale Status = "stale"
	// StatusRejected means the event was malformed and discarded.
	StatusRejected Status = "rejected"
	// StatusIgnored means the kind is accepted but not processed.
	StatusIgnored Status = "ignored"
)

// Outcome reports the result of consuming one event.
type Outcome struct {
	Kind     int
	EventID  string
	Status   Status
	Reason   string
	Skipped  int
	Notified bool
}

func kindName(kind int) string {
	switch kind {
	case KindMetadata:
		return "metadata"
	case KindTextNote:
		return "text_note"
	case KindRecommendRelay:
		return "recommend_relay"
	case KindContactList:
		return "contact_list"
	case KindDirectMessage:
		return "direct_message"
	case KindDeletion:
		return "deletion"
	case KindRepost:
		return "repost"
	case KindReaction:
		return "reaction"
	default:
		return "unknown"
	}
}
