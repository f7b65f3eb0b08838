package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RevisionSource issues marker revisions.
type RevisionSource interface {
	NewRevision() (string, error)
}

type timeOrderedRevisions struct{}

// NewRevisionSource returns revisions backed by UUIDv7, so they sort in
// publish order across restarts where sequences reset.
func NewRevisionSource() RevisionSource {
	return timeOrderedRevisions{}
}

func (timeOrderedRevisions) NewRevision() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("notify: revision: %w", err)
	}
	return value.String(), nil
}

// RevisionTime extracts the publish time embedded in a revision issued by
// NewRevisionSource.
func RevisionTime(revision string) (time.Time, error) {
	value, err := uuid.Parse(revision)
	if err != nil {
		return time.Time{}, fmt.Errorf("notify: revision: %w", err)
	}
	if value.Version() != 7 {
		return time.Time{}, fmt.Errorf("notify: revision %s is not time ordered", revision)
	}
	seconds, nanos := value.Time().UnixTime()
	return time.Unix(seconds, nanos).UTC(), nil
}
