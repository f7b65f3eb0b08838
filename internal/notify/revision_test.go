package notify

import (
	"testing"
	"time"
)

func TestRevisionSourceIssuesTimeOrderedRevisions(t *testing.T) {
	source := NewRevisionSource()
	before := time.Now().Truncate(time.Millisecond)

	previous := ""
	for i := 0; i < 50; i++ {
		revision, err := source.NewRevision()
		if err != nil {
			t.Fatalf("unexpected revision error: %v", err)
		}
		if revision <= previous {
			t.Fatalf("revision %s does not sort after %s", revision, previous)
		}
		previous = revision
	}

	issuedAt, err := RevisionTime(previous)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if issuedAt.Before(before) || issuedAt.After(time.Now().Add(time.Millisecond)) {
		t.Fatalf("revision time %s outside issue window starting %s", issuedAt, before)
	}
}

func TestRevisionTimeRejectsForeignValues(t *testing.T) {
	for _, revision := range []string{"", "rev-1", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		if _, err := RevisionTime(revision); err == nil {
			t.Fatalf("expected error for %q", revision)
		}
	}
}
