package server

import (
	"testing"

	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/MarcoPoloResearchLab/notegraph/internal/ingest"
	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"go.uber.org/zap"
)

type stubTokenValidator struct {
	subject     string
	validateErr error
}

func (s stubTokenValidator) ValidateToken(string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	return s.subject, nil
}

func newTestHandler(t *testing.T) (*httpHandler, *notify.Dispatcher) {
	t.Helper()
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{})
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Store:    cache.NewStore(),
		Notifier: dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct pipeline: %v", err)
	}
	return &httpHandler{
		tokens:        stubTokenValidator{subject: "feeder-1"},
		pipeline:      pipeline,
		notifications: dispatcher,
		logger:        zap.NewNop(),
	}, dispatcher
}

func pubKeyHex(seed byte) string {
	return identity.PublicKey{0: 0xaa, 31: seed}.Hex()
}

func eventIDHex(seed byte) string {
	return identity.EventID{0: 0xee, 31: seed}.Hex()
}
