package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/nbd-wtf/go-nostr"
)

func postDraft(t *testing.T, handler *httpHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodPost, "/drafts", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	ctx.Request = request

	handler.handleComposeDraft(ctx)
	return recorder
}

func TestHandleComposeDraftThreadsReply(t *testing.T) {
	handler, dispatcher := newTestHandler(t)
	seedThread(t, handler)
	before, _ := dispatcher.Latest()

	body := fmt.Sprintf(`{"author":%q,"reply_to":%q,"content":"yes @%s","created_at":500}`,
		pubKeyHex(3), identity.MustEventID(eventIDHex(2)).Bech32(), identity.MustPublicKey(pubKeyHex(1)).Npub())
	recorder := postDraft(t, handler, body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Event nostr.Event `json:"event"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	event := payload.Event
	if event.Content != "yes #[2]" || event.PubKey != pubKeyHex(3) || event.CreatedAt != 500 {
		t.Fatalf("unexpected draft %+v", event)
	}
	want := [][2]string{{"e", eventIDHex(1)}, {"e", eventIDHex(2)}, {"p", pubKeyHex(1)}, {"p", pubKeyHex(2)}}
	if len(event.Tags) != len(want) {
		t.Fatalf("unexpected tags %v", event.Tags)
	}
	for index, tag := range want {
		if event.Tags[index][0] != tag[0] || event.Tags[index][1] != tag[1] {
			t.Fatalf("tag %d: got %v, want %v", index, event.Tags[index], tag)
		}
	}

	if handler.pipeline.Store().NoteCount() != 3 {
		t.Fatal("composing a draft must not touch the cache")
	}
	if after, _ := dispatcher.Latest(); after.Sequence != before.Sequence {
		t.Fatal("composing a draft must not publish a change")
	}
}

func TestHandleComposeDraftErrors(t *testing.T) {
	handler, _ := newTestHandler(t)
	seedThread(t, handler)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "missing author", body: `{"content":"hi"}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad author", body: `{"author":"pub1"}`, status: http.StatusBadRequest, code: "invalid_pubkey"},
		{name: "bad mention", body: fmt.Sprintf(`{"author":%q,"mentions":["x"]}`, pubKeyHex(1)), status: http.StatusBadRequest, code: "invalid_pubkey"},
		{name: "bad parent", body: fmt.Sprintf(`{"author":%q,"reply_to":"zz"}`, pubKeyHex(1)), status: http.StatusBadRequest, code: "invalid_note_id"},
		{name: "unknown parent", body: fmt.Sprintf(`{"author":%q,"reply_to":%q}`, pubKeyHex(1), eventIDHex(77)), status: http.StatusNotFound, code: "note_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := postDraft(t, handler, tt.body)
			if recorder.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, recorder.Code)
			}
			if recorder.Body.String() != fmt.Sprintf(`{"error":%q}`, tt.code) {
				t.Fatalf("unexpected response %s", recorder.Body.String())
			}
		})
	}
}

func TestHandleSuggestMentions(t *testing.T) {
	handler, _ := newTestHandler(t)
	seedThread(t, handler)

	recorder := serveGet(t, handler, handler.handleSuggestMentions, "/suggestions?text=thanks+%40ali", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", recorder.Code)
	}
	var payload struct {
		Users []userPayload `json:"users"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Users) != 1 || payload.Users[0].PubKey != pubKeyHex(1) {
		t.Fatalf("unexpected suggestions %+v", payload.Users)
	}
}
