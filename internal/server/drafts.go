package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notegraph/internal/compose"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/nbd-wtf/go-nostr"
)

type draftRequestPayload struct {
	Author    string   `json:"author" binding:"required"`
	Content   string   `json:"content"`
	ReplyTo   string   `json:"reply_to"`
	Mentions  []string `json:"mentions"`
	CreatedAt int64    `json:"created_at"`
}

// handleComposeDraft returns the unsigned text note a client would sign and
// publish. Nothing is written to the cache.
func (h *httpHandler) handleComposeDraft(c *gin.Context) {
	var request draftRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	author, err := identity.DecodePublicKey(request.Author)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pubkey"})
		return
	}

	draft := compose.NewDraft(nil)
	if request.ReplyTo != "" {
		parentID, err := identity.DecodeEventID(request.ReplyTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
			return
		}
		parent, ok := h.pipeline.Store().Note(parentID)
		if !ok || !parent.Loaded() {
			c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
			return
		}
		draft = compose.NewDraft(parent)
	}
	for _, rawMention := range request.Mentions {
		mention, err := identity.DecodePublicKey(rawMention)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pubkey"})
			return
		}
		draft.AddMention(mention)
	}

	createdAt := nostr.Timestamp(request.CreatedAt)
	if createdAt <= 0 {
		createdAt = nostr.Now()
	}
	c.JSON(http.StatusOK, gin.H{"event": draft.Build(author, request.Content, createdAt)})
}

func (h *httpHandler) handleSuggestMentions(c *gin.Context) {
	matches := compose.Suggest(h.pipeline.Store(), c.Query("text"))
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	payload := make([]userPayload, 0, len(matches))
	for _, user := range matches {
		payload = append(payload, newUserPayload(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": payload})
}
