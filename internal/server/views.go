package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/identity"
	"github.com/gin-gonic/gin"
)

type userPayload struct {
	PubKey            string          `json:"pubkey"`
	Npub              string          `json:"npub"`
	DisplayName       string          `json:"display_name"`
	Metadata          metadataPayload `json:"metadata"`
	MetadataUpdatedAt int64           `json:"metadata_updated_at"`
	FollowsUpdatedAt  int64           `json:"follows_updated_at"`
	Notes             int             `json:"notes"`
	TaggedPosts       int             `json:"tagged_posts"`
	Follows           int             `json:"follows"`
}

type metadataPayload struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Website     string `json:"website,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Banner      string `json:"banner,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
}

type notePayload struct {
	ID        string   `json:"id"`
	Loaded    bool     `json:"loaded"`
	Kind      int      `json:"kind,omitempty"`
	Author    string   `json:"author,omitempty"`
	Content   string   `json:"content,omitempty"`
	CreatedAt int64    `json:"created_at,omitempty"`
	Mentions  []string `json:"mentions"`
	Parents   []string `json:"parents"`
	Replies   []string `json:"replies"`
	Boosts    []string `json:"boosts"`
	Reactions []string `json:"reactions"`
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	user, ok := h.lookupUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

func (h *httpHandler) handleGetFollows(c *gin.Context) {
	user, ok := h.lookupUser(c)
	if !ok {
		return
	}
	follows, updatedAt := user.Follows()
	payload := make([]userPayload, 0, len(follows))
	for _, followed := range follows {
		payload = append(payload, newUserPayload(followed))
	}
	c.JSON(http.StatusOK, gin.H{"updated_at": int64(updatedAt), "follows": payload})
}

func (h *httpHandler) handleSearchUsers(c *gin.Context) {
	prefix := c.Query("prefix")
	if len([]rune(prefix)) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prefix_too_short"})
		return
	}
	matches := h.pipeline.Store().FindUsersStartingWith(prefix)
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	payload := make([]userPayload, 0, len(matches))
	for _, user := range matches {
		payload = append(payload, newUserPayload(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": payload})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	noteID, err := identity.DecodeEventID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return
	}
	note, ok := h.pipeline.Store().Note(noteID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.JSON(http.StatusOK, newNotePayload(note))
}

func (h *httpHandler) lookupUser(c *gin.Context) (*cache.User, bool) {
	pubKey, err := identity.DecodePublicKey(c.Param("pubkey"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pubkey"})
		return nil, false
	}
	user, ok := h.pipeline.Store().User(pubKey)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return nil, false
	}
	return user, true
}

func newUserPayload(user *cache.User) userPayload {
	metadata, metadataUpdatedAt := user.Metadata()
	follows, followsUpdatedAt := user.Follows()
	return userPayload{
		PubKey:      user.PubKey().Hex(),
		Npub:        user.PubKey().Npub(),
		DisplayName: user.BestDisplayName(),
		Metadata: metadataPayload{
			Name:        metadata.Name,
			DisplayName: metadata.DisplayName,
			About:       metadata.About,
			Website:     metadata.Website,
			Picture:     metadata.Picture,
			Banner:      metadata.Banner,
			NIP05:       metadata.NIP05,
			LUD16:       metadata.LUD16,
		},
		MetadataUpdatedAt: int64(metadataUpdatedAt),
		FollowsUpdatedAt:  int64(followsUpdatedAt),
		Notes:             len(user.Notes()),
		TaggedPosts:       len(user.TaggedPosts()),
		Follows:           len(follows),
	}
}

func newNotePayload(note *cache.Note) notePayload {
	payload := notePayload{
		ID:        note.ID().Hex(),
		Mentions:  make([]string, 0),
		Parents:   noteIDs(note.Parents()),
		Replies:   noteIDs(note.Replies()),
		Boosts:    noteIDs(note.Boosts()),
		Reactions: noteIDs(note.Reactions()),
	}
	for _, mentioned := range note.Mentions() {
		payload.Mentions = append(payload.Mentions, mentioned.PubKey().Hex())
	}
	if event := note.Event(); event != nil {
		payload.Loaded = true
		payload.Kind = event.Kind
		payload.Content = event.Content
		payload.CreatedAt = int64(event.CreatedAt)
	}
	if author := note.Author(); author != nil {
		payload.Author = author.PubKey().Hex()
	}
	return payload
}

func noteIDs(notes []*cache.Note) []string {
	ids := make([]string, 0, len(notes))
	for _, note := range notes {
		ids = append(ids, note.ID().Hex())
	}
	return ids
}
