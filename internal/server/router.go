package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notegraph/internal/ingest"
	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

const (
	feederContextKey = "notegraph_feeder"
	maxSearchResults = 20
	// DefaultMaxIngestBytes caps a POST /events body when no limit is configured.
	DefaultMaxIngestBytes int64 = 4 << 20
)

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingPipeline       = errors.New("ingest pipeline dependency required")
	errMissingDispatcher     = errors.New("notification dispatcher dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator validates feeder bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the cache.
type Dependencies struct {
	Tokens        TokenValidator
	Pipeline      *ingest.Pipeline
	Notifications *notify.Dispatcher
	Logger        *zap.Logger

	// MaxIngestBytes limits the intake body; zero means DefaultMaxIngestBytes.
	MaxIngestBytes int64
}

// NewHTTPHandler builds the intake and inspection router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Pipeline == nil {
		return nil, errMissingPipeline
	}
	if deps.Notifications == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:         deps.Tokens,
		pipeline:       deps.Pipeline,
		notifications:  deps.Notifications,
		logger:         logger,
		maxIngestBytes: deps.MaxIngestBytes,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/users", handler.handleSearchUsers)
	router.GET("/users/:pubkey", handler.handleGetUser)
	router.GET("/users/:pubkey/follows", handler.handleGetFollows)
	router.GET("/notes/:id", handler.handleGetNote)
	router.GET("/stream", handler.handleStream)
	router.GET("/suggestions", handler.handleSuggestMentions)
	router.POST("/drafts", handler.handleComposeDraft)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/events", handler.handleIngestEvents)

	return router, nil
}

type httpHandler struct {
	tokens         TokenValidator
	pipeline       *ingest.Pipeline
	notifications  *notify.Dispatcher
	logger         *zap.Logger
	maxIngestBytes int64
}

type ingestResponsePayload struct {
	Results []ingestResultPayload `json:"results"`
}

type ingestResultPayload struct {
	EventID  string `json:"event_id"`
	Kind     int    `json:"kind"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Skipped  int    `json:"skipped,omitempty"`
	Notified bool   `json:"notified"`
}

func (h *httpHandler) handleIngestEvents(c *gin.Context) {
	limit := h.maxIngestBytes
	if limit <= 0 {
		limit = DefaultMaxIngestBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("ingest body rejected",
				zap.String("feeder", c.GetString(feederContextKey)),
				zap.Int64("limit_bytes", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	events, err := decodeEvents(raw)
	if err != nil || len(events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response := ingestResponsePayload{Results: make([]ingestResultPayload, 0, len(events))}
	for index := range events {
		outcome := h.pipeline.Consume(&events[index])
		response.Results = append(response.Results, ingestResultPayload{
			EventID:  outcome.EventID,
			Kind:     outcome.Kind,
			Status:   string(outcome.Status),
			Reason:   outcome.Reason,
			Skipped:  outcome.Skipped,
			Notified: outcome.Notified,
		})
	}

	h.logger.Debug("events ingested",
		zap.String("feeder", c.GetString(feederContextKey)),
		zap.Int("count", len(events)))
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	store := h.pipeline.Store()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"users":       store.UserCount(),
		"notes":       store.NoteCount(),
		"subscribers": h.notifications.SubscriberCount(),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(feederContextKey, subject)
	c.Next()
}

// decodeEvents accepts a single event object or an array of events.
func decodeEvents(raw []byte) ([]nostr.Event, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	if strings.HasPrefix(trimmed, "[") {
		var events []nostr.Event
		if err := json.Unmarshal([]byte(trimmed), &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var event nostr.Event
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		return nil, err
	}
	return []nostr.Event{event}, nil
}
