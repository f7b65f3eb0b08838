package server

import (
	"io"
	"time"

	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"github.com/gin-gonic/gin"
)

const (
	streamEventChange    = "cache-change"
	streamEventHeartbeat = "heartbeat"
	heartbeatInterval    = 25 * time.Second
)

type markerPayload struct {
	Revision    string `json:"revision"`
	Sequence    uint64 `json:"sequence"`
	Reason      string `json:"reason"`
	PublishedAt int64  `json:"published_at"`
}

func newMarkerPayload(marker notify.Marker) markerPayload {
	return markerPayload{
		Revision:    marker.Revision,
		Sequence:    marker.Sequence,
		Reason:      marker.Reason,
		PublishedAt: marker.PublishedAt.Unix(),
	}
}

// handleStream emits cache change markers as server-sent events. A new
// subscriber first receives the latest marker, if any.
func (h *httpHandler) handleStream(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.notifications.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	var lastSequence uint64
	if latest, ok := h.notifications.Latest(); ok {
		lastSequence = latest.Sequence
		c.SSEvent(streamEventChange, newMarkerPayload(latest))
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case marker, ok := <-stream:
			if !ok {
				return false
			}
			if marker.Sequence <= lastSequence {
				return true
			}
			lastSequence = marker.Sequence
			c.SSEvent(streamEventChange, newMarkerPayload(marker))
			return true
		case <-heartbeat.C:
			c.SSEvent(streamEventHeartbeat, gin.H{"at": time.Now().UTC().Unix()})
			return true
		}
	})
}
