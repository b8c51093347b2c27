package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/furisto/seyal/backend/event"
	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 30 * time.Second

// handleAPIEvents streams the session's domain events as server-sent events.
// The optional types query takes comma separated patterns like "memory.*".
func (s *Server) handleAPIEvents(c *gin.Context) {
	if s.router == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "event stream disabled",
		})
		return
	}

	var patterns []string
	if types := c.Query("types"); types != "" {
		for _, p := range strings.Split(types, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
	}

	events, cancel := s.router.Subscribe(c.Request.Context(), event.SubscribeOptions{
		EventTypes: patterns,
		SessionID:  sessionID(c),
	})
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-ticker.C:
			c.SSEvent("keepalive", gin.H{"timestamp": time.Now()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
