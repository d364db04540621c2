package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const sseKeepAlive = 25 * time.Second

// Events godoc
// @Summary Live tracker events
// @Description Server-sent events: completion, xp, snapshot, persistence_error, plan_replaced.
// @Tags Events
// @Produce text/event-stream
// @Security BearerAuth
// @Router /events [get]
func (h *TrackerHandler) Events(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	// Open the session so store changes start flowing.
	if _, ok := h.session(c); !ok {
		return
	}

	events, unsubscribe := h.tracker.Hub().Subscribe(userID)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
