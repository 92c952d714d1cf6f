package api

import (
	"io"

	"github.com/gin-gonic/gin"
)

// stream serves the snapshot feed as server-sent events. The current state is
// sent immediately so a reconnecting shell never renders stale data, then
// every published snapshot follows until the client disconnects.
func (h *Handler) stream(c *gin.Context) {
	id, states := h.coord.Subscribe()
	defer h.coord.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("state", h.coord.State())
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case state, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", state)
			return true
		}
	})
}
