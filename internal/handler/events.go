package handler

import (
	"context"
	"io"
	"time"

	"retailpos/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ssePingInterval = 25 * time.Second

// EventSubscriber is satisfied by *infra.EventBus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, ownerID uuid.UUID) <-chan infra.Event
}

type EventsHandler struct {
	bus          EventSubscriber
	pingInterval time.Duration
}

func NewEventsHandler(bus EventSubscriber) *EventsHandler {
	return &EventsHandler{bus: bus, pingInterval: ssePingInterval}
}

// Stream relays the caller's tenant events as Server-Sent Events until the
// client disconnects. Comment pings keep proxies from closing idle streams.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	events := h.bus.Subscribe(ctx, actorFrom(c).OwnerID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ping.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		}
	})
}
