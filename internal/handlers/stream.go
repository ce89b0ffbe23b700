package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"buntee/internal/store"
)

const keepAliveEvery = 25 * time.Second

type sseEvent struct {
	name  string
	data  any
	final bool
}

func sseError(err error) sseEvent {
	if errors.Is(err, store.ErrPermissionDenied) {
		return sseEvent{name: "permission-error", data: gin.H{"error": "Missing or insufficient permissions."}, final: true}
	}
	return sseEvent{name: "stream-error", data: gin.H{"error": "Live updates stopped."}, final: true}
}

// eventQueue keeps only the newest pending snapshot so a slow client never
// blocks the store. Pushes come from a single subscription and never overlap.
type eventQueue struct {
	ch chan sseEvent
}

func newEventQueue() *eventQueue {
	return &eventQueue{ch: make(chan sseEvent, 1)}
}

func (q *eventQueue) push(ev sseEvent) {
	select {
	case <-q.ch:
	default:
	}
	q.ch <- ev
}

// stream writes queued events until the client leaves or a final event is sent.
func (h *HTTPHandler) stream(c *gin.Context, q *eventQueue) {
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case ev := <-q.ch:
			c.SSEvent(ev.name, ev.data)
			return !ev.final
		}
	})
}
