package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-console/internal/console"
	"github.com/target/mmk-console/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// SessionEventsHandler streams guard decisions for one protected path as
// server-sent events, so an open page is evicted as soon as the session ends.
// When Location is set, console navigations are streamed as navigate events.
type SessionEventsHandler struct {
	Guard       *console.Guard
	Location    PathSource
	LandingPath string
	Heartbeat   time.Duration
	Logger      *slog.Logger
}

type decisionEvent struct {
	Decision console.Decision `json:"decision"`
	Location string           `json:"location,omitempty"`
}

type navigateEvent struct {
	Location string `json:"location"`
}

// ServeHTTP handles GET /session/events?path=/orders.
func (h *SessionEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("response does not support streaming"),
		})
		return
	}

	path := r.URL.Query().Get("path")
	if !service.IsSafeLocalPath(path) {
		path = h.LandingPath
	}
	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Holds at most the latest undelivered decision; onDecision runs on the
	// publishing goroutine and must not block.
	updates := make(chan console.Decision, 1)
	stop := h.Guard.Watch(r.Context(), func() string { return path }, func(d console.Decision) {
		select {
		case <-updates:
		default:
		}
		updates <- d
	})
	defer stop()

	// nil unless a Location is wired; a nil channel never fires.
	var navigations chan string
	if h.Location != nil {
		navigations = make(chan string, 1)
		unobserve := h.Location.Observe(func(p string) {
			select {
			case <-navigations:
			default:
			}
			select {
			case navigations <- p:
			default:
			}
		})
		defer unobserve()
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case d := <-updates:
			ev := decisionEvent{Decision: d}
			if d == console.DecisionRedirect {
				ev.Location = h.Guard.LoginPath()
			}
			if !writeEvent(w, flusher, "decision", ev, logger, r) {
				return
			}
		case p := <-navigations:
			if !writeEvent(w, flusher, "navigate", navigateEvent{Location: p}, logger, r) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent sends one named event and reports whether the stream is still usable.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, v any, logger *slog.Logger, r *http.Request) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.ErrorContext(r.Context(), "encode session event", "event", name, "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
