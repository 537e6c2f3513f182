package metrics

import (
	"time"

	obserrors "github.com/target/mmk-console/internal/observability/errors"
	"github.com/target/mmk-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	// ResultStale marks a refresh whose outcome was discarded because a newer
	// login or logout happened while it was in flight.
	ResultStale = "stale"
)

// Session operations.
const (
	OpRefresh = "refresh"
	OpLogin   = "login"
	OpLogout  = "logout"
)

// SessionMetric captures one SessionController operation for metric emission.
type SessionMetric struct {
	Op       string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitSession emits standardised session operation metrics.
func EmitSession(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"op":     in.Op,
		"result": in.Result,
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.op", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.duration", in.Duration, CloneTags(tags))
	}
}

// EmitGuardDecision counts a RouteGuard outcome.
func EmitGuardDecision(sink statsd.Sink, decision string) {
	if sink == nil {
		return
	}
	sink.Count("guard.decision", 1, map[string]string{"decision": decision})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
