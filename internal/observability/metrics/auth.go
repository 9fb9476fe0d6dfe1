package metrics

import (
	"time"

	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	// ResultMiss marks a lookup that completed but found no record.
	ResultMiss = "miss"
)

// Flow constants for auth metric tagging.
const (
	FlowPasswordSignIn = "password_sign_in"
	FlowRegistration   = "registration"
	FlowFederated      = "federated"
	FlowSignOut        = "sign_out"
)

// AuthFlowMetric captures details about one auth flow for metric emission.
type AuthFlowMetric struct {
	Flow     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitAuthFlow emits standardised auth flow metrics.
func EmitAuthFlow(sink statsd.Sink, in AuthFlowMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"flow":   in.Flow,
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if code := errorsx.GetCode(in.Err); code != "" {
			tags["error_code"] = string(code)
		}
	}

	sink.Count("auth.flow", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.flow_duration", in.Duration, cloneTags(tags))
	}
}

// EmitRoleResolution emits one counter per finished role lookup.
func EmitRoleResolution(sink statsd.Sink, result string, duration time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	sink.Count("roles.resolution", 1, tags)
	if duration > 0 {
		sink.Timing("roles.resolution_duration", duration, cloneTags(tags))
	}
}

// EmitSessionRestore counts attempts to revive a persisted session.
func EmitSessionRestore(sink statsd.Sink, result string) {
	if sink == nil {
		return
	}
	sink.Count("session.restore", 1, map[string]string{"result": result})
}

func cloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
