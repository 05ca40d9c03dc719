// Package metrics records Prometheus metrics for agent runs, model requests
// and tool calls through agent loop callbacks.
package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/tool"
)

// Recorder owns the agent metric collectors.
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	runs          *prometheus.CounterVec
	runTurns      *prometheus.HistogramVec
	modelRequests *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	modelTokens   *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolLatency   *prometheus.HistogramVec
}

// NewRecorder creates a recorder and registers its collectors with registry.
// It returns nil when registry is nil.
func NewRecorder(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		return nil
	}

	r := &Recorder{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_runs_total",
				Help: "Total number of agent runs by outcome",
			},
			[]string{"agent", "outcome"},
		),
		runTurns: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_run_turns",
				Help:    "Model turns taken per agent run",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"agent"},
		),
		modelRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_requests_total",
				Help: "Total number of model requests by status",
			},
			[]string{"agent", "status"},
		),
		modelLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_model_request_duration_seconds",
				Help:    "Latency of model requests",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"agent"},
		),
		modelTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_tokens_total",
				Help: "Tokens consumed by model requests",
			},
			[]string{"agent", "kind"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total number of tool calls by status",
			},
			[]string{"agent", "tool", "status"},
		),
		toolLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_call_duration_seconds",
				Help:    "Latency of tool calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "tool"},
		),
	}

	registry.MustRegister(
		r.runs,
		r.runTurns,
		r.modelRequests,
		r.modelLatency,
		r.modelTokens,
		r.toolCalls,
		r.toolLatency,
	)

	return r
}

// Callbacks returns the agent callbacks feeding the recorder. Register them
// on every agent whose activity should be observed.
func (r *Recorder) Callbacks() []agent.Callback {
	if r == nil {
		return nil
	}

	return []agent.Callback{
		agent.NewFunctionCallback(agent.CallbackAfterModel, r.afterModel),
		agent.NewFunctionCallback(agent.CallbackOnError, r.onError),
		agent.NewFunctionCallback(agent.CallbackAfterTool, r.afterTool),
		agent.NewFunctionCallback(agent.CallbackAfterAgent, r.afterAgent),
	}
}

func (r *Recorder) afterModel(_ context.Context, cc *agent.CallbackContext) error {
	r.modelRequests.WithLabelValues(cc.AgentName, "ok").Inc()
	r.modelLatency.WithLabelValues(cc.AgentName).Observe(cc.Duration.Seconds())

	if cc.Response != nil && cc.Response.Usage != nil {
		u := cc.Response.Usage
		r.modelTokens.WithLabelValues(cc.AgentName, "prompt").Add(float64(u.PromptTokens))
		r.modelTokens.WithLabelValues(cc.AgentName, "completion").Add(float64(u.CompletionTokens))
	}

	return nil
}

// onError counts failed model requests. Failed tool calls are counted by
// afterTool, which also sees them.
func (r *Recorder) onError(_ context.Context, cc *agent.CallbackContext) error {
	if cc.ToolCall != nil {
		return nil
	}

	r.modelRequests.WithLabelValues(cc.AgentName, "error").Inc()
	r.modelLatency.WithLabelValues(cc.AgentName).Observe(cc.Duration.Seconds())

	return nil
}

func (r *Recorder) afterTool(_ context.Context, cc *agent.CallbackContext) error {
	if cc.ToolCall == nil {
		return nil
	}

	r.toolCalls.WithLabelValues(cc.AgentName, cc.ToolCall.Name, toolStatus(cc.Err)).Inc()
	r.toolLatency.WithLabelValues(cc.AgentName, cc.ToolCall.Name).Observe(cc.Duration.Seconds())

	return nil
}

func (r *Recorder) afterAgent(_ context.Context, cc *agent.CallbackContext) error {
	if cc.Result == nil {
		return nil
	}

	r.runs.WithLabelValues(cc.AgentName, string(cc.Result.Outcome)).Inc()
	r.runTurns.WithLabelValues(cc.AgentName).Observe(float64(cc.Result.Turns))

	return nil
}

func toolStatus(err error) string {
	if err == nil {
		return "ok"
	}

	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) && toolErr.Code != "" {
		return strings.ToLower(toolErr.Code)
	}

	return "error"
}
