package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Agent step outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
	OutcomeCancelled = "cancelled"
)

var (
	agentSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopilot",
		Name:      "agent_steps_total",
		Help:      "Agent steps grouped by agent and outcome.",
	}, []string{"agent", "outcome"})

	agentLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autopilot",
		Name:      "agent_step_duration_seconds",
		Help:      "Agent step duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"agent"})

	actionsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopilot",
		Name:      "actions_total",
		Help:      "Actions emitted by agents grouped by kind.",
	}, []string{"agent", "kind"})

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopilot",
		Name:      "runs_total",
		Help:      "Orchestrator runs grouped by status.",
	}, []string{"status"})

	textGenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopilot",
		Name:      "text_generation_total",
		Help:      "Text generation calls grouped by outcome.",
	}, []string{"outcome"})

	textGenerationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autopilot",
		Name:      "text_generation_duration_seconds",
		Help:      "Text generation latency in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"outcome"})
)

// ObserveAgentStep 记录一次智能体执行的结果与耗时。
func ObserveAgentStep(agent, outcome string, duration time.Duration) {
	agentSteps.WithLabelValues(agent, outcome).Inc()
	agentLatency.WithLabelValues(agent).Observe(duration.Seconds())
}

// ObserveAction 记录一个产出的动作。
func ObserveAction(agent, kind string) {
	actionsEmitted.WithLabelValues(agent, kind).Inc()
}

// ObserveRun 记录一次编排运行的最终状态。
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// TextGeneration 将文本生成结果写入指标，满足 llm.Observer。
type TextGeneration struct{}

// ObserveTextGeneration 记录一次文本生成调用。
func (TextGeneration) ObserveTextGeneration(outcome string, duration time.Duration) {
	textGenerations.WithLabelValues(outcome).Inc()
	textGenerationLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}
