package orchestrator

import (
	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/agent/cfo"
	"Freelance-Autopilot/internal/agent/collections"
	"Freelance-Autopilot/internal/agent/hunter"
	"Freelance-Autopilot/internal/agent/productivity"
	"Freelance-Autopilot/internal/agent/tax"
	"Freelance-Autopilot/internal/store"
)

// Policies 汇总各 Agent 的策略参数。
type Policies struct {
	Hunter       hunter.Policy       `json:"hunter" yaml:"hunter"`
	Collections  collections.Policy  `json:"collections" yaml:"collections"`
	CFO          cfo.Policy          `json:"cfo" yaml:"cfo"`
	Productivity productivity.Policy `json:"productivity" yaml:"productivity"`
	Tax          tax.Policy          `json:"tax" yaml:"tax"`
}

// DefaultPolicies 返回全部默认策略。
func DefaultPolicies() Policies {
	return Policies{
		Hunter:       hunter.DefaultPolicy(),
		Collections:  collections.DefaultPolicy(),
		CFO:          cfo.DefaultPolicy(),
		Productivity: productivity.DefaultPolicy(),
		Tax:          tax.DefaultPolicy(),
	}
}

// NewEngine 基于存储装配全部 Agent，返回编排器与动作执行器。
func NewEngine(st store.Store, policies Policies, env agent.Env, opts ...Option) (*Orchestrator, *Executor) {
	planner := productivity.New(st, policies.Productivity, env)
	units := []agent.Unit{
		hunter.NewUnit(st, policies.Hunter, env),
		collections.NewUnit(st, policies.Collections, env),
		cfo.NewUnit(st, policies.CFO, env),
		planner.Unit(),
		tax.NewUnit(st, policies.Tax, env),
	}
	return New(st, units, opts...), NewExecutor(st, planner, env)
}
