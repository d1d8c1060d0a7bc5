// Package agent defines the building blocks shared by the decision units:
// the closed set of actions an agent can emit, the trigger/act rule contract,
// and the capped unit that walks a bounded candidate list for one user.
// Concrete agents live in the subpackages.
package agent
