// Package environment maps incoming tool identifiers onto backend
// environments. The environment table is fixed at startup and shared
// read-only across invocations.
package environment

import "strings"

// Environment is one named pair of backend targets: an Axiom dataset for
// log queries and a database connection target for relational queries.
type Environment struct {
	// ID is the environment identifier ("dev", "prod").
	ID string

	// Prefix is the toolId prefix that selects this environment.
	// The default environment has an empty prefix.
	Prefix string

	// Dataset is the Axiom dataset (log namespace) for this environment.
	Dataset string

	// DatabaseURL is the connection target for the relational backend.
	DatabaseURL string
}

// Resolver decomposes a toolId into (environment, canonical operation).
// Resolution is a pure function of the toolId: longest matching prefix
// wins, declaration order breaks ties, and an unmatched toolId falls back
// to the default environment.
type Resolver struct {
	envs []Environment
	def  Environment
}

// NewResolver builds a resolver over the given environments. The first
// environment with an empty prefix is the default; environments must be
// non-empty.
func NewResolver(envs []Environment) *Resolver {
	r := &Resolver{envs: envs}
	for _, e := range envs {
		if e.Prefix == "" {
			r.def = e
			break
		}
	}
	return r
}

// Resolve returns the environment and canonical operation for a toolId.
func (r *Resolver) Resolve(toolID string) (Environment, string) {
	best := r.def
	bestLen := 0
	for _, e := range r.envs {
		if e.Prefix == "" {
			continue
		}
		if len(e.Prefix) > bestLen && strings.HasPrefix(toolID, e.Prefix) {
			best = e
			bestLen = len(e.Prefix)
		}
	}
	return best, toolID[bestLen:]
}

// Environments returns the full environment table in declaration order.
func (r *Resolver) Environments() []Environment {
	return r.envs
}

// Default returns the default (empty-prefix) environment.
func (r *Resolver) Default() Environment {
	return r.def
}
