// Package backend executes synthesized query plans against the two
// downstream systems: the Axiom log store and the per-environment Postgres
// databases. Calls are single-shot with no retries; failures surface once,
// immediately, as *Error.
package backend

import "fmt"

// Record is one result row, field name to value.
type Record map[string]any

// Error wraps a failed downstream call with enough detail to report it.
type Error struct {
	Backend string // "axiom" or "postgres"
	Status  int    // HTTP status for axiom, 0 for postgres
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend: status %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend: %s", e.Backend, e.Message)
}
