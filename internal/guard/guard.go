// Package guard enforces dry-run-by-default for destructive operations.
// It runs before synthesis and execution: a destructive plan only mutates
// when the caller explicitly opted out of the preview.
package guard

import "github.com/FallSoftCo/axiom-mcp-server/internal/registry"

// Decision is the guard's verdict for one invocation.
type Decision struct {
	// Destructive mirrors the descriptor flag.
	Destructive bool

	// DryRun is true when the invocation must take the preview path.
	// Always false for non-destructive operations.
	DryRun bool

	// Overridden is true when the caller explicitly supplied
	// dryRun: false and accepted the mutation.
	Overridden bool
}

// Evaluate decides the dry-run mode for a descriptor and its arguments.
// Only an explicit boolean false in the dryRun argument disables the
// preview; absent, true, or non-boolean values all keep it on.
func Evaluate(desc *registry.ToolDescriptor, args map[string]any) Decision {
	if !desc.Destructive {
		return Decision{}
	}

	d := Decision{Destructive: true, DryRun: true}
	if v, ok := args["dryRun"].(bool); ok && !v {
		d.DryRun = false
		d.Overridden = true
	}
	return d
}
