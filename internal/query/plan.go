// Package query turns a (canonical operation, validated arguments,
// environment) triple into an executable backend query plan. The APL
// branch escapes every user string before interpolation; the SQL branch
// binds every user value as a positional parameter. Static identifiers
// (dataset names, tables, columns) are code- or config-controlled and are
// the only things interpolated directly.
package query

import (
	"fmt"
	"time"

	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
)

// Plan is one synthesized backend query. Plans are built fresh per request
// and never cached: argument values differ call to call.
type Plan struct {
	Backend     registry.BackendKind
	Destructive bool
	DryRun      bool

	// Log backend. APL carries the pipeline query; TrimDuration, when
	// non-empty, selects the dataset trim endpoint instead (the only
	// mutating log operation).
	Dataset      string
	APL          string
	StartTime    time.Time
	EndTime      time.Time
	TrimDuration string

	// Relational backend. Exec marks a mutating statement whose result is
	// a row count rather than a row set.
	SQL    string
	Params []any
	Exec   bool

	// Preview sample for relational dry runs: a bounded read over the
	// same predicate as the mutation. Empty for log previews, which are
	// count-only.
	SampleSQL    string
	SampleParams []any
}

// ValidationError reports a missing or semantically invalid argument. It
// is always raised before any backend call.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Synthesizer builds plans. It holds only immutable configuration and is
// safe for concurrent use.
type Synthesizer struct {
	// ErrorPatterns are the substrings logs_errors matches against free
	// text. The upstream severity field has been observed empty, so error
	// classification is a configured heuristic, not a schema contract.
	ErrorPatterns []string

	// now is injectable for tests.
	now func() time.Time
}

// NewSynthesizer creates a Synthesizer with the given error patterns.
func NewSynthesizer(errorPatterns []string) *Synthesizer {
	return &Synthesizer{
		ErrorPatterns: errorPatterns,
		now:           time.Now,
	}
}

// Synthesize builds the plan for one invocation. For destructive
// operations with dryRun set, it produces the non-mutating preview plan
// instead of the mutation.
func (s *Synthesizer) Synthesize(desc *registry.ToolDescriptor, args map[string]any, dryRun bool) (*Plan, error) {
	if args == nil {
		args = map[string]any{}
	}
	switch desc.Backend {
	case registry.BackendLog:
		return s.synthesizeLog(desc, args, dryRun)
	case registry.BackendRelational:
		return s.synthesizeSQL(desc, args, dryRun)
	default:
		return nil, fmt.Errorf("query: unknown backend kind %q", desc.Backend)
	}
}

// argument accessors operating on decoded JSON values.

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return defaultVal
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
