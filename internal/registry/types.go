package registry

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
)

// BackendKind selects which execution adapter a descriptor routes to.
type BackendKind string

const (
	BackendLog        BackendKind = "log"
	BackendRelational BackendKind = "relational"
)

// Canonical operation names. ToolIds are these names with an environment
// prefix prepended.
const (
	OpLogsRecent           = "logs_recent"
	OpLogsSearch           = "logs_search"
	OpLogsErrors           = "logs_errors"
	OpLogsDatasetInfo      = "logs_getDatasetInfo"
	OpLogsDeleteBeforeDate = "logs_deleteBeforeDate"
	OpLogsClearAll         = "logs_clearAll"

	OpDBGetVideos           = "db_getVideos"
	OpDBGetVideo            = "db_getVideo"
	OpDBGetJobs             = "db_getJobs"
	OpDBDeleteVideos        = "db_deleteVideos"
	OpDBRetryAllJobs        = "db_retryAllJobs"
	OpDBCleanupOrphanedJobs = "db_cleanupOrphanedJobs"
)

// operationTemplate is an environment-independent tool definition. The
// registry instantiates one descriptor from each template per environment.
type operationTemplate struct {
	name        string
	description string
	backend     BackendKind
	destructive bool
	schema      json.RawMessage
}

// ToolDescriptor is one registered tool: a canonical operation bound to an
// environment. Descriptors are built once at registry construction and
// never mutated; they are safe to share across concurrent invocations.
type ToolDescriptor struct {
	ToolID      string
	CanonicalOp string
	Env         environment.Environment
	Backend     BackendKind
	Destructive bool
	Description string
	Schema      json.RawMessage

	compiled *jsonschema.Schema
}

// ValidateArguments checks decoded JSON arguments against the descriptor's
// parameter schema.
func (d *ToolDescriptor) ValidateArguments(args any) error {
	if args == nil {
		args = map[string]any{}
	}
	return d.compiled.Validate(args)
}
