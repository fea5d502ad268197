// Package registry holds the full set of tool descriptors. A small number
// of operation templates is instantiated against every known environment,
// so per-environment tools never need separate definitions.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
)

// ErrNotFound is returned by Lookup for toolIds with no descriptor.
var ErrNotFound = errors.New("tool not found")

// templates lists every canonical operation. Order here is the order tools
// are listed to clients.
var templates = []operationTemplate{
	{
		name:        OpLogsRecent,
		description: "Get the most recent log events from the dataset.",
		backend:     BackendLog,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "maximum": 500, "description": "Maximum number of events to return (default 20)"}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpLogsSearch,
		description: "Search log events for a substring, newest first.",
		backend:     BackendLog,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "minLength": 1, "description": "Substring to search for in log messages"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 500},
				"startTime": {"type": "string", "description": "RFC3339 window start (default: 24h ago)"},
				"endTime": {"type": "string", "description": "RFC3339 window end (default: now)"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
	},
	{
		name:        OpLogsErrors,
		description: "Get log events matching known error patterns, newest first.",
		backend:     BackendLog,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "maximum": 500},
				"startTime": {"type": "string"},
				"endTime": {"type": "string"}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpLogsDatasetInfo,
		description: "Summarize the dataset: event count and time span.",
		backend:     BackendLog,
		schema:      json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`),
	},
	{
		name:        OpLogsDeleteBeforeDate,
		description: "Delete all log events older than a date. Dry-run by default.",
		backend:     BackendLog,
		destructive: true,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"beforeDate": {"type": "string", "description": "RFC3339 timestamp; events older than this are deleted"},
				"dryRun": {"type": "boolean", "description": "Set false to actually delete (default true)"}
			},
			"required": ["beforeDate"],
			"additionalProperties": false
		}`),
	},
	{
		name:        OpLogsClearAll,
		description: "Delete all log events in the dataset. Dry-run by default.",
		backend:     BackendLog,
		destructive: true,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dryRun": {"type": "boolean"}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBGetVideos,
		description: "List videos, optionally filtered by status or channel.",
		backend:     BackendRelational,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"status": {"type": "string"},
				"channelId": {"type": "string"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 500}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBGetVideo,
		description: "Get a single video by YouTube id.",
		backend:     BackendRelational,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ytId": {"type": "string", "minLength": 1}
			},
			"required": ["ytId"],
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBGetJobs,
		description: "List processing jobs, optionally filtered by status.",
		backend:     BackendRelational,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"status": {"type": "string"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 500}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBDeleteVideos,
		description: "Delete videos by YouTube id. Dry-run by default.",
		backend:     BackendRelational,
		destructive: true,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ytIds": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
				"dryRun": {"type": "boolean"}
			},
			"required": ["ytIds"],
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBRetryAllJobs,
		description: "Reset all failed jobs to pending. Dry-run by default.",
		backend:     BackendRelational,
		destructive: true,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dryRun": {"type": "boolean"}
			},
			"additionalProperties": false
		}`),
	},
	{
		name:        OpDBCleanupOrphanedJobs,
		description: "Delete jobs whose video no longer exists. Dry-run by default.",
		backend:     BackendRelational,
		destructive: true,
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dryRun": {"type": "boolean"}
			},
			"additionalProperties": false
		}`),
	},
}

// Registry is the immutable set of tool descriptors, keyed by toolId.
type Registry struct {
	byID  map[string]*ToolDescriptor
	order []*ToolDescriptor
}

// New instantiates every operation template against every environment and
// compiles each parameter schema once. ToolIds must come out unique.
func New(envs []environment.Environment) (*Registry, error) {
	r := &Registry{byID: make(map[string]*ToolDescriptor, len(templates)*len(envs))}

	for _, env := range envs {
		for _, tmpl := range templates {
			toolID := env.Prefix + tmpl.name
			if _, exists := r.byID[toolID]; exists {
				return nil, fmt.Errorf("registry: duplicate toolId %q", toolID)
			}

			compiled, err := compileSchema(toolID, tmpl.schema)
			if err != nil {
				return nil, fmt.Errorf("registry: %s: %w", toolID, err)
			}

			desc := &ToolDescriptor{
				ToolID:      toolID,
				CanonicalOp: tmpl.name,
				Env:         env,
				Backend:     tmpl.backend,
				Destructive: tmpl.destructive,
				Description: describeForEnv(tmpl.description, env),
				Schema:      tmpl.schema,
				compiled:    compiled,
			}
			r.byID[toolID] = desc
			r.order = append(r.order, desc)
		}
	}

	return r, nil
}

// Lookup returns the descriptor for a toolId, or ErrNotFound.
func (r *Registry) Lookup(toolID string) (*ToolDescriptor, error) {
	desc, ok := r.byID[toolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, toolID)
	}
	return desc, nil
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []*ToolDescriptor {
	return r.order
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

func describeForEnv(desc string, env environment.Environment) string {
	if env.Prefix == "" {
		return desc
	}
	return desc + " (" + env.ID + " environment)"
}
