// Package dispatch orchestrates a tool invocation end to end: resolve the
// environment, look up the descriptor, validate arguments, synthesize a
// query plan, execute it against the right backend, and shape the result.
// Every failure converts to a StructuredError at this boundary.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FallSoftCo/axiom-mcp-server/internal/backend"
	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
	"github.com/FallSoftCo/axiom-mcp-server/internal/guard"
	"github.com/FallSoftCo/axiom-mcp-server/internal/query"
	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
	"github.com/FallSoftCo/axiom-mcp-server/internal/shape"
	"github.com/FallSoftCo/axiom-mcp-server/internal/storage"
)

// LogBackend executes plans against the log store.
type LogBackend interface {
	Query(ctx context.Context, apl string, start, end time.Time) ([]backend.Record, error)
	Trim(ctx context.Context, dataset, maxDuration string) error
}

// RelationalBackend executes plans against the per-environment databases.
type RelationalBackend interface {
	Query(ctx context.Context, envID, sqlText string, params []any) ([]backend.Record, error)
	Exec(ctx context.Context, envID, sqlText string, params []any) (int64, error)
}

// Response is the single invocation result shape: exactly one of Result or
// Err is set.
type Response struct {
	Result *shape.Result    `json:"result,omitempty"`
	Err    *StructuredError `json:"error,omitempty"`
}

// preview reports what a destructive operation would touch without running it.
type preview struct {
	Count  int64            `json:"count"`
	Sample []backend.Record `json:"sample,omitempty"`
}

// Dispatcher wires the engine together. It holds no per-invocation state;
// a single instance serves concurrent calls.
type Dispatcher struct {
	registry *registry.Registry
	resolver *environment.Resolver
	synth    *query.Synthesizer
	logs     LogBackend
	db       RelationalBackend
	shaper   *shape.Shaper
	events   storage.EventWriter
	logger   *zap.Logger
}

func New(reg *registry.Registry, resolver *environment.Resolver, synth *query.Synthesizer, logs LogBackend, db RelationalBackend, shaper *shape.Shaper, events storage.EventWriter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		resolver: resolver,
		synth:    synth,
		logs:     logs,
		db:       db,
		shaper:   shaper,
		events:   events,
		logger:   logger,
	}
}

// Invoke runs one tool call. It never returns a Go error: failures are
// reported through Response.Err so the transport layer can serialize them
// uniformly.
func (d *Dispatcher) Invoke(ctx context.Context, toolID string, args map[string]any) *Response {
	started := time.Now()
	event := &storage.InvocationEvent{
		RequestID: uuid.NewString(),
		Timestamp: started,
		ToolID:    toolID,
	}

	resp := d.invoke(ctx, event, toolID, args)

	event.LatencyMs = float32(time.Since(started).Seconds() * 1000)
	if resp.Err != nil {
		event.ErrorKind = string(resp.Err.Kind)
	}
	if resp.Result != nil {
		event.Truncated = resp.Result.Truncated
		event.ResultBytes = int32(resp.Result.OriginalSize)
	}
	d.events.Write(event)
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, event *storage.InvocationEvent, toolID string, args map[string]any) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("invocation panic",
				zap.String("request_id", event.RequestID),
				zap.String("tool_id", toolID),
				zap.Any("panic", r))
			resp = &Response{Err: newError(KindBackend, fmt.Sprintf("internal error: %v", r))}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	env, canonicalOp := d.resolver.Resolve(toolID)
	event.CanonicalOp = canonicalOp
	event.Environment = env.ID
	desc, err := d.registry.Lookup(env.Prefix + canonicalOp)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return &Response{Err: newError(KindUnknownOperation, fmt.Sprintf("unknown tool %q", toolID))}
		}
		return &Response{Err: newError(KindBackend, err.Error())}
	}

	event.Backend = string(desc.Backend)
	event.Destructive = desc.Destructive

	if err := desc.ValidateArguments(args); err != nil {
		return &Response{Err: newError(KindValidation, err.Error())}
	}

	decision := guard.Evaluate(desc, args)
	event.DryRun = decision.DryRun
	plan, err := d.synth.Synthesize(desc, args, decision.DryRun)
	if err != nil {
		var verr *query.ValidationError
		if errors.As(err, &verr) {
			return &Response{Err: newError(KindValidation, verr.Error())}
		}
		return &Response{Err: newError(KindBackend, err.Error())}
	}

	d.logger.Info("dispatch",
		zap.String("request_id", event.RequestID),
		zap.String("tool_id", desc.ToolID),
		zap.String("operation", desc.CanonicalOp),
		zap.String("environment", desc.Env.ID),
		zap.Bool("destructive", decision.Destructive),
		zap.Bool("dry_run", decision.DryRun))

	var payload any
	if decision.DryRun {
		payload, err = d.executePreview(ctx, desc, plan)
	} else {
		payload, err = d.execute(ctx, desc, plan)
	}
	if err != nil {
		d.logger.Warn("backend call failed",
			zap.String("request_id", event.RequestID),
			zap.String("tool_id", desc.ToolID),
			zap.Error(err))
		return &Response{Err: newError(KindBackend, err.Error())}
	}

	shaped, err := d.shaper.Shape(payload)
	if err != nil {
		return &Response{Err: newError(KindShaping, err.Error())}
	}
	return &Response{Result: shaped}
}

// execute runs the plan for real.
func (d *Dispatcher) execute(ctx context.Context, desc *registry.ToolDescriptor, plan *query.Plan) (any, error) {
	switch plan.Backend {
	case registry.BackendLog:
		if plan.TrimDuration != "" {
			if err := d.logs.Trim(ctx, plan.Dataset, plan.TrimDuration); err != nil {
				return nil, err
			}
			return map[string]any{"status": "trimmed", "maxDuration": plan.TrimDuration}, nil
		}
		return d.logs.Query(ctx, plan.APL, plan.StartTime, plan.EndTime)
	case registry.BackendRelational:
		if plan.Exec {
			affected, err := d.db.Exec(ctx, desc.Env.ID, plan.SQL, plan.Params)
			if err != nil {
				return nil, err
			}
			return map[string]any{"rowsAffected": affected}, nil
		}
		return d.db.Query(ctx, desc.Env.ID, plan.SQL, plan.Params)
	default:
		return nil, fmt.Errorf("unrouted backend %q", plan.Backend)
	}
}

// executePreview runs the plan's counting form and, where the plan carries
// one, a sample query. Nothing is mutated.
func (d *Dispatcher) executePreview(ctx context.Context, desc *registry.ToolDescriptor, plan *query.Plan) (any, error) {
	p := preview{}
	switch plan.Backend {
	case registry.BackendLog:
		records, err := d.logs.Query(ctx, plan.APL, plan.StartTime, plan.EndTime)
		if err != nil {
			return nil, err
		}
		p.Count = extractCount(records, "affected")
	case registry.BackendRelational:
		records, err := d.db.Query(ctx, desc.Env.ID, plan.SQL, plan.Params)
		if err != nil {
			return nil, err
		}
		p.Count = extractCount(records, "count")
		if plan.SampleSQL != "" {
			sample, err := d.db.Query(ctx, desc.Env.ID, plan.SampleSQL, plan.SampleParams)
			if err != nil {
				return nil, err
			}
			p.Sample = sample
		}
	default:
		return nil, fmt.Errorf("unrouted backend %q", plan.Backend)
	}
	return map[string]any{"dryRun": true, "wouldAffect": p}, nil
}

// extractCount reads the count column from a one-row aggregate result. The
// log backend decodes numbers as float64, the relational one as int64.
func extractCount(records []backend.Record, key string) int64 {
	if len(records) == 0 {
		return 0
	}
	switch v := records[0][key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}
