package query

import (
	"fmt"
	"strings"

	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
)

const sampleRows = 5

// Column lists are static identifiers. User data never reaches query text
// on this branch: every caller value binds through a positional $n
// placeholder.
const (
	videoColumns = "yt_id, title, channel_id, status, duration_seconds, published_at, created_at"
	jobColumns   = "id, yt_id, kind, status, attempts, last_error, created_at, updated_at"

	orphanedJobsPredicate = "NOT EXISTS (SELECT 1 FROM videos v WHERE v.yt_id = jobs.yt_id)"
)

// conjunction accumulates WHERE predicates, each bound to one sequential
// positional placeholder.
type conjunction struct {
	conds  []string
	params []any
}

// add appends a predicate; expr must contain a single %d verb for the
// placeholder index.
func (c *conjunction) add(expr string, value any) {
	c.params = append(c.params, value)
	c.conds = append(c.conds, fmt.Sprintf(expr, len(c.params)))
}

// clause renders the WHERE clause, or an empty string when no predicates
// are present.
func (c *conjunction) clause() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

// placeholderList renders $1..$n for IN lists, binding each value.
func (c *conjunction) placeholderList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		c.params = append(c.params, v)
		parts[i] = fmt.Sprintf("$%d", len(c.params))
	}
	return strings.Join(parts, ", ")
}

func (s *Synthesizer) synthesizeSQL(desc *registry.ToolDescriptor, args map[string]any, dryRun bool) (*Plan, error) {
	switch desc.CanonicalOp {
	case registry.OpDBGetVideos:
		var c conjunction
		if status, ok := stringArg(args, "status"); ok && status != "" {
			c.add("status = $%d", status)
		}
		if channel, ok := stringArg(args, "channelId"); ok && channel != "" {
			c.add("channel_id = $%d", channel)
		}
		limit := len(c.params) + 1
		c.params = append(c.params, intArg(args, "limit", defaultLimit))
		return &Plan{
			Backend: registry.BackendRelational,
			SQL: fmt.Sprintf("SELECT %s FROM videos%s ORDER BY published_at DESC LIMIT $%d",
				videoColumns, c.clause(), limit),
			Params: c.params,
		}, nil

	case registry.OpDBGetVideo:
		ytID, ok := stringArg(args, "ytId")
		if !ok || ytID == "" {
			return nil, validationf("db_getVideo: ytId is required")
		}
		return &Plan{
			Backend: registry.BackendRelational,
			SQL:     fmt.Sprintf("SELECT %s FROM videos WHERE yt_id = $1 LIMIT 1", videoColumns),
			Params:  []any{ytID},
		}, nil

	case registry.OpDBGetJobs:
		var c conjunction
		if status, ok := stringArg(args, "status"); ok && status != "" {
			c.add("status = $%d", status)
		}
		limit := len(c.params) + 1
		c.params = append(c.params, intArg(args, "limit", defaultLimit))
		return &Plan{
			Backend: registry.BackendRelational,
			SQL: fmt.Sprintf("SELECT %s FROM jobs%s ORDER BY created_at DESC LIMIT $%d",
				jobColumns, c.clause(), limit),
			Params: c.params,
		}, nil

	case registry.OpDBDeleteVideos:
		ytIDs := stringSliceArg(args, "ytIds")
		if len(ytIDs) == 0 {
			return nil, validationf("db_deleteVideos: ytIds must be a non-empty array of strings")
		}
		if dryRun {
			var count, sample conjunction
			countList := count.placeholderList(ytIDs)
			sampleList := sample.placeholderList(ytIDs)
			return &Plan{
				Backend:      registry.BackendRelational,
				Destructive:  true,
				DryRun:       true,
				SQL:          fmt.Sprintf("SELECT count(*) AS count FROM videos WHERE yt_id IN (%s)", countList),
				Params:       count.params,
				SampleSQL:    fmt.Sprintf("SELECT yt_id, title, status FROM videos WHERE yt_id IN (%s) LIMIT %d", sampleList, sampleRows),
				SampleParams: sample.params,
			}, nil
		}
		var c conjunction
		list := c.placeholderList(ytIDs)
		return &Plan{
			Backend:     registry.BackendRelational,
			Destructive: true,
			SQL:         fmt.Sprintf("DELETE FROM videos WHERE yt_id IN (%s)", list),
			Params:      c.params,
			Exec:        true,
		}, nil

	case registry.OpDBRetryAllJobs:
		if dryRun {
			return &Plan{
				Backend:     registry.BackendRelational,
				Destructive: true,
				DryRun:      true,
				SQL:         "SELECT count(*) AS count FROM jobs WHERE status = 'failed'",
				SampleSQL: fmt.Sprintf("SELECT id, yt_id, kind, last_error FROM jobs WHERE status = 'failed' ORDER BY updated_at DESC LIMIT %d",
					sampleRows),
			}, nil
		}
		return &Plan{
			Backend:     registry.BackendRelational,
			Destructive: true,
			SQL:         "UPDATE jobs SET status = 'pending', attempts = 0, updated_at = now() WHERE status = 'failed'",
			Exec:        true,
		}, nil

	case registry.OpDBCleanupOrphanedJobs:
		if dryRun {
			return &Plan{
				Backend:     registry.BackendRelational,
				Destructive: true,
				DryRun:      true,
				SQL:         fmt.Sprintf("SELECT count(*) AS count FROM jobs WHERE %s", orphanedJobsPredicate),
				SampleSQL: fmt.Sprintf("SELECT id, yt_id, kind, status FROM jobs WHERE %s LIMIT %d",
					orphanedJobsPredicate, sampleRows),
			}, nil
		}
		return &Plan{
			Backend:     registry.BackendRelational,
			Destructive: true,
			SQL:         fmt.Sprintf("DELETE FROM jobs WHERE %s", orphanedJobsPredicate),
			Exec:        true,
		}, nil

	default:
		return nil, fmt.Errorf("query: no relational synthesis for operation %q", desc.CanonicalOp)
	}
}
