package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
)

const (
	defaultLimit  = 20
	defaultWindow = 24 * time.Hour

	// previewLookback bounds the count window for destructive previews.
	previewLookback = 10 * 365 * 24 * time.Hour

	// clearAllRetention is the trim duration that removes everything.
	clearAllRetention = "1s"
)

// escapeAPL makes a user string safe for interpolation inside a
// double-quoted APL string literal. APL has no parameter binding, so this
// is the entire injection defense for the log branch: backslashes first,
// then quotes, then control characters that would split the literal.
func escapeAPL(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

func (s *Synthesizer) synthesizeLog(desc *registry.ToolDescriptor, args map[string]any, dryRun bool) (*Plan, error) {
	plan, err := s.logPlan(desc, args, dryRun)
	if err != nil {
		return nil, err
	}
	plan.Dataset = desc.Env.Dataset
	return plan, nil
}

func (s *Synthesizer) logPlan(desc *registry.ToolDescriptor, args map[string]any, dryRun bool) (*Plan, error) {
	dataset := fmt.Sprintf("['%s']", desc.Env.Dataset)

	switch desc.CanonicalOp {
	case registry.OpLogsRecent:
		start, end, err := s.timeWindow(args)
		if err != nil {
			return nil, err
		}
		return &Plan{
			Backend:   registry.BackendLog,
			APL:       fmt.Sprintf("%s | sort by _time desc | limit %d", dataset, intArg(args, "limit", defaultLimit)),
			StartTime: start,
			EndTime:   end,
		}, nil

	case registry.OpLogsSearch:
		q, ok := stringArg(args, "query")
		if !ok || q == "" {
			return nil, validationf("logs_search: query is required")
		}
		start, end, err := s.timeWindow(args)
		if err != nil {
			return nil, err
		}
		return &Plan{
			Backend: registry.BackendLog,
			APL: fmt.Sprintf(`%s | where message contains "%s" | sort by _time desc | limit %d`,
				dataset, escapeAPL(q), intArg(args, "limit", defaultLimit)),
			StartTime: start,
			EndTime:   end,
		}, nil

	case registry.OpLogsErrors:
		start, end, err := s.timeWindow(args)
		if err != nil {
			return nil, err
		}
		clauses := make([]string, 0, len(s.ErrorPatterns))
		for _, p := range s.ErrorPatterns {
			clauses = append(clauses, fmt.Sprintf(`message contains "%s"`, escapeAPL(p)))
		}
		return &Plan{
			Backend: registry.BackendLog,
			APL: fmt.Sprintf("%s | where %s | sort by _time desc | limit %d",
				dataset, strings.Join(clauses, " or "), intArg(args, "limit", defaultLimit)),
			StartTime: start,
			EndTime:   end,
		}, nil

	case registry.OpLogsDatasetInfo:
		now := s.now().UTC()
		return &Plan{
			Backend:   registry.BackendLog,
			APL:       fmt.Sprintf("%s | summarize events = count(), earliest = min(_time), latest = max(_time)", dataset),
			StartTime: now.Add(-previewLookback),
			EndTime:   now,
		}, nil

	case registry.OpLogsDeleteBeforeDate:
		raw, ok := stringArg(args, "beforeDate")
		if !ok || raw == "" {
			return nil, validationf("logs_deleteBeforeDate: beforeDate is required")
		}
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, validationf("logs_deleteBeforeDate: beforeDate %q is not a valid RFC3339 timestamp", raw)
		}
		now := s.now().UTC()
		if !before.Before(now) {
			return nil, validationf("logs_deleteBeforeDate: beforeDate %q must be in the past", raw)
		}

		if dryRun {
			return &Plan{
				Backend:     registry.BackendLog,
				Destructive: true,
				DryRun:      true,
				APL:         fmt.Sprintf("%s | summarize affected = count()", dataset),
				StartTime:   now.Add(-previewLookback),
				EndTime:     before.UTC(),
			}, nil
		}

		// The trim endpoint keeps events newer than maxDuration, so the
		// retention window is derived deterministically from now.
		retain := now.Sub(before.UTC())
		return &Plan{
			Backend:      registry.BackendLog,
			Destructive:  true,
			TrimDuration: formatTrimDuration(retain),
		}, nil

	case registry.OpLogsClearAll:
		if dryRun {
			now := s.now().UTC()
			return &Plan{
				Backend:     registry.BackendLog,
				Destructive: true,
				DryRun:      true,
				APL:         fmt.Sprintf("%s | summarize affected = count()", dataset),
				StartTime:   now.Add(-previewLookback),
				EndTime:     now,
			}, nil
		}
		return &Plan{
			Backend:      registry.BackendLog,
			Destructive:  true,
			TrimDuration: clearAllRetention,
		}, nil

	default:
		return nil, fmt.Errorf("query: no log synthesis for operation %q", desc.CanonicalOp)
	}
}

// timeWindow reads startTime/endTime arguments, defaulting to the last 24
// hours ending now.
func (s *Synthesizer) timeWindow(args map[string]any) (time.Time, time.Time, error) {
	end := s.now().UTC()
	if raw, ok := stringArg(args, "endTime"); ok && raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, validationf("endTime %q is not a valid RFC3339 timestamp", raw)
		}
		end = t.UTC()
	}

	start := end.Add(-defaultWindow)
	if raw, ok := stringArg(args, "startTime"); ok && raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, validationf("startTime %q is not a valid RFC3339 timestamp", raw)
		}
		start = t.UTC()
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, validationf("startTime must be before endTime")
	}
	return start, end, nil
}

// formatTrimDuration renders a retention window as the duration string the
// trim endpoint accepts. Sub-second remainders round up so the trimmed
// window never exceeds what the caller asked to delete.
func formatTrimDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%ds", secs)
}
