package query

import (
	"strings"
	"testing"
	"time"

	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
)

var fixedNow = time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

func testSynthesizer() *Synthesizer {
	s := NewSynthesizer([]string{"error", "panic"})
	s.now = func() time.Time { return fixedNow }
	return s
}

func testDescriptor(t *testing.T, toolID string) *registry.ToolDescriptor {
	t.Helper()
	r, err := registry.New([]environment.Environment{
		{ID: "dev", Prefix: "", Dataset: "logs", DatabaseURL: "postgres://dev/app"},
		{ID: "prod", Prefix: "prod_", Dataset: "logs-prod", DatabaseURL: "postgres://prod/app"},
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Lookup(toolID)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestLogsRecent(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_recent"), map[string]any{"limit": float64(5)}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := "['logs'] | sort by _time desc | limit 5"
	if plan.APL != want {
		t.Fatalf("unexpected APL:\n got %s\nwant %s", plan.APL, want)
	}
	if plan.Destructive || plan.DryRun {
		t.Fatal("logs_recent must not be destructive")
	}
	if plan.EndTime != fixedNow {
		t.Fatalf("expected window ending now, got %v", plan.EndTime)
	}
	if plan.StartTime != fixedNow.Add(-24*time.Hour) {
		t.Fatalf("expected 24h default window, got %v", plan.StartTime)
	}
}

func TestLogsRecent_DefaultLimit(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_recent"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(plan.APL, "limit 20") {
		t.Fatalf("expected default limit 20, got %s", plan.APL)
	}
}

func TestLogsSearch_UsesEnvironmentDataset(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "prod_logs_search"), map[string]any{"query": "timeout"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(plan.APL, "['logs-prod']") {
		t.Fatalf("expected prod dataset selector, got %s", plan.APL)
	}
	if !strings.Contains(plan.APL, `where message contains "timeout"`) {
		t.Fatalf("missing filter clause: %s", plan.APL)
	}
}

func TestLogsSearch_HostileStringStaysInsideLiteral(t *testing.T) {
	s := testSynthesizer()
	hostile := `" or _time > ago(1d) // \` + "\ninjected"
	plan, err := s.Synthesize(testDescriptor(t, "logs_search"), map[string]any{"query": hostile}, false)
	if err != nil {
		t.Fatal(err)
	}

	// The raw payload must not appear; its escaped form must.
	if strings.Contains(plan.APL, hostile) {
		t.Fatalf("raw hostile string leaked into query: %s", plan.APL)
	}
	if strings.Contains(plan.APL, "\n") {
		t.Fatalf("unescaped newline splits the literal: %q", plan.APL)
	}

	// Clause boundaries unaffected: still exactly one where stage between
	// the selector and the sort stage.
	stages := strings.Split(plan.APL, " | ")
	if len(stages) != 4 {
		t.Fatalf("expected 4 pipeline stages, got %d: %q", len(stages), plan.APL)
	}
	if !strings.HasPrefix(stages[1], "where ") {
		t.Fatalf("second stage should be the filter, got %q", stages[1])
	}
}

func TestEscapeAPL_BackslashBeforeQuote(t *testing.T) {
	// Escaping quotes before backslashes would double-escape; verify order.
	got := escapeAPL(`\"`)
	if got != `\\\"` {
		t.Fatalf("expected %q, got %q", `\\\"`, got)
	}
}

func TestLogsErrors_PatternDisjunction(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_errors"), map[string]any{"limit": float64(3)}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := `['logs'] | where message contains "error" or message contains "panic" | sort by _time desc | limit 3`
	if plan.APL != want {
		t.Fatalf("unexpected APL:\n got %s\nwant %s", plan.APL, want)
	}
}

func TestTimeWindow_ExplicitBounds(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_search"), map[string]any{
		"query":     "x",
		"startTime": "2025-06-01T00:00:00Z",
		"endTime":   "2025-06-02T00:00:00Z",
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.StartTime != time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected start: %v", plan.StartTime)
	}
	if plan.EndTime != time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected end: %v", plan.EndTime)
	}
}

func TestTimeWindow_InvalidTimestamp(t *testing.T) {
	s := testSynthesizer()
	_, err := s.Synthesize(testDescriptor(t, "logs_search"), map[string]any{
		"query":     "x",
		"startTime": "yesterday",
	}, false)
	var verr *ValidationError
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestTimeWindow_InvertedBounds(t *testing.T) {
	s := testSynthesizer()
	_, err := s.Synthesize(testDescriptor(t, "logs_search"), map[string]any{
		"query":     "x",
		"startTime": "2025-06-02T00:00:00Z",
		"endTime":   "2025-06-01T00:00:00Z",
	}, false)
	if err == nil {
		t.Fatal("expected validation error for inverted window")
	}
}

func TestDeleteBeforeDate_DryRunIsCountQuery(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_deleteBeforeDate"), map[string]any{
		"beforeDate": "2025-06-18T00:00:00Z",
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !plan.DryRun || !plan.Destructive {
		t.Fatal("expected destructive dry-run plan")
	}
	if plan.TrimDuration != "" {
		t.Fatal("dry-run plan must not carry a trim duration")
	}
	if !strings.Contains(plan.APL, "summarize affected = count()") {
		t.Fatalf("expected count preview, got %s", plan.APL)
	}
	if plan.EndTime != time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("preview window should end at beforeDate, got %v", plan.EndTime)
	}
}

func TestDeleteBeforeDate_RealRunDerivesRetention(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_deleteBeforeDate"), map[string]any{
		"beforeDate": "2025-06-18T12:00:00Z",
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.DryRun {
		t.Fatal("expected real plan")
	}
	// fixedNow - beforeDate = 48h
	if plan.TrimDuration != "172800s" {
		t.Fatalf("expected 172800s retention, got %s", plan.TrimDuration)
	}
	if plan.APL != "" {
		t.Fatal("trim plan must not carry an APL query")
	}
}

func TestDeleteBeforeDate_FutureDateRejected(t *testing.T) {
	s := testSynthesizer()
	_, err := s.Synthesize(testDescriptor(t, "logs_deleteBeforeDate"), map[string]any{
		"beforeDate": "2030-01-01T00:00:00Z",
	}, false)
	var verr *ValidationError
	if err == nil || !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError for future date, got %v", err)
	}
}

func TestDeleteBeforeDate_UnparseableDateRejected(t *testing.T) {
	s := testSynthesizer()
	_, err := s.Synthesize(testDescriptor(t, "logs_deleteBeforeDate"), map[string]any{
		"beforeDate": "last tuesday",
	}, false)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestClearAll_RealRunTrimsEverything(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_clearAll"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TrimDuration != clearAllRetention {
		t.Fatalf("expected %s retention, got %s", clearAllRetention, plan.TrimDuration)
	}
}

func TestDatasetInfo_Summarizes(t *testing.T) {
	s := testSynthesizer()
	plan, err := s.Synthesize(testDescriptor(t, "logs_getDatasetInfo"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plan.APL, "summarize events = count()") {
		t.Fatalf("expected summarize stage, got %s", plan.APL)
	}
}

func TestFormatTrimDuration_RoundsUp(t *testing.T) {
	if got := formatTrimDuration(1500 * time.Millisecond); got != "2s" {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := formatTrimDuration(0); got != "1s" {
		t.Fatalf("expected 1s floor, got %s", got)
	}
}

// asValidation is a local errors.As wrapper keeping call sites short.
func asValidation(err error, target **ValidationError) bool {
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}
