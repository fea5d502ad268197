package registry

import (
	"errors"
	"testing"

	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
)

func testEnvs() []environment.Environment {
	return []environment.Environment{
		{ID: "dev", Prefix: "", Dataset: "logs", DatabaseURL: "postgres://dev/app"},
		{ID: "prod", Prefix: "prod_", Dataset: "logs-prod", DatabaseURL: "postgres://prod/app"},
	}
}

func TestNew_OneDescriptorPerOpAndEnv(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	want := len(templates) * 2
	if got := len(r.Descriptors()); got != want {
		t.Fatalf("expected %d descriptors, got %d", want, got)
	}

	seen := make(map[string]bool)
	for _, d := range r.Descriptors() {
		if seen[d.ToolID] {
			t.Fatalf("duplicate toolId %q", d.ToolID)
		}
		seen[d.ToolID] = true
	}
}

func TestLookup_PrefixedTool(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}

	d, err := r.Lookup("prod_logs_errors")
	if err != nil {
		t.Fatal(err)
	}
	if d.CanonicalOp != OpLogsErrors {
		t.Fatalf("expected canonical %s, got %s", OpLogsErrors, d.CanonicalOp)
	}
	if d.Env.ID != "prod" {
		t.Fatalf("expected prod env, got %s", d.Env.ID)
	}
	if d.Env.Dataset != "logs-prod" {
		t.Fatalf("expected prod dataset, got %s", d.Env.Dataset)
	}
}

func TestLookup_Unknown(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup("logs_nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDestructiveFlags(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}

	destructive := []string{
		OpLogsDeleteBeforeDate, OpLogsClearAll,
		OpDBDeleteVideos, OpDBRetryAllJobs, OpDBCleanupOrphanedJobs,
	}
	for _, op := range destructive {
		d, err := r.Lookup(op)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Destructive {
			t.Fatalf("%s should be destructive", op)
		}
	}

	d, err := r.Lookup(OpLogsRecent)
	if err != nil {
		t.Fatal(err)
	}
	if d.Destructive {
		t.Fatal("logs_recent should not be destructive")
	}
}

func TestValidateArguments_MissingRequired(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Lookup(OpLogsSearch)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.ValidateArguments(map[string]any{}); err == nil {
		t.Fatal("expected validation error for missing query")
	}
	if err := d.ValidateArguments(map[string]any{"query": "timeout"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
}

func TestValidateArguments_UnknownField(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Lookup(OpLogsRecent)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ValidateArguments(map[string]any{"bogus": true}); err == nil {
		t.Fatal("expected validation error for unknown field")
	}
}

func TestValidateArguments_TypeMismatch(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Lookup(OpDBDeleteVideos)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ValidateArguments(map[string]any{"ytIds": "abc123"}); err == nil {
		t.Fatal("expected validation error: ytIds must be an array")
	}
	if err := d.ValidateArguments(map[string]any{"ytIds": []any{}}); err == nil {
		t.Fatal("expected validation error: ytIds must be non-empty")
	}
	if err := d.ValidateArguments(map[string]any{"ytIds": []any{"abc123"}}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
}

func TestValidateArguments_NilArguments(t *testing.T) {
	r, err := New(testEnvs())
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Lookup(OpLogsRecent)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ValidateArguments(nil); err != nil {
		t.Fatalf("nil arguments should validate for op without required fields: %v", err)
	}
}
