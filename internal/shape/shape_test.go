package shape

import (
	"encoding/json"
	"strings"
	"testing"
)

func serializedSize(t *testing.T, v any) int {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return len(b)
}

func TestShape_UnderCeilingUnchanged(t *testing.T) {
	s := NewShaper(1024)
	in := map[string]any{"message": "ok", "count": 3}

	res, err := s.Shape(in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Truncated {
		t.Fatal("small result must not be truncated")
	}
	if res.OriginalSize != serializedSize(t, in) {
		t.Fatalf("originalSize should be the serialized size, got %d", res.OriginalSize)
	}
	out, ok := res.Value.(map[string]any)
	if !ok || out["message"] != "ok" {
		t.Fatalf("value must be unchanged, got %v", res.Value)
	}
}

func TestShape_OverCeilingTruncatesUnderLimit(t *testing.T) {
	ceiling := 2048
	s := NewShaper(ceiling)

	records := make([]map[string]any, 100)
	for i := range records {
		records[i] = map[string]any{"message": strings.Repeat("x", 500)}
	}
	fullSize := serializedSize(t, records)

	res, err := s.Shape(records)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.OriginalSize != fullSize {
		t.Fatalf("originalSize should be pre-truncation size %d, got %d", fullSize, res.OriginalSize)
	}
	if got := serializedSize(t, res.Value); got > ceiling {
		t.Fatalf("shaped size %d exceeds ceiling %d", got, ceiling)
	}
}

func TestShape_LongStringsGetMarker(t *testing.T) {
	s := NewShaper(200)
	in := map[string]any{"stack": strings.Repeat("a", 5000)}

	res, err := s.Shape(in)
	if err != nil {
		t.Fatal(err)
	}
	out := res.Value.(map[string]any)
	stack := out["stack"].(string)
	if !strings.HasSuffix(stack, TruncationMarker) {
		t.Fatalf("expected truncation marker, got %q suffix", stack[len(stack)-20:])
	}
	if !strings.HasPrefix(stack, "aaaa") {
		t.Fatal("prefix of the original string should survive")
	}
}

func TestShape_CollectionsCapped(t *testing.T) {
	s := NewShaper(300)
	items := make([]any, 500)
	for i := range items {
		items[i] = map[string]any{"n": i}
	}

	res, err := s.Shape(map[string]any{"items": items})
	if err != nil {
		t.Fatal(err)
	}
	out := res.Value.(map[string]any)
	kept := out["items"].([]any)
	if len(kept) == 0 {
		t.Fatal("truncation must never drop the entire collection")
	}
	if len(kept) >= 500 {
		t.Fatal("expected the collection to be capped")
	}
}

func TestShape_FloorNeverEmptiesResult(t *testing.T) {
	// Ceiling small enough to force the caps all the way down.
	s := NewShaper(50)
	in := []any{strings.Repeat("z", 10000), strings.Repeat("y", 10000)}

	res, err := s.Shape(in)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	kept := res.Value.([]any)
	if len(kept) != 1 {
		t.Fatalf("floor keeps one element, got %d", len(kept))
	}
	if kept[0].(string) == "" {
		t.Fatal("floor must keep a non-empty prefix")
	}
}

func TestShape_NestedStructuresTruncateRecursively(t *testing.T) {
	s := NewShaper(400)
	in := map[string]any{
		"outer": map[string]any{
			"inner": []any{strings.Repeat("m", 2000), strings.Repeat("n", 2000)},
		},
	}

	res, err := s.Shape(in)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	inner := res.Value.(map[string]any)["outer"].(map[string]any)["inner"].([]any)
	if !strings.HasSuffix(inner[0].(string), TruncationMarker) {
		t.Fatal("nested strings should be truncated")
	}
}

func TestShape_UnserializableValue(t *testing.T) {
	s := NewShaper(1024)
	if _, err := s.Shape(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected serialization error")
	}
}
