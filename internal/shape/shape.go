// Package shape bounds raw backend results to a maximum serialized size.
// Oversized results are tightened field by field — long strings capped to
// a marked prefix, collections capped in length — rather than dropped.
package shape

import (
	"encoding/json"
	"fmt"
)

// TruncationMarker is appended to strings that were cut.
const TruncationMarker = "...[truncated]"

// Tightening starts at the initial caps and halves toward the floors.
const (
	initialStringCap = 512
	initialItemCap   = 50
	floorStringCap   = 64
	floorItemCap     = 1
)

// Result is the shaped payload handed back to the caller.
type Result struct {
	Value        any  `json:"value"`
	Truncated    bool `json:"truncated"`
	OriginalSize int  `json:"originalSize"`
}

// Shaper applies the size ceiling. Immutable, safe for concurrent use.
type Shaper struct {
	maxBytes int
}

// NewShaper creates a Shaper with the given ceiling in bytes.
func NewShaper(maxBytes int) *Shaper {
	return &Shaper{maxBytes: maxBytes}
}

// Shape serializes v and, when it exceeds the ceiling, truncates it until
// it fits or the caps reach their floor. The result is never dropped
// entirely.
func (s *Shaper) Shape(v any) (*Result, error) {
	full, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("shape: serialize result: %w", err)
	}
	if len(full) <= s.maxBytes {
		return &Result{Value: v, OriginalSize: len(full)}, nil
	}

	// Work on the decoded generic form so named map and slice types all
	// truncate the same way.
	var generic any
	if err := json.Unmarshal(full, &generic); err != nil {
		return nil, fmt.Errorf("shape: reload result: %w", err)
	}

	stringCap, itemCap := initialStringCap, initialItemCap
	out := generic
	for {
		out = truncateValue(generic, stringCap, itemCap)
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("shape: serialize truncated result: %w", err)
		}
		if len(b) <= s.maxBytes {
			break
		}
		if stringCap <= floorStringCap && itemCap <= floorItemCap {
			break
		}
		stringCap = halveToFloor(stringCap, floorStringCap)
		itemCap = halveToFloor(itemCap, floorItemCap)
	}

	return &Result{Value: out, Truncated: true, OriginalSize: len(full)}, nil
}

func halveToFloor(v, floor int) int {
	v /= 2
	if v < floor {
		return floor
	}
	return v
}

func truncateValue(v any, stringCap, itemCap int) any {
	switch val := v.(type) {
	case string:
		runes := []rune(val)
		if len(runes) <= stringCap {
			return val
		}
		return string(runes[:stringCap]) + TruncationMarker
	case []any:
		n := len(val)
		if n > itemCap {
			n = itemCap
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = truncateValue(val[i], stringCap, itemCap)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = truncateValue(item, stringCap, itemCap)
		}
		return out
	default:
		return v
	}
}
