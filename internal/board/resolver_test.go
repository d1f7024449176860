package board

import "testing"

func TestResolveInsertionIndexMidpoint(t *testing.T) {
	ids := []string{"a", "b", "c"}
	lookup := stackRects(ids, 10)
	cases := []struct {
		y    float64
		want int
	}{
		{-3, 0},
		{4, 0},
		{5, 1},
		{14, 1},
		{15, 2},
		{16, 2},
		{25, 3},
		{40, 3},
	}
	for _, tc := range cases {
		if got := ResolveInsertionIndex(ids, "", tc.y, lookup); got != tc.want {
			t.Fatalf("ResolveInsertionIndex(y=%v) = %d, want %d", tc.y, got, tc.want)
		}
	}
}

func TestResolveInsertionIndexSkipsDraggedTask(t *testing.T) {
	ids := []string{"a", "b", "c"}
	lookup := stackRects(ids, 10)
	// Pointer inside the dragged card's own range resolves against the siblings.
	if got := ResolveInsertionIndex(ids, "a", 4, lookup); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ResolveInsertionIndex(ids, "b", 16, lookup); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := ResolveInsertionIndex(ids, "c", 100, lookup); got != 2 {
		t.Fatalf("expected append index 2, got %d", got)
	}
}

func TestResolveInsertionIndexEmptyColumn(t *testing.T) {
	if got := ResolveInsertionIndex(nil, "x", 50, nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ResolveInsertionIndex([]string{"x"}, "x", 50, stackRects([]string{"x"}, 10)); got != 0 {
		t.Fatalf("expected 0 with only the dragged card, got %d", got)
	}
}

func TestResolveInsertionIndexUnrenderedSiblings(t *testing.T) {
	ids := []string{"a", "hidden", "c"}
	lookup := func(id string) (Rect, bool) {
		switch id {
		case "a":
			return Rect{Top: 0, Height: 10}, true
		case "c":
			return Rect{Top: 10, Height: 10}, true
		}
		return Rect{}, false
	}
	if got := ResolveInsertionIndex(ids, "", 12, lookup); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := ResolveInsertionIndex(ids, "", 30, lookup); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}
