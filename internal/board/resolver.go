package board

// Rect is the vertical extent of a rendered card.
type Rect struct {
	Top    float64
	Height float64
}

// Mid returns the vertical midpoint.
func (r Rect) Mid() float64 {
	return r.Top + r.Height/2
}

// RectLookup returns the current on-screen rectangle of a card. ok is false when the
// card is not rendered.
type RectLookup func(taskID string) (rect Rect, ok bool)

// ResolveInsertionIndex returns the insertion index for a pointer at pointerY over a
// column. The dragged task is excluded from the siblings; the result is the index of
// the first sibling whose midpoint lies strictly below the pointer, or the sibling
// count when the pointer is past every midpoint. A pointer exactly on a midpoint
// counts as past that card.
func ResolveInsertionIndex(columnTaskIDs []string, draggedTaskID string, pointerY float64, lookup RectLookup) int {
	index := 0
	for _, id := range columnTaskIDs {
		if id == draggedTaskID {
			continue
		}
		if lookup != nil {
			if rect, ok := lookup(id); ok && rect.Mid() > pointerY {
				return index
			}
		}
		index++
	}
	return index
}
