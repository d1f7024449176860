package tui

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/evanschultz/initboard/internal/board"
	"github.com/evanschultz/initboard/internal/domain"
)

// Board geometry, in 0-based terminal rows.
//
//	row 0          header
//	row 1          spacer
//	row 2          column top border
//	row 3          column title
//	row 4          slot before card 0
//	row 5+3k       card k title line
//	row 6+3k       card k meta line
//	row 7+3k       slot after card k
const (
	boardTop       = 2
	contentTop     = boardTop + 1
	cardTop        = contentTop + 2
	cardHeight     = 2
	cardPitch      = cardHeight + 1
	footerLines    = 3
	detailsLines   = 7
	minColumnLines = 8
	defaultLines   = 14
)

// columnStyle is the shared column frame; hit testing measures it.
func columnStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 1).
		MarginRight(1).
		Width(width)
}

// columnWidth returns the content width of one column for the terminal width.
func (m Model) columnWidth() int {
	w := 28
	if m.width > 0 {
		// border (2), horizontal padding (2), margin-right (1)
		const colOverhead = 5
		candidate := (m.width - len(domain.ColumnOrder)*colOverhead) / len(domain.ColumnOrder)
		if candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 20, 48)
}

// columnPitch is the rendered width of one column including its margin.
func (m Model) columnPitch() int {
	return max(1, lipgloss.Width(columnStyle(m.columnWidth()).Render("")))
}

// columnLines is the number of content rows inside a column frame.
func (m Model) columnLines() int {
	if m.height <= 0 {
		return defaultLines
	}
	h := m.height - boardTop - 2 - footerLines
	if m.showDetails {
		h -= detailsLines
	}
	return max(minColumnLines, h)
}

// visibleCards returns how many of n cards render in full.
func visibleCards(lines, n int) int {
	if 2+cardPitch*n <= lines {
		return n
	}
	// the last row is replaced by an overflow marker
	if lines < cardTop-contentTop+cardHeight+1 {
		return 0
	}
	return min(n, (lines-(cardTop-contentTop)-cardHeight-1)/cardPitch+1)
}

// columnAt maps a terminal cell to a column. ok is false outside every column frame.
func (m Model) columnAt(x, y int) (domain.Status, bool) {
	if x < 0 || y < boardTop || y > boardTop+m.columnLines()+1 {
		return "", false
	}
	pitch := m.columnPitch()
	idx := x / pitch
	if idx >= len(domain.ColumnOrder) || x%pitch == pitch-1 {
		return "", false
	}
	return domain.ColumnOrder[idx], true
}

// cardAt maps a terminal cell to the task card rendered there.
func (m Model) cardAt(x, y int) (string, bool) {
	status, ok := m.columnAt(x, y)
	if !ok {
		return "", false
	}
	rel := y - cardTop
	if rel < 0 || rel%cardPitch >= cardHeight {
		return "", false
	}
	k := rel / cardPitch
	ids := m.store.ColumnIDs(status)
	if k >= visibleCards(m.columnLines(), len(ids)) {
		return "", false
	}
	return ids[k], true
}

// cardRect reports where a task card is drawn. Cards scrolled past the column have
// no rectangle.
func (m Model) cardRect(taskID string) (board.Rect, bool) {
	task, ok := m.store.Task(taskID)
	if !ok {
		return board.Rect{}, false
	}
	ids := m.store.ColumnIDs(task.Status)
	for k, id := range ids {
		if id != taskID {
			continue
		}
		if k >= visibleCards(m.columnLines(), len(ids)) {
			return board.Rect{}, false
		}
		return board.Rect{Top: float64(cardTop + cardPitch*k), Height: cardHeight}, true
	}
	return board.Rect{}, false
}

// placeholderSlot returns the slot row (0 before the first card) where a drop at
// sibling index would land, skipping the dragged card.
func placeholderSlot(ids []string, draggedID string, index int) int {
	seen := 0
	for k, id := range ids {
		if id == draggedID {
			continue
		}
		if seen == index {
			return k
		}
		seen++
	}
	return len(ids)
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
