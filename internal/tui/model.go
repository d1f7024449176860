package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"

	"github.com/evanschultz/initboard/internal/board"
	"github.com/evanschultz/initboard/internal/domain"
)

// Source is the board data the TUI reads and writes. The local app adapter and the
// remote client both satisfy it.
type Source interface {
	ListTasks(context.Context, string) ([]domain.Task, error)
	BulkUpdateTasks(context.Context, string, []domain.Task) error
	ListTeamMembers(context.Context, string) ([]domain.TeamMember, error)
	Access(context.Context, string, string) (domain.Access, error)
}

const noticeTTL = 4 * time.Second

const msgSaveInFlight = "saving: wait for the last move to finish"

// Model is the interactive board.
type Model struct {
	src    Source
	logger *log.Logger

	ready  bool
	width  int
	height int
	err    error

	status      string
	statusError bool

	help help.Model
	keys keyMap

	userID     string
	initiative domain.Initiative
	labels     map[domain.Status]string
	members    map[string]domain.TeamMember

	store      *board.Store
	pipeline   *board.Pipeline
	controller *board.Controller
	notices    *noticeQueue
	noticeSeq  int

	selectedColumn int
	selectedTask   int
	showDetails    bool
	markdown       *markdownRenderer

	feed <-chan struct{}
	copy func(string) error
}

// noticeQueue collects pipeline notices raised off the UI goroutine.
type noticeQueue struct {
	mu      sync.Mutex
	items   []board.Notice
	changed bool
}

func (q *noticeQueue) Notify(n board.Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

func (q *noticeQueue) markChanged() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.changed = true
}

// drain returns pending notices and whether the data changed since the last drain.
func (q *noticeQueue) drain() ([]board.Notice, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, changed := q.items, q.changed
	q.items, q.changed = nil, false
	return items, changed
}

// boardLoadedMsg carries a fresh task list with the viewer's access.
type boardLoadedMsg struct {
	tasks   []domain.Task
	members []domain.TeamMember
	access  domain.Access
	err     error
}

// persistedMsg reports a settled move.
type persistedMsg struct {
	taskID string
	err    error
}

type feedMsg struct{}

type feedClosedMsg struct{}

type noticeExpiredMsg struct {
	seq int
}

// NewModel constructs the board for one initiative.
func NewModel(src Source, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	labels := make(map[domain.Status]string, len(domain.ColumnOrder))
	for _, status := range domain.ColumnOrder {
		labels[status] = status.Label()
	}
	m := Model{
		src:         src,
		logger:      log.New(io.Discard),
		status:      "loading...",
		help:        h,
		keys:        newKeyMap(),
		labels:      labels,
		members:     map[string]domain.TeamMember{},
		notices:     &noticeQueue{},
		showDetails: true,
		markdown:    &markdownRenderer{},
		copy:        clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	m.store = board.NewStore(nil)
	m.pipeline = board.NewPipeline(m.store, board.PersistFunc(m.persistTasks),
		board.WithNotifier(m.notices),
		board.WithDataChange(m.notices.markChanged),
		board.WithPipelineLogger(m.logger),
	)
	m.controller = board.NewController(m.store, m.pipeline,
		board.WithControllerLogger(m.logger),
		board.WithTransitionHook(func(from, to board.State) {
			m.logger.Debug("drag state", "from", from, "to", to)
		}),
	)
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard, m.waitForFeed())
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		if msg.err != nil {
			if m.store.Version() == 0 {
				m.err = msg.err
				return m, nil
			}
			m.setStatus("reload failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.err = nil
		m.members = make(map[string]domain.TeamMember, len(msg.members))
		for _, member := range msg.members {
			m.members[member.ID] = member
		}
		m.controller.SetAccess(msg.access)
		if !m.store.Sync(msg.tasks) {
			m.logger.Debug("board refresh deferred until save settles")
		}
		if m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		m.clampSelection()
		return m, nil

	case persistedMsg:
		cmd := m.applyNotices()
		m.clampSelection()
		return m, cmd

	case feedMsg:
		return m, tea.Batch(m.loadBoard, m.waitForFeed())

	case feedClosedMsg:
		m.feed = nil
		m.logger.Warn("change feed closed")
		return m, nil

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.status = ""
			m.statusError = false
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancelDrag):
		if m.controller.End() {
			return m, m.flash("drag cancelled", false)
		}
		return m, nil
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadBoard
	}

	if m.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(domain.ColumnOrder)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(domain.ColumnOrder)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.moveUp):
		m.selectedTask--
		m.clampSelection()
	case key.Matches(msg, m.keys.moveDown):
		m.selectedTask++
		m.clampSelection()
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelected(-1, 0)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelected(1, 0)
	case key.Matches(msg, m.keys.moveTaskUp):
		return m.moveSelected(0, -1)
	case key.Matches(msg, m.keys.moveTaskDown):
		return m.moveSelected(0, 1)
	case key.Matches(msg, m.keys.copyID):
		task, ok := m.selectedTaskValue()
		if !ok {
			return m, nil
		}
		if err := m.copy(task.ID); err != nil {
			return m, m.flash("copy failed: "+err.Error(), true)
		}
		return m, m.flash("copied "+task.ID, false)
	case key.Matches(msg, m.keys.toggleDetails):
		m.showDetails = !m.showDetails
	}
	return m, nil
}

// moveSelected moves the selected task dx columns or dy slots through the same
// pipeline a mouse drop uses.
func (m Model) moveSelected(dx, dy int) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskValue()
	if !ok {
		return m, nil
	}
	if !m.controller.Access().CanEdit() {
		return m, m.flash("read only: you cannot move tasks on this board", true)
	}
	if m.controller.Active() {
		return m, nil
	}
	if m.store.InFlight() {
		return m, m.flash(msgSaveInFlight, true)
	}

	status, index, _ := board.Locate(m.store.Tasks(), task.ID)
	target, targetIndex := status, index+dy
	if dx != 0 {
		col := status.ColumnIndex() + dx
		if col < 0 || col >= len(domain.ColumnOrder) {
			return m, nil
		}
		target = domain.ColumnOrder[col]
		targetIndex = min(index, len(m.store.ColumnIDs(target)))
	} else if targetIndex < 0 || targetIndex >= len(m.store.ColumnIDs(status)) {
		return m, nil
	}

	flight, err := m.pipeline.Commit(m.store.Tasks(), task.ID, target, targetIndex)
	if err != nil {
		return m, m.applyNotices()
	}
	m.follow(task.ID)
	return m, m.persist(flight)
}

func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseLeft || m.err != nil || m.help.ShowAll {
		return m, nil
	}
	if status, ok := m.columnAt(msg.X, msg.Y); ok {
		m.selectedColumn = status.ColumnIndex()
		m.clampSelection()
	}
	taskID, ok := m.cardAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	m.follow(taskID)
	// Overlapping saves could land out of order and revert a persisted move.
	if m.store.InFlight() && m.controller.Access().CanEdit() {
		return m, m.flash(msgSaveInFlight, true)
	}
	if err := m.controller.Start(taskID); err != nil {
		if errors.Is(err, board.ErrDragDisabled) {
			return m, m.flash("read only: you cannot move tasks on this board", true)
		}
		m.logger.Debug("drag not started", "task_id", taskID, "err", err)
	}
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if !m.controller.Active() {
		return m, nil
	}
	if status, ok := m.columnAt(msg.X, msg.Y); ok {
		m.controller.Over(status, float64(msg.Y), m.cardRect)
	}
	return m, nil
}

func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if !m.controller.Active() {
		return m, nil
	}
	status, ok := m.columnAt(msg.X, msg.Y)
	if !ok {
		m.controller.End()
		return m, m.flash("drag cancelled", false)
	}
	m.controller.Over(status, float64(msg.Y), m.cardRect)

	result := m.controller.Drop()
	switch result.Outcome {
	case board.DropCommitted:
		m.follow(result.TaskID)
		return m, m.persist(result.Flight)
	case board.DropFailed:
		return m, m.applyNotices()
	default:
		return m, nil
	}
}

// persist saves a committed move off the UI goroutine.
func (m Model) persist(flight *board.Flight) tea.Cmd {
	return func() tea.Msg {
		err := flight.Persist(context.Background())
		return persistedMsg{taskID: flight.TaskID(), err: err}
	}
}

func (m Model) persistTasks(ctx context.Context, tasks []domain.Task) error {
	return m.src.BulkUpdateTasks(ctx, m.initiative.ID, tasks)
}

// applyNotices surfaces queued notices and schedules a refresh after a save.
func (m *Model) applyNotices() tea.Cmd {
	notices, changed := m.notices.drain()
	cmds := make([]tea.Cmd, 0, 2)
	if len(notices) > 0 {
		last := notices[len(notices)-1]
		cmds = append(cmds, m.flash(last.Message, last.Level == board.NoticeError))
	}
	if changed {
		cmds = append(cmds, m.loadBoard)
	}
	return tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.noticeSeq++
	m.status = text
	m.statusError = isErr
}

// flash sets a status line that clears itself after noticeTTL.
func (m *Model) flash(text string, isErr bool) tea.Cmd {
	m.setStatus(text, isErr)
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (m Model) loadBoard() tea.Msg {
	initiativeID := strings.TrimSpace(m.initiative.ID)
	if initiativeID == "" {
		return boardLoadedMsg{err: errors.New("no initiative selected")}
	}
	ctx := context.Background()
	tasks, err := m.src.ListTasks(ctx, initiativeID)
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	members, err := m.src.ListTeamMembers(ctx, initiativeID)
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	access, err := m.src.Access(ctx, initiativeID, m.userID)
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	return boardLoadedMsg{tasks: tasks, members: members, access: access}
}

func (m Model) waitForFeed() tea.Cmd {
	feed := m.feed
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-feed; !ok {
			return feedClosedMsg{}
		}
		return feedMsg{}
	}
}

func (m Model) selectedStatus() domain.Status {
	return domain.ColumnOrder[clamp(m.selectedColumn, 0, len(domain.ColumnOrder)-1)]
}

func (m Model) selectedTaskValue() (domain.Task, bool) {
	ids := m.store.ColumnIDs(m.selectedStatus())
	if len(ids) == 0 {
		return domain.Task{}, false
	}
	return m.store.Task(ids[clamp(m.selectedTask, 0, len(ids)-1)])
}

// follow moves the selection onto taskID wherever it now lives.
func (m *Model) follow(taskID string) {
	status, index, ok := board.Locate(m.store.Tasks(), taskID)
	if !ok {
		return
	}
	m.selectedColumn = status.ColumnIndex()
	m.selectedTask = index
}

func (m *Model) clampSelection() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(domain.ColumnOrder)-1)
	m.selectedTask = clamp(m.selectedTask, 0, len(m.store.ColumnIDs(m.selectedStatus()))-1)
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		return boardView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return boardView("loading...")
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("initboard") + "  " + m.initiative.Name
	if !m.controller.Access().CanEdit() {
		header += statusStyle.Render("  [read only]")
	}
	if id := m.controller.DraggedTaskID(); id != "" {
		if task, ok := m.store.Task(id); ok {
			header += statusStyle.Render("  dragging: " + truncate(task.Title, 32))
		}
	}
	if m.store.InFlight() {
		header += statusStyle.Render("  saving...")
	}

	width := m.columnWidth()
	lines := m.columnLines()
	columns := make([]string, 0, len(domain.ColumnOrder))
	for idx, status := range domain.ColumnOrder {
		style := columnStyle(width)
		if idx == m.selectedColumn {
			style = style.BorderForeground(accent)
		}
		columns = append(columns, style.Render(fitLines(m.renderColumn(status, width, lines, accent, muted), lines)))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, columns...)

	sections := []string{header, "", body}
	if m.showDetails {
		sections = append(sections, m.renderDetails(muted))
	}

	statusLine := ""
	if m.status != "" && m.status != "ready" {
		style := statusStyle
		if m.statusError {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		}
		statusLine = style.Render(m.status)
	}
	sections = append(sections, statusLine)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	sections = append(sections, helpLine)

	return boardView(strings.Join(sections, "\n"))
}

func boardView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderColumn draws a column's rows: title, then a slot row and two card rows per
// task, ending with a trailing slot.
func (m Model) renderColumn(status domain.Status, width, lines int, accent, muted color.Color) string {
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	draggedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Faint(true)
	metaStyle := lipgloss.NewStyle().Foreground(muted)
	slotStyle := lipgloss.NewStyle().Foreground(accent)

	tasks := m.store.Columns()[status]
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}

	slot := -1
	draggedID := m.controller.DraggedTaskID()
	if placeholder, ok := m.controller.Placeholder(); ok && m.controller.Active() && placeholder.Status == status {
		slot = placeholderSlot(ids, draggedID, placeholder.Index)
	}
	slotLine := func(k int) string {
		if k == slot {
			return slotStyle.Render(strings.Repeat("┄", max(1, width-2)))
		}
		return ""
	}

	rows := []string{colTitle.Render(fmt.Sprintf("%s (%d)", truncate(m.labels[status], width-6), len(tasks)))}
	textWidth := max(1, width-4)
	for k, task := range tasks {
		rows = append(rows, slotLine(k))
		title := "  " + truncate(task.Title, textWidth)
		meta := "  " + truncate(m.taskMeta(task), textWidth)
		switch {
		case task.ID == draggedID:
			title = draggedStyle.Render(title)
			meta = draggedStyle.Render(meta)
		case status == m.selectedStatus() && k == m.selectedTask:
			title = selectedStyle.Render("▌ " + truncate(task.Title, textWidth))
			meta = metaStyle.Render(meta)
		default:
			meta = metaStyle.Render(meta)
		}
		rows = append(rows, title, meta)
	}
	rows = append(rows, slotLine(len(tasks)))
	if len(tasks) == 0 && slot < 0 {
		rows[len(rows)-1] = metaStyle.Render("  (empty)")
	}
	return strings.Join(rows, "\n")
}

func (m Model) taskMeta(task domain.Task) string {
	assignee := "unassigned"
	if task.AssigneeID != "" {
		assignee = "@" + task.AssigneeID
		if member, ok := m.members[task.AssigneeID]; ok {
			assignee = "@" + member.Name
		}
	}
	return assignee + " · " + truncate(task.ID, 8)
}

func (m Model) renderDetails(muted color.Color) string {
	task, ok := m.selectedTaskValue()
	if !ok {
		return fitLines("", detailsLines)
	}
	body := m.markdown.render(task.Description, max(24, m.width-4))
	if body == "" {
		body = lipgloss.NewStyle().Foreground(muted).Render("no description")
	}
	title := lipgloss.NewStyle().Bold(true).Render(task.Title)
	return fitLines(title+"\n"+body, detailsLines)
}
