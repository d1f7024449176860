package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores boards in a SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens a file-backed repository and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory repository.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:initboard-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS initiatives (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS team_members (
			id TEXT NOT NULL,
			initiative_id TEXT NOT NULL,
			name TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(initiative_id, id),
			FOREIGN KEY(initiative_id) REFERENCES initiatives(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			initiative_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			assignee_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(initiative_id) REFERENCES initiatives(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_initiative_position ON tasks(initiative_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateInitiative creates an initiative.
func (r *Repository) CreateInitiative(ctx context.Context, i domain.Initiative) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO initiatives(id, name, owner_id, created_at)
		VALUES (?, ?, ?, ?)
	`, i.ID, i.Name, i.OwnerID, ts(i.CreatedAt))
	return err
}

// GetInitiative returns one initiative.
func (r *Repository) GetInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at
		FROM initiatives
		WHERE id = ?
	`, id)
	initiative, err := scanInitiative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Initiative{}, app.ErrNotFound
	}
	return initiative, err
}

// ListInitiatives lists initiatives by creation time.
func (r *Repository) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, owner_id, created_at
		FROM initiatives
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Initiative{}
	for rows.Next() {
		initiative, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, initiative)
	}
	return out, rows.Err()
}

// UpsertTeamMember inserts or updates a team member.
func (r *Repository) UpsertTeamMember(ctx context.Context, m domain.TeamMember) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members(id, initiative_id, name, avatar_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(initiative_id, id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url
	`, m.ID, m.InitiativeID, m.Name, m.AvatarURL)
	return err
}

// ListTeamMembers lists one initiative's members by name.
func (r *Repository) ListTeamMembers(ctx context.Context, initiativeID string) ([]domain.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, initiative_id, name, avatar_url
		FROM team_members
		WHERE initiative_id = ?
		ORDER BY name ASC, id ASC
	`, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TeamMember{}
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.InitiativeID, &m.Name, &m.AvatarURL); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateTask appends a task after every stored task of its initiative, which places
// it last in its column.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks(id, initiative_id, title, description, assignee_id, status, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE initiative_id = ?), ?, ?)
	`,
		t.ID,
		t.InitiativeID,
		t.Title,
		t.Description,
		t.AssigneeID,
		string(t.Status),
		t.InitiativeID,
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	return err
}

// ListTasks returns one initiative's tasks in board order.
func (r *Repository) ListTasks(ctx context.Context, initiativeID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, initiative_id, title, description, assignee_id, status, created_at, updated_at
		FROM tasks
		WHERE initiative_id = ?
		ORDER BY
			CASE status WHEN 'todo' THEN 0 WHEN 'progress' THEN 1 WHEN 'done' THEN 2 ELSE 3 END,
			position ASC,
			created_at ASC
	`, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ReplaceTaskOrder writes status and position for every task of an initiative in one
// transaction. A list that does not hold exactly the stored task ids is rejected with
// app.ErrConflict and nothing is written.
func (r *Repository) ReplaceTaskOrder(ctx context.Context, initiativeID string, tasks []domain.Task, now time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stored, err := storedTaskIDs(ctx, tx, initiativeID)
	if err != nil {
		return err
	}
	if len(stored) != len(tasks) {
		return fmt.Errorf("%w: board has %d tasks, update has %d", app.ErrConflict, len(stored), len(tasks))
	}
	for _, t := range tasks {
		if _, ok := stored[t.ID]; !ok {
			return fmt.Errorf("%w: task %q is not on the board", app.ErrConflict, t.ID)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE tasks
		SET status = ?, position = ?, updated_at = ?
		WHERE id = ? AND initiative_id = ?
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	updatedAt := ts(now)
	for position, t := range tasks {
		res, execErr := stmt.ExecContext(ctx, string(t.Status), position, updatedAt, t.ID, initiativeID)
		if execErr != nil {
			err = execErr
			return err
		}
		if err = translateNoRows(res); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

func storedTaskIDs(ctx context.Context, tx *sql.Tx, initiativeID string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE initiative_id = ?`, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInitiative(s scanner) (domain.Initiative, error) {
	var (
		i         domain.Initiative
		createdAt string
	)
	if err := s.Scan(&i.ID, &i.Name, &i.OwnerID, &createdAt); err != nil {
		return domain.Initiative{}, err
	}
	i.CreatedAt = parseTS(createdAt)
	return i, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t                    domain.Task
		status               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&t.ID, &t.InitiativeID, &t.Title, &t.Description, &t.AssigneeID, &status, &createdAt, &updatedAt); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.CreatedAt = parseTS(createdAt)
	t.UpdatedAt = parseTS(updatedAt)
	return t, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
