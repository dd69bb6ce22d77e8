package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const taskColumns = "k.id, k.title, k.description, k.project_id, k.created_by, k.assigned_to, k.status, k.priority, k.due_date, k.created_at"

func scanTask(row rowScanner) (*Task, error) {
	var k Task
	var createdBy, assignedTo sql.NullInt64
	var due sql.NullString
	var created int64
	if err := row.Scan(&k.ID, &k.Title, &k.Description, &k.ProjectID, &createdBy, &assignedTo,
		&k.Status, &k.Priority, &due, &created); err != nil {
		return nil, err
	}
	k.CreatedBy = nullInt(createdBy)
	k.AssignedTo = nullInt(assignedTo)
	k.DueDate = nullString(due)
	k.CreatedAt = fromMillis(created)
	return &k, nil
}

func (s *Store) CreateTask(ctx context.Context, k *Task) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	if k.Status == "" {
		k.Status = StatusTodo
	}
	if k.Priority == 0 {
		k.Priority = PriorityMedium
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tasks (title, description, project_id, created_by, assigned_to, status, priority, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.Title, k.Description, k.ProjectID, k.CreatedBy, k.AssignedTo, k.Status, k.Priority, k.DueDate, toMillis(k.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	k.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	k, err := scanTask(s.q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks k WHERE k.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return k, nil
}

// ListTasksForUser returns tasks in projects whose team the user owns or
// belongs to, narrowed by f.
func (s *Store) ListTasksForUser(ctx context.Context, userID int64, f TaskFilter) ([]Task, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks k
		JOIN projects p ON p.id = k.project_id
		JOIN teams t ON t.id = p.team_id
		WHERE (t.owner_id = ? OR EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.user_id = ?))`)
	args := []any{userID, userID}
	if f.Status != "" {
		b.WriteString(" AND k.status = ?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != 0 {
		b.WriteString(" AND k.assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.ProjectID != 0 {
		b.WriteString(" AND k.project_id = ?")
		args = append(args, f.ProjectID)
	}
	b.WriteString(" ORDER BY k.id")

	rows, err := s.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		k, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *k)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, k *Task) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, assigned_to = ?, status = ?, priority = ?, due_date = ?
		WHERE id = ?`,
		k.Title, k.Description, k.AssignedTo, k.Status, k.Priority, k.DueDate, k.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
