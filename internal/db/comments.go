package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const commentColumns = "id, task_id, author_id, content, created_at"

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	var created int64
	if err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (s *Store) CreateComment(ctx context.Context, c *Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO comments (task_id, author_id, content, created_at) VALUES (?, ?, ?, ?)",
		c.TaskID, c.AuthorID, c.Content, toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetComment looks a comment up within its task.
func (s *Store) GetComment(ctx context.Context, taskID, id int64) (*Comment, error) {
	c, err := scanComment(s.q.QueryRowContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE id = ? AND task_id = ?", id, taskID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query comment: %w", err)
	}
	return c, nil
}

// ListComments returns a task's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE task_id = ? ORDER BY created_at ASC, id ASC", taskID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// UpdateCommentContent changes only the body; task and author are fixed.
func (s *Store) UpdateCommentContent(ctx context.Context, id int64, content string) error {
	res, err := s.q.ExecContext(ctx, "UPDATE comments SET content = ? WHERE id = ?", content, id)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
