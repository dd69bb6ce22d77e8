package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrProjectNameTaken is returned when (team, name) already exists.
var ErrProjectNameTaken = errors.New("project name taken in team")

const projectColumns = "p.id, p.name, p.team_id, p.created_by, p.start_date, p.end_date, p.is_active, p.created_at"

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var start, end sql.NullString
	var active int
	var created int64
	if err := row.Scan(&p.ID, &p.Name, &p.TeamID, &p.CreatedBy, &start, &end, &active, &created); err != nil {
		return nil, err
	}
	p.StartDate = nullString(start)
	p.EndDate = nullString(end)
	p.IsActive = active != 0
	p.CreatedAt = fromMillis(created)
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO projects (name, team_id, created_by, start_date, end_date, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.TeamID, p.CreatedBy, p.StartDate, p.EndDate, boolInt(p.IsActive), toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProjectNameTaken
		}
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects p WHERE p.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

// ListProjectsForUser returns projects whose team the user owns or belongs to.
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects p
		JOIN teams t ON t.id = p.team_id
		WHERE t.owner_id = ?1
		   OR EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.user_id = ?1)
		ORDER BY p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ProjectNameTaken reports whether another project in teamID uses name.
// excludeID skips the project being renamed; pass 0 on create.
func (s *Store) ProjectNameTaken(ctx context.Context, teamID int64, name string, excludeID int64) (bool, error) {
	var found int
	err := s.q.QueryRowContext(ctx,
		"SELECT 1 FROM projects WHERE team_id = ? AND name = ? AND id != ? LIMIT 1",
		teamID, name, excludeID,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query project name: %w", err)
	}
	return true, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE projects SET name = ?, team_id = ?, start_date = ?, end_date = ?, is_active = ?
		WHERE id = ?`,
		p.Name, p.TeamID, p.StartDate, p.EndDate, boolInt(p.IsActive), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProjectNameTaken
		}
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
