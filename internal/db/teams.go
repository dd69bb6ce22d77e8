package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const teamColumns = "t.id, t.name, t.owner_id, t.is_active, t.created_at"

func scanTeam(row rowScanner) (*Team, error) {
	var t Team
	var active int
	var created int64
	if err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &active, &created); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	t.CreatedAt = fromMillis(created)
	return &t, nil
}

// CreateTeam inserts t with its member set. The owner is always stored as a
// member.
func (s *Store) CreateTeam(ctx context.Context, t *Team) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return s.InTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx,
			"INSERT INTO teams (name, owner_id, is_active, created_at) VALUES (?, ?, ?, ?)",
			t.Name, t.OwnerID, boolInt(t.IsActive), toMillis(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		t.MemberIDs = withOwner(t.OwnerID, t.MemberIDs)
		return tx.replaceMembers(ctx, t.ID, t.MemberIDs)
	})
}

func (s *Store) GetTeam(ctx context.Context, id int64) (*Team, error) {
	t, err := scanTeam(s.q.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM teams t WHERE t.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query team: %w", err)
	}
	if t.MemberIDs, err = s.teamMembers(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTeamsForUser returns teams the user owns or belongs to.
func (s *Store) ListTeamsForUser(ctx context.Context, userID int64) ([]Team, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+teamColumns+` FROM teams t
		WHERE t.owner_id = ?1
		   OR EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.user_id = ?1)
		ORDER BY t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		teams = append(teams, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range teams {
		if teams[i].MemberIDs, err = s.teamMembers(ctx, teams[i].ID); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

// UpdateTeam writes name, active flag and member set. The owner is re-added
// to the member set if missing; the owner column itself never changes.
func (s *Store) UpdateTeam(ctx context.Context, t *Team) error {
	return s.InTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx,
			"UPDATE teams SET name = ?, is_active = ? WHERE id = ?",
			t.Name, boolInt(t.IsActive), t.ID,
		)
		if err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		t.MemberIDs = withOwner(t.OwnerID, t.MemberIDs)
		return tx.replaceMembers(ctx, t.ID, t.MemberIDs)
	})
}

func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM teams WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) replaceMembers(ctx context.Context, teamID int64, memberIDs []int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM team_members WHERE team_id = ?", teamID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	for _, uid := range memberIDs {
		if _, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO team_members (team_id, user_id) VALUES (?, ?)", teamID, uid,
		); err != nil {
			return fmt.Errorf("insert member %d: %w", uid, err)
		}
	}
	return nil
}

func (s *Store) teamMembers(ctx context.Context, teamID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id", teamID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// withOwner returns ids deduplicated with ownerID present.
func withOwner(ownerID int64, ids []int64) []int64 {
	seen := map[int64]bool{ownerID: true}
	out := []int64{ownerID}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
