package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "teamboard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func mustUser(t *testing.T, s *Store, username string) *User {
	t.Helper()
	u := &User{Username: username, Email: username + "@example.com", PasswordHash: "x", IsActive: true}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustTeam(t *testing.T, s *Store, name string, owner int64, members ...int64) *Team {
	t.Helper()
	team := &Team{Name: name, OwnerID: owner, IsActive: true, MemberIDs: members}
	if err := s.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("create team %s: %v", name, err)
	}
	return team
}

func mustProject(t *testing.T, s *Store, name string, teamID, creator int64) *Project {
	t.Helper()
	p := &Project{Name: name, TeamID: teamID, CreatedBy: creator, IsActive: true}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenTwiceKeepsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamboard.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustUser(t, first, "alice")
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.GetUserByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("expected user to survive reopen: %v", err)
	}
}

func TestUpSection(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;")
	if got != "\nCREATE TABLE a (id INT);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
	if upSection("SELECT 1;") != "SELECT 1;" {
		t.Fatal("expected whole content without markers")
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := openTempStore(t)
	mustUser(t, s, "alice")
	err := s.CreateUser(context.Background(), &User{Username: "alice", PasswordHash: "x"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := openTempStore(t)
	if _, err := s.GetUser(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersByID(t *testing.T) {
	s := openTempStore(t)
	a := mustUser(t, s, "alice")
	b := mustUser(t, s, "bob")

	got, err := s.UsersByID(context.Background(), []int64{a.ID, b.ID, 404})
	if err != nil {
		t.Fatalf("users by id: %v", err)
	}
	if len(got) != 2 || got[a.ID].Username != "alice" || got[b.ID].Username != "bob" {
		t.Fatalf("unexpected users %+v", got)
	}
}

func TestTeamOwnerAlwaysMember(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	member := mustUser(t, s, "member")

	team := mustTeam(t, s, "Team A", owner.ID)
	got, err := s.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if len(got.MemberIDs) != 1 || got.MemberIDs[0] != owner.ID {
		t.Fatalf("expected only owner as member, got %v", got.MemberIDs)
	}

	got.MemberIDs = []int64{member.ID}
	if err := s.UpdateTeam(ctx, got); err != nil {
		t.Fatalf("update team: %v", err)
	}
	got, err = s.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if !got.HasMember(owner.ID) || !got.HasMember(member.ID) || len(got.MemberIDs) != 2 {
		t.Fatalf("expected owner and member, got %v", got.MemberIDs)
	}
}

func TestListTeamsForUser(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	member := mustUser(t, s, "member")
	outsider := mustUser(t, s, "outsider")
	mustTeam(t, s, "Team A", owner.ID, member.ID)
	mustTeam(t, s, "Team B", member.ID)

	cases := map[int64]int{owner.ID: 1, member.ID: 2, outsider.ID: 0}
	for uid, want := range cases {
		teams, err := s.ListTeamsForUser(ctx, uid)
		if err != nil {
			t.Fatalf("list teams: %v", err)
		}
		if len(teams) != want {
			t.Fatalf("user %d: expected %d teams, got %d", uid, want, len(teams))
		}
	}
}

func TestProjectNameUniquePerTeam(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	teamA := mustTeam(t, s, "A", owner.ID)
	teamB := mustTeam(t, s, "B", owner.ID)
	p1 := mustProject(t, s, "Alpha", teamA.ID, owner.ID)
	mustProject(t, s, "Alpha", teamB.ID, owner.ID)

	err := s.CreateProject(ctx, &Project{Name: "Alpha", TeamID: teamA.ID, CreatedBy: owner.ID})
	if !errors.Is(err, ErrProjectNameTaken) {
		t.Fatalf("expected ErrProjectNameTaken, got %v", err)
	}

	taken, err := s.ProjectNameTaken(ctx, teamA.ID, "Alpha", p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if taken {
		t.Fatal("renaming a project to its own name must not count as taken")
	}
	taken, err = s.ProjectNameTaken(ctx, teamA.ID, "Alpha", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !taken {
		t.Fatal("expected name taken")
	}
}

func TestDeleteTeamCascades(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	team := mustTeam(t, s, "A", owner.ID)
	p := mustProject(t, s, "Alpha", team.ID, owner.ID)
	task := &Task{Title: "t", Description: "d", ProjectID: p.ID, CreatedBy: &owner.ID}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	c := &Comment{TaskID: task.ID, AuthorID: owner.ID, Content: "hi"}
	if err := s.CreateComment(ctx, c); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTeam(ctx, team.ID); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected project gone, got %v", err)
	}
	if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected task gone, got %v", err)
	}
	if _, err := s.GetComment(ctx, task.ID, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected comment gone, got %v", err)
	}
}

func TestListTasksForUserFilters(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	member := mustUser(t, s, "member")
	outsider := mustUser(t, s, "outsider")
	team := mustTeam(t, s, "A", owner.ID, member.ID)
	p := mustProject(t, s, "Alpha", team.ID, owner.ID)

	for _, k := range []*Task{
		{Title: "one", Description: "d", ProjectID: p.ID, AssignedTo: &member.ID},
		{Title: "two", Description: "d", ProjectID: p.ID, Status: StatusDoing},
		{Title: "three", Description: "d", ProjectID: p.ID, Status: StatusDone, AssignedTo: &member.ID},
	} {
		if err := s.CreateTask(ctx, k); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		user   int64
		filter TaskFilter
		want   int
	}{
		{"owner sees all", owner.ID, TaskFilter{}, 3},
		{"member sees all", member.ID, TaskFilter{}, 3},
		{"outsider sees none", outsider.ID, TaskFilter{}, 0},
		{"status filter", owner.ID, TaskFilter{Status: StatusDoing}, 1},
		{"assigned filter", member.ID, TaskFilter{AssignedTo: member.ID}, 2},
		{"combined", member.ID, TaskFilter{AssignedTo: member.ID, Status: StatusDone}, 1},
		{"project filter", owner.ID, TaskFilter{ProjectID: p.ID + 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTasksForUser(ctx, tt.user, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d tasks, got %d", tt.want, len(got))
			}
		})
	}
}

func TestTaskDefaults(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner")
	team := mustTeam(t, s, "A", owner.ID)
	p := mustProject(t, s, "Alpha", team.ID, owner.ID)
	due := "2030-01-02"
	k := &Task{Title: "t", Description: "d", ProjectID: p.ID, DueDate: &due}
	if err := s.CreateTask(ctx, k); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusTodo || got.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults %s/%d", got.Status, got.Priority)
	}
	if got.DueDate == nil || *got.DueDate != due {
		t.Fatalf("unexpected due date %v", got.DueDate)
	}
	if got.AssignedTo != nil || got.CreatedBy != nil {
		t.Fatal("expected nil creator and assignee")
	}
}

func TestDeactivateInactiveUsers(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	stale := mustUser(t, s, "stale")
	recent := mustUser(t, s, "recent")
	never := mustUser(t, s, "never")
	if err := s.TouchLastLogin(ctx, stale.ID, now.Add(-40*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchLastLogin(ctx, recent.ID, now.Add(-2*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeactivateInactiveUsers(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deactivated, got %d", n)
	}
	for _, tc := range []struct {
		id     int64
		active bool
	}{{stale.ID, false}, {recent.ID, true}, {never.ID, true}} {
		u, err := s.GetUser(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if u.IsActive != tc.active {
			t.Fatalf("user %s: expected active=%v", u.Username, tc.active)
		}
	}

	n, err = s.DeactivateInactiveUsers(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected idempotent second run, got %d", n)
	}
}

func TestRevokedTokens(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice")
	now := time.Now()

	if err := s.RevokeToken(ctx, "old", u.ID, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeToken(ctx, "live", u.ID, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeToken(ctx, "live", u.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}

	revoked, err := s.IsTokenRevoked(ctx, "live")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	n, err := s.PruneRevokedTokens(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if revoked, _ := s.IsTokenRevoked(ctx, "old"); revoked {
		t.Fatal("expected old entry pruned")
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Store) error {
		if err := tx.CreateUser(ctx, &User{Username: "ghost", PasswordHash: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}
