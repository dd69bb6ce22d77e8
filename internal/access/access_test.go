package access

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

const (
	owner    int64 = 1
	member   int64 = 2
	outsider int64 = 3
	assignee int64 = 4
	creator  int64 = 5
)

const today = "2026-05-10"

func ptr[T any](v T) *T { return &v }

func testTeam() *db.Team {
	return &db.Team{ID: 10, OwnerID: owner, IsActive: true, MemberIDs: []int64{owner, member, assignee, creator}}
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	if err == nil {
		return ""
	}
	k := apperr.KindOf(err)
	if k == "" {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	return k
}

func TestTeamRules(t *testing.T) {
	team := testTeam()
	if err := TeamUpdate(owner, team); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if kindOf(t, TeamUpdate(member, team)) != apperr.KindPermission {
		t.Fatal("member update should be denied")
	}
	if err := TeamDelete(owner, team); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if kindOf(t, TeamDelete(member, team)) != apperr.KindPermission {
		t.Fatal("member delete should be denied")
	}
}

func TestProjectCreate(t *testing.T) {
	inactive := testTeam()
	inactive.IsActive = false

	tests := []struct {
		name  string
		actor int64
		team  *db.Team
		kind  apperr.Kind
	}{
		{"owner", owner, testTeam(), ""},
		{"member", member, testTeam(), ""},
		{"outsider", outsider, testTeam(), apperr.KindValidation},
		{"inactive team", owner, inactive, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProjectCreate(tt.actor, tt.team)
			if got := kindOf(t, err); got != tt.kind {
				t.Fatalf("expected %q, got %q (%v)", tt.kind, got, err)
			}
			if err != nil && !errors.Is(err, &apperr.Error{Kind: apperr.KindValidation, Field: "team"}) {
				t.Fatalf("expected error on team field, got %v", err)
			}
		})
	}
}

func TestProjectUpdate(t *testing.T) {
	project := &db.Project{ID: 1, TeamID: 10, CreatedBy: creator}
	other := &db.Team{ID: 11, OwnerID: member, IsActive: true, MemberIDs: []int64{member, creator}}
	closed := &db.Team{ID: 12, OwnerID: creator, IsActive: false, MemberIDs: []int64{creator}}

	tests := []struct {
		name   string
		actor  int64
		change ProjectChange
		kind   apperr.Kind
		field  string
	}{
		{"member renames", member, ProjectChange{General: true}, "", ""},
		{"outsider renames", outsider, ProjectChange{General: true}, apperr.KindPermission, ""},
		{"creator moves", creator, ProjectChange{MoveTo: other}, "", ""},
		{"member moves", member, ProjectChange{MoveTo: other}, apperr.KindPermission, "team"},
		{"move to inactive", creator, ProjectChange{MoveTo: closed}, apperr.KindValidation, "team"},
		{"owner moves outside own teams", owner, ProjectChange{MoveTo: other}, apperr.KindValidation, "team"},
		{"owner toggles", owner, ProjectChange{ActiveToggle: true}, "", ""},
		{"creator toggles", creator, ProjectChange{ActiveToggle: true}, "", ""},
		{"member toggles", member, ProjectChange{ActiveToggle: true}, apperr.KindPermission, "is_active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProjectUpdate(tt.actor, project, testTeam(), tt.change)
			if got := kindOf(t, err); got != tt.kind {
				t.Fatalf("expected %q, got %q (%v)", tt.kind, got, err)
			}
			if tt.field != "" && !errors.Is(err, &apperr.Error{Kind: tt.kind, Field: tt.field}) {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestProjectDates(t *testing.T) {
	if err := ProjectDates(ptr("2026-01-01"), ptr("2026-02-01")); err != nil {
		t.Fatalf("ordered dates: %v", err)
	}
	if err := ProjectDates(ptr("2026-01-01"), ptr("2026-01-01")); err != nil {
		t.Fatalf("same day: %v", err)
	}
	if err := ProjectDates(nil, ptr("2020-01-01")); err != nil {
		t.Fatalf("open start: %v", err)
	}
	err := ProjectDates(ptr("2026-02-01"), ptr("2026-01-01"))
	if !errors.Is(err, &apperr.Error{Kind: apperr.KindValidation, Field: apperr.NonField}) {
		t.Fatalf("expected non-field validation error, got %v", err)
	}
}

func TestProjectDelete(t *testing.T) {
	if err := ProjectDelete(owner, testTeam()); err != nil {
		t.Fatal(err)
	}
	if kindOf(t, ProjectDelete(member, testTeam())) != apperr.KindPermission {
		t.Fatal("member delete should be denied")
	}
}

func TestTaskCreate(t *testing.T) {
	tests := []struct {
		name     string
		actor    int64
		assignee *int64
		due      *string
		field    string
	}{
		{"member with assignee", member, ptr(assignee), ptr("2026-05-10"), ""},
		{"owner without assignee", owner, nil, nil, ""},
		{"outsider", outsider, nil, nil, "project"},
		{"assignee outside team", member, ptr(outsider), nil, "assigned_to"},
		{"past due date", member, nil, ptr("2026-05-09"), "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TaskCreate(tt.actor, testTeam(), tt.assignee, tt.due, today)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, &apperr.Error{Kind: apperr.KindValidation, Field: tt.field}) {
				t.Fatalf("expected validation on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestTaskUpdate(t *testing.T) {
	task := &db.Task{ID: 1, CreatedBy: ptr(creator), AssignedTo: ptr(assignee)}
	structural := TaskChange{Structural: true}
	execution := TaskChange{Execution: true}

	tests := []struct {
		name   string
		actor  int64
		change TaskChange
		kind   apperr.Kind
	}{
		{"creator edits details", creator, structural, ""},
		{"owner edits details", owner, structural, ""},
		{"assignee edits details", assignee, structural, apperr.KindPermission},
		{"member edits details", member, structural, apperr.KindPermission},
		{"outsider edits details", outsider, structural, apperr.KindPermission},
		{"assignee moves status", assignee, execution, ""},
		{"owner moves status", owner, execution, ""},
		{"creator moves status", creator, execution, apperr.KindPermission},
		{"outsider moves status", outsider, execution, apperr.KindPermission},
		{"owner reassigns", owner, TaskChange{AssigneeSet: true, Assignee: ptr(member)}, ""},
		{"owner unassigns", owner, TaskChange{AssigneeSet: true}, ""},
		{"member reassigns", member, TaskChange{AssigneeSet: true, Assignee: ptr(member)}, apperr.KindPermission},
		{"owner assigns outsider", owner, TaskChange{AssigneeSet: true, Assignee: ptr(outsider)}, apperr.KindValidation},
		{"past due date", owner, TaskChange{Structural: true, DueDate: ptr("2026-01-01")}, apperr.KindValidation},
		{"nothing changed", outsider, TaskChange{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TaskUpdate(tt.actor, task, testTeam(), tt.change, today)
			if got := kindOf(t, err); got != tt.kind {
				t.Fatalf("expected %q, got %q (%v)", tt.kind, got, err)
			}
		})
	}
}

func TestTaskUpdateNilCreator(t *testing.T) {
	task := &db.Task{ID: 1}
	err := TaskUpdate(member, task, testTeam(), TaskChange{Structural: true}, today)
	if kindOf(t, err) != apperr.KindPermission {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestTaskDelete(t *testing.T) {
	for _, actor := range []int64{owner, member, assignee} {
		if err := TaskDelete(actor, testTeam()); err != nil {
			t.Fatalf("actor %d: %v", actor, err)
		}
	}
	if kindOf(t, TaskDelete(outsider, testTeam())) != apperr.KindPermission {
		t.Fatal("outsider delete should be denied")
	}
}

func TestCommentRules(t *testing.T) {
	team := &db.Team{ID: 10, OwnerID: owner, IsActive: true, MemberIDs: []int64{owner, member}}
	task := &db.Task{ID: 1, AssignedTo: ptr(assignee)}

	for _, actor := range []int64{owner, member, assignee} {
		if err := CommentCreate(actor, task, team); err != nil {
			t.Fatalf("actor %d: %v", actor, err)
		}
		if !CanSeeComments(actor, task, team) {
			t.Fatalf("actor %d should see comments", actor)
		}
	}
	if kindOf(t, CommentCreate(outsider, task, team)) != apperr.KindPermission {
		t.Fatal("outsider comment should be denied")
	}
	if CanSeeComments(outsider, task, team) {
		t.Fatal("outsider should not see comments")
	}

	c := &db.Comment{AuthorID: member}
	if err := CommentModify(member, c); err != nil {
		t.Fatal(err)
	}
	if kindOf(t, CommentModify(owner, c)) != apperr.KindPermission {
		t.Fatal("only the author may modify a comment")
	}
}

func TestFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"blank team name", TeamName("  "), "name"},
		{"long team name", TeamName(strings.Repeat("a", MaxTeamName+1)), "name"},
		{"long project name", ProjectName(strings.Repeat("a", MaxProjectName+1)), "name"},
		{"long title", TaskTitle(strings.Repeat("é", MaxTaskTitle+1)), "title"},
		{"blank description", TaskDescription(""), "description"},
		{"blank comment", CommentContent("\n"), "content"},
		{"bad status", Status("blocked"), "status"},
		{"bad priority", Priority(7), "priority"},
		{"bad date", Date("due_date", "10/05/2026"), "due_date"},
		{"username spaces", Username("john smith"), "username"},
		{"username too long", Username(strings.Repeat("u", MaxUsername+1)), "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, &apperr.Error{Kind: apperr.KindValidation, Field: tt.field}) {
				t.Fatalf("expected validation on %q, got %v", tt.field, tt.err)
			}
		})
	}

	for _, err := range []error{
		TeamName(strings.Repeat("a", MaxTeamName)),
		TaskTitle("Ship it"),
		Status(db.StatusDoing),
		Priority(db.PriorityLow),
		Date("start_date", "2026-02-28"),
		Username("john.smith+dev@example"),
	} {
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.Local)
	if got := Today(now); got != "2026-05-10" {
		t.Fatalf("unexpected today %q", got)
	}
}
