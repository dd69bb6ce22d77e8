// Package access holds the permission and field rules for teams, projects,
// tasks and comments. Rules never touch storage: callers load the records
// and pass them in, and each function checks its rules in order, returning
// the first failure as an *apperr.Error.
package access

import (
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

func is(id *int64, actor int64) bool {
	return id != nil && *id == actor
}

// Teams

func TeamUpdate(actor int64, team *db.Team) error {
	if team.OwnerID != actor {
		return apperr.Permission("You can only update your own teams.")
	}
	return nil
}

func TeamDelete(actor int64, team *db.Team) error {
	if team.OwnerID != actor {
		return apperr.Permission("You can only delete your own teams.")
	}
	return nil
}

// Projects

// ProjectCreate checks that actor may place a project in team.
func ProjectCreate(actor int64, team *db.Team) error {
	if !team.HasMember(actor) {
		return apperr.Validation("team", "You do not have permission to create a project in this team.")
	}
	if !team.IsActive {
		return apperr.Validation("team", "Cannot create a project in an inactive team.")
	}
	return nil
}

// ProjectChange describes which parts of a project an update touches.
type ProjectChange struct {
	General      bool     // name, start_date or end_date present
	MoveTo       *db.Team // destination when the team changes
	ActiveToggle bool     // is_active differs from the stored value
}

func ProjectUpdate(actor int64, p *db.Project, team *db.Team, c ProjectChange) error {
	if c.General && !team.HasMember(actor) {
		return apperr.Permission("You do not have permission to update this project.")
	}
	manager := team.OwnerID == actor || p.CreatedBy == actor
	if c.MoveTo != nil {
		if !manager {
			return apperr.PermissionField("team", "Only the team owner or the project creator can change the team.")
		}
		if !c.MoveTo.IsActive {
			return apperr.Validation("team", "Cannot move a project to an inactive team.")
		}
		if !c.MoveTo.HasMember(actor) {
			return apperr.Validation("team", "You do not have permission to create a project in this team.")
		}
	}
	if c.ActiveToggle && !manager {
		return apperr.PermissionField("is_active", "Only the team owner or the project creator can change is_active.")
	}
	return nil
}

// ProjectDates rejects an end date before the start date.
func ProjectDates(start, end *string) error {
	if start != nil && end != nil && dateBefore(*end, *start) {
		return apperr.Validation(apperr.NonField, "End date must be after start date.")
	}
	return nil
}

func ProjectDelete(actor int64, team *db.Team) error {
	if team.OwnerID != actor {
		return apperr.Permission("Only team owner can delete project.")
	}
	return nil
}

// Tasks

// TaskCreate checks the creator, the optional assignee and the due date.
// today is a YYYY-MM-DD date, see Today.
func TaskCreate(actor int64, team *db.Team, assignee *int64, due *string, today string) error {
	if !team.HasMember(actor) {
		return apperr.Validation("project", "You do not have permission to create a task in this project.")
	}
	if assignee != nil && !team.HasMember(*assignee) {
		return apperr.Validation("assigned_to", "Assigned user must be a member of the team.")
	}
	return dueDate(due, today)
}

// TaskChange describes which task fields an update carries.
type TaskChange struct {
	Structural  bool // title, description or due_date present
	Execution   bool // status or priority present
	AssigneeSet bool
	Assignee    *int64
	DueDate     *string
}

func TaskUpdate(actor int64, task *db.Task, team *db.Team, c TaskChange, today string) error {
	owner := team.OwnerID == actor
	if c.Structural && !owner && !is(task.CreatedBy, actor) {
		return apperr.Permission("Only task creator or team owner can modify task details.")
	}
	if c.Execution && !owner && !is(task.AssignedTo, actor) {
		return apperr.Permission("Only assigned user or team owner can update task status or priority.")
	}
	if c.AssigneeSet {
		if !owner {
			return apperr.PermissionField("assigned_to", "Only team owner can change task assignee.")
		}
		if c.Assignee != nil && !team.HasMember(*c.Assignee) {
			return apperr.Validation("assigned_to", "Assigned user must be a member of the team.")
		}
	}
	return dueDate(c.DueDate, today)
}

func TaskDelete(actor int64, team *db.Team) error {
	if !team.HasMember(actor) {
		return apperr.Permission("You do not have permission to delete this task.")
	}
	return nil
}

func dueDate(due *string, today string) error {
	if due != nil && dateBefore(*due, today) {
		return apperr.Validation("due_date", "Due date cannot be in the past.")
	}
	return nil
}

// Comments

func CommentCreate(actor int64, task *db.Task, team *db.Team) error {
	if !team.HasMember(actor) && !is(task.AssignedTo, actor) {
		return apperr.Permission("You do not have permission to comment on this task.")
	}
	return nil
}

// CommentModify covers both update and delete.
func CommentModify(actor int64, c *db.Comment) error {
	if c.AuthorID != actor {
		return apperr.Permission("You can only modify your own comments.")
	}
	return nil
}

// Visibility

// CanSeeTeam is true for the owner and members.
func CanSeeTeam(actor int64, team *db.Team) bool {
	return team.HasMember(actor)
}

// CanSeeComments is true for team members and the task's assignee.
func CanSeeComments(actor int64, task *db.Task, team *db.Team) bool {
	return team.HasMember(actor) || is(task.AssignedTo, actor)
}
