package board

import (
	"context"
	"errors"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

// TaskInput is the create/update payload. The project is fixed once the
// task exists; a project value on update is ignored.
type TaskInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Project     *int64           `json:"project"`
	AssignedTo  Optional[int64]  `json:"assigned_to"`
	Status      *string          `json:"status"`
	Priority    *int             `json:"priority"`
	DueDate     Optional[string] `json:"due_date"`
}

func (in *TaskInput) fields(create bool) error {
	trimSpace(in.Title)
	trimSpace(in.Description)
	f := apperr.Fields{}
	switch {
	case in.Title != nil:
		f.Check(access.TaskTitle(*in.Title))
	case create:
		f.Check(access.Required("title"))
	}
	switch {
	case in.Description != nil:
		f.Check(access.TaskDescription(*in.Description))
	case create:
		f.Check(access.Required("description"))
	}
	if create && in.Project == nil {
		f.Check(access.Required("project"))
	}
	if in.Status != nil {
		f.Check(access.Status(*in.Status))
	}
	if in.Priority != nil {
		f.Check(access.Priority(*in.Priority))
	}
	if in.DueDate.Value != nil {
		f.Check(access.Date("due_date", *in.DueDate.Value))
	}
	return apperr.Collect(f)
}

// TaskQuery narrows ListTasks.
type TaskQuery struct {
	Status       string
	AssignedToMe bool
	Project      int64
}

func (s *Service) ListTasks(ctx context.Context, actor *db.User, q TaskQuery) (_ []TaskView, err error) {
	ctx, span := s.start(ctx, "ListTasks", actor)
	defer func() { finish(span, err) }()

	filter := db.TaskFilter{Status: q.Status, ProjectID: q.Project}
	if q.AssignedToMe {
		filter.AssignedTo = actor.ID
	}
	tasks, err := s.store.ListTasksForUser(ctx, actor.ID, filter)
	if err != nil {
		return nil, err
	}
	return s.taskViews(ctx, tasks)
}

// taskScope is a task with the project and team it lives in.
type taskScope struct {
	task    *db.Task
	project *db.Project
	team    *db.Team
}

func loadTask(ctx context.Context, store *db.Store, id int64) (*taskScope, error) {
	k, err := store.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(err, "Task")
	}
	p, err := store.GetProject(ctx, k.ProjectID)
	if err != nil {
		return nil, err
	}
	team, err := teamOf(ctx, store, p)
	if err != nil {
		return nil, err
	}
	return &taskScope{task: k, project: p, team: team}, nil
}

// visibleTask hides tasks outside the actor's teams.
func visibleTask(ctx context.Context, store *db.Store, actor *db.User, id int64) (*taskScope, error) {
	sc, err := loadTask(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !access.CanSeeTeam(actor.ID, sc.team) {
		return nil, apperr.NotFound("No Task matches the given query.")
	}
	return sc, nil
}

func (s *Service) GetTask(ctx context.Context, actor *db.User, id int64) (_ *TaskView, err error) {
	ctx, span := s.start(ctx, "GetTask", actor)
	defer func() { finish(span, err) }()

	sc, err := visibleTask(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	return one(ctx, s.taskViews, sc.task)
}

func (s *Service) CreateTask(ctx context.Context, actor *db.User, in TaskInput) (_ *TaskView, err error) {
	ctx, span := s.start(ctx, "CreateTask", actor)
	defer func() { finish(span, err) }()

	if err := in.fields(true); err != nil {
		return nil, err
	}
	k := &db.Task{
		Title:       *in.Title,
		Description: *in.Description,
		ProjectID:   *in.Project,
		CreatedBy:   &actor.ID,
		AssignedTo:  in.AssignedTo.Value,
		Status:      deref(in.Status),
		Priority:    deref(in.Priority),
		DueDate:     in.DueDate.Value,
	}
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		p, err := tx.GetProject(ctx, k.ProjectID)
		if errors.Is(err, db.ErrNotFound) {
			return invalidPK("project", k.ProjectID)
		}
		if err != nil {
			return err
		}
		team, err := teamOf(ctx, tx, p)
		if err != nil {
			return err
		}
		if k.AssignedTo != nil {
			if err := usersExist(ctx, tx, "assigned_to", []int64{*k.AssignedTo}); err != nil {
				return err
			}
		}
		if err := access.TaskCreate(actor.ID, team, k.AssignedTo, k.DueDate, s.today()); err != nil {
			return err
		}
		return tx.CreateTask(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "task created", "task_id", k.ID, "project_id", k.ProjectID, "actor_id", actor.ID)
	return one(ctx, s.taskViews, k)
}

// UpdateTask applies a partial update. Which fields are present decides
// which rule applies: details need the creator or team owner, status and
// priority need the assignee or team owner, reassignment needs the owner.
func (s *Service) UpdateTask(ctx context.Context, actor *db.User, id int64, in TaskInput) (_ *TaskView, err error) {
	ctx, span := s.start(ctx, "UpdateTask", actor)
	defer func() { finish(span, err) }()

	var k *db.Task
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		sc, err := visibleTask(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		k = sc.task
		if err := in.fields(false); err != nil {
			return err
		}
		if in.AssignedTo.Value != nil {
			if err := usersExist(ctx, tx, "assigned_to", []int64{*in.AssignedTo.Value}); err != nil {
				return err
			}
		}

		change := access.TaskChange{
			Structural:  in.Title != nil || in.Description != nil || in.DueDate.Set,
			Execution:   in.Status != nil || in.Priority != nil,
			AssigneeSet: in.AssignedTo.Set,
			Assignee:    in.AssignedTo.Value,
			DueDate:     in.DueDate.Value,
		}
		if err := access.TaskUpdate(actor.ID, k, sc.team, change, s.today()); err != nil {
			return err
		}

		if in.Title != nil {
			k.Title = *in.Title
		}
		if in.Description != nil {
			k.Description = *in.Description
		}
		if in.DueDate.Set {
			k.DueDate = in.DueDate.Value
		}
		if in.Status != nil {
			k.Status = *in.Status
		}
		if in.Priority != nil {
			k.Priority = *in.Priority
		}
		if in.AssignedTo.Set {
			k.AssignedTo = in.AssignedTo.Value
		}
		return tx.UpdateTask(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	return one(ctx, s.taskViews, k)
}

// DeleteTask is open to every team member, not only those who may edit.
func (s *Service) DeleteTask(ctx context.Context, actor *db.User, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteTask", actor)
	defer func() { finish(span, err) }()

	err = s.store.InTx(ctx, func(tx *db.Store) error {
		sc, err := visibleTask(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := access.TaskDelete(actor.ID, sc.team); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, sc.task.ID)
	})
	if err == nil {
		s.log.InfoContext(ctx, "task deleted", "task_id", id, "actor_id", actor.ID)
	}
	return err
}
