package board

import (
	"context"
	"errors"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

const msgProjectNameTaken = "A project with this name already exists in the team."

type ProjectInput struct {
	Name      *string          `json:"name"`
	Team      *int64           `json:"team"`
	StartDate Optional[string] `json:"start_date"`
	EndDate   Optional[string] `json:"end_date"`
	IsActive  *bool            `json:"is_active"`
}

func (in *ProjectInput) fields(create bool) error {
	trimSpace(in.Name)
	f := apperr.Fields{}
	switch {
	case in.Name != nil:
		f.Check(access.ProjectName(*in.Name))
	case create:
		f.Check(access.Required("name"))
	}
	if create && in.Team == nil {
		f.Check(access.Required("team"))
	}
	if in.StartDate.Value != nil {
		f.Check(access.Date("start_date", *in.StartDate.Value))
	}
	if in.EndDate.Value != nil {
		f.Check(access.Date("end_date", *in.EndDate.Value))
	}
	return apperr.Collect(f)
}

func (s *Service) ListProjects(ctx context.Context, actor *db.User) (_ []ProjectView, err error) {
	ctx, span := s.start(ctx, "ListProjects", actor)
	defer func() { finish(span, err) }()

	projects, err := s.store.ListProjectsForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.projectViews(ctx, projects)
}

// visibleProject loads a project and its team, hiding both from users
// outside the team.
func visibleProject(ctx context.Context, store *db.Store, actor *db.User, id int64) (*db.Project, *db.Team, error) {
	p, err := store.GetProject(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Project")
	}
	team, err := teamOf(ctx, store, p)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanSeeTeam(actor.ID, team) {
		return nil, nil, apperr.NotFound("No Project matches the given query.")
	}
	return p, team, nil
}

func (s *Service) GetProject(ctx context.Context, actor *db.User, id int64) (_ *ProjectView, err error) {
	ctx, span := s.start(ctx, "GetProject", actor)
	defer func() { finish(span, err) }()

	p, _, err := visibleProject(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	return one(ctx, s.projectViews, p)
}

// referencedTeam loads a team named in a payload. A missing team is a field
// error, not a 404.
func referencedTeam(ctx context.Context, store *db.Store, id int64) (*db.Team, error) {
	team, err := store.GetTeam(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, invalidPK("team", id)
	}
	return team, err
}

func nameTaken(ctx context.Context, store *db.Store, teamID int64, name string, excludeID int64) error {
	taken, err := store.ProjectNameTaken(ctx, teamID, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("name", msgProjectNameTaken)
	}
	return nil
}

func (s *Service) CreateProject(ctx context.Context, actor *db.User, in ProjectInput) (_ *ProjectView, err error) {
	ctx, span := s.start(ctx, "CreateProject", actor)
	defer func() { finish(span, err) }()

	if err := in.fields(true); err != nil {
		return nil, err
	}
	p := &db.Project{
		Name:      *in.Name,
		TeamID:    *in.Team,
		CreatedBy: actor.ID,
		StartDate: in.StartDate.Value,
		EndDate:   in.EndDate.Value,
		IsActive:  true,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		team, err := referencedTeam(ctx, tx, p.TeamID)
		if err != nil {
			return err
		}
		if err := access.ProjectCreate(actor.ID, team); err != nil {
			return err
		}
		if err := access.ProjectDates(p.StartDate, p.EndDate); err != nil {
			return err
		}
		if err := nameTaken(ctx, tx, team.ID, p.Name, 0); err != nil {
			return err
		}
		return tx.CreateProject(ctx, p)
	})
	if errors.Is(err, db.ErrProjectNameTaken) {
		return nil, apperr.Conflict("name", msgProjectNameTaken)
	}
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "project created", "project_id", p.ID, "team_id", p.TeamID, "actor_id", actor.ID)
	return one(ctx, s.projectViews, p)
}

// UpdateProject applies a partial update. Name and dates need team
// membership; moving the project or toggling is_active needs the team
// owner or the project creator.
func (s *Service) UpdateProject(ctx context.Context, actor *db.User, id int64, in ProjectInput) (_ *ProjectView, err error) {
	ctx, span := s.start(ctx, "UpdateProject", actor)
	defer func() { finish(span, err) }()

	var p *db.Project
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		var team *db.Team
		var err error
		if p, team, err = visibleProject(ctx, tx, actor, id); err != nil {
			return err
		}
		if err := in.fields(false); err != nil {
			return err
		}

		change := access.ProjectChange{
			General:      in.Name != nil || in.StartDate.Set || in.EndDate.Set,
			ActiveToggle: in.IsActive != nil && *in.IsActive != p.IsActive,
		}
		if in.Team != nil && *in.Team != p.TeamID {
			if change.MoveTo, err = referencedTeam(ctx, tx, *in.Team); err != nil {
				return err
			}
		}
		if err := access.ProjectUpdate(actor.ID, p, team, change); err != nil {
			return err
		}

		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.StartDate.Set {
			p.StartDate = in.StartDate.Value
		}
		if in.EndDate.Set {
			p.EndDate = in.EndDate.Value
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		if change.MoveTo != nil {
			p.TeamID = change.MoveTo.ID
		}
		if err := access.ProjectDates(p.StartDate, p.EndDate); err != nil {
			return err
		}
		if in.Name != nil || change.MoveTo != nil {
			if err := nameTaken(ctx, tx, p.TeamID, p.Name, p.ID); err != nil {
				return err
			}
		}
		return tx.UpdateProject(ctx, p)
	})
	if errors.Is(err, db.ErrProjectNameTaken) {
		return nil, apperr.Conflict("name", msgProjectNameTaken)
	}
	if err != nil {
		return nil, err
	}
	return one(ctx, s.projectViews, p)
}

func (s *Service) DeleteProject(ctx context.Context, actor *db.User, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteProject", actor)
	defer func() { finish(span, err) }()

	err = s.store.InTx(ctx, func(tx *db.Store) error {
		p, team, err := visibleProject(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := access.ProjectDelete(actor.ID, team); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, p.ID)
	})
	if err == nil {
		s.log.InfoContext(ctx, "project deleted", "project_id", id, "actor_id", actor.ID)
	}
	return err
}
