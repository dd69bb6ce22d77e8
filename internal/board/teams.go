package board

import (
	"context"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

// TeamInput is the create/update payload. An owner value in the request
// is ignored: the creator owns the team for its whole life.
type TeamInput struct {
	Name     *string  `json:"name"`
	Members  *[]int64 `json:"members"`
	IsActive *bool    `json:"is_active"`
}

func (in *TeamInput) fields(create bool) error {
	trimSpace(in.Name)
	f := apperr.Fields{}
	switch {
	case in.Name != nil:
		f.Check(access.TeamName(*in.Name))
	case create:
		f.Check(access.Required("name"))
	}
	return apperr.Collect(f)
}

func (s *Service) ListTeams(ctx context.Context, actor *db.User) (_ []TeamView, err error) {
	ctx, span := s.start(ctx, "ListTeams", actor)
	defer func() { finish(span, err) }()

	teams, err := s.store.ListTeamsForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.teamViews(ctx, teams)
}

// visibleTeam loads a team, hiding it from users outside it.
func visibleTeam(ctx context.Context, store *db.Store, actor *db.User, id int64) (*db.Team, error) {
	team, err := store.GetTeam(ctx, id)
	if err != nil {
		return nil, notFound(err, "Team")
	}
	if !access.CanSeeTeam(actor.ID, team) {
		return nil, apperr.NotFound("No Team matches the given query.")
	}
	return team, nil
}

func (s *Service) GetTeam(ctx context.Context, actor *db.User, id int64) (_ *TeamView, err error) {
	ctx, span := s.start(ctx, "GetTeam", actor)
	defer func() { finish(span, err) }()

	team, err := visibleTeam(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	return one(ctx, s.teamViews, team)
}

// CreateTeam makes actor the owner. The owner is always a member, even
// with an empty member list.
func (s *Service) CreateTeam(ctx context.Context, actor *db.User, in TeamInput) (_ *TeamView, err error) {
	ctx, span := s.start(ctx, "CreateTeam", actor)
	defer func() { finish(span, err) }()

	if err := in.fields(true); err != nil {
		return nil, err
	}
	team := &db.Team{Name: *in.Name, OwnerID: actor.ID, IsActive: true}
	if in.IsActive != nil {
		team.IsActive = *in.IsActive
	}
	if in.Members != nil {
		team.MemberIDs = *in.Members
	}
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		if err := usersExist(ctx, tx, "members", team.MemberIDs); err != nil {
			return err
		}
		return tx.CreateTeam(ctx, team)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "team created", "team_id", team.ID, "owner_id", actor.ID)
	return one(ctx, s.teamViews, team)
}

// UpdateTeam changes name, active flag or members. Only the owner may
// update; the owner stays a member whatever the payload says.
func (s *Service) UpdateTeam(ctx context.Context, actor *db.User, id int64, in TeamInput) (_ *TeamView, err error) {
	ctx, span := s.start(ctx, "UpdateTeam", actor)
	defer func() { finish(span, err) }()

	var team *db.Team
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		var err error
		if team, err = visibleTeam(ctx, tx, actor, id); err != nil {
			return err
		}
		if err := access.TeamUpdate(actor.ID, team); err != nil {
			return err
		}
		if err := in.fields(false); err != nil {
			return err
		}
		if in.Name != nil {
			team.Name = *in.Name
		}
		if in.IsActive != nil {
			team.IsActive = *in.IsActive
		}
		if in.Members != nil {
			if err := usersExist(ctx, tx, "members", *in.Members); err != nil {
				return err
			}
			team.MemberIDs = *in.Members
		}
		return tx.UpdateTeam(ctx, team)
	})
	if err != nil {
		return nil, err
	}
	return one(ctx, s.teamViews, team)
}

func (s *Service) DeleteTeam(ctx context.Context, actor *db.User, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteTeam", actor)
	defer func() { finish(span, err) }()

	err = s.store.InTx(ctx, func(tx *db.Store) error {
		team, err := visibleTeam(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := access.TeamDelete(actor.ID, team); err != nil {
			return err
		}
		return tx.DeleteTeam(ctx, team.ID)
	})
	if err == nil {
		s.log.InfoContext(ctx, "team deleted", "team_id", id, "actor_id", actor.ID)
	}
	return err
}
