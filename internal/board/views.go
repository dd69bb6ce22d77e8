package board

import (
	"context"
	"time"

	"github.com/kidandcat/teamboard/internal/db"
	"github.com/kidandcat/teamboard/internal/markdown"
)

// UserSummary is the public shape of a user, embedded as *_detail.
type UserSummary struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	DateJoined time.Time  `json:"date_joined"`
}

func summarize(u *db.User) UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		DateJoined: u.DateJoined,
	}
}

type TeamView struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Owner         int64         `json:"owner"`
	OwnerDetail   *UserSummary  `json:"owner_detail"`
	Members       []int64       `json:"members"`
	MembersDetail []UserSummary `json:"members_detail"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TeamRef is the short team form nested in projects.
type TeamRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Owner    int64  `json:"owner"`
	IsActive bool   `json:"is_active"`
}

type ProjectView struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Team            int64        `json:"team"`
	TeamDetail      *TeamRef     `json:"team_detail"`
	CreatedBy       int64        `json:"created_by"`
	CreatedByDetail *UserSummary `json:"created_by_detail"`
	StartDate       *string      `json:"start_date"`
	EndDate         *string      `json:"end_date"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ProjectRef is the short project form nested in tasks.
type ProjectRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Team int64  `json:"team"`
}

type TaskView struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	DescriptionHTML  string       `json:"description_html"`
	Project          int64        `json:"project"`
	ProjectDetail    *ProjectRef  `json:"project_detail"`
	CreatedBy        *int64       `json:"created_by"`
	CreatedByDetail  *UserSummary `json:"created_by_detail"`
	AssignedTo       *int64       `json:"assigned_to"`
	AssignedToDetail *UserSummary `json:"assigned_to_detail"`
	Status           string       `json:"status"`
	Priority         int          `json:"priority"`
	DueDate          *string      `json:"due_date"`
	CreatedAt        time.Time    `json:"created_at"`
}

type CommentView struct {
	ID           int64        `json:"id"`
	Task         int64        `json:"task"`
	Author       int64        `json:"author"`
	AuthorDetail *UserSummary `json:"author_detail"`
	Content      string       `json:"content"`
	ContentHTML  string       `json:"content_html"`
	CreatedAt    time.Time    `json:"created_at"`
}

// userIndex resolves user summaries for a batch of records with one query.
type userIndex map[int64]*db.User

func (s *Service) loadUsers(ctx context.Context, ids []int64) (userIndex, error) {
	users, err := s.store.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	return userIndex(users), nil
}

func (ix userIndex) summary(id int64) *UserSummary {
	u, ok := ix[id]
	if !ok {
		return nil
	}
	sum := summarize(u)
	return &sum
}

func (ix userIndex) optional(id *int64) *UserSummary {
	if id == nil {
		return nil
	}
	return ix.summary(*id)
}

func (s *Service) teamViews(ctx context.Context, teams []db.Team) ([]TeamView, error) {
	var ids []int64
	for _, t := range teams {
		ids = append(ids, t.MemberIDs...)
		ids = append(ids, t.OwnerID)
	}
	ix, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TeamView, 0, len(teams))
	for _, t := range teams {
		v := TeamView{
			ID:            t.ID,
			Name:          t.Name,
			Owner:         t.OwnerID,
			OwnerDetail:   ix.summary(t.OwnerID),
			Members:       append([]int64{}, t.MemberIDs...),
			MembersDetail: []UserSummary{},
			IsActive:      t.IsActive,
			CreatedAt:     t.CreatedAt,
		}
		for _, id := range t.MemberIDs {
			if sum := ix.summary(id); sum != nil {
				v.MembersDetail = append(v.MembersDetail, *sum)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) projectViews(ctx context.Context, projects []db.Project) ([]ProjectView, error) {
	var ids []int64
	teams := map[int64]*db.Team{}
	for _, p := range projects {
		ids = append(ids, p.CreatedBy)
		if _, ok := teams[p.TeamID]; !ok {
			t, err := s.store.GetTeam(ctx, p.TeamID)
			if err != nil {
				return nil, err
			}
			teams[p.TeamID] = t
		}
	}
	ix, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		t := teams[p.TeamID]
		out = append(out, ProjectView{
			ID:              p.ID,
			Name:            p.Name,
			Team:            p.TeamID,
			TeamDetail:      &TeamRef{ID: t.ID, Name: t.Name, Owner: t.OwnerID, IsActive: t.IsActive},
			CreatedBy:       p.CreatedBy,
			CreatedByDetail: ix.summary(p.CreatedBy),
			StartDate:       p.StartDate,
			EndDate:         p.EndDate,
			IsActive:        p.IsActive,
			CreatedAt:       p.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) taskViews(ctx context.Context, tasks []db.Task) ([]TaskView, error) {
	var ids []int64
	projects := map[int64]*db.Project{}
	for _, k := range tasks {
		if k.CreatedBy != nil {
			ids = append(ids, *k.CreatedBy)
		}
		if k.AssignedTo != nil {
			ids = append(ids, *k.AssignedTo)
		}
		if _, ok := projects[k.ProjectID]; !ok {
			p, err := s.store.GetProject(ctx, k.ProjectID)
			if err != nil {
				return nil, err
			}
			projects[k.ProjectID] = p
		}
	}
	ix, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TaskView, 0, len(tasks))
	for _, k := range tasks {
		p := projects[k.ProjectID]
		out = append(out, TaskView{
			ID:               k.ID,
			Title:            k.Title,
			Description:      k.Description,
			DescriptionHTML:  markdown.Render(k.Description),
			Project:          k.ProjectID,
			ProjectDetail:    &ProjectRef{ID: p.ID, Name: p.Name, Team: p.TeamID},
			CreatedBy:        k.CreatedBy,
			CreatedByDetail:  ix.optional(k.CreatedBy),
			AssignedTo:       k.AssignedTo,
			AssignedToDetail: ix.optional(k.AssignedTo),
			Status:           k.Status,
			Priority:         k.Priority,
			DueDate:          k.DueDate,
			CreatedAt:        k.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) commentViews(ctx context.Context, comments []db.Comment) ([]CommentView, error) {
	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	ix, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentView{
			ID:           c.ID,
			Task:         c.TaskID,
			Author:       c.AuthorID,
			AuthorDetail: ix.summary(c.AuthorID),
			Content:      c.Content,
			ContentHTML:  markdown.Render(c.Content),
			CreatedAt:    c.CreatedAt,
		})
	}
	return out, nil
}

// one adapts the batch view builders to a single record.
func one[T any, V any](ctx context.Context, build func(context.Context, []T) ([]V, error), item *T) (*V, error) {
	views, err := build(ctx, []T{*item})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
