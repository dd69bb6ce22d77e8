package board

import (
	"context"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

type CommentInput struct {
	Content *string `json:"content"`
}

func (in *CommentInput) fields() error {
	trimSpace(in.Content)
	if in.Content == nil {
		return apperr.Collect(apperr.Fields{"content": {"This field is required."}})
	}
	f := apperr.Fields{}
	f.Check(access.CommentContent(*in.Content))
	return apperr.Collect(f)
}

// commentTask loads the task a comment route is nested under. Team members
// and the task's assignee may see it; everyone else gets a 404.
func commentTask(ctx context.Context, store *db.Store, actor *db.User, taskID int64) (*taskScope, error) {
	sc, err := loadTask(ctx, store, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanSeeComments(actor.ID, sc.task, sc.team) {
		return nil, apperr.NotFound("No Task matches the given query.")
	}
	return sc, nil
}

func (s *Service) ListComments(ctx context.Context, actor *db.User, taskID int64) (_ []CommentView, err error) {
	ctx, span := s.start(ctx, "ListComments", actor)
	defer func() { finish(span, err) }()

	if _, err := commentTask(ctx, s.store, actor, taskID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.commentViews(ctx, comments)
}

func (s *Service) GetComment(ctx context.Context, actor *db.User, taskID, id int64) (_ *CommentView, err error) {
	ctx, span := s.start(ctx, "GetComment", actor)
	defer func() { finish(span, err) }()

	if _, err := commentTask(ctx, s.store, actor, taskID); err != nil {
		return nil, err
	}
	c, err := s.store.GetComment(ctx, taskID, id)
	if err != nil {
		return nil, notFound(err, "Comment")
	}
	return one(ctx, s.commentViews, c)
}

// CreateComment records actor as the author.
func (s *Service) CreateComment(ctx context.Context, actor *db.User, taskID int64, in CommentInput) (_ *CommentView, err error) {
	ctx, span := s.start(ctx, "CreateComment", actor)
	defer func() { finish(span, err) }()

	c := &db.Comment{TaskID: taskID, AuthorID: actor.ID}
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		sc, err := commentTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}
		if err := access.CommentCreate(actor.ID, sc.task, sc.team); err != nil {
			return err
		}
		if err := in.fields(); err != nil {
			return err
		}
		c.Content = *in.Content
		return tx.CreateComment(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return one(ctx, s.commentViews, c)
}

// UpdateComment changes the body only; task and author never move.
func (s *Service) UpdateComment(ctx context.Context, actor *db.User, taskID, id int64, in CommentInput) (_ *CommentView, err error) {
	ctx, span := s.start(ctx, "UpdateComment", actor)
	defer func() { finish(span, err) }()

	var c *db.Comment
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		if _, err := commentTask(ctx, tx, actor, taskID); err != nil {
			return err
		}
		var err error
		if c, err = tx.GetComment(ctx, taskID, id); err != nil {
			return notFound(err, "Comment")
		}
		if err := access.CommentModify(actor.ID, c); err != nil {
			return err
		}
		if in.Content == nil {
			return nil
		}
		if err := in.fields(); err != nil {
			return err
		}
		c.Content = *in.Content
		return tx.UpdateCommentContent(ctx, c.ID, c.Content)
	})
	if err != nil {
		return nil, err
	}
	return one(ctx, s.commentViews, c)
}

func (s *Service) DeleteComment(ctx context.Context, actor *db.User, taskID, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteComment", actor)
	defer func() { finish(span, err) }()

	return s.store.InTx(ctx, func(tx *db.Store) error {
		if _, err := commentTask(ctx, tx, actor, taskID); err != nil {
			return err
		}
		c, err := tx.GetComment(ctx, taskID, id)
		if err != nil {
			return notFound(err, "Comment")
		}
		if err := access.CommentModify(actor.ID, c); err != nil {
			return err
		}
		return tx.DeleteComment(ctx, c.ID)
	})
}
