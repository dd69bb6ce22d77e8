// Package board implements the team, project, task, comment and account
// operations. Every call takes the acting user explicitly; rules come from
// package access and writes run in a single store transaction.
package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/auth"
	"github.com/kidandcat/teamboard/internal/db"
	"github.com/kidandcat/teamboard/internal/telemetry"
)

type Service struct {
	store  *db.Store
	tokens *auth.Issuer
	log    *slog.Logger
	// Now is the clock for due-date checks and login timestamps.
	Now func() time.Time
}

func New(store *db.Store, tokens *auth.Issuer, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, log: logger, Now: time.Now}
}

// Optional is a request field that can be absent, explicitly null, or set.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Of returns a set Optional holding v.
func Of[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set Optional holding null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (s *Service) today() string {
	return access.Today(s.Now())
}

func (s *Service) start(ctx context.Context, op string, actor *db.User) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer().Start(ctx, "board."+op)
	if actor != nil {
		span.SetAttributes(attribute.Int64("teamboard.actor_id", actor.ID))
	}
	return ctx, span
}

// finish ends span, marking it failed for errors that are not ordinary
// domain outcomes.
func finish(span trace.Span, err error) {
	if err != nil && apperr.KindOf(err) == "" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// trimSpace strips surrounding whitespace from an optional text field
// before it is checked and stored.
func trimSpace(p *string) {
	if p != nil {
		*p = strings.TrimSpace(*p)
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(fmt.Sprintf("No %s matches the given query.", what))
	}
	return err
}

func invalidPK(field string, id int64) error {
	return apperr.Validation(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}

// teamOf loads the team that owns project p.
func teamOf(ctx context.Context, store *db.Store, p *db.Project) (*db.Team, error) {
	team, err := store.GetTeam(ctx, p.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load team %d: %w", p.TeamID, err)
	}
	return team, nil
}

// usersExist reports a field error when any id does not name a user.
func usersExist(ctx context.Context, store *db.Store, field string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := store.UsersByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return invalidPK(field, id)
		}
	}
	return nil
}
