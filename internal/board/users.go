package board

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kidandcat/teamboard/internal/access"
	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/auth"
	"github.com/kidandcat/teamboard/internal/db"
)

type RegisterInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UserUpdate is the payload of an account update. Only admins may change
// role or active state.
type UserUpdate struct {
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type LoginInput struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

const msgBadCredentials = "No active account found with the given credentials."

// Register creates an active member account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *UserSummary, err error) {
	ctx, span := s.start(ctx, "Register", nil)
	defer func() { finish(span, err) }()
	return s.register(ctx, in, db.RoleMember)
}

// EnsureAdmin gives the named account the admin role, creating it when it
// does not exist yet. An existing account is also reactivated and keeps its
// password.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (_ *UserSummary, err error) {
	ctx, span := s.start(ctx, "EnsureAdmin", nil)
	defer func() { finish(span, err) }()

	existing, err := s.store.GetUserByUsername(ctx, deref(in.Username))
	switch {
	case errors.Is(err, db.ErrNotFound):
		return s.register(ctx, in, db.RoleAdmin)
	case err != nil:
		return nil, err
	}
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		if err := tx.SetUserRole(ctx, existing.ID, db.RoleAdmin); err != nil {
			return err
		}
		return tx.SetUserActive(ctx, existing.ID, true)
	})
	if err != nil {
		return nil, err
	}
	existing.Role, existing.IsActive = db.RoleAdmin, true
	s.log.InfoContext(ctx, "user promoted to admin", "user_id", existing.ID)
	sum := summarize(existing)
	return &sum, nil
}

func (s *Service) register(ctx context.Context, in RegisterInput, role string) (*UserSummary, error) {
	f := apperr.Fields{}
	username, email, password := deref(in.Username), strings.TrimSpace(deref(in.Email)), deref(in.Password)
	if in.Username == nil {
		f.Check(access.Required("username"))
	} else {
		f.Check(access.Username(username))
	}
	if in.Email == nil {
		f.Check(access.Required("email"))
	} else {
		f.Check(checkEmail(email))
	}
	if in.Password == nil {
		f.Check(access.Required("password"))
	} else if password == "" {
		f.Add("password", "This field may not be blank.")
	} else {
		for _, msg := range auth.ValidatePassword(password, username, email) {
			f.Add("password", msg)
		}
	}
	if err := apperr.Collect(f); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &db.User{Username: username, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrUsernameTaken) {
			return nil, apperr.Conflict("username", "A user with that username already exists.")
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username, "role", role)
	sum := summarize(u)
	return &sum, nil
}

// Login checks credentials, records the login time and issues a token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ auth.Pair, err error) {
	ctx, span := s.start(ctx, "Login", nil)
	defer func() { finish(span, err) }()

	f := apperr.Fields{}
	if strings.TrimSpace(deref(in.Username)) == "" {
		f.Check(access.Required("username"))
	}
	if deref(in.Password) == "" {
		f.Check(access.Required("password"))
	}
	if err := apperr.Collect(f); err != nil {
		return auth.Pair{}, err
	}

	u, err := s.store.GetUserByUsername(ctx, *in.Username)
	if errors.Is(err, db.ErrNotFound) {
		return auth.Pair{}, apperr.Validation(apperr.NonField, msgBadCredentials)
	}
	if err != nil {
		return auth.Pair{}, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, *in.Password) {
		return auth.Pair{}, apperr.Validation(apperr.NonField, msgBadCredentials)
	}

	if err := s.store.TouchLastLogin(ctx, u.ID, s.Now()); err != nil {
		return auth.Pair{}, err
	}
	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return auth.Pair{}, err
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return pair, nil
}

// Refresh exchanges an unrevoked refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refresh string) (_ string, err error) {
	ctx, span := s.start(ctx, "Refresh", nil)
	defer func() { finish(span, err) }()

	if strings.TrimSpace(refresh) == "" {
		return "", apperr.Validation("refresh", "This field is required.")
	}
	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", err
	}
	revoked, err := s.store.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", apperr.Unauthenticated("Token is blacklisted.")
	}
	u, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return "", apperr.Unauthenticated("User not found.")
	}
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", apperr.Unauthenticated("User is inactive.")
	}
	return s.tokens.IssueAccess(u.ID)
}

// Logout revokes the actor's refresh token.
func (s *Service) Logout(ctx context.Context, actor *db.User, refresh string) (err error) {
	ctx, span := s.start(ctx, "Logout", actor)
	defer func() { finish(span, err) }()

	if strings.TrimSpace(refresh) == "" {
		return apperr.Validation("refresh", "This field is required.")
	}
	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return apperr.Validation("refresh", "Token is invalid or expired.")
	}
	if claims.UserID != actor.ID {
		return apperr.Validation("refresh", "Token does not belong to the current user.")
	}
	revoked, err := s.store.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return err
	}
	if revoked {
		return apperr.Validation("refresh", "Token is blacklisted.")
	}
	if err := s.store.RevokeToken(ctx, claims.JTI, actor.ID, claims.ExpiresAt); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user logged out", "user_id", actor.ID)
	return nil
}

// Authenticate resolves an access token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*db.User, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Unauthenticated("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("User is inactive.")
	}
	return u, nil
}

// ListUsers returns every user to admins and only the actor to members.
func (s *Service) ListUsers(ctx context.Context, actor *db.User) (_ []UserSummary, err error) {
	ctx, span := s.start(ctx, "ListUsers", actor)
	defer func() { finish(span, err) }()

	if actor.Role != db.RoleAdmin {
		return []UserSummary{summarize(actor)}, nil
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, summarize(&users[i]))
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, actor *db.User, id int64) (_ *UserSummary, err error) {
	ctx, span := s.start(ctx, "GetUser", actor)
	defer func() { finish(span, err) }()

	if actor.Role != db.RoleAdmin && actor.ID != id {
		return nil, apperr.NotFound("No User matches the given query.")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFound(err, "User")
	}
	sum := summarize(u)
	return &sum, nil
}

// UpdateUser applies an account update. Members may only change their own
// email; admins may change anyone but cannot demote or deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, actor *db.User, id int64, in UserUpdate) (_ *UserSummary, err error) {
	ctx, span := s.start(ctx, "UpdateUser", actor)
	defer func() { finish(span, err) }()

	admin := actor.Role == db.RoleAdmin
	if !admin && actor.ID != id {
		return nil, apperr.NotFound("No User matches the given query.")
	}
	f := apperr.Fields{}
	if in.Email != nil {
		f.Check(checkEmail(strings.TrimSpace(*in.Email)))
	}
	if in.Role != nil && *in.Role != db.RoleAdmin && *in.Role != db.RoleMember {
		f.Add("role", fmt.Sprintf("%q is not a valid choice.", *in.Role))
	}
	if err := apperr.Collect(f); err != nil {
		return nil, err
	}
	if !admin && (in.Role != nil || in.IsActive != nil) {
		return nil, apperr.Permission("You do not have permission to perform this action.")
	}
	if actor.ID == id && ((in.Role != nil && *in.Role != db.RoleAdmin && admin) || (in.IsActive != nil && !*in.IsActive)) {
		return nil, apperr.Validation(apperr.NonField, "You cannot demote or deactivate yourself.")
	}

	var u *db.User
	err = s.store.InTx(ctx, func(tx *db.Store) error {
		if u, err = tx.GetUser(ctx, id); err != nil {
			return notFound(err, "User")
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
			if err := tx.UpdateUserEmail(ctx, id, u.Email); err != nil {
				return err
			}
		}
		if in.Role != nil {
			u.Role = *in.Role
			if err := tx.SetUserRole(ctx, id, u.Role); err != nil {
				return err
			}
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
			if err := tx.SetUserActive(ctx, id, u.IsActive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user updated", "user_id", id, "actor_id", actor.ID)
	sum := summarize(u)
	return &sum, nil
}

// DeleteUser removes an account. Admin only, and never the admin's own.
func (s *Service) DeleteUser(ctx context.Context, actor *db.User, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteUser", actor)
	defer func() { finish(span, err) }()

	switch {
	case actor.Role != db.RoleAdmin && actor.ID != id:
		return apperr.NotFound("No User matches the given query.")
	case actor.Role != db.RoleAdmin:
		return apperr.Permission("You do not have permission to perform this action.")
	case actor.ID == id:
		return apperr.Validation(apperr.NonField, "You cannot delete yourself.")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, db.ErrUserInUse) {
			return apperr.Validation(apperr.NonField, "User has created projects and cannot be deleted.")
		}
		return notFound(err, "User")
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}

// checkEmail accepts a blank address; anything else must be a bare
// addr-spec.
func checkEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return apperr.Validation("email", "Enter a valid email address.")
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
