package auth

import (
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/config"
	"github.com/kidandcat/teamboard/internal/db"
)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	cfg := config.Default().Auth
	cfg.JWTSecret = "test-secret"
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(config.Default().Auth); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestIssueAndParsePair(t *testing.T) {
	iss := testIssuer(t)
	pair, err := iss.IssuePair(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, err := iss.ParseAccess(pair.Access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if access.UserID != 42 || access.TokenType != TypeAccess || access.JTI == "" {
		t.Fatalf("unexpected access claims %+v", access)
	}

	refresh, err := iss.ParseRefresh(pair.Refresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if refresh.JTI == access.JTI {
		t.Fatal("expected distinct jti values")
	}
	if !refresh.ExpiresAt.After(access.ExpiresAt) {
		t.Fatal("expected refresh to outlive access")
	}
}

func TestParseRejects(t *testing.T) {
	iss := testIssuer(t)
	pair, err := iss.IssuePair(7)
	if err != nil {
		t.Fatal(err)
	}

	other := testIssuer(t)
	other.secret = []byte("another-secret")
	foreign, err := other.IssueAccess(7)
	if err != nil {
		t.Fatal(err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "7", "jti": "x", "token_type": TypeAccess, "iss": "teamboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		parse func(string) (Claims, error)
		token string
	}{
		{"empty", iss.ParseAccess, ""},
		{"garbage", iss.ParseAccess, "not.a.token"},
		{"refresh as access", iss.ParseAccess, pair.Refresh},
		{"access as refresh", iss.ParseRefresh, pair.Access},
		{"wrong secret", iss.ParseAccess, foreign},
		{"alg none", iss.ParseAccess, none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse(tt.token)
			if apperr.KindOf(err) != apperr.KindUnauthenticated {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestParseExpired(t *testing.T) {
	iss := testIssuer(t)
	issued := time.Now()
	iss.Now = func() time.Time { return issued }
	token, err := iss.IssueAccess(1)
	if err != nil {
		t.Fatal(err)
	}

	iss.Now = func() time.Time { return issued.Add(6 * time.Minute) }
	_, err = iss.ParseAccess(token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng-enough")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "Str0ng-enough" {
		t.Fatal("expected a hash, got the plain password")
	}
	if !CheckPassword(hash, "Str0ng-enough") {
		t.Fatal("expected match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected mismatch")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		want     []string
	}{
		{"good", "violet-harbor-92", "bob", nil},
		{"short", "short", "bob", []string{"This password is too short. It must contain at least 8 characters."}},
		{"common and numeric", "12345678", "bob", []string{"This password is too common.", "This password is entirely numeric."}},
		{"like username", "alice123!", "alice", []string{"The password is too similar to the username."}},
		{"72 bytes", strings.Repeat("ab-cd-ef", 9), "bob", nil},
		{"over 72 bytes", strings.Repeat("violet-harbor-", 6), "bob", []string{"This password is too long. It must contain at most 72 bytes."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePassword(tt.password, tt.username, tt.username+"@example.com")
			if !slices.Equal(got, tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	if s := similarity("abcd", "bcde"); s != 0.75 {
		t.Fatalf("expected 0.75, got %v", s)
	}
	if s := similarity("", ""); s != 1 {
		t.Fatalf("expected 1, got %v", s)
	}
}

func TestExceedsLengthRatio(t *testing.T) {
	if !exceedsLengthRatio("violet-harbor-92", "a") {
		t.Fatal("expected a one-character value to be skipped")
	}
	if exceedsLengthRatio("alice123!", "alice") {
		t.Fatal("expected comparable lengths to be compared")
	}
}

func TestBearerAndContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if BearerToken(r) != "" {
		t.Fatal("expected empty token")
	}
	r.Header.Set("Authorization", "Bearer abc.def")
	if got := BearerToken(r); got != "abc.def" {
		t.Fatalf("unexpected token %q", got)
	}
	r.Header.Set("Authorization", "Basic abc")
	if BearerToken(r) != "" {
		t.Fatal("expected basic scheme to be ignored")
	}

	if CurrentUser(r) != nil {
		t.Fatal("expected no user")
	}
	u := &db.User{ID: 3}
	r = r.WithContext(WithUser(r.Context(), u))
	if CurrentUser(r) != u {
		t.Fatal("expected user from context")
	}
}
