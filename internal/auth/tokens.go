package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/config"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the validated content of an access or refresh token.
type Claims struct {
	UserID    int64
	JTI       string
	TokenType string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// Pair is what login hands back to the client.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	Now        func() time.Time
}

func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Issuer{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL.Duration,
		refreshTTL: cfg.RefreshTTL.Duration,
		Now:        time.Now,
	}, nil
}

func (i *Issuer) IssuePair(userID int64) (Pair, error) {
	access, err := i.sign(userID, TypeAccess, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(userID, TypeRefresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) IssueAccess(userID int64) (string, error) {
	return i.sign(userID, TypeAccess, i.accessTTL)
}

func (i *Issuer) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := i.Now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (i *Issuer) ParseAccess(token string) (Claims, error) {
	return i.parse(token, TypeAccess)
}

func (i *Issuer) ParseRefresh(token string) (Claims, error) {
	return i.parse(token, TypeRefresh)
}

func (i *Issuer) parse(token, wantType string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperr.Unauthenticated("Token is required.")
	}
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.Wrap(apperr.KindUnauthenticated, "Token is expired.", err)
		}
		return Claims{}, apperr.Wrap(apperr.KindUnauthenticated, "Token is invalid.", err)
	}
	if parsed.TokenType != wantType {
		return Claims{}, apperr.Unauthenticated("Token has wrong type.")
	}
	if parsed.ID == "" {
		return Claims{}, apperr.Unauthenticated("Token has no id.")
	}
	uid, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.KindUnauthenticated, "Token contained no recognizable user identification.", err)
	}
	return Claims{
		UserID:    uid,
		JTI:       parsed.ID,
		TokenType: parsed.TokenType,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}
