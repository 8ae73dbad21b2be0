package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"realtors/models"
)

var ErrInvalidSession = errors.New("invalid or expired session")

// SessionStore persists sessions so they survive restarts.
type SessionStore interface {
	SaveSession(ctx context.Context, sess *models.Session) error
	// GetSession returns nil, nil for unknown ids.
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type sessionClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Authenticator issues and restores login sessions. Tokens are HS256 JWTs
// whose ID names a persisted session; revoking the session revokes the token.
type Authenticator struct {
	verifier CredentialVerifier
	sessions SessionStore
	secret   []byte
	now      func() time.Time
}

func NewAuthenticator(verifier CredentialVerifier, sessions SessionStore, secret []byte) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		sessions: sessions,
		secret:   secret,
		now:      time.Now,
	}
}

// Login checks the credentials and persists a new session. Nothing is stored
// when the credentials are wrong.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*models.Session, string, error) {
	isAdmin, err := a.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	sess := &models.Session{
		ID:        uuid.New().String(),
		Email:     normalizeEmail(email),
		IsAdmin:   isAdmin,
		CreatedAt: a.now().UTC().Truncate(time.Second),
	}

	token, err := a.sign(sess)
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	if err := a.sessions.SaveSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("save session: %w", err)
	}
	return sess, token, nil
}

// Restore returns the session a token refers to, as long as it has not been
// logged out.
func (a *Authenticator) Restore(ctx context.Context, token string) (*models.Session, error) {
	id, err := a.parse(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	sess, err := a.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

func (a *Authenticator) Logout(ctx context.Context, token string) error {
	id, err := a.parse(token)
	if err != nil {
		return ErrInvalidSession
	}
	if err := a.sessions.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (a *Authenticator) sign(sess *models.Session) (string, error) {
	claims := sessionClaims{
		Email:   sess.Email,
		IsAdmin: sess.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sess.ID,
			Subject:  sess.Email,
			IssuedAt: jwt.NewNumericDate(sess.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return "", errors.New("invalid token")
	}
	return claims.ID, nil
}
