// Package auth implements login, token issuing, and user provisioning.
package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/myrc-project/myrc/internal/app/domain/user"
	"github.com/myrc-project/myrc/internal/app/metrics"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/internal/middleware"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Issuer is the iss claim on tokens this service signs.
const Issuer = "myrc"

// Service authenticates users and issues bearer tokens.
type Service struct {
	store  storage.UserStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs the auth service. The secret signs HS256 tokens; ttl is the
// token lifetime.
func New(store storage.UserStore, secret []byte, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{store: store, secret: secret, ttl: ttl, log: log}
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      user.User `json:"user"`
}

// Login verifies the credentials and issues a token. Unknown usernames and
// wrong passwords fail identically so login probes learn nothing.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return LoginResult{}, errors.Validation("username is required")
	}
	if password == "" {
		return LoginResult{}, errors.Validation("password is required")
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			metrics.RecordLoginAttempt(false)
			return LoginResult{}, errors.Unauthorized("invalid credentials")
		}
		return LoginResult{}, errors.Internal("load user", err)
	}
	if !u.Active {
		metrics.RecordLoginAttempt(false)
		return LoginResult{}, errors.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		metrics.RecordLoginAttempt(false)
		return LoginResult{}, errors.Unauthorized("invalid credentials")
	}

	token, expiresAt, err := s.issueToken(u)
	if err != nil {
		return LoginResult{}, errors.Internal("sign token", err)
	}

	metrics.RecordLoginAttempt(true)
	s.log.WithField("username", u.Username).Info("user logged in")

	u.PasswordHash = ""
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *Service) issueToken(u user.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := middleware.Claims{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Groups:      u.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Me returns the user behind an authenticated request.
func (s *Service) Me(ctx context.Context, userID string) (user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return user.User{}, errors.NotFound("user")
		}
		return user.User{}, errors.Internal("load user", err)
	}
	return u, nil
}

// Seed creates the configured bootstrap users that do not exist yet. It is
// idempotent across restarts.
func (s *Service) Seed(ctx context.Context, seeds []config.SeedUser) error {
	for _, seed := range seeds {
		username := strings.TrimSpace(seed.Username)
		if username == "" {
			continue
		}

		if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
			continue
		} else if !stderrors.Is(err, sql.ErrNoRows) {
			return errors.Internal("check seed user", err)
		}

		if seed.Password == "" {
			s.log.WithField("username", username).Warn("skipping seed user without password")
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Internal("hash seed password", err)
		}

		created, err := s.store.CreateUser(ctx, user.User{
			Username:     username,
			DisplayName:  seed.DisplayName,
			Email:        seed.Email,
			Groups:       seed.Groups,
			PasswordHash: string(hash),
		})
		if err != nil {
			return errors.Internal("create seed user", err)
		}
		s.log.WithField("username", created.Username).Info("seed user created")
	}
	return nil
}
