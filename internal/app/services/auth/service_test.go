package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/internal/middleware"
)

var testSecret = []byte("unit-test-secret")

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, testSecret, time.Hour, nil)
	err := svc.Seed(context.Background(), []config.SeedUser{{
		Username:    "admin",
		Password:    "change-me",
		DisplayName: "Administrator",
		Email:       "admin@example.org",
		Groups:      []string{"FIN-Admins"},
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, store
}

func wantCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if svcErr.Code != code {
		t.Fatalf("expected %s error, got %s: %s", code, svcErr.Code, svcErr.Message)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newService(t)

	result, err := svc.Login(context.Background(), "admin", "change-me")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" || !result.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected login result: %+v", result)
	}
	if result.User.Username != "admin" || result.User.PasswordHash != "" {
		t.Fatalf("unexpected user payload: %+v", result.User)
	}

	claims := &middleware.Claims{}
	parsed, err := jwt.ParseWithClaims(result.Token, claims, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != "admin" || claims.Issuer != Issuer || claims.UserID != result.User.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Groups) != 1 || claims.Groups[0] != "FIN-Admins" {
		t.Fatalf("groups not carried in token: %v", claims.Groups)
	}

	// Usernames are matched case-insensitively.
	if _, err := svc.Login(context.Background(), "ADMIN", "change-me"); err != nil {
		t.Fatalf("case-insensitive login: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin", "wrong")
	wantCode(t, err, errors.ErrCodeUnauthorized)

	// Unknown users fail with the same error as wrong passwords.
	_, err = svc.Login(ctx, "nobody", "change-me")
	wantCode(t, err, errors.ErrCodeUnauthorized)

	_, err = svc.Login(ctx, "  ", "change-me")
	wantCode(t, err, errors.ErrCodeValidation)
	_, err = svc.Login(ctx, "admin", "")
	wantCode(t, err, errors.ErrCodeValidation)

	// Deactivated accounts cannot log in either.
	u, err := store.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	u.Active = false
	if _, err := store.UpdateUser(ctx, u); err != nil {
		t.Fatalf("deactivate user: %v", err)
	}
	_, err = svc.Login(ctx, "admin", "change-me")
	wantCode(t, err, errors.ErrCodeUnauthorized)
}

func TestMe(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	u, err := store.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}

	me, err := svc.Me(ctx, u.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Username != "admin" || me.DisplayName != "Administrator" {
		t.Fatalf("unexpected user: %+v", me)
	}

	_, err = svc.Me(ctx, "no-such-user")
	wantCode(t, err, errors.ErrCodeNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	// Re-seeding the same user with a different password must not touch the
	// stored credentials.
	err := svc.Seed(ctx, []config.SeedUser{
		{Username: "admin", Password: "other-password"},
		{Username: "", Password: "ignored"},
		{Username: "nopass"},
	})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}

	if _, err := svc.Login(ctx, "admin", "change-me"); err != nil {
		t.Fatalf("original password must still work: %v", err)
	}
	_, err = svc.Login(ctx, "admin", "other-password")
	wantCode(t, err, errors.ErrCodeUnauthorized)

	// Entries without a username or password are skipped, not created.
	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected only the admin user, got %d", len(users))
	}
}
