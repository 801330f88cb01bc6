package rc

import (
	"context"
	"strings"
	"testing"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/internal/errors"
)

func seedUser(t *testing.T, store *memory.Store, username string, groups ...string) rc.Identity {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Username:    username,
		DisplayName: username,
		Groups:      groups,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return rc.Identity{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Groups: u.Groups}
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

func TestCreateAndVisibility(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	svc := New(store, store, nil)

	centre, err := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Ops Budget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !centre.Active || centre.Version != 1 || centre.OwnerID != alice.UserID {
		t.Fatalf("unexpected centre: %+v", centre)
	}

	_, err = svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "ops budget"})
	wantCode(t, err, errors.ErrCodeValidation)

	// Different owners may reuse the name.
	if _, err := svc.Create(context.Background(), bob, rc.ResponsibilityCentre{Name: "Ops Budget"}); err != nil {
		t.Fatalf("create with same name under other owner: %v", err)
	}

	visible, err := svc.Get(context.Background(), alice, centre.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if !visible.Owner || visible.AccessLevel != rc.AccessReadWrite {
		t.Fatalf("unexpected owner access: %+v", visible)
	}

	// Strangers cannot learn the centre exists.
	_, err = svc.Get(context.Background(), bob, centre.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
}

func TestGrantResolution(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	carol := seedUser(t, store, "carol", "fin-admins")
	svc := New(store, store, nil)

	centre, err := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Shared"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Principal matching is case-insensitive.
	if _, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "BOB", Level: rc.AccessReadOnly,
	}); err != nil {
		t.Fatalf("grant bob: %v", err)
	}
	access, err := svc.Resolve(context.Background(), bob, centre.ID)
	if err != nil {
		t.Fatalf("resolve bob: %v", err)
	}
	if !access.CanRead() || access.CanWrite() || access.Owner {
		t.Fatalf("unexpected access for bob: %+v", access)
	}

	// Carol holds a READ_ONLY user grant and a READ_WRITE group grant; the
	// highest matching level wins.
	if _, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "carol", Level: rc.AccessReadOnly,
	}); err != nil {
		t.Fatalf("grant carol: %v", err)
	}
	if _, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalLDAPGroup, Principal: "FIN-Admins", Level: rc.AccessReadWrite,
	}); err != nil {
		t.Fatalf("grant group: %v", err)
	}
	access, err = svc.Resolve(context.Background(), carol, centre.ID)
	if err != nil {
		t.Fatalf("resolve carol: %v", err)
	}
	if !access.CanWrite() {
		t.Fatalf("expected READ_WRITE for carol, got %+v", access)
	}

	_, err = svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "Alice", Level: rc.AccessReadOnly,
	})
	wantCode(t, err, errors.ErrCodeValidation)

	_, err = svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadWrite,
	})
	wantCode(t, err, errors.ErrCodeValidation)

	_, err = svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: "TEAM", Principal: "x", Level: rc.AccessReadOnly,
	})
	wantCode(t, err, errors.ErrCodeValidation)
}

func TestGrantLifecycle(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	svc := New(store, store, nil)

	centre, _ := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Shared"})
	grant, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadWrite,
	})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}

	// A READ_WRITE grantee is still not the owner.
	_, err = svc.ListGrants(context.Background(), bob, centre.ID, false)
	wantCode(t, err, errors.ErrCodeForbidden)
	_, err = svc.CreateGrant(context.Background(), bob, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "carol", Level: rc.AccessReadOnly,
	})
	wantCode(t, err, errors.ErrCodeForbidden)

	_, err = svc.UpdateGrant(context.Background(), alice, centre.ID, grant.ID, rc.AccessReadOnly, grant.Version+5)
	wantCode(t, err, errors.ErrCodeConflict)

	updated, err := svc.UpdateGrant(context.Background(), alice, centre.ID, grant.ID, rc.AccessReadOnly, grant.Version)
	if err != nil {
		t.Fatalf("update grant: %v", err)
	}
	if updated.Level != rc.AccessReadOnly || updated.Version != grant.Version+1 {
		t.Fatalf("unexpected grant after update: %+v", updated)
	}

	if err := svc.RevokeGrant(context.Background(), alice, centre.ID, grant.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err = svc.Get(context.Background(), bob, centre.ID)
	wantCode(t, err, errors.ErrCodeNotFound)

	// Revoking twice is a no-op.
	if err := svc.RevokeGrant(context.Background(), alice, centre.ID, grant.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestDeactivateHidesCentreFromGrantees(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	svc := New(store, store, nil)

	centre, _ := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Winding Down"})
	if _, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadWrite,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	err := svc.Deactivate(context.Background(), bob, centre.ID)
	wantCode(t, err, errors.ErrCodeForbidden)

	if err := svc.Deactivate(context.Background(), alice, centre.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Inactive centres stay visible to their owner but nobody else.
	if _, err := svc.Get(context.Background(), alice, centre.ID); err != nil {
		t.Fatalf("owner get after deactivate: %v", err)
	}
	_, err = svc.Get(context.Background(), bob, centre.ID)
	wantCode(t, err, errors.ErrCodeNotFound)

	active, err := svc.List(context.Background(), alice, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active centres, got %d", len(active))
	}
	all, err := svc.List(context.Background(), alice, true)
	if err != nil {
		t.Fatalf("list inactive: %v", err)
	}
	if len(all) != 1 || all[0].Active {
		t.Fatalf("expected one inactive centre, got %+v", all)
	}
}

func TestUpdateRequiresVersionAndOwnership(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	svc := New(store, store, nil)

	centre, _ := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Original"})

	centre.Name = "Renamed"
	centre.Version = 0
	_, err := svc.Update(context.Background(), alice, centre)
	wantCode(t, err, errors.ErrCodeValidation)

	centre.Version = 99
	_, err = svc.Update(context.Background(), alice, centre)
	wantCode(t, err, errors.ErrCodeConflict)

	centre.Version = 1
	updated, err := svc.Update(context.Background(), alice, centre)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Version != 2 {
		t.Fatalf("unexpected centre after update: %+v", updated)
	}
}

func TestDemoCentre(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	svc := New(store, store, nil)

	cfg := config.DemoConfig{Enabled: true, Name: "Demo RC", Owner: "alice"}
	if err := svc.EnsureDemo(context.Background(), cfg); err != nil {
		t.Fatalf("ensure demo: %v", err)
	}
	if err := svc.EnsureDemo(context.Background(), cfg); err != nil {
		t.Fatalf("ensure demo twice: %v", err)
	}
	demos, err := store.ListDemoRCs(context.Background())
	if err != nil {
		t.Fatalf("list demos: %v", err)
	}
	if len(demos) != 1 {
		t.Fatalf("expected exactly one demo centre, got %d", len(demos))
	}
	demo := demos[0]

	// Everyone can write to the demo centre without a grant.
	access, err := svc.Resolve(context.Background(), bob, demo.ID)
	if err != nil {
		t.Fatalf("resolve demo: %v", err)
	}
	if !access.CanWrite() || access.Owner {
		t.Fatalf("unexpected demo access: %+v", access)
	}

	list, err := svc.List(context.Background(), bob, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != demo.ID {
		t.Fatalf("expected demo centre in bob's list, got %+v", list)
	}

	_, err = svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: demo.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadOnly,
	})
	wantCode(t, err, errors.ErrCodeValidation)

	err = svc.Deactivate(context.Background(), alice, demo.ID)
	wantCode(t, err, errors.ErrCodeValidation)
}

func TestEnsureDemoSkipsUnknownOwner(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	if err := svc.EnsureDemo(context.Background(), config.DemoConfig{Enabled: true, Name: "Demo RC", Owner: "ghost"}); err != nil {
		t.Fatalf("ensure demo: %v", err)
	}
	demos, _ := store.ListDemoRCs(context.Background())
	if len(demos) != 0 {
		t.Fatalf("expected no demo centre, got %d", len(demos))
	}
}

type fakeCache struct {
	levels map[string]rc.AccessLevel
	hits   int
	puts   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{levels: make(map[string]rc.AccessLevel)}
}

func (c *fakeCache) Get(_ context.Context, rcID, username string) (rc.AccessLevel, bool) {
	level, ok := c.levels[rcID+"/"+username]
	if ok {
		c.hits++
	}
	return level, ok
}

func (c *fakeCache) Put(_ context.Context, rcID, username string, level rc.AccessLevel) {
	c.puts++
	c.levels[rcID+"/"+username] = level
}

func (c *fakeCache) InvalidateRC(_ context.Context, rcID string) {
	for key := range c.levels {
		if strings.HasPrefix(key, rcID+"/") {
			delete(c.levels, key)
		}
	}
}

func TestPermissionCache(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	svc := New(store, store, nil)
	cache := newFakeCache()
	svc.AttachCache(cache)

	centre, _ := svc.Create(context.Background(), alice, rc.ResponsibilityCentre{Name: "Cached"})
	grant, err := svc.CreateGrant(context.Background(), alice, rc.AccessGrant{
		RCID: centre.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadOnly,
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	if _, err := svc.Resolve(context.Background(), bob, centre.ID); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected one cache fill, got %d", cache.puts)
	}
	if _, err := svc.Resolve(context.Background(), bob, centre.ID); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}

	// Grant changes must not serve stale levels.
	if _, err := svc.UpdateGrant(context.Background(), alice, centre.ID, grant.ID, rc.AccessReadWrite, grant.Version); err != nil {
		t.Fatalf("update grant: %v", err)
	}
	access, err := svc.Resolve(context.Background(), bob, centre.ID)
	if err != nil {
		t.Fatalf("resolve after update: %v", err)
	}
	if !access.CanWrite() {
		t.Fatalf("expected READ_WRITE after invalidation, got %+v", access)
	}

	// Owner access never consults the cache.
	before := cache.hits
	if _, err := svc.Resolve(context.Background(), alice, centre.ID); err != nil {
		t.Fatalf("owner resolve: %v", err)
	}
	if cache.hits != before {
		t.Fatalf("owner resolution should bypass the cache")
	}
}
