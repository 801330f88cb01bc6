// Package rc manages responsibility centres, their access grants, and the
// permission resolution every other domain relies on.
package rc

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Service manages responsibility centres and access grants.
type Service struct {
	store storage.RCStore
	users storage.UserStore
	cache PermissionCache
	log   *logger.Logger
}

// New constructs the responsibility centre service.
func New(store storage.RCStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rc")
	}
	return &Service{store: store, users: users, log: log}
}

// AttachCache wires the optional permission cache.
func (s *Service) AttachCache(cache PermissionCache) {
	s.cache = cache
}

// Visible is a responsibility centre annotated with the caller's access.
type Visible struct {
	rc.ResponsibilityCentre
	AccessLevel rc.AccessLevel `json:"access_level"`
	Owner       bool           `json:"owner"`
}

// Create registers a new responsibility centre owned by the caller. Names
// are unique per owner among active centres, case-insensitively.
func (s *Service) Create(ctx context.Context, id rc.Identity, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	centre.Name = strings.TrimSpace(centre.Name)
	if centre.Name == "" {
		return rc.ResponsibilityCentre{}, errors.Validation("name is required")
	}

	centre.OwnerID = id.UserID
	centre.Demo = false

	if err := s.checkNameFree(ctx, id.UserID, centre.Name, ""); err != nil {
		return rc.ResponsibilityCentre{}, err
	}

	created, err := s.store.CreateRC(ctx, centre)
	if err != nil {
		return rc.ResponsibilityCentre{}, errors.Internal("create responsibility centre", err)
	}
	s.log.WithFields(map[string]interface{}{"rc_id": created.ID, "owner": id.Username}).Info("responsibility centre created")
	return created, nil
}

// Update modifies name and description. Owner only; the demo flag and owner
// are never changed through this path.
func (s *Service) Update(ctx context.Context, id rc.Identity, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	existing, access, err := s.Authorize(ctx, id, centre.ID)
	if err != nil {
		return rc.ResponsibilityCentre{}, err
	}
	if !access.Owner {
		return rc.ResponsibilityCentre{}, errors.Forbidden("only the owner may modify a responsibility centre")
	}

	centre.Name = strings.TrimSpace(centre.Name)
	if centre.Name == "" {
		return rc.ResponsibilityCentre{}, errors.Validation("name is required")
	}
	if centre.Version == 0 {
		return rc.ResponsibilityCentre{}, errors.Validation("version is required")
	}
	if err := s.checkNameFree(ctx, existing.OwnerID, centre.Name, centre.ID); err != nil {
		return rc.ResponsibilityCentre{}, err
	}

	centre.Demo = existing.Demo
	centre.Active = existing.Active

	updated, err := s.store.UpdateRC(ctx, centre)
	if err != nil {
		return rc.ResponsibilityCentre{}, storeError(err, "responsibility centre")
	}
	return updated, nil
}

// Deactivate soft-deletes the centre. Owner only; the demo centre cannot be
// deactivated.
func (s *Service) Deactivate(ctx context.Context, id rc.Identity, rcID string) error {
	centre, access, err := s.Authorize(ctx, id, rcID)
	if err != nil {
		return err
	}
	if !access.Owner {
		return errors.Forbidden("only the owner may deactivate a responsibility centre")
	}
	if centre.Demo {
		return errors.Validation("the demo responsibility centre cannot be deactivated")
	}
	if !centre.Active {
		return nil
	}

	centre.Active = false
	if _, err := s.store.UpdateRC(ctx, centre); err != nil {
		return storeError(err, "responsibility centre")
	}
	s.log.WithFields(map[string]interface{}{"rc_id": rcID, "user": id.Username}).Info("responsibility centre deactivated")
	return nil
}

// Get returns the centre together with the caller's access.
func (s *Service) Get(ctx context.Context, id rc.Identity, rcID string) (Visible, error) {
	centre, access, err := s.Authorize(ctx, id, rcID)
	if err != nil {
		return Visible{}, err
	}
	return Visible{ResponsibilityCentre: centre, AccessLevel: access.Level, Owner: access.Owner}, nil
}

// List returns every centre visible to the caller: owned, granted, and
// demo. includeInactive extends the owned portion to soft-deleted centres.
func (s *Service) List(ctx context.Context, id rc.Identity, includeInactive bool) ([]Visible, error) {
	seen := make(map[string]bool)
	var result []Visible

	owned, err := s.store.ListRCsByOwner(ctx, id.UserID, includeInactive)
	if err != nil {
		return nil, errors.Internal("list owned responsibility centres", err)
	}
	for _, centre := range owned {
		seen[centre.ID] = true
		result = append(result, Visible{ResponsibilityCentre: centre, AccessLevel: rc.AccessReadWrite, Owner: true})
	}

	demos, err := s.store.ListDemoRCs(ctx)
	if err != nil {
		return nil, errors.Internal("list demo responsibility centres", err)
	}
	for _, centre := range demos {
		if seen[centre.ID] {
			continue
		}
		seen[centre.ID] = true
		result = append(result, Visible{ResponsibilityCentre: centre, AccessLevel: rc.AccessReadWrite})
	}

	principals := append([]string{id.Username}, id.Groups...)
	grants, err := s.store.ListGrantsForPrincipals(ctx, principals)
	if err != nil {
		return nil, errors.Internal("list grants", err)
	}

	levels := make(map[string]rc.AccessLevel)
	for _, grant := range grants {
		if !grant.Matches(id) {
			continue
		}
		levels[grant.RCID] = levels[grant.RCID].Max(grant.Level)
	}

	ids := make([]string, 0, len(levels))
	for rcID := range levels {
		if !seen[rcID] {
			ids = append(ids, rcID)
		}
	}
	if len(ids) > 0 {
		granted, err := s.store.ListRCsByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Internal("list granted responsibility centres", err)
		}
		for _, centre := range granted {
			if !centre.Active {
				continue
			}
			result = append(result, Visible{ResponsibilityCentre: centre, AccessLevel: levels[centre.ID]})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (s *Service) checkNameFree(ctx context.Context, ownerID, name, excludeID string) error {
	existing, err := s.store.ListRCsByOwner(ctx, ownerID, false)
	if err != nil {
		return errors.Internal("check responsibility centre name", err)
	}
	for _, other := range existing {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a responsibility centre named %q already exists", name)
		}
	}
	return nil
}

// --- access grants ---

// ListGrants returns the grants on a centre. Owner only.
func (s *Service) ListGrants(ctx context.Context, id rc.Identity, rcID string, includeInactive bool) ([]rc.AccessGrant, error) {
	_, access, err := s.Authorize(ctx, id, rcID)
	if err != nil {
		return nil, err
	}
	if !access.Owner {
		return nil, errors.Forbidden("only the owner may manage access grants")
	}

	grants, err := s.store.ListAccessGrants(ctx, rcID, includeInactive)
	if err != nil {
		return nil, errors.Internal("list access grants", err)
	}
	return grants, nil
}

// CreateGrant shares the centre with a principal. Owner only; the demo
// centre is already shared with everyone and takes no grants.
func (s *Service) CreateGrant(ctx context.Context, id rc.Identity, grant rc.AccessGrant) (rc.AccessGrant, error) {
	centre, access, err := s.Authorize(ctx, id, grant.RCID)
	if err != nil {
		return rc.AccessGrant{}, err
	}
	if !access.Owner {
		return rc.AccessGrant{}, errors.Forbidden("only the owner may manage access grants")
	}
	if centre.Demo {
		return rc.AccessGrant{}, errors.Validation("the demo responsibility centre is shared with every user")
	}

	grant.Principal = strings.TrimSpace(grant.Principal)
	if grant.Principal == "" {
		return rc.AccessGrant{}, errors.Validation("principal is required")
	}
	if !grant.PrincipalType.Valid() {
		return rc.AccessGrant{}, errors.Validation("principal_type must be USER, LDAP_GROUP, or DISTRIBUTION_LIST")
	}
	if !grant.Level.Valid() {
		return rc.AccessGrant{}, errors.Validation("level must be READ_ONLY or READ_WRITE")
	}

	if grant.PrincipalType == rc.PrincipalUser {
		owner, err := s.users.GetUser(ctx, centre.OwnerID)
		if err == nil && strings.EqualFold(owner.Username, grant.Principal) {
			return rc.AccessGrant{}, errors.Validation("the owner already has full access")
		}
	}

	existing, err := s.store.ListAccessGrants(ctx, grant.RCID, false)
	if err != nil {
		return rc.AccessGrant{}, errors.Internal("check existing grants", err)
	}
	for _, other := range existing {
		if other.PrincipalType == grant.PrincipalType && strings.EqualFold(other.Principal, grant.Principal) {
			return rc.AccessGrant{}, errors.Validationf("an active grant for %q already exists", grant.Principal)
		}
	}

	grant.GrantedBy = id.Username
	created, err := s.store.CreateAccessGrant(ctx, grant)
	if err != nil {
		return rc.AccessGrant{}, errors.Internal("create access grant", err)
	}

	s.invalidatePermissions(ctx, grant.RCID)
	s.log.WithFields(map[string]interface{}{
		"rc_id":     grant.RCID,
		"principal": created.Principal,
		"level":     created.Level,
	}).Info("access grant created")
	return created, nil
}

// UpdateGrant changes the level of an existing grant. Owner only.
func (s *Service) UpdateGrant(ctx context.Context, id rc.Identity, rcID, grantID string, level rc.AccessLevel, version int64) (rc.AccessGrant, error) {
	centre, access, err := s.Authorize(ctx, id, rcID)
	if err != nil {
		return rc.AccessGrant{}, err
	}
	if !access.Owner {
		return rc.AccessGrant{}, errors.Forbidden("only the owner may manage access grants")
	}
	if centre.Demo {
		return rc.AccessGrant{}, errors.Validation("the demo responsibility centre is shared with every user")
	}
	if !level.Valid() {
		return rc.AccessGrant{}, errors.Validation("level must be READ_ONLY or READ_WRITE")
	}
	if version == 0 {
		return rc.AccessGrant{}, errors.Validation("version is required")
	}

	grant, err := s.store.GetAccessGrant(ctx, grantID)
	if err != nil {
		return rc.AccessGrant{}, storeError(err, "access grant")
	}
	if grant.RCID != rcID {
		return rc.AccessGrant{}, errors.NotFound("access grant")
	}

	grant.Level = level
	grant.Version = version
	updated, err := s.store.UpdateAccessGrant(ctx, grant)
	if err != nil {
		return rc.AccessGrant{}, storeError(err, "access grant")
	}

	s.invalidatePermissions(ctx, rcID)
	return updated, nil
}

// RevokeGrant deactivates a grant. Owner only.
func (s *Service) RevokeGrant(ctx context.Context, id rc.Identity, rcID, grantID string) error {
	_, access, err := s.Authorize(ctx, id, rcID)
	if err != nil {
		return err
	}
	if !access.Owner {
		return errors.Forbidden("only the owner may manage access grants")
	}

	grant, err := s.store.GetAccessGrant(ctx, grantID)
	if err != nil {
		return storeError(err, "access grant")
	}
	if grant.RCID != rcID {
		return errors.NotFound("access grant")
	}
	if !grant.Active {
		return nil
	}

	grant.Active = false
	if _, err := s.store.UpdateAccessGrant(ctx, grant); err != nil {
		return storeError(err, "access grant")
	}

	s.invalidatePermissions(ctx, rcID)
	s.log.WithFields(map[string]interface{}{"rc_id": rcID, "principal": grant.Principal}).Info("access grant revoked")
	return nil
}

// EnsureDemo provisions the shared demonstration centre on startup when
// configured and missing. The configured owner must already exist.
func (s *Service) EnsureDemo(ctx context.Context, cfg config.DemoConfig) error {
	if !cfg.Enabled {
		return nil
	}

	demos, err := s.store.ListDemoRCs(ctx)
	if err != nil {
		return errors.Internal("list demo responsibility centres", err)
	}
	if len(demos) > 0 {
		return nil
	}

	owner, err := s.users.GetUserByUsername(ctx, cfg.Owner)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			s.log.WithField("owner", cfg.Owner).Warn("demo owner not found, skipping demo provisioning")
			return nil
		}
		return errors.Internal("load demo owner", err)
	}

	created, err := s.store.CreateRC(ctx, rc.ResponsibilityCentre{
		Name:        cfg.Name,
		Description: "Shared demonstration responsibility centre",
		OwnerID:     owner.ID,
		Demo:        true,
	})
	if err != nil {
		return errors.Internal("create demo responsibility centre", err)
	}
	s.log.WithField("rc_id", created.ID).Info("demo responsibility centre created")
	return nil
}

func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.NotFound(resource)
	case stderrors.Is(err, storage.ErrVersionConflict):
		return errors.Conflict(resource + " was modified concurrently")
	}
	return errors.Internal("storage failure", err)
}
