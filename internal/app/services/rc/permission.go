package rc

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// PermissionCache memoizes grant-derived access levels per (RC, username).
// Owner and demo checks are never cached; they are evaluated directly.
type PermissionCache interface {
	Get(ctx context.Context, rcID, username string) (rc.AccessLevel, bool)
	Put(ctx context.Context, rcID, username string, level rc.AccessLevel)
	InvalidateRC(ctx context.Context, rcID string)
}

// Access is the caller's resolved rights on one responsibility centre.
type Access struct {
	Level rc.AccessLevel `json:"level"`
	Owner bool           `json:"owner"`
}

// CanRead reports whether the access permits read operations.
func (a Access) CanRead() bool { return a.Level.CanRead() }

// CanWrite reports whether the access permits mutating operations.
func (a Access) CanWrite() bool { return a.Level.CanWrite() }

// Authorize loads the RC and resolves the caller's access. Centres the
// caller cannot read come back as not-found so their existence stays
// hidden; inactive centres are visible to their owner only.
func (s *Service) Authorize(ctx context.Context, id rc.Identity, rcID string) (rc.ResponsibilityCentre, Access, error) {
	centre, err := s.store.GetRC(ctx, rcID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return rc.ResponsibilityCentre{}, Access{}, errors.NotFound("responsibility centre")
		}
		return rc.ResponsibilityCentre{}, Access{}, errors.Internal("load responsibility centre", err)
	}

	access := s.accessOn(ctx, id, centre)
	if !access.CanRead() {
		return rc.ResponsibilityCentre{}, Access{}, errors.NotFound("responsibility centre")
	}
	return centre, access, nil
}

// Resolve returns the caller's access level on the RC.
func (s *Service) Resolve(ctx context.Context, id rc.Identity, rcID string) (Access, error) {
	_, access, err := s.Authorize(ctx, id, rcID)
	return access, err
}

// accessOn applies the resolution rules: owner, then demo, then grants with
// the highest matching level winning.
func (s *Service) accessOn(ctx context.Context, id rc.Identity, centre rc.ResponsibilityCentre) Access {
	if centre.OwnerID != "" && centre.OwnerID == id.UserID {
		return Access{Level: rc.AccessReadWrite, Owner: true}
	}
	if !centre.Active {
		return Access{}
	}
	if centre.Demo {
		return Access{Level: rc.AccessReadWrite}
	}

	if s.cache != nil {
		if level, ok := s.cache.Get(ctx, centre.ID, id.Username); ok {
			return Access{Level: level}
		}
	}

	level := s.grantLevel(ctx, id, centre.ID)
	if s.cache != nil {
		s.cache.Put(ctx, centre.ID, id.Username, level)
	}
	return Access{Level: level}
}

func (s *Service) grantLevel(ctx context.Context, id rc.Identity, rcID string) rc.AccessLevel {
	grants, err := s.store.ListAccessGrants(ctx, rcID, false)
	if err != nil {
		s.log.WithError(err).WithField("rc_id", rcID).Error("list access grants failed")
		return rc.AccessNone
	}

	level := rc.AccessNone
	for _, grant := range grants {
		if grant.Matches(id) {
			level = level.Max(grant.Level)
		}
	}
	return level
}

func (s *Service) invalidatePermissions(ctx context.Context, rcID string) {
	if s.cache != nil {
		s.cache.InvalidateRC(ctx, rcID)
	}
}
