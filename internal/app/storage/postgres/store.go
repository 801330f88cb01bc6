package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	"github.com/myrc-project/myrc/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RCStore = (*Store)(nil)
var _ storage.FiscalYearStore = (*Store)(nil)
var _ storage.BudgetStore = (*Store)(nil)
var _ storage.ProcurementStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// checkUpdated resolves a zero-row UPDATE into either a stale-version
// conflict or a missing row.
func (s *Store) checkUpdated(ctx context.Context, result sql.Result, table, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return storage.ErrVersionConflict
	}
	return sql.ErrNoRows
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email, password_hash, groups, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Username, u.DisplayName, u.Email, u.PasswordHash, pq.Array(u.Groups), u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.Username = existing.Username
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET display_name = $2, email = $3, password_hash = $4, groups = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.DisplayName, u.Email, u.PasswordHash, pq.Array(u.Groups), u.Active, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

const userColumns = `id, username, display_name, email, password_hash, groups, active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, pq.Array(&u.Groups), &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- RCStore -----------------------------------------------------------------

const rcColumns = `id, name, description, owner_id, demo, active, version, created_at, updated_at`

func scanRC(row interface{ Scan(dest ...interface{}) error }) (rc.ResponsibilityCentre, error) {
	var centre rc.ResponsibilityCentre
	if err := row.Scan(&centre.ID, &centre.Name, &centre.Description, &centre.OwnerID, &centre.Demo, &centre.Active, &centre.Version, &centre.CreatedAt, &centre.UpdatedAt); err != nil {
		return rc.ResponsibilityCentre{}, err
	}
	return centre, nil
}

func (s *Store) CreateRC(ctx context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	if centre.ID == "" {
		centre.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	centre.CreatedAt = now
	centre.UpdatedAt = now
	centre.Active = true
	centre.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responsibility_centres (id, name, description, owner_id, demo, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, centre.ID, centre.Name, centre.Description, centre.OwnerID, centre.Demo, centre.Active, centre.Version, centre.CreatedAt, centre.UpdatedAt)
	if err != nil {
		return rc.ResponsibilityCentre{}, err
	}
	return centre, nil
}

func (s *Store) UpdateRC(ctx context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	centre.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE responsibility_centres
		SET name = $2, description = $3, demo = $4, active = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7
	`, centre.ID, centre.Name, centre.Description, centre.Demo, centre.Active, centre.UpdatedAt, centre.Version)
	if err != nil {
		return rc.ResponsibilityCentre{}, err
	}
	if err := s.checkUpdated(ctx, result, "responsibility_centres", centre.ID); err != nil {
		return rc.ResponsibilityCentre{}, err
	}
	return s.GetRC(ctx, centre.ID)
}

func (s *Store) GetRC(ctx context.Context, id string) (rc.ResponsibilityCentre, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+rcColumns+`
		FROM responsibility_centres
		WHERE id = $1
	`, id)
	return scanRC(row)
}

func (s *Store) ListRCsByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]rc.ResponsibilityCentre, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rcColumns+`
		FROM responsibility_centres
		WHERE owner_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, ownerID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRCs(rows)
}

func (s *Store) ListDemoRCs(ctx context.Context) ([]rc.ResponsibilityCentre, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rcColumns+`
		FROM responsibility_centres
		WHERE demo AND active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRCs(rows)
}

func (s *Store) ListRCsByIDs(ctx context.Context, ids []string) ([]rc.ResponsibilityCentre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rcColumns+`
		FROM responsibility_centres
		WHERE id = ANY($1)
		ORDER BY created_at
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRCs(rows)
}

func collectRCs(rows *sql.Rows) ([]rc.ResponsibilityCentre, error) {
	var result []rc.ResponsibilityCentre
	for rows.Next() {
		centre, err := scanRC(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, centre)
	}
	return result, rows.Err()
}

const grantColumns = `id, rc_id, principal_type, principal, level, granted_by, active, version, created_at, updated_at`

func scanGrant(row interface{ Scan(dest ...interface{}) error }) (rc.AccessGrant, error) {
	var grant rc.AccessGrant
	if err := row.Scan(&grant.ID, &grant.RCID, &grant.PrincipalType, &grant.Principal, &grant.Level, &grant.GrantedBy, &grant.Active, &grant.Version, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
		return rc.AccessGrant{}, err
	}
	return grant, nil
}

func (s *Store) CreateAccessGrant(ctx context.Context, grant rc.AccessGrant) (rc.AccessGrant, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grant.CreatedAt = now
	grant.UpdatedAt = now
	grant.Active = true
	grant.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rc_access_grants (id, rc_id, principal_type, principal, level, granted_by, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, grant.ID, grant.RCID, string(grant.PrincipalType), grant.Principal, string(grant.Level), grant.GrantedBy, grant.Active, grant.Version, grant.CreatedAt, grant.UpdatedAt)
	if err != nil {
		return rc.AccessGrant{}, err
	}
	return grant, nil
}

func (s *Store) UpdateAccessGrant(ctx context.Context, grant rc.AccessGrant) (rc.AccessGrant, error) {
	grant.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE rc_access_grants
		SET principal_type = $2, principal = $3, level = $4, active = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7
	`, grant.ID, string(grant.PrincipalType), grant.Principal, string(grant.Level), grant.Active, grant.UpdatedAt, grant.Version)
	if err != nil {
		return rc.AccessGrant{}, err
	}
	if err := s.checkUpdated(ctx, result, "rc_access_grants", grant.ID); err != nil {
		return rc.AccessGrant{}, err
	}
	return s.GetAccessGrant(ctx, grant.ID)
}

func (s *Store) GetAccessGrant(ctx context.Context, id string) (rc.AccessGrant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM rc_access_grants
		WHERE id = $1
	`, id)
	return scanGrant(row)
}

func (s *Store) ListAccessGrants(ctx context.Context, rcID string, includeInactive bool) ([]rc.AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM rc_access_grants
		WHERE rc_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, rcID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (s *Store) ListGrantsForPrincipals(ctx context.Context, principals []string) ([]rc.AccessGrant, error) {
	if len(principals) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(principals))
	for _, p := range principals {
		lowered = append(lowered, strings.ToLower(p))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM rc_access_grants
		WHERE active AND LOWER(principal) = ANY($1)
		ORDER BY created_at
	`, pq.Array(lowered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows *sql.Rows) ([]rc.AccessGrant, error) {
	var result []rc.AccessGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, grant)
	}
	return result, rows.Err()
}
