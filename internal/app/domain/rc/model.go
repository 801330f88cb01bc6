package rc

import (
	"strings"
	"time"
)

// ResponsibilityCentre is an organizational budget unit owned by a user and
// optionally shared with other principals.
type ResponsibilityCentre struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	Demo        bool      `json:"demo"`
	Active      bool      `json:"active"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccessLevel is the permission granted on a responsibility centre.
type AccessLevel string

const (
	AccessNone      AccessLevel = ""
	AccessReadOnly  AccessLevel = "READ_ONLY"
	AccessReadWrite AccessLevel = "READ_WRITE"
)

// Valid reports whether the level is one of the grantable values.
func (l AccessLevel) Valid() bool {
	return l == AccessReadOnly || l == AccessReadWrite
}

// CanRead reports whether the level permits read operations.
func (l AccessLevel) CanRead() bool {
	return l == AccessReadOnly || l == AccessReadWrite
}

// CanWrite reports whether the level permits mutating operations.
func (l AccessLevel) CanWrite() bool {
	return l == AccessReadWrite
}

func (l AccessLevel) rank() int {
	switch l {
	case AccessReadWrite:
		return 2
	case AccessReadOnly:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of the two levels.
func (l AccessLevel) Max(other AccessLevel) AccessLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// PrincipalType identifies what kind of principal an access grant names.
type PrincipalType string

const (
	PrincipalUser             PrincipalType = "USER"
	PrincipalLDAPGroup        PrincipalType = "LDAP_GROUP"
	PrincipalDistributionList PrincipalType = "DISTRIBUTION_LIST"
)

// Valid reports whether the principal type is recognised.
func (t PrincipalType) Valid() bool {
	switch t {
	case PrincipalUser, PrincipalLDAPGroup, PrincipalDistributionList:
		return true
	}
	return false
}

// AccessGrant gives a user, LDAP group, or distribution list access to a
// responsibility centre at a fixed level.
type AccessGrant struct {
	ID            string        `json:"id"`
	RCID          string        `json:"rc_id"`
	PrincipalType PrincipalType `json:"principal_type"`
	Principal     string        `json:"principal"`
	Level         AccessLevel   `json:"level"`
	GrantedBy     string        `json:"granted_by"`
	Active        bool          `json:"active"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Matches reports whether the grant applies to the given identity. User
// grants match on username; group and distribution list grants match on any
// directory membership. Comparisons are case-insensitive.
func (g AccessGrant) Matches(id Identity) bool {
	if !g.Active {
		return false
	}
	switch g.PrincipalType {
	case PrincipalUser:
		return strings.EqualFold(g.Principal, id.Username)
	case PrincipalLDAPGroup, PrincipalDistributionList:
		for _, group := range id.Groups {
			if strings.EqualFold(g.Principal, group) {
				return true
			}
		}
	}
	return false
}

// Identity describes the authenticated caller for permission checks.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
	Groups      []string
}
