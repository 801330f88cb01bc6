package rc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLevel(t *testing.T) {
	assert.True(t, AccessReadOnly.Valid())
	assert.True(t, AccessReadWrite.Valid())
	assert.False(t, AccessNone.Valid())
	assert.False(t, AccessLevel("ADMIN").Valid())

	assert.True(t, AccessReadOnly.CanRead())
	assert.False(t, AccessReadOnly.CanWrite())
	assert.True(t, AccessReadWrite.CanRead())
	assert.True(t, AccessReadWrite.CanWrite())
	assert.False(t, AccessNone.CanRead())

	assert.Equal(t, AccessReadWrite, AccessReadOnly.Max(AccessReadWrite))
	assert.Equal(t, AccessReadWrite, AccessReadWrite.Max(AccessReadOnly))
	assert.Equal(t, AccessReadOnly, AccessNone.Max(AccessReadOnly))
	assert.Equal(t, AccessNone, AccessNone.Max(AccessNone))
}

func TestPrincipalTypeValid(t *testing.T) {
	assert.True(t, PrincipalUser.Valid())
	assert.True(t, PrincipalLDAPGroup.Valid())
	assert.True(t, PrincipalDistributionList.Valid())
	assert.False(t, PrincipalType("TEAM").Valid())
	assert.False(t, PrincipalType("").Valid())
}

func TestAccessGrantMatches(t *testing.T) {
	alice := Identity{Username: "alice", Groups: []string{"FIN-Admins", "ops-dl"}}

	userGrant := AccessGrant{PrincipalType: PrincipalUser, Principal: "ALICE", Level: AccessReadOnly, Active: true}
	assert.True(t, userGrant.Matches(alice), "user grants match usernames case-insensitively")
	assert.False(t, userGrant.Matches(Identity{Username: "bob"}))

	groupGrant := AccessGrant{PrincipalType: PrincipalLDAPGroup, Principal: "fin-admins", Level: AccessReadWrite, Active: true}
	assert.True(t, groupGrant.Matches(alice), "group grants match any membership case-insensitively")
	assert.False(t, groupGrant.Matches(Identity{Username: "carol", Groups: []string{"HR-Staff"}}))

	listGrant := AccessGrant{PrincipalType: PrincipalDistributionList, Principal: "OPS-DL", Level: AccessReadOnly, Active: true}
	assert.True(t, listGrant.Matches(alice))

	revoked := AccessGrant{PrincipalType: PrincipalUser, Principal: "alice", Level: AccessReadWrite, Active: false}
	assert.False(t, revoked.Matches(alice), "inactive grants never match")
}
