package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	"github.com/myrc-project/myrc/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users           map[string]user.User
	usersByUsername map[string]string

	rcs    map[string]rc.ResponsibilityCentre
	grants map[string]rc.AccessGrant

	fiscalYears map[string]fiscal.Year

	monies        map[string]budget.Money
	categories    map[string]budget.Category
	fundingItems  map[string]budget.FundingItem
	spendingItems map[string]budget.SpendingItem
	invoices      map[string]budget.Attachment
	trainingItems map[string]budget.TrainingItem
	travelItems   map[string]budget.TravelItem

	procurementItems map[string]procurement.Item
	quotes           map[string]procurement.Quote
	quoteFiles       map[string]budget.Attachment
	events           map[string]procurement.Event

	auditEvents map[string]audit.Event
	auditOrder  []string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RCStore = (*Store)(nil)
var _ storage.FiscalYearStore = (*Store)(nil)
var _ storage.BudgetStore = (*Store)(nil)
var _ storage.ProcurementStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:           1,
		users:            make(map[string]user.User),
		usersByUsername:  make(map[string]string),
		rcs:              make(map[string]rc.ResponsibilityCentre),
		grants:           make(map[string]rc.AccessGrant),
		fiscalYears:      make(map[string]fiscal.Year),
		monies:           make(map[string]budget.Money),
		categories:       make(map[string]budget.Category),
		fundingItems:     make(map[string]budget.FundingItem),
		spendingItems:    make(map[string]budget.SpendingItem),
		invoices:         make(map[string]budget.Attachment),
		trainingItems:    make(map[string]budget.TrainingItem),
		travelItems:      make(map[string]budget.TravelItem),
		procurementItems: make(map[string]procurement.Item),
		quotes:           make(map[string]procurement.Quote),
		quoteFiles:       make(map[string]budget.Attachment),
		events:           make(map[string]procurement.Event),
		auditEvents:      make(map[string]audit.Event),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.usersByUsername[key]; exists {
		return user.User{}, fmt.Errorf("username %s already taken", u.Username)
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Active = true
	u.Groups = cloneStrings(u.Groups)

	s.users[u.ID] = u
	s.usersByUsername[key] = u.ID
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}

	u.Username = original.Username
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Groups = cloneStrings(u.Groups)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByUsername[strings.ToLower(username)]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// RCStore implementation --------------------------------------------------

func (s *Store) CreateRC(_ context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if centre.ID == "" {
		centre.ID = s.nextIDLocked()
	} else if _, exists := s.rcs[centre.ID]; exists {
		return rc.ResponsibilityCentre{}, fmt.Errorf("responsibility centre %s already exists", centre.ID)
	}

	now := time.Now().UTC()
	centre.CreatedAt = now
	centre.UpdatedAt = now
	centre.Active = true
	centre.Version = 1

	s.rcs[centre.ID] = centre
	return centre, nil
}

func (s *Store) UpdateRC(_ context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.rcs[centre.ID]
	if !ok {
		return rc.ResponsibilityCentre{}, sql.ErrNoRows
	}
	if original.Version != centre.Version {
		return rc.ResponsibilityCentre{}, storage.ErrVersionConflict
	}

	centre.OwnerID = original.OwnerID
	centre.CreatedAt = original.CreatedAt
	centre.UpdatedAt = time.Now().UTC()
	centre.Version = original.Version + 1

	s.rcs[centre.ID] = centre
	return centre, nil
}

func (s *Store) GetRC(_ context.Context, id string) (rc.ResponsibilityCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	centre, ok := s.rcs[id]
	if !ok {
		return rc.ResponsibilityCentre{}, sql.ErrNoRows
	}
	return centre, nil
}

func (s *Store) ListRCsByOwner(_ context.Context, ownerID string, includeInactive bool) ([]rc.ResponsibilityCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []rc.ResponsibilityCentre
	for _, centre := range s.rcs {
		if centre.OwnerID != ownerID {
			continue
		}
		if !includeInactive && !centre.Active {
			continue
		}
		result = append(result, centre)
	}
	sortRCs(result)
	return result, nil
}

func (s *Store) ListDemoRCs(_ context.Context) ([]rc.ResponsibilityCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []rc.ResponsibilityCentre
	for _, centre := range s.rcs {
		if centre.Demo && centre.Active {
			result = append(result, centre)
		}
	}
	sortRCs(result)
	return result, nil
}

func (s *Store) ListRCsByIDs(_ context.Context, ids []string) ([]rc.ResponsibilityCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []rc.ResponsibilityCentre
	for _, id := range ids {
		if centre, ok := s.rcs[id]; ok {
			result = append(result, centre)
		}
	}
	sortRCs(result)
	return result, nil
}

func (s *Store) CreateAccessGrant(_ context.Context, grant rc.AccessGrant) (rc.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if grant.ID == "" {
		grant.ID = s.nextIDLocked()
	} else if _, exists := s.grants[grant.ID]; exists {
		return rc.AccessGrant{}, fmt.Errorf("access grant %s already exists", grant.ID)
	}

	now := time.Now().UTC()
	grant.CreatedAt = now
	grant.UpdatedAt = now
	grant.Active = true
	grant.Version = 1

	s.grants[grant.ID] = grant
	return grant, nil
}

func (s *Store) UpdateAccessGrant(_ context.Context, grant rc.AccessGrant) (rc.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.grants[grant.ID]
	if !ok {
		return rc.AccessGrant{}, sql.ErrNoRows
	}
	if original.Version != grant.Version {
		return rc.AccessGrant{}, storage.ErrVersionConflict
	}

	grant.RCID = original.RCID
	grant.CreatedAt = original.CreatedAt
	grant.UpdatedAt = time.Now().UTC()
	grant.Version = original.Version + 1

	s.grants[grant.ID] = grant
	return grant, nil
}

func (s *Store) GetAccessGrant(_ context.Context, id string) (rc.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[id]
	if !ok {
		return rc.AccessGrant{}, sql.ErrNoRows
	}
	return grant, nil
}

func (s *Store) ListAccessGrants(_ context.Context, rcID string, includeInactive bool) ([]rc.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []rc.AccessGrant
	for _, grant := range s.grants {
		if grant.RCID != rcID {
			continue
		}
		if !includeInactive && !grant.Active {
			continue
		}
		result = append(result, grant)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListGrantsForPrincipals(_ context.Context, principals []string) ([]rc.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make(map[string]bool, len(principals))
	for _, p := range principals {
		lowered[strings.ToLower(p)] = true
	}

	var result []rc.AccessGrant
	for _, grant := range s.grants {
		if !grant.Active {
			continue
		}
		if lowered[strings.ToLower(grant.Principal)] {
			result = append(result, grant)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// FiscalYearStore implementation -------------------------------------------

func (s *Store) CreateFiscalYear(_ context.Context, fy fiscal.Year) (fiscal.Year, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fy.ID == "" {
		fy.ID = s.nextIDLocked()
	} else if _, exists := s.fiscalYears[fy.ID]; exists {
		return fiscal.Year{}, fmt.Errorf("fiscal year %s already exists", fy.ID)
	}

	now := time.Now().UTC()
	fy.CreatedAt = now
	fy.UpdatedAt = now
	fy.Active = true
	fy.Version = 1
	fy.StartDate = cloneTime(fy.StartDate)
	fy.EndDate = cloneTime(fy.EndDate)

	s.fiscalYears[fy.ID] = fy
	return cloneYear(fy), nil
}

func (s *Store) UpdateFiscalYear(_ context.Context, fy fiscal.Year) (fiscal.Year, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.fiscalYears[fy.ID]
	if !ok {
		return fiscal.Year{}, sql.ErrNoRows
	}
	if original.Version != fy.Version {
		return fiscal.Year{}, storage.ErrVersionConflict
	}

	fy.RCID = original.RCID
	fy.CreatedAt = original.CreatedAt
	fy.UpdatedAt = time.Now().UTC()
	fy.Version = original.Version + 1
	fy.StartDate = cloneTime(fy.StartDate)
	fy.EndDate = cloneTime(fy.EndDate)

	s.fiscalYears[fy.ID] = fy
	return cloneYear(fy), nil
}

func (s *Store) GetFiscalYear(_ context.Context, id string) (fiscal.Year, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fy, ok := s.fiscalYears[id]
	if !ok {
		return fiscal.Year{}, sql.ErrNoRows
	}
	return cloneYear(fy), nil
}

func (s *Store) ListFiscalYears(_ context.Context, rcID string, includeInactive bool) ([]fiscal.Year, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []fiscal.Year
	for _, fy := range s.fiscalYears {
		if fy.RCID != rcID {
			continue
		}
		if !includeInactive && !fy.Active {
			continue
		}
		result = append(result, cloneYear(fy))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Helpers -------------------------------------------------------------------

func sortRCs(list []rc.ResponsibilityCentre) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}

func cloneUser(u user.User) user.User {
	u.Groups = cloneStrings(u.Groups)
	return u
}

func cloneYear(fy fiscal.Year) fiscal.Year {
	fy.StartDate = cloneTime(fy.StartDate)
	fy.EndDate = cloneTime(fy.EndDate)
	return fy
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
