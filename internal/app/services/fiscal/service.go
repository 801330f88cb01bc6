// Package fiscal manages fiscal years and the budget summary of a year. Its
// Authorize helper resolves the year -> centre -> access chain for every
// service operating inside a fiscal year.
package fiscal

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Service manages fiscal years.
type Service struct {
	store       storage.FiscalYearStore
	budget      storage.BudgetStore
	procurement storage.ProcurementStore
	rc          *rcsvc.Service
	log         *logger.Logger
}

// New constructs the fiscal year service. The budget and procurement stores
// feed the summary aggregation.
func New(store storage.FiscalYearStore, budget storage.BudgetStore, procurement storage.ProcurementStore, rcService *rcsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("fiscal")
	}
	return &Service{store: store, budget: budget, procurement: procurement, rc: rcService, log: log}
}

// Scope ties a fiscal year to its responsibility centre and the caller's
// resolved access.
type Scope struct {
	Year   fiscal.Year
	Centre rc.ResponsibilityCentre
	Access rcsvc.Access
}

// Authorize loads the year and resolves the caller's access on the owning
// centre. Years under hidden centres come back as not-found; write demands
// READ_WRITE.
func (s *Service) Authorize(ctx context.Context, id rc.Identity, fiscalYearID string, write bool) (Scope, error) {
	year, err := s.store.GetFiscalYear(ctx, fiscalYearID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Scope{}, errors.NotFound("fiscal year")
		}
		return Scope{}, errors.Internal("load fiscal year", err)
	}

	centre, access, err := s.rc.Authorize(ctx, id, year.RCID)
	if err != nil {
		return Scope{}, err
	}
	if write && !access.CanWrite() {
		return Scope{}, errors.Forbidden("write access to the responsibility centre is required")
	}
	return Scope{Year: year, Centre: centre, Access: access}, nil
}

// Owns reports whether the fiscal year belongs to the centre named in the
// request path. A mismatch reads as not-found so nested URLs cannot be used
// to probe other centres.
func (s *Service) Owns(ctx context.Context, rcID, fiscalYearID string) error {
	year, err := s.store.GetFiscalYear(ctx, fiscalYearID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("fiscal year")
		}
		return errors.Internal("load fiscal year", err)
	}
	if year.RCID != rcID {
		return errors.NotFound("fiscal year")
	}
	return nil
}

// Create adds a fiscal year to a centre. Requires write access; names are
// unique per centre, case-insensitively.
func (s *Service) Create(ctx context.Context, id rc.Identity, year fiscal.Year) (fiscal.Year, error) {
	_, access, err := s.rc.Authorize(ctx, id, year.RCID)
	if err != nil {
		return fiscal.Year{}, err
	}
	if !access.CanWrite() {
		return fiscal.Year{}, errors.Forbidden("write access to the responsibility centre is required")
	}

	if err := validateYear(&year); err != nil {
		return fiscal.Year{}, err
	}
	if err := s.checkNameFree(ctx, year.RCID, year.Name, ""); err != nil {
		return fiscal.Year{}, err
	}

	created, err := s.store.CreateFiscalYear(ctx, year)
	if err != nil {
		return fiscal.Year{}, errors.Internal("create fiscal year", err)
	}
	s.log.WithFields(map[string]interface{}{"fiscal_year_id": created.ID, "rc_id": created.RCID}).Info("fiscal year created")
	return created, nil
}

// Update modifies a fiscal year.
func (s *Service) Update(ctx context.Context, id rc.Identity, year fiscal.Year) (fiscal.Year, error) {
	scope, err := s.Authorize(ctx, id, year.ID, true)
	if err != nil {
		return fiscal.Year{}, err
	}

	if err := validateYear(&year); err != nil {
		return fiscal.Year{}, err
	}
	if year.Version == 0 {
		return fiscal.Year{}, errors.Validation("version is required")
	}
	if err := s.checkNameFree(ctx, scope.Year.RCID, year.Name, year.ID); err != nil {
		return fiscal.Year{}, err
	}

	year.Active = scope.Year.Active
	updated, err := s.store.UpdateFiscalYear(ctx, year)
	if err != nil {
		return fiscal.Year{}, storeError(err, "fiscal year")
	}
	return updated, nil
}

// Deactivate soft-deletes a fiscal year.
func (s *Service) Deactivate(ctx context.Context, id rc.Identity, fiscalYearID string) error {
	scope, err := s.Authorize(ctx, id, fiscalYearID, true)
	if err != nil {
		return err
	}
	if !scope.Year.Active {
		return nil
	}

	scope.Year.Active = false
	if _, err := s.store.UpdateFiscalYear(ctx, scope.Year); err != nil {
		return storeError(err, "fiscal year")
	}
	s.log.WithField("fiscal_year_id", fiscalYearID).Info("fiscal year deactivated")
	return nil
}

// Get returns one fiscal year.
func (s *Service) Get(ctx context.Context, id rc.Identity, fiscalYearID string) (fiscal.Year, error) {
	scope, err := s.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return fiscal.Year{}, err
	}
	return scope.Year, nil
}

// List returns the fiscal years of a centre. Soft-deleted years are included
// only for the centre's owner.
func (s *Service) List(ctx context.Context, id rc.Identity, rcID string, includeInactive bool) ([]fiscal.Year, error) {
	_, access, err := s.rc.Authorize(ctx, id, rcID)
	if err != nil {
		return nil, err
	}

	years, err := s.store.ListFiscalYears(ctx, rcID, includeInactive && access.Owner)
	if err != nil {
		return nil, errors.Internal("list fiscal years", err)
	}
	return years, nil
}

func validateYear(year *fiscal.Year) error {
	year.Name = strings.TrimSpace(year.Name)
	if year.Name == "" {
		return errors.Validation("name is required")
	}
	if year.StartDate != nil && year.EndDate != nil && !year.EndDate.After(*year.StartDate) {
		return errors.Validation("end_date must be after start_date")
	}
	return nil
}

func (s *Service) checkNameFree(ctx context.Context, rcID, name, excludeID string) error {
	years, err := s.store.ListFiscalYears(ctx, rcID, false)
	if err != nil {
		return errors.Internal("check fiscal year name", err)
	}
	for _, other := range years {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a fiscal year named %q already exists", name)
		}
	}
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
