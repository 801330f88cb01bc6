package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
	authsvc "github.com/myrc-project/myrc/internal/app/services/auth"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	"github.com/myrc-project/myrc/internal/app/services/funds"
	"github.com/myrc-project/myrc/internal/app/services/items"
	procurementsvc "github.com/myrc-project/myrc/internal/app/services/procurement"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/app/system"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	RCs         storage.RCStore
	FiscalYears storage.FiscalYearStore
	Budget      storage.BudgetStore
	Procurement storage.ProcurementStore
	Audit       storage.AuditStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	cfg     *config.Config
	log     *logger.Logger

	Auth        *authsvc.Service
	RCs         *rcsvc.Service
	Fiscal      *fiscalsvc.Service
	Funds       *funds.Service
	Items       *items.Service
	Procurement *procurementsvc.Service
	Audit       *auditsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.RCs == nil {
		stores.RCs = mem
	}
	if stores.FiscalYears == nil {
		stores.FiscalYears = mem
	}
	if stores.Budget == nil {
		stores.Budget = mem
	}
	if stores.Procurement == nil {
		stores.Procurement = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	manager := system.NewManager()

	authService := authsvc.New(stores.Users, []byte(cfg.Auth.JWTSecret), cfg.TokenTTL(), log)
	rcService := rcsvc.New(stores.RCs, stores.Users, log)
	fiscalService := fiscalsvc.New(stores.FiscalYears, stores.Budget, stores.Procurement, rcService, log)
	fundsService := funds.New(stores.Budget, fiscalService, log)
	itemsService := items.New(stores.Budget, fiscalService, log)
	procurementService := procurementsvc.New(stores.Procurement, stores.Budget, fiscalService, log)
	auditService := auditsvc.New(stores.Audit, rcService, stores.RCs, stores.FiscalYears, cfg.Audit.RecentBufferSize, log)

	if path := strings.TrimSpace(cfg.Audit.FilePath); path != "" {
		sink, err := auditsvc.NewFileSink(path)
		if err != nil {
			log.WithError(err).Warn("audit file sink disabled")
		} else {
			auditService.AttachSink(sink)
		}
	}
	if url := strings.TrimSpace(cfg.Audit.AMQPURL); url != "" {
		exchange := strings.TrimSpace(cfg.Audit.AMQPExchange)
		if exchange == "" {
			exchange = "myrc.audit"
		}
		sink, err := auditsvc.NewAMQPSink(url, exchange)
		if err != nil {
			log.WithError(err).Warn("audit AMQP sink disabled")
		} else {
			auditService.AttachSink(sink)
		}
	}

	for _, name := range []string{"auth", "responsibility-centres", "budget"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	janitor := auditsvc.NewJanitor(auditService, cfg.Audit.SweepSchedule, cfg.PendingTimeout(), retention, log)
	if err := manager.Register(janitor); err != nil {
		return nil, fmt.Errorf("register %s: %w", janitor.Name(), err)
	}

	return &Application{
		manager:     manager,
		cfg:         cfg,
		log:         log,
		Auth:        authService,
		RCs:         rcService,
		Fiscal:      fiscalService,
		Funds:       fundsService,
		Items:       itemsService,
		Procurement: procurementService,
		Audit:       auditService,
	}, nil
}

// Bootstrap provisions the configured seed users and the shared demo centre.
// Safe to run on every start.
func (a *Application) Bootstrap(ctx context.Context) error {
	if err := a.Auth.Seed(ctx, a.cfg.Auth.SeedUsers); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := a.RCs.EnsureDemo(ctx, a.cfg.Demo); err != nil {
		return fmt.Errorf("ensure demo centre: %w", err)
	}
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and closes the audit sinks.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Audit.Close()
	return err
}
