// Package app composes the myRC services into a running application.
//
// # Architecture Role
//
// The app package sits above the domain and storage layers and wires them
// together. It owns the Application struct, service construction order, and
// lifecycle management. Business rules live in the service packages below
// it; transport concerns live in httpapi.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── rc/             # Responsibility centres, access grants, identity
//	│   ├── fiscal/         # Fiscal years and budget summaries
//	│   ├── budget/         # Monies, categories, funding/spending/training/travel items
//	│   ├── procurement/    # Procurement items, quotes, event log
//	│   └── audit/          # Audit events and outcomes
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (RCStore, BudgetStore, etc.)
//	│   ├── memory/         # In-memory implementation for testing
//	│   ├── postgres/       # PostgreSQL implementation for production
//	│   └── rediscache/     # Redis-backed permission cache
//	├── services/           # Business logic, one package per domain
//	│   ├── auth/           # Login, JWT issuance, seed users
//	│   ├── rc/             # Centre CRUD, access grants, permission resolution
//	│   ├── fiscal/         # Fiscal years, budget summaries, authorization scope
//	│   ├── funds/          # Monies and categories
//	│   ├── items/          # Funding, spending, training and travel items
//	│   ├── procurement/    # Procurement items, quotes, events
//	│   └── audit/          # Two-phase audit trail, sinks, janitor
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus collectors and HTTP instrumentation
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services with their stores and cross-service dependencies
//   - Defining the storage interfaces services depend on
//   - Providing domain models shared across services
//   - Exposing the HTTP API for external access
//   - Managing application-level lifecycle (start, stop, bootstrap)
//
// # Dependency Direction
//
// The dependency flow is:
//
//	cmd/myrc-server/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/storage/ (interfaces)
//	      │
//	      ├──► internal/app/httpapi/ (transport)
//	      │
//	      └──► internal/app/system/ (lifecycle)
//
// Services never import httpapi, and domain packages import nothing above
// the standard library and shared value types.
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "assets"):
//
//  1. Create domain models in internal/app/domain/assets/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/assets/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app
