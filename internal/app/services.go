package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/httpapi"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/reports"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Services is the postgres-backed service graph shared by the API and worker.
type Services struct {
	Tenants   *accounts.Repository
	Accounts  *accounts.Service
	Journals  *journals.Service
	Inventory *inventory.Service
	Parties   *documents.Service
	Poster    *posting.Poster
	Balances  *balances.Service
	Lifecycle *lifecycle.Service
	Reports   *reports.Service
}

// BuildServices wires every service over pool. reportCache and metrics may be nil.
func BuildServices(pool *pgxpool.Pool, cfg *Config, logger *slog.Logger, reportCache *reports.Cache, metrics *observability.Metrics) *Services {
	manager := db.NewManager(pool)
	audit := shared.NewAuditLogger(db.NewAuditStore(manager))
	accountCfg := accounts.DefaultConfig()
	retries := 3
	if cfg != nil {
		accountCfg = cfg.AccountConfig()
		retries = cfg.NumberRetryLimit
	}

	s := &Services{Tenants: accounts.NewRepository(manager)}
	s.Accounts = accounts.NewService(s.Tenants, audit, accountCfg, logger)
	s.Journals = journals.NewService(journals.NewRepository(manager), s.Accounts, audit, logger)
	s.Journals.WithRetryLimit(retries)
	s.Inventory = inventory.NewService(inventory.NewRepository(manager), s.Accounts, s.Journals, logger)
	docs := documents.NewRepository(manager)
	s.Parties = documents.NewService(docs, logger)
	s.Poster = posting.NewPoster(docs, s.Accounts, s.Journals, s.Inventory, logger)
	s.Balances = balances.NewService(balances.NewRepository(manager), s.Journals, s.Accounts, logger)

	s.Lifecycle = lifecycle.NewService(docs, s.Poster, s.Inventory, s.Journals, s.Balances, logger)
	s.Lifecycle.WithAudit(audit)
	s.Lifecycle.WithRetryLimit(retries)
	if metrics != nil {
		s.Lifecycle.WithMetrics(metrics)
	}
	if reportCache != nil {
		s.Lifecycle.WithCache(reportCache)
	}
	s.Reports = reports.NewService(s.Journals, s.Accounts, docs, reportCache, logger)
	return s
}

// API returns the HTTP handler over the service graph.
func (s *Services) API(logger *slog.Logger) *httpapi.Handler {
	return httpapi.NewHandler(logger, httpapi.Services{
		Accounts:  s.Accounts,
		Inventory: s.Inventory,
		Parties:   s.Parties,
		Lifecycle: s.Lifecycle,
		Balances:  s.Balances,
		Reports:   s.Reports,
	})
}
