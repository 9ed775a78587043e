package documents

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Service manages customers and vendors. Document state changes go through
// the lifecycle package.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a party service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func normalizeParty(in PartyInput) (PartyInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return in, shared.Invalid("name", "name is required")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return in, shared.Invalid("email", "invalid email %q", in.Email)
		}
	}
	return in, nil
}

// CreateCustomer stores a customer with a zero balance.
func (s *Service) CreateCustomer(ctx context.Context, scope shared.Scope, in PartyInput) (Customer, error) {
	if err := scope.Validate(); err != nil {
		return Customer{}, err
	}
	in, err := normalizeParty(in)
	if err != nil {
		return Customer{}, err
	}
	var out Customer
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err = tx.InsertCustomer(ctx, Customer{TenantID: scope.TenantID, Name: in.Name, Email: in.Email, CreatedAt: s.now()})
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	s.logger.InfoContext(ctx, "customer created", slog.Int64("tenant_id", scope.TenantID), slog.Int64("customer_id", out.ID))
	return out, nil
}

// CreateVendor stores a vendor with a zero balance.
func (s *Service) CreateVendor(ctx context.Context, scope shared.Scope, in PartyInput) (Vendor, error) {
	if err := scope.Validate(); err != nil {
		return Vendor{}, err
	}
	in, err := normalizeParty(in)
	if err != nil {
		return Vendor{}, err
	}
	var out Vendor
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err = tx.InsertVendor(ctx, Vendor{TenantID: scope.TenantID, Name: in.Name, Email: in.Email, CreatedAt: s.now()})
		return err
	})
	if err != nil {
		return Vendor{}, err
	}
	s.logger.InfoContext(ctx, "vendor created", slog.Int64("tenant_id", scope.TenantID), slog.Int64("vendor_id", out.ID))
	return out, nil
}

func (s *Service) GetCustomer(ctx context.Context, scope shared.Scope, id int64) (Customer, error) {
	if err := scope.Validate(); err != nil {
		return Customer{}, err
	}
	return s.repo.GetCustomer(ctx, scope.TenantID, id)
}

func (s *Service) GetVendor(ctx context.Context, scope shared.Scope, id int64) (Vendor, error) {
	if err := scope.Validate(); err != nil {
		return Vendor{}, err
	}
	return s.repo.GetVendor(ctx, scope.TenantID, id)
}

func (s *Service) ListCustomers(ctx context.Context, scope shared.Scope) ([]Customer, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, scope.TenantID)
}

func (s *Service) ListVendors(ctx context.Context, scope shared.Scope) ([]Vendor, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListVendors(ctx, scope.TenantID)
}
