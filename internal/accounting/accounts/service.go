package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// ErrAccountInUse blocks deactivating accounts with ledger activity or a role.
var ErrAccountInUse = errors.New("account has ledger activity")

// AuditPort records registry changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the chart of accounts registry.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the registry.
func NewService(repo RepositoryPort, audit AuditPort, cfg Config, logger *slog.Logger) *Service {
	if cfg.CodeMin == 0 && cfg.CodeMax == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount validates and stores a new account.
func (s *Service) CreateAccount(ctx context.Context, scope shared.Scope, input AccountInput) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Account{}, shared.Invalid("name", "name is required")
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return Account{}, shared.Invalid("code", "code must be numeric")
	}
	if n < s.cfg.CodeMin || n > s.cfg.CodeMax {
		return Account{}, shared.Invalid("code", "code must be between %d and %d", s.cfg.CodeMin, s.cfg.CodeMax)
	}
	if !input.Type.Valid() {
		return Account{}, shared.Invalid("type", "unknown account type %q", input.Type)
	}
	var created Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			parent, err := tx.GetAccount(ctx, scope.TenantID, *input.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Invalid("parent_id", "parent account %d does not exist", *input.ParentID)
				}
				return err
			}
			if parent.Type != input.Type {
				return shared.Invalid("parent_id", "parent account type %s differs from %s", parent.Type, input.Type)
			}
		}
		inserted, err := tx.InsertAccount(ctx, Account{
			TenantID:  scope.TenantID,
			Code:      code,
			Name:      name,
			Type:      input.Type,
			ParentID:  input.ParentID,
			CreatedAt: s.now(),
		})
		if err != nil {
			if shared.IsDuplicateKey(err, ConstraintCode) {
				return shared.Invalid("code", "code %s already exists", code)
			}
			return fmt.Errorf("accounts: insert: %w", err)
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, scope, "account.create", created.ID, map[string]any{"code": created.Code, "type": string(created.Type)})
	return created, nil
}

// UpdateAccount renames an account.
func (s *Service) UpdateAccount(ctx context.Context, scope shared.Scope, id int64, name string) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, shared.Invalid("name", "name is required")
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateAccountName(ctx, scope.TenantID, id, name, s.now()); err != nil {
			return err
		}
		account, err := tx.GetAccount(ctx, scope.TenantID, id)
		updated = account
		return err
	})
	return updated, err
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, scope shared.Scope, id int64) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, scope.TenantID, id)
}

// ListAccounts returns the chart ordered by code.
func (s *Service) ListAccounts(ctx context.Context, scope shared.Scope) ([]Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx, scope.TenantID)
}

// Deactivate soft-deletes an account that has never been used.
func (s *Service) Deactivate(ctx context.Context, scope shared.Scope, id int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, scope.TenantID, id)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return nil
		}
		lines, err := tx.CountAccountLines(ctx, scope.TenantID, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return shared.InvalidWrap("id", ErrAccountInUse, "account %s has %d ledger lines; archive it instead", account.Code, lines)
		}
		mappings, err := tx.ListRoleMappings(ctx, scope.TenantID)
		if err != nil {
			return err
		}
		for _, m := range mappings {
			if m.AccountID == id {
				return shared.InvalidWrap("id", ErrAccountInUse, "account %s is mapped to role %s", account.Code, m.Role)
			}
		}
		return tx.SetAccountActive(ctx, scope.TenantID, id, false, s.now())
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "account.deactivate", id, nil)
	return nil
}

// ConfigureRoles validates and stores role mappings for the tenant.
func (s *Service) ConfigureRoles(ctx context.Context, scope shared.Scope, mapping map[Role]int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	roles := make([]Role, 0, len(mapping))
	for role := range mapping {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, role := range roles {
			required, ok := role.RequiredType()
			if !ok {
				return shared.Invalid("role", "unknown role %q", role)
			}
			account, err := tx.GetAccount(ctx, scope.TenantID, mapping[role])
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Invalid(string(role), "account %d does not exist", mapping[role])
				}
				return err
			}
			if !account.IsActive {
				return shared.Invalid(string(role), "account %s is inactive", account.Code)
			}
			if account.Type != required {
				return shared.Invalid(string(role), "role requires %s account, %s is %s", required, account.Code, account.Type)
			}
			if err := tx.UpsertRoleMapping(ctx, RoleMapping{
				TenantID:  scope.TenantID,
				Role:      role,
				AccountID: account.ID,
				UpdatedAt: s.now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RoleMappings lists the tenant's configured roles.
func (s *Service) RoleMappings(ctx context.Context, scope shared.Scope) ([]RoleMapping, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListRoleMappings(ctx, scope.TenantID)
}

// Resolve maps one role to its account.
func (s *Service) Resolve(ctx context.Context, scope shared.Scope, role Role) (Account, error) {
	set, err := s.ResolveAll(ctx, scope, role)
	if err != nil {
		return Account{}, err
	}
	return set[role], nil
}

// ResolveAll resolves every role or fails with a ConfigurationError naming
// the first unusable one. Callers resolve before any write.
func (s *Service) ResolveAll(ctx context.Context, scope shared.Scope, roles ...Role) (RoleSet, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	mappings, err := s.repo.ListRoleMappings(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	byRole := make(map[Role]int64, len(mappings))
	for _, m := range mappings {
		byRole[m.Role] = m.AccountID
	}
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if _, ok := set[role]; ok {
			continue
		}
		id, ok := byRole[role]
		if !ok {
			return nil, &shared.ConfigurationError{Role: string(role)}
		}
		account, err := s.repo.GetAccount(ctx, scope.TenantID, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, &shared.ConfigurationError{Role: string(role), Reason: "mapped account missing"}
			}
			return nil, err
		}
		if !account.IsActive {
			return nil, &shared.ConfigurationError{Role: string(role), Reason: "mapped account " + account.Code + " is inactive"}
		}
		set[role] = account
	}
	return set, nil
}

func (s *Service) record(ctx context.Context, scope shared.Scope, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
