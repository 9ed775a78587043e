package shared

import "context"

// Scope identifies the tenant and acting user of every core operation.
type Scope struct {
	TenantID int64
	ActorID  int64
}

// Validate ensures a tenant is present.
func (s Scope) Validate() error {
	if s.TenantID <= 0 {
		return Invalid("tenant_id", "tenant is required")
	}
	return nil
}

// Savepointer runs fn inside a nested transaction that can fail without
// aborting the surrounding one.
type Savepointer interface {
	Savepoint(ctx context.Context, fn func(context.Context) error) error
}
