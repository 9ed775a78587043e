package db

import (
	"context"
	"fmt"
)

// MaxSequence returns the highest sequential part of prefix-NNNNN numbers
// in table for a tenant, ignoring collision suffixes. table must be a
// trusted identifier.
func MaxSequence(ctx context.Context, conn DBTX, table string, tenantID int64, prefix string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(CAST(split_part(substr(number, length($2) + 2), '-', 1) AS BIGINT)), 0)
FROM %s WHERE tenant_id=$1 AND number ~ ('^' || $2 || '-[0-9]+($|-)')`, table)
	var seq int64
	if err := conn.QueryRow(ctx, query, tenantID, prefix).Scan(&seq); err != nil {
		return 0, fmt.Errorf("platform/db: max sequence %s: %w", table, err)
	}
	return seq, nil
}
