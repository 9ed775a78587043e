package lifecycle

import (
	"context"

	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RecordStockMovement records a manual movement, such as a count
// adjustment or a return to vendor, and refreshes the accounts its journal
// touched.
func (s *Service) RecordStockMovement(ctx context.Context, scope shared.Scope, input inventory.MovementInput) (inventory.Movement, error) {
	var recorded inventory.Movement
	err := s.run(ctx, scope, "stock.record", func(ctx context.Context, _ documents.TxRepository) (outcome, error) {
		movement, err := s.stock.RecordMovement(ctx, scope, input)
		if err != nil {
			return outcome{}, err
		}
		result := posting.Result{Movements: []inventory.Movement{movement}}
		if movement.JournalEntryID != nil {
			entry, err := s.entries.GetEntry(ctx, scope, *movement.JournalEntryID)
			if err != nil {
				return outcome{}, err
			}
			result.Entries = append(result.Entries, entry)
			result.Affected.Merge(balances.Affected{AccountIDs: entry.AccountIDs()})
		}
		recorded = movement
		return outcome{result: result, entity: "stock_movement", entityID: movement.ID, meta: map[string]any{
			"product_id": movement.ProductID,
			"type":       string(movement.Type),
			"quantity":   movement.Quantity.String(),
		}}, nil
	})
	if err != nil {
		return inventory.Movement{}, err
	}
	return recorded, nil
}
