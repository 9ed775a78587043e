package lifecycle

import (
	"context"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RecordPayment stores a received or sent payment, applies it to one or
// more documents and posts it.
func (s *Service) RecordPayment(ctx context.Context, scope shared.Scope, input posting.PaymentInput) (documents.Payment, error) {
	var recorded documents.Payment
	err := s.run(ctx, scope, "payment.record", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		payment, result, err := s.poster.PostPayment(ctx, scope, input)
		if err != nil {
			return outcome{}, err
		}
		recorded = payment
		return outcome{result: result, entity: "payment", entityID: payment.ID, meta: map[string]any{
			"number":       payment.Number,
			"direction":    string(payment.Direction),
			"amount":       payment.Amount.StringFixed(2),
			"applications": len(payment.Applications),
		}}, nil
	})
	if err != nil {
		return documents.Payment{}, err
	}
	return recorded, nil
}

// GetPayment returns a payment with its applications.
func (s *Service) GetPayment(ctx context.Context, scope shared.Scope, id int64) (documents.Payment, error) {
	if err := scope.Validate(); err != nil {
		return documents.Payment{}, err
	}
	return s.docs.GetPayment(ctx, scope.TenantID, id)
}
