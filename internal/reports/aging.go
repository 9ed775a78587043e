package reports

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Aging bucket labels, by days past due.
const (
	BucketCurrent = "Current"
	Bucket1To30   = "1-30"
	Bucket31To60  = "31-60"
	Bucket61To90  = "61-90"
	BucketOver90  = "90+"
)

// Buckets lists the bucket labels in report order.
var Buckets = []string{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// BucketFor returns the bucket of a document due on due, seen at asOf.
func BucketFor(due, asOf time.Time) string {
	days := int(journals.DateOnly(asOf).Sub(journals.DateOnly(due)).Hours() / 24)
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// AgingBucket summarises an amount inside a time bucket.
type AgingBucket struct {
	Bucket string          `json:"bucket"`
	Amount decimal.Decimal `json:"amount"`
}

// AgingParty is the aging of one customer or vendor.
type AgingParty struct {
	PartyID int64           `json:"party_id"`
	Name    string          `json:"name"`
	Buckets []AgingBucket   `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

// AgingReport ages the open balance of one side of the books.
type AgingReport struct {
	Buckets []AgingBucket   `json:"buckets"`
	Parties []AgingParty    `json:"parties"`
	Total   decimal.Decimal `json:"total"`
}

// Aging holds receivable and payable aging at one date.
type Aging struct {
	AsOf        time.Time   `json:"as_of"`
	Receivables AgingReport `json:"receivables"`
	Payables    AgingReport `json:"payables"`
}

// openItem is an unpaid document balance.
type openItem struct {
	partyID int64
	due     time.Time
	balance decimal.Decimal
}

// Aging buckets open invoices and bills by days past due at asOf. A zero
// asOf means today.
func (s *Service) Aging(ctx context.Context, scope shared.Scope, asOf time.Time) (Aging, error) {
	if err := scope.Validate(); err != nil {
		return Aging{}, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	asOf = journals.DateOnly(asOf)
	var out Aging
	err := s.cached(ctx, scope, &out, func(ctx context.Context) (any, error) {
		return s.buildAging(ctx, scope, asOf)
	}, "aging", asOf.Format(time.DateOnly))
	return out, err
}

func (s *Service) buildAging(ctx context.Context, scope shared.Scope, asOf time.Time) (Aging, error) {
	out := Aging{AsOf: asOf}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invoices, err := s.docs.ListInvoices(gctx, scope.TenantID, documents.InvoiceFilter{
			Kind:     documents.KindInvoice,
			Statuses: documents.OpenInvoiceStatuses,
		})
		if err != nil {
			return err
		}
		customers, err := s.docs.ListCustomers(gctx, scope.TenantID)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(customers))
		for _, c := range customers {
			names[c.ID] = c.Name
		}
		items := make([]openItem, 0, len(invoices))
		for _, inv := range invoices {
			items = append(items, openItem{partyID: inv.CustomerID, due: inv.DueDate, balance: inv.BalanceDue})
		}
		out.Receivables = ageItems(items, names, asOf)
		return nil
	})
	g.Go(func() error {
		bills, err := s.docs.ListBills(gctx, scope.TenantID, documents.BillFilter{Statuses: documents.OpenBillStatuses})
		if err != nil {
			return err
		}
		vendors, err := s.docs.ListVendors(gctx, scope.TenantID)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(vendors))
		for _, v := range vendors {
			names[v.ID] = v.Name
		}
		items := make([]openItem, 0, len(bills))
		for _, b := range bills {
			items = append(items, openItem{partyID: b.VendorID, due: b.DueDate, balance: b.BalanceDue})
		}
		out.Payables = ageItems(items, names, asOf)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Aging{}, err
	}
	return out, nil
}

func emptyBuckets() []AgingBucket {
	out := make([]AgingBucket, len(Buckets))
	for i, b := range Buckets {
		out[i] = AgingBucket{Bucket: b, Amount: decimal.Zero}
	}
	return out
}

func addToBucket(buckets []AgingBucket, label string, amount decimal.Decimal) {
	for i := range buckets {
		if buckets[i].Bucket == label {
			buckets[i].Amount = buckets[i].Amount.Add(amount)
			return
		}
	}
}

func ageItems(items []openItem, names map[int64]string, asOf time.Time) AgingReport {
	report := AgingReport{Buckets: emptyBuckets(), Total: decimal.Zero}
	parties := make(map[int64]*AgingParty)
	for _, item := range items {
		if !item.balance.IsPositive() {
			continue
		}
		label := BucketFor(item.due, asOf)
		p, ok := parties[item.partyID]
		if !ok {
			p = &AgingParty{PartyID: item.partyID, Name: names[item.partyID], Buckets: emptyBuckets(), Total: decimal.Zero}
			parties[item.partyID] = p
		}
		addToBucket(p.Buckets, label, item.balance)
		p.Total = p.Total.Add(item.balance)
		addToBucket(report.Buckets, label, item.balance)
		report.Total = report.Total.Add(item.balance)
	}
	report.Parties = make([]AgingParty, 0, len(parties))
	for _, p := range parties {
		report.Parties = append(report.Parties, *p)
	}
	slices.SortFunc(report.Parties, func(a, b AgingParty) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.PartyID, b.PartyID)
	})
	return report
}
