package posting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAmountsNetPerAccountInFirstSeenOrder(t *testing.T) {
	a := newAmounts()
	a.add(7, d("-40"))
	a.add(3, d("-10"))
	a.add(7, d("-5"))
	a.add(9, d("12"))
	a.add(9, d("-12"))

	lines := a.lines("Invoice INV-00001")
	require.Len(t, lines, 2, "accounts netting to zero are dropped")
	require.Equal(t, int64(7), lines[0].AccountID)
	require.True(t, lines[0].Credit.Equal(d("45")))
	require.True(t, lines[0].Debit.IsZero())
	require.Equal(t, int64(3), lines[1].AccountID)
	require.Equal(t, "Invoice INV-00001", lines[1].Memo)
}

func TestSigned(t *testing.T) {
	line, ok := signed(4, d("2.5"))
	require.True(t, ok)
	require.True(t, line.Debit.Equal(d("2.5")))

	line, ok = signed(4, d("-2.5"))
	require.True(t, ok)
	require.True(t, line.Credit.Equal(d("2.5")))

	_, ok = signed(4, decimal.Zero)
	require.False(t, ok)
}

func TestCheckApplication(t *testing.T) {
	cases := []struct {
		name      string
		open      bool
		sameParty bool
		amount    string
		is        error
	}{
		{name: "fits", open: true, sameParty: true, amount: "50"},
		{name: "settles exactly", open: true, sameParty: true, amount: "100"},
		{name: "closed", open: false, sameParty: true, amount: "10", is: shared.ErrValidation},
		{name: "other party", open: true, sameParty: false, amount: "10", is: documents.ErrPartyMismatch},
		{name: "over balance", open: true, sameParty: true, amount: "100.01", is: documents.ErrOverApplied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkApplication(tc.open, tc.sameParty, "INV-00001", "SENT", d(tc.amount), d("100"))
			if tc.is == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.is)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestPaymentInputNormalize(t *testing.T) {
	in := PaymentInput{
		Direction:    documents.PaymentReceived,
		PartyID:      1,
		Amount:       d("100.005"),
		Method:       " cash ",
		Applications: []ApplicationInput{{DocumentID: 1, Amount: d("60")}, {DocumentID: 2, Amount: d("40")}},
	}
	require.NoError(t, in.normalize())
	require.Equal(t, "cash", in.Method)

	dup := PaymentInput{
		Direction:    documents.PaymentSent,
		PartyID:      1,
		Amount:       d("100"),
		Applications: []ApplicationInput{{DocumentID: 1, Amount: d("10")}, {DocumentID: 1, Amount: d("10")}},
	}
	require.ErrorIs(t, dup.normalize(), shared.ErrValidation)

	noParty := PaymentInput{Direction: documents.PaymentSent, Amount: d("1")}
	require.ErrorIs(t, noParty.normalize(), shared.ErrValidation)

	zeroApp := PaymentInput{Direction: documents.PaymentSent, PartyID: 1, Amount: d("1"), Applications: []ApplicationInput{{DocumentID: 1}}}
	require.ErrorIs(t, zeroApp.normalize(), shared.ErrValidation)
}

func TestPrimaryEntryID(t *testing.T) {
	require.Nil(t, Result{}.PrimaryEntryID())
}
