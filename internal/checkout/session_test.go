package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savdopos/backend/internal/domain"
)

func newTestSession(t *testing.T, totalCents int64, customerID string) *Session {
	t.Helper()
	sess, err := NewSession("sess-1", "term-1", totalCents, customerID)
	require.NoError(t, err)
	return sess
}

func TestNewSessionRejectsNonPositiveTotal(t *testing.T) {
	_, err := NewSession("s", "t", 0, "")
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = NewSession("s", "t", -500, "")
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestPendingPartStartsAtFullTotal(t *testing.T) {
	sess := newTestSession(t, 10000, "")
	pending := sess.PendingPart()
	assert.Equal(t, domain.PaymentCash, pending.Kind)
	assert.Equal(t, int64(10000), pending.AmountCents)
	assert.Equal(t, int64(10000), sess.RemainingCents())
	assert.Equal(t, int64(0), sess.PaidCents())
}

func TestSplitAcrossCashAndCard(t *testing.T) {
	sess := newTestSession(t, 10000, "")

	require.NoError(t, sess.SetPendingPart(domain.PaymentCash, 4000))
	require.NoError(t, sess.CommitPendingPart())

	assert.Equal(t, int64(4000), sess.PaidCents())
	assert.Equal(t, int64(6000), sess.RemainingCents())
	// pending auto-resets to what is still due
	assert.Equal(t, int64(6000), sess.PendingPart().AmountCents)

	require.NoError(t, sess.SetPendingPart(domain.PaymentCard, 6000))
	require.NoError(t, sess.CommitPendingPart())
	assert.Equal(t, int64(0), sess.RemainingCents())

	parts, err := sess.Finalize()
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, domain.SalePayment{Kind: domain.PaymentCash, AmountCents: 4000}, parts[0])
	assert.Equal(t, domain.SalePayment{Kind: domain.PaymentCard, AmountCents: 6000}, parts[1])
	assert.Equal(t, StateFinalized, sess.State())
}

func TestRemoveCommittedPartReopensRemainder(t *testing.T) {
	sess := newTestSession(t, 10000, "cust-1")

	require.NoError(t, sess.SetPendingPart(domain.PaymentCash, 3000))
	require.NoError(t, sess.CommitPendingPart())
	require.NoError(t, sess.SetPendingPart(domain.PaymentCard, 7000))
	require.NoError(t, sess.CommitPendingPart())
	require.Equal(t, int64(0), sess.RemainingCents())

	// drop the cash part; card stays and remainder reopens
	require.NoError(t, sess.RemoveCommittedPart(0))
	parts := sess.CommittedParts()
	require.Len(t, parts, 1)
	assert.Equal(t, domain.PaymentCard, parts[0].Kind)
	assert.Equal(t, int64(3000), sess.RemainingCents())
	assert.Equal(t, int64(3000), sess.PendingPart().AmountCents)

	_, err := sess.Finalize()
	assert.ErrorIs(t, err, ErrUnpaidRemainder)
}

func TestRemoveCommittedPartBadIndex(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	assert.ErrorIs(t, sess.RemoveCommittedPart(0), ErrPartIndex)
	assert.ErrorIs(t, sess.RemoveCommittedPart(-1), ErrPartIndex)
}

func TestFinalizeRequiresCommittedParts(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	_, err := sess.Finalize()
	assert.ErrorIs(t, err, ErrNoPayments)
}

func TestSecondFinalizeRejectedButPartsReadable(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	require.NoError(t, sess.CommitPendingPart()) // full cash

	parts, err := sess.Finalize()
	require.NoError(t, err)
	require.Len(t, parts, 1)

	_, err = sess.Finalize()
	assert.ErrorIs(t, err, ErrSessionFinalized)

	// the payment set survives for a sale-write retry
	again := sess.CommittedParts()
	assert.Equal(t, parts, again)

	// every mutation is refused after finalize
	assert.ErrorIs(t, sess.SetPendingPart(domain.PaymentCash, 100), ErrSessionFinalized)
	assert.ErrorIs(t, sess.CommitPendingPart(), ErrSessionFinalized)
	assert.ErrorIs(t, sess.RemoveCommittedPart(0), ErrSessionFinalized)
}

func TestCommitRejectsOverpayment(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	require.NoError(t, sess.SetPendingPart(domain.PaymentCash, 3000))
	require.NoError(t, sess.CommitPendingPart())

	// SetPendingPart clamps to the remaining due
	require.NoError(t, sess.SetPendingPart(domain.PaymentCard, 9999))
	assert.Equal(t, int64(2000), sess.PendingPart().AmountCents)

	// a part forced above the due is still refused at commit
	sess.pending = domain.SalePayment{Kind: domain.PaymentCard, AmountCents: 2500}
	assert.ErrorIs(t, sess.CommitPendingPart(), ErrAmountExceedsDue)
}

func TestCommitRejectsZeroAmount(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	require.NoError(t, sess.CommitPendingPart())
	// remaining is zero, pending reset to zero: nothing more to commit
	assert.Equal(t, int64(0), sess.PendingPart().AmountCents)
	assert.ErrorIs(t, sess.CommitPendingPart(), ErrNonPositiveAmount)
}

func TestDebtPartRequiresCustomer(t *testing.T) {
	anon := newTestSession(t, 5000, "")
	require.NoError(t, anon.SetPendingPart(domain.PaymentDebt, 5000))
	assert.ErrorIs(t, anon.CommitPendingPart(), ErrDebtNeedsCustomer)

	withCustomer := newTestSession(t, 5000, "cust-7")
	require.NoError(t, withCustomer.SetPendingPart(domain.PaymentDebt, 2000))
	require.NoError(t, withCustomer.CommitPendingPart())
	require.NoError(t, withCustomer.SetPendingPart(domain.PaymentCash, 3000))
	require.NoError(t, withCustomer.CommitPendingPart())
	assert.Equal(t, int64(2000), withCustomer.DebtCents())

	_, err := withCustomer.Finalize()
	require.NoError(t, err)
}

func TestSetPendingPartValidatesKind(t *testing.T) {
	sess := newTestSession(t, 5000, "")
	assert.ErrorIs(t, sess.SetPendingPart("bitcoin", 1000), ErrInvalidKind)
	assert.ErrorIs(t, sess.SetPendingPart(domain.PaymentCash, -1), ErrNonPositiveAmount)
}

func TestPaidPlusRemainingEqualsTotal(t *testing.T) {
	sess := newTestSession(t, 123457, "cust-1")
	amounts := []int64{50000, 1, 70000, 3456}
	kinds := []domain.PaymentKind{
		domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer, domain.PaymentDebt,
	}
	for i, amt := range amounts {
		require.NoError(t, sess.SetPendingPart(kinds[i], amt))
		require.NoError(t, sess.CommitPendingPart())
		assert.Equal(t, sess.TotalCents(), sess.PaidCents()+sess.RemainingCents())
	}
	parts, err := sess.Finalize()
	require.NoError(t, err)
	require.Len(t, parts, 4)
	for i, p := range parts {
		assert.Equal(t, kinds[i], p.Kind)
		assert.Equal(t, amounts[i], p.AmountCents)
	}
}

func TestPendingPartNeverCountsTowardPaid(t *testing.T) {
	sess := newTestSession(t, 8000, "")
	require.NoError(t, sess.SetPendingPart(domain.PaymentCard, 8000))
	assert.Equal(t, int64(0), sess.PaidCents())
	assert.Equal(t, int64(8000), sess.RemainingCents())
}
