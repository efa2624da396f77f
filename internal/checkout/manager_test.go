package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savdopos/backend/internal/domain"
)

func TestManagerOnePerTerminal(t *testing.T) {
	m := NewManager()
	sess, err := m.Open("term-1", 5000, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())

	_, err = m.Open("term-1", 7000, "")
	assert.ErrorIs(t, err, ErrSessionExists)

	// a different terminal is independent
	_, err = m.Open("term-2", 7000, "")
	require.NoError(t, err)
}

func TestManagerDiscardFreesTerminal(t *testing.T) {
	m := NewManager()
	_, err := m.Open("term-1", 5000, "")
	require.NoError(t, err)

	require.NoError(t, m.Discard("term-1"))
	assert.ErrorIs(t, m.Discard("term-1"), ErrSessionNotFound)

	_, err = m.Open("term-1", 9000, "")
	require.NoError(t, err)
}

func TestManagerMutate(t *testing.T) {
	m := NewManager()
	_, err := m.Open("term-1", 5000, "")
	require.NoError(t, err)

	err = m.Mutate("term-1", func(s *Session) error {
		if err := s.SetPendingPart(domain.PaymentCard, 5000); err != nil {
			return err
		}
		return s.CommitPendingPart()
	})
	require.NoError(t, err)

	sess, err := m.Get("term-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sess.RemainingCents())

	assert.ErrorIs(t, m.Mutate("term-9", func(*Session) error { return nil }), ErrSessionNotFound)
}

func TestManagerReleaseAfterFinalize(t *testing.T) {
	m := NewManager()
	sess, err := m.Open("term-1", 5000, "")
	require.NoError(t, err)
	require.NoError(t, sess.CommitPendingPart())
	_, err = sess.Finalize()
	require.NoError(t, err)

	// still retrievable until released, so a failed sale write can retry
	got, err := m.Get("term-1")
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, got.State())

	m.Release("term-1")
	_, err = m.Get("term-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
