package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCodeStore(t *testing.T) (*CodeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCodeStore(client), mr
}

func TestWithdrawalCodeRoundTrip(t *testing.T) {
	store, _ := newCodeStore(t)
	ctx := context.Background()

	issue, err := store.Issue(ctx, "wr-123", "approver@nileharvest.test", "+256700000000")
	require.NoError(t, err)
	require.Len(t, issue.Code, 6)
	require.NotEmpty(t, issue.CodeID)
	require.WithinDuration(t, time.Now().Add(codeTTL), issue.ExpiresAt, 5*time.Second)

	check, err := store.Verify(ctx, issue.CodeID, issue.Code)
	require.NoError(t, err)
	require.True(t, check.Success)

	// The code is single use.
	_, err = store.Verify(ctx, issue.CodeID, issue.Code)
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestWithdrawalCodeWrongGuessesBurnAttempts(t *testing.T) {
	store, _ := newCodeStore(t)
	ctx := context.Background()

	issue, err := store.Issue(ctx, "wr-123", "approver@nileharvest.test", "")
	require.NoError(t, err)

	wrong := "000000"
	if issue.Code == wrong {
		wrong = "000001"
	}

	for i := 1; i < maxCodeAttempts; i++ {
		check, err := store.Verify(ctx, issue.CodeID, wrong)
		require.ErrorIs(t, err, ErrCodeMismatch)
		require.NotNil(t, check.AttemptsRemaining)
		require.Equal(t, maxCodeAttempts-i, *check.AttemptsRemaining)
	}

	check, err := store.Verify(ctx, issue.CodeID, wrong)
	require.ErrorIs(t, err, ErrTooManyAttempts)
	require.NotNil(t, check.AttemptsRemaining)
	require.Zero(t, *check.AttemptsRemaining)

	// The right code no longer works once the budget is spent.
	_, err = store.Verify(ctx, issue.CodeID, issue.Code)
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestWithdrawalCodeExpires(t *testing.T) {
	store, mr := newCodeStore(t)
	ctx := context.Background()

	issue, err := store.Issue(ctx, "wr-123", "approver@nileharvest.test", "")
	require.NoError(t, err)

	mr.FastForward(codeTTL + time.Second)

	_, err = store.Verify(ctx, issue.CodeID, issue.Code)
	require.ErrorIs(t, err, ErrCodeExpired)
}
