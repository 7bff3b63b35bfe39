package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		rec  Record
		want string
	}{
		{"active with future validity", Record{Status: StatusActive, ValidUntil: &future}, StatusActive},
		{"active without validity limit", Record{Status: StatusActive}, StatusActive},
		{"lapsed validity overrides stored active", Record{Status: StatusActive, ValidUntil: &past}, StatusExpired},
		{"revoked wins over valid date", Record{Status: StatusRevoked, ValidUntil: &future}, StatusRevoked},
		{"revoked wins over lapsed date", Record{Status: StatusRevoked, ValidUntil: &past}, StatusRevoked},
		{"stored expired with future date is trusted forward", Record{Status: StatusExpired, ValidUntil: &future}, StatusExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Resolve(tc.rec, now))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "NH-2026-001", NormalizeCode("  nh-2026-001 "))
	require.Equal(t, "", NormalizeCode("   "))
}

func TestHashAnswerNormalization(t *testing.T) {
	sum := sha256.Sum256([]byte("blue"))
	stored := hex.EncodeToString(sum[:])

	require.Equal(t, stored, HashAnswer("Blue"))
	require.True(t, VerifyAnswer("  BLUE  ", stored))
	require.True(t, VerifyAnswer("blue", stored))
	require.False(t, VerifyAnswer("Red", stored))
}
