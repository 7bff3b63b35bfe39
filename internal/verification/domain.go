package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Verification statuses. Stored status is advisory: Resolve recomputes the
// effective status at read time because stored "expired" values go stale.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// Record is a verifiable document or employee-ID attestation, looked up by
// its public code.
type Record struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Kind         string     `json:"kind"`
	SubjectName  string     `json:"subject_name"`
	SubjectEmail string     `json:"subject_email"`
	Details      string     `json:"details"`
	Status       string     `json:"status"`
	ValidUntil   *time.Time `json:"valid_until"`
	IssuedBy     string     `json:"issued_by"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at"`
}

// Resolve computes the effective status. Revocation wins over everything,
// then the date check; the stored status only matters when neither applies.
func Resolve(r Record, now time.Time) string {
	if r.Status == StatusRevoked {
		return StatusRevoked
	}
	if r.ValidUntil != nil && r.ValidUntil.Before(now) {
		return StatusExpired
	}
	return r.Status
}

// NormalizeCode canonicalises user-entered codes: trimmed and uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashAnswer digests a security-question answer. The normalization
// (lowercase + trim, then SHA-256 hex) must stay exactly as is to match
// hashes already stored for existing users.
func HashAnswer(answer string) string {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// VerifyAnswer compares a candidate answer against a stored hash.
func VerifyAnswer(answer, storedHash string) bool {
	return HashAnswer(answer) == storedHash
}

var (
	// ErrNotFound indicates no record for the code.
	ErrNotFound = errors.New("verification: record not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("verification: invalid input")
	// ErrCodeExpired indicates the withdrawal code lapsed.
	ErrCodeExpired = errors.New("verification: code expired")
	// ErrCodeMismatch indicates a wrong withdrawal code.
	ErrCodeMismatch = errors.New("verification: code does not match")
	// ErrTooManyAttempts indicates the attempts budget is spent.
	ErrTooManyAttempts = errors.New("verification: too many attempts")
)
