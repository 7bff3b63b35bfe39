package verification

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix   = "withdrawal:code:"
	codeTTL         = 10 * time.Minute
	maxCodeAttempts = 5
)

// CodeIssue is the result of creating a withdrawal step-up code. The code
// itself goes to the approver out of band; callers only relay it.
type CodeIssue struct {
	CodeID    string    `json:"code_id"`
	Code      string    `json:"code"`
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeCheck is the outcome of a verification attempt.
type CodeCheck struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

type storedCode struct {
	Code          string `json:"code"`
	RequestID     string `json:"request_id"`
	ApproverEmail string `json:"approver_email"`
	ApproverPhone string `json:"approver_phone"`
	Attempts      int    `json:"attempts"`
}

// CodeStore keeps withdrawal step-up codes in Redis. The TTL is the
// authority on expiry; attempts are capped server side.
type CodeStore struct {
	client *redis.Client
}

// NewCodeStore constructs a CodeStore.
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

// Issue creates a 6-digit code bound to a withdrawal request.
func (s *CodeStore) Issue(ctx context.Context, requestID, approverEmail, approverPhone string) (CodeIssue, error) {
	code, err := sixDigitCode()
	if err != nil {
		return CodeIssue{}, err
	}
	codeID := uuid.NewString()
	payload, err := json.Marshal(storedCode{
		Code:          code,
		RequestID:     requestID,
		ApproverEmail: approverEmail,
		ApproverPhone: approverPhone,
	})
	if err != nil {
		return CodeIssue{}, err
	}
	if err := s.client.Set(ctx, codeKeyPrefix+codeID, payload, codeTTL).Err(); err != nil {
		return CodeIssue{}, err
	}
	return CodeIssue{
		CodeID:    codeID,
		Code:      code,
		Phone:     approverPhone,
		ExpiresAt: time.Now().Add(codeTTL),
	}, nil
}

// Verify checks a candidate code. Wrong guesses burn an attempt; the code is
// deleted on success or when the attempts budget is spent.
func (s *CodeStore) Verify(ctx context.Context, codeID, candidate string) (CodeCheck, error) {
	key := codeKeyPrefix + codeID
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return CodeCheck{Error: ErrCodeExpired.Error()}, ErrCodeExpired
	}
	if err != nil {
		return CodeCheck{}, err
	}
	var stored storedCode
	if err := json.Unmarshal(raw, &stored); err != nil {
		return CodeCheck{}, err
	}

	if stored.Code == candidate {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return CodeCheck{}, err
		}
		return CodeCheck{Success: true}, nil
	}

	stored.Attempts++
	if stored.Attempts >= maxCodeAttempts {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return CodeCheck{}, err
		}
		zero := 0
		return CodeCheck{Error: ErrTooManyAttempts.Error(), AttemptsRemaining: &zero}, ErrTooManyAttempts
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return CodeCheck{}, err
	}
	if err := s.client.Set(ctx, key, payload, redis.KeepTTL).Err(); err != nil {
		return CodeCheck{}, err
	}
	remaining := maxCodeAttempts - stored.Attempts
	return CodeCheck{Error: ErrCodeMismatch.Error(), AttemptsRemaining: &remaining}, ErrCodeMismatch
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
