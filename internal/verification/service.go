package verification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, rec Record) (Record, error)
	GetByCode(ctx context.Context, code string) (Record, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	InsertAudit(ctx context.Context, entry AuditEntry) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
	ReplaceQuestions(ctx context.Context, email string, questions []SecurityQuestion) error
	QuestionsFor(ctx context.Context, email string) ([]SecurityQuestion, error)
}

// CodeStorePort issues and checks withdrawal step-up codes.
type CodeStorePort interface {
	Issue(ctx context.Context, requestID, approverEmail, approverPhone string) (CodeIssue, error)
	Verify(ctx context.Context, codeID, candidate string) (CodeCheck, error)
}

// Service backs the public verification portal and the step-up flows.
type Service struct {
	repo   RepositoryPort
	codes  CodeStorePort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the verification service.
func NewService(repo RepositoryPort, codes CodeStorePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, codes: codes, logger: logger, now: time.Now}
}

// LookupResult is a record with its recomputed status.
type LookupResult struct {
	Record Record `json:"record"`
	Status string `json:"status"`
}

// Lookup resolves a public code and logs the attempt. The effective status
// is recomputed here; the stored one may be stale.
func (s *Service) Lookup(ctx context.Context, code, clientIP, userAgent string) (LookupResult, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return LookupResult{}, ErrValidation
	}

	rec, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		s.audit(ctx, AuditEntry{Code: normalized, Result: "not_found", ClientIP: clientIP, UserAgent: userAgent})
		return LookupResult{}, err
	}

	status := Resolve(rec, s.now())
	s.audit(ctx, AuditEntry{VerificationID: &rec.ID, Code: normalized, Result: status, ClientIP: clientIP, UserAgent: userAgent})
	return LookupResult{Record: rec, Status: status}, nil
}

func (s *Service) audit(ctx context.Context, entry AuditEntry) {
	if err := s.repo.InsertAudit(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("verification audit write failed", slog.String("code", entry.Code), slog.Any("error", err))
	}
}

// IssueInput describes a record to issue.
type IssueInput struct {
	Code         string
	Kind         string
	SubjectName  string
	SubjectEmail string
	Details      string
	ValidUntil   *time.Time
	IssuedBy     string
}

// Issue creates a new verification record.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Record, error) {
	code := NormalizeCode(input.Code)
	if code == "" || strings.TrimSpace(input.SubjectName) == "" {
		return Record{}, ErrValidation
	}
	return s.repo.Create(ctx, Record{
		Code:         code,
		Kind:         input.Kind,
		SubjectName:  input.SubjectName,
		SubjectEmail: input.SubjectEmail,
		Details:      input.Details,
		ValidUntil:   input.ValidUntil,
		IssuedBy:     input.IssuedBy,
	})
}

// Revoke marks a record revoked.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.repo.Revoke(ctx, id)
}

// QuestionAnswer pairs a question with its plain answer for setup.
type QuestionAnswer struct {
	Question string
	Answer   string
}

// SetSecurityQuestions stores hashed security answers for the user.
func (s *Service) SetSecurityQuestions(ctx context.Context, email string, pairs []QuestionAnswer) error {
	if len(pairs) == 0 {
		return ErrValidation
	}
	questions := make([]SecurityQuestion, 0, len(pairs))
	for _, pair := range pairs {
		if strings.TrimSpace(pair.Question) == "" || strings.TrimSpace(pair.Answer) == "" {
			return ErrValidation
		}
		questions = append(questions, SecurityQuestion{
			Email:      email,
			Question:   pair.Question,
			AnswerHash: HashAnswer(pair.Answer),
		})
	}
	return s.repo.ReplaceQuestions(ctx, email, questions)
}

// SecurityQuestionsFor returns the user's questions without answer hashes.
func (s *Service) SecurityQuestionsFor(ctx context.Context, email string) ([]SecurityQuestion, error) {
	return s.repo.QuestionsFor(ctx, email)
}

// VerifySecurityAnswers checks the provided answers against stored hashes.
// Every stored question must be answered correctly.
func (s *Service) VerifySecurityAnswers(ctx context.Context, email string, answers map[uuid.UUID]string) (bool, error) {
	questions, err := s.repo.QuestionsFor(ctx, email)
	if err != nil {
		return false, err
	}
	if len(questions) == 0 {
		return false, ErrNotFound
	}
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok || !VerifyAnswer(answer, q.AnswerHash) {
			return false, nil
		}
	}
	return true, nil
}

// CreateWithdrawalCode issues a step-up code for a withdrawal request.
func (s *Service) CreateWithdrawalCode(ctx context.Context, requestID, approverEmail, approverPhone string) (CodeIssue, error) {
	if strings.TrimSpace(requestID) == "" || strings.TrimSpace(approverEmail) == "" {
		return CodeIssue{}, ErrValidation
	}
	return s.codes.Issue(ctx, requestID, approverEmail, approverPhone)
}

// VerifyWithdrawalCode checks a step-up code attempt.
func (s *Service) VerifyWithdrawalCode(ctx context.Context, codeID, code string) (CodeCheck, error) {
	return s.codes.Verify(ctx, codeID, code)
}

// CleanupExpired removes long-expired records. Run from the nightly job.
func (s *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("expired verifications removed", slog.Int64("count", removed))
	}
	return removed, nil
}
