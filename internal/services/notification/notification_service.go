package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/smilepay"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
	serviceports "github.com/kevin07696/smilepay-service/internal/services/ports"
	"github.com/kevin07696/smilepay-service/pkg/observability"
)

// Service implements serviceports.NotificationService
type Service struct {
	txRepo    ports.TransactionRepository
	providers serviceports.ProviderSource
	notifLog  ports.NotificationLogRepository
	locker    ports.Locker
	logger    *zap.Logger
}

// NewService creates a new notification service
func NewService(
	txRepo ports.TransactionRepository,
	providers serviceports.ProviderSource,
	notifLog ports.NotificationLogRepository,
	locker ports.Locker,
	logger *zap.Logger,
) *Service {
	return &Service{
		txRepo:    txRepo,
		providers: providers,
		notifLog:  notifLog,
		locker:    locker,
		logger:    logger,
	}
}

// parsedNotification holds the validated notification fields
type parsedNotification struct {
	variant    domain.MethodVariant
	classif    string
	reference  string
	paymentNo  string
	echoNonce  string
	verifyCode string
	amount     int64
}

// Process verifies a gateway callback and settles the matching transaction.
// It never mutates anything unless every check passes.
func (s *Service) Process(ctx context.Context, n domain.Notification) *domain.NotificationResult {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now()
	}

	result := s.process(ctx, n)

	s.record(ctx, n, result)
	return result
}

func (s *Service) process(ctx context.Context, n domain.Notification) *domain.NotificationResult {
	parsed, err := parseNotification(n)
	if err != nil {
		return failure(n.Get(domain.FieldReference), err)
	}

	txn, err := s.resolve(ctx, parsed)
	if err != nil {
		return failure(parsed.reference, err)
	}

	unlock, err := s.locker.Lock(ctx, "txn:"+txn.ID)
	if err != nil {
		return failure(txn.Reference, err)
	}
	defer unlock()

	txn, err = s.txRepo.GetByID(ctx, txn.ID)
	if err != nil {
		return failure(parsed.reference, fmt.Errorf("reload transaction: %w", err))
	}

	if txn.State == domain.StateDone {
		return &domain.NotificationResult{
			Ack:       domain.AckSuccess,
			Outcome:   domain.OutcomeAlreadyCompleted,
			Reference: txn.Reference,
		}
	}

	if err := checkConsistency(parsed, txn); err != nil {
		return failure(txn.Reference, err)
	}

	if err := s.checkChecksum(ctx, parsed, txn); err != nil {
		return failure(txn.Reference, err)
	}

	won, err := s.txRepo.CompareAndSetState(ctx, txn.ID, domain.StateAwaitingPayment, domain.StateDone)
	if err != nil {
		return failure(txn.Reference, fmt.Errorf("complete transaction: %w", err))
	}
	if !won {
		// A concurrent commit already settled the transaction
		return &domain.NotificationResult{
			Ack:       domain.AckSuccess,
			Outcome:   domain.OutcomeAlreadyCompleted,
			Reference: txn.Reference,
		}
	}

	observability.RecordSettlement(string(txn.MethodVariant), parsed.amount)
	return &domain.NotificationResult{
		Ack:       domain.AckSuccess,
		Outcome:   domain.OutcomeCompleted,
		Reference: txn.Reference,
	}
}

// parseNotification validates the notification's shape
func parseNotification(n domain.Notification) (*parsedNotification, error) {
	classif := n.Get(domain.FieldClassif)
	variant, ok := domain.VariantFromClassification(classif)
	if !ok {
		return nil, malformed(fmt.Sprintf("unknown classification %q", classif))
	}
	if n.Method != "" && n.Method != variant {
		return nil, malformed(fmt.Sprintf("classification %q does not match callback method %s", classif, n.Method))
	}

	required := []string{domain.FieldReference, domain.FieldAmount, domain.FieldEchoNonce, domain.FieldVerifyCode}
	if variant.HasInstructionCode() {
		required = append(required, domain.FieldPaymentNo)
	}
	for _, field := range required {
		if n.Get(field) == "" {
			return nil, malformed("missing " + field)
		}
	}

	// Both sides compare as truncated whole amounts
	rawAmount, err := decimal.NewFromString(n.Get(domain.FieldAmount))
	if err != nil || rawAmount.IsNegative() {
		return nil, malformed(fmt.Sprintf("%s is not a valid amount", domain.FieldAmount))
	}
	amount := domain.TruncateAmount(rawAmount)

	return &parsedNotification{
		variant:    variant,
		classif:    classif,
		reference:  n.Get(domain.FieldReference),
		paymentNo:  n.Get(domain.FieldPaymentNo),
		echoNonce:  n.Get(domain.FieldEchoNonce),
		verifyCode: n.Get(domain.FieldVerifyCode),
		amount:     amount,
	}, nil
}

// resolve finds the single transaction the notification refers to, by platform
// reference first and by gateway SmilePayNO second
func (s *Service) resolve(ctx context.Context, p *parsedNotification) (*domain.Transaction, error) {
	matches, err := s.txRepo.FindByReference(ctx, domain.ProviderCodeSmilePay, p.reference)
	if err != nil {
		return nil, fmt.Errorf("find by reference: %w", err)
	}
	if len(matches) == 0 {
		matches, err = s.txRepo.FindByProviderReference(ctx, domain.ProviderCodeSmilePay, p.echoNonce)
		if err != nil {
			return nil, fmt.Errorf("find by provider reference: %w", err)
		}
	}

	switch len(matches) {
	case 0:
		return nil, domain.NewDomainError(domain.ErrorCodeNotificationUnknownTxn, "no transaction matches notification").
			WithDetail("reference", p.reference).
			WithDetail("echo_nonce", p.echoNonce)
	case 1:
		return matches[0], nil
	}

	s.logger.Error("Multiple SmilePay transactions match notification",
		zap.String("reference", p.reference),
		zap.String("echo_nonce", p.echoNonce),
		zap.Int("matches", len(matches)),
	)
	return nil, domain.NewDomainError(domain.ErrorCodeIntegrityViolation,
		fmt.Sprintf("%d transactions match reference %s", len(matches), p.reference))
}

// checkConsistency compares notification data with the stored transaction
func checkConsistency(p *parsedNotification, txn *domain.Transaction) error {
	if txn.MethodVariant != p.variant {
		return mismatch(domain.ErrorCodeNotificationDataMismatch,
			fmt.Sprintf("transaction uses %s but notification is for %s", txn.MethodVariant, p.variant))
	}
	if p.variant.HasInstructionCode() && txn.InstructionCode() != p.paymentNo {
		return mismatch(domain.ErrorCodeNotificationDataMismatch, "payment code does not match issued instruction")
	}
	if txn.State != domain.StateAwaitingPayment {
		return mismatch(domain.ErrorCodeNotificationDataMismatch,
			fmt.Sprintf("transaction is %s, not awaiting payment", txn.State))
	}
	if txn.WholeAmount() != p.amount {
		return mismatch(domain.ErrorCodeNotificationAmountMismatch,
			fmt.Sprintf("notification amount %d does not match transaction amount %d", p.amount, txn.WholeAmount()))
	}
	return nil
}

func (s *Service) checkChecksum(ctx context.Context, p *parsedNotification, txn *domain.Transaction) error {
	provider, err := s.providers.Get(ctx, txn.ProviderID)
	if err != nil {
		return fmt.Errorf("load provider: %w", err)
	}
	if !smilepay.VerifyVerificationCode(p.verifyCode, provider.VerificationSeed, p.amount, p.echoNonce) {
		return mismatch(domain.ErrorCodeNotificationChecksumMismatch, "verification code does not match")
	}
	return nil
}

// record writes the audit entry and metrics for a processed notification.
// Logging failures never change the acknowledgement.
func (s *Service) record(ctx context.Context, n domain.Notification, result *domain.NotificationResult) {
	classif := n.Get(domain.FieldClassif)
	code := domain.GetErrorCode(result.Err)

	entry := &domain.NotificationLogEntry{
		ReceivedAt:    n.ReceivedAt,
		Params:        n.Params,
		Reference:     result.Reference,
		Classif:       classif,
		Outcome:       result.Outcome,
		RejectionCode: code,
	}
	if result.Err != nil {
		entry.Message = result.Err.Error()
	}
	if err := s.notifLog.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record SmilePay notification", zap.Error(err))
	}

	observability.RecordNotification(classif, string(result.Outcome), string(code))

	fields := []zap.Field{
		zap.String("reference", result.Reference),
		zap.String("classif", classif),
		zap.String("outcome", string(result.Outcome)),
	}
	switch {
	case result.Err == nil:
		s.logger.Info("SmilePay notification processed", fields...)
	case domain.IsNotificationRejection(result.Err):
		s.logger.Warn("SmilePay notification rejected", append(fields, zap.Error(result.Err))...)
	default:
		s.logger.Error("SmilePay notification failed", append(fields, zap.Error(result.Err))...)
	}
}

// Bounds for History page sizes
const (
	defaultHistoryLimit int32 = 50
	maxHistoryLimit     int32 = 200
)

// History lists the callbacks recorded for reference, newest first
func (s *Service) History(ctx context.Context, reference string, limit int32) ([]*domain.NotificationLogEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.notifLog.ListByReference(ctx, reference, limit)
}

func failure(reference string, err error) *domain.NotificationResult {
	outcome := domain.OutcomeFailed
	if domain.IsNotificationRejection(err) {
		outcome = domain.OutcomeRejected
	}
	return &domain.NotificationResult{
		Err:       err,
		Ack:       domain.AckFailure,
		Outcome:   outcome,
		Reference: reference,
	}
}

func malformed(message string) error {
	return domain.NewDomainError(domain.ErrorCodeNotificationMalformed, message)
}

func mismatch(code domain.ErrorCode, message string) error {
	return domain.NewDomainError(code, message)
}

var _ serviceports.NotificationService = (*Service)(nil)
