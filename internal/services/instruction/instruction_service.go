package instruction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	adapterports "github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/adapters/smilepay"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
	serviceports "github.com/kevin07696/smilepay-service/internal/services/ports"
	"github.com/kevin07696/smilepay-service/pkg/observability"
)

// Service implements serviceports.InstructionService
type Service struct {
	txRepo          ports.TransactionRepository
	providers       serviceports.ProviderSource
	gateway         adapterports.InstructionGateway
	locker          ports.Locker
	callbackBaseURL string
	logger          *zap.Logger
}

// NewService creates a new instruction service. callbackBaseURL is the public
// base URL the gateway posts notifications to.
func NewService(
	txRepo ports.TransactionRepository,
	providers serviceports.ProviderSource,
	gateway adapterports.InstructionGateway,
	locker ports.Locker,
	callbackBaseURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		txRepo:          txRepo,
		providers:       providers,
		gateway:         gateway,
		locker:          locker,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

// EnsureInstruction requests a payment instruction for the transaction unless one
// is already stored. Gateway and configuration errors leave the transaction untouched.
func (s *Service) EnsureInstruction(ctx context.Context, reference string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.HasInstruction() {
		return txn, nil
	}

	unlock, err := s.locker.Lock(ctx, lockKey(txn.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock; a concurrent caller may have populated it
	txn, err = s.txRepo.GetByID(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if txn.HasInstruction() {
		s.logger.Debug("Instruction already issued",
			zap.String("reference", reference),
			zap.String("provider_reference", txn.ProviderReference()),
		)
		return txn, nil
	}
	if txn.State != domain.StateDraft {
		return nil, domain.NewDomainError(domain.ErrorCodeTxnInvalidState,
			fmt.Sprintf("cannot issue instruction for transaction in state %s", txn.State)).
			WithDetail("reference", reference)
	}

	provider, err := s.providers.Get(ctx, txn.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if err := provider.Validate(); err != nil {
		s.logger.Warn("SmilePay provider misconfigured",
			zap.String("reference", reference),
			zap.String("provider_id", provider.ID),
			zap.Error(err),
		)
		return nil, err
	}

	// The transaction keeps the variant it was created with
	provider.MethodVariant = txn.MethodVariant

	callbackURL := smilepay.CallbackURL(s.callbackBaseURL, txn.MethodVariant)
	params := s.gateway.BuildInstructionRequest(provider, txn, callbackURL)

	resp, err := s.gateway.RequestInstruction(ctx, provider, params)
	if err != nil {
		s.logger.Error("SmilePay instruction request failed",
			zap.String("reference", reference),
			zap.String("method", string(txn.MethodVariant)),
			zap.Error(err),
		)
		return nil, wrapGatewayError(err)
	}

	data := resp.GatewayData()
	saved, err := s.txRepo.SaveInstruction(ctx, txn.ID, data)
	if err != nil {
		return nil, fmt.Errorf("save instruction: %w", err)
	}
	if !saved {
		// Another writer moved the transaction out of draft between reload and save
		return s.txRepo.GetByID(ctx, txn.ID)
	}

	txn.Gateway = data
	txn.State = domain.StateAwaitingPayment
	observability.RecordInstructionIssued(string(txn.MethodVariant))

	s.logger.Info("SmilePay instruction issued",
		zap.String("reference", reference),
		zap.String("method", string(txn.MethodVariant)),
		zap.String("provider_reference", data.ProviderReference),
		zap.Time("payment_deadline", data.PaymentDeadline),
	)
	return txn, nil
}

// RenderingValues returns the display payload for an issued instruction
func (s *Service) RenderingValues(ctx context.Context, reference string) (*serviceports.RenderingValues, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return BuildRenderingValues(txn), nil
}

// BuildRenderingValues maps a transaction to its display payload. Codes are empty
// until an instruction has been issued.
func BuildRenderingValues(txn *domain.Transaction) *serviceports.RenderingValues {
	values := &serviceports.RenderingValues{
		Reference:         txn.Reference,
		State:             txn.State,
		Method:            txn.MethodVariant,
		PaymentMethodCode: txn.MethodVariant.PaymentMethodCode(),
		ProviderReference: txn.ProviderReference(),
		Amount:            txn.WholeAmount(),
	}
	if !txn.HasInstruction() {
		return values
	}
	values.PaymentDeadline = txn.Gateway.PaymentDeadline

	switch instr := txn.Gateway.Instruction.(type) {
	case domain.BankAccount:
		values.BankCode = instr.BankCode
		values.AccountNo = instr.AccountNo
		values.ATMQRCodeURL = smilepay.ATMQRCodeURL(values.Amount, instr.BankCode, instr.AccountNo, values.PaymentDeadline)
	case domain.IbonCode:
		values.IbonNo = instr.Number
		values.IbonQRCodeURL = smilepay.IbonQRCodeURL(instr.Number)
	case domain.FamiPortCode:
		values.FamiNo = instr.Number
	case domain.Barcode:
		values.Barcode1 = instr.Part1
		values.Barcode2 = instr.Part2
		values.Barcode3 = instr.Part3
	}
	return values
}

// wrapGatewayError tags transport and gateway failures with GATEWAY_ERROR while
// keeping the *smilepay.GatewayError reachable through errors.As
func wrapGatewayError(err error) error {
	var gwErr *smilepay.GatewayError
	if errors.As(err, &gwErr) {
		return domain.WrapError(domain.ErrorCodeGatewayError, gwErr.Message, err).
			WithDetail("kind", string(gwErr.Kind))
	}
	return domain.WrapError(domain.ErrorCodeGatewayError, "gateway request failed", err)
}

func lockKey(transactionID string) string {
	return "txn:" + transactionID
}

var _ serviceports.InstructionService = (*Service)(nil)
