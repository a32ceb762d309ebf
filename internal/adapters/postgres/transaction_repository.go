package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

const transactionColumns = `
	id, reference, provider_id, provider_code, currency, state, method_variant, amount,
	partner_name, partner_phone, partner_email,
	smilepay_no, payment_deadline, atm_bank_no, atm_no, barcode1, barcode2, barcode3, ibon_no, fami_no,
	created_at, updated_at`

// TransactionRepository implements ports.TransactionRepository using pgx
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	id, err := parseID(txn.ID)
	if err != nil {
		return err
	}
	providerID, err := nullUUID(txn.ProviderID)
	if err != nil {
		return err
	}
	amount, err := decimalToPgNumeric(txn.Amount)
	if err != nil {
		return err
	}
	if txn.State == "" {
		txn.State = domain.StateDraft
	}
	if txn.Currency == "" {
		txn.Currency = "TWD"
	}

	var instr domain.InstructionFields
	var smilePayNo string
	var deadline time.Time
	if txn.Gateway != nil {
		instr = domain.FlattenInstruction(txn.Gateway.Instruction)
		smilePayNo = txn.Gateway.ProviderReference
		deadline = txn.Gateway.PaymentDeadline
	}

	err = r.db.GetDB().QueryRow(ctx, `
		INSERT INTO transactions (
			id, reference, provider_id, provider_code, currency, state, method_variant, amount,
			partner_name, partner_phone, partner_email,
			smilepay_no, payment_deadline, atm_bank_no, atm_no, barcode1, barcode2, barcode3, ibon_no, fami_no
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`,
		id, txn.Reference, providerID, txn.ProviderCode, txn.Currency, string(txn.State),
		string(txn.MethodVariant), amount,
		nullText(txn.PartnerName), nullText(txn.PartnerPhone), nullText(txn.PartnerEmail),
		nullText(smilePayNo), nullTimestamptz(deadline),
		nullText(instr.AtmBankNo), nullText(instr.AtmNo),
		nullText(instr.Barcode1), nullText(instr.Barcode2), nullText(instr.Barcode3),
		nullText(instr.IbonNo), nullText(instr.FamiNo),
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTxnAlreadyExists
		}
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create transaction", err)
	}

	txn.ID = id.String()
	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrTxnNotFound
	}
	row := r.db.GetDB().QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, parsed)
	return scanTransactionRow(row)
}

// GetByReference retrieves the oldest transaction carrying reference
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.GetDB().QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE reference = $1
		ORDER BY created_at
		LIMIT 1`, reference)
	return scanTransactionRow(row)
}

// FindByReference lists transactions of providerCode with the given reference
func (r *TransactionRepository) FindByReference(ctx context.Context, providerCode, reference string) ([]*domain.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE provider_code = $1 AND reference = $2
		ORDER BY id`, providerCode, reference)
}

// FindByProviderReference lists transactions of providerCode whose SmilePayNO equals providerRef
func (r *TransactionRepository) FindByProviderReference(ctx context.Context, providerCode, providerRef string) ([]*domain.Transaction, error) {
	if providerRef == "" {
		return nil, nil
	}
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE provider_code = $1 AND smilepay_no = $2
		ORDER BY id`, providerCode, providerRef)
}

// SaveInstruction stores the gateway instruction and moves draft -> awaiting_payment
// in one statement
func (r *TransactionRepository) SaveInstruction(ctx context.Context, id string, data *domain.GatewayData) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrTxnNotFound
	}
	instr := domain.FlattenInstruction(data.Instruction)

	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE transactions SET
			state = $2,
			smilepay_no = $3,
			payment_deadline = $4,
			atm_bank_no = $5,
			atm_no = $6,
			barcode1 = $7,
			barcode2 = $8,
			barcode3 = $9,
			ibon_no = $10,
			fami_no = $11,
			updated_at = NOW()
		WHERE id = $1 AND state = $12`,
		parsed, string(domain.StateAwaitingPayment),
		nullText(data.ProviderReference), nullTimestamptz(data.PaymentDeadline),
		nullText(instr.AtmBankNo), nullText(instr.AtmNo),
		nullText(instr.Barcode1), nullText(instr.Barcode2), nullText(instr.Barcode3),
		nullText(instr.IbonNo), nullText(instr.FamiNo),
		string(domain.StateDraft),
	)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "save instruction", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSetState moves a transaction from one state to another if it is still in from
func (r *TransactionRepository) CompareAndSetState(ctx context.Context, id string, from, to domain.TransactionState) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrTxnNotFound
	}
	if !from.CanTransitionTo(to) {
		return false, domain.NewDomainError(domain.ErrorCodeTxnInvalidState,
			fmt.Sprintf("cannot move transaction from %s to %s", from, to))
	}

	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE transactions SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = $3`,
		parsed, string(to), string(from))
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "update transaction state", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepository) query(ctx context.Context, sql string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := r.db.GetDB().Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "query transactions", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate transactions", err)
	}
	return out, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTxnNotFound
	}
	return txn, err
}

// scanTransaction reads one row selected with transactionColumns
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		id                                     uuid.UUID
		providerID                             pgtype.UUID
		state, variant                         string
		amount                                 pgtype.Numeric
		partnerName, partnerPhone, partnerMail pgtype.Text
		smilePayNo                             pgtype.Text
		deadline                               pgtype.Timestamptz
		atmBankNo, atmNo                       pgtype.Text
		barcode1, barcode2, barcode3           pgtype.Text
		ibonNo, famiNo                         pgtype.Text
		txn                                    domain.Transaction
	)

	err := row.Scan(
		&id, &txn.Reference, &providerID, &txn.ProviderCode, &txn.Currency, &state, &variant, &amount,
		&partnerName, &partnerPhone, &partnerMail,
		&smilePayNo, &deadline, &atmBankNo, &atmNo, &barcode1, &barcode2, &barcode3, &ibonNo, &famiNo,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan transaction", err)
	}

	txn.ID = id.String()
	txn.ProviderID = uuidString(providerID)
	txn.State = domain.TransactionState(state)
	txn.MethodVariant = domain.MethodVariant(variant)
	txn.PartnerName = partnerName.String
	txn.PartnerPhone = partnerPhone.String
	txn.PartnerEmail = partnerMail.String

	txn.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	if smilePayNo.Valid {
		fields := domain.InstructionFields{
			AtmBankNo: atmBankNo.String,
			AtmNo:     atmNo.String,
			Barcode1:  barcode1.String,
			Barcode2:  barcode2.String,
			Barcode3:  barcode3.String,
			IbonNo:    ibonNo.String,
			FamiNo:    famiNo.String,
		}
		txn.Gateway = &domain.GatewayData{
			ProviderReference: smilePayNo.String,
			Instruction:       fields.Instruction(txn.MethodVariant),
		}
		if deadline.Valid {
			txn.Gateway.PaymentDeadline = deadline.Time
		}
	}

	return &txn, nil
}

var _ ports.TransactionRepository = (*TransactionRepository)(nil)
