package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

// NotificationLogRepository implements ports.NotificationLogRepository using pgx
type NotificationLogRepository struct {
	db ports.DBPort
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db ports.DBPort) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Record appends a notification log entry
func (r *NotificationLogRepository) Record(ctx context.Context, entry *domain.NotificationLogEntry) error {
	id, err := parseID(entry.ID)
	if err != nil {
		return err
	}

	params := entry.Params
	if params == nil {
		params = map[string]string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	_, err = r.db.GetDB().Exec(ctx, `
		INSERT INTO smilepay_notification_log (
			id, received_at, reference, classif, outcome, rejection_code, message, params
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, entry.ReceivedAt, nullText(entry.Reference), nullText(entry.Classif),
		string(entry.Outcome), nullText(string(entry.RejectionCode)), nullText(entry.Message), paramsJSON,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "record notification", err)
	}

	entry.ID = id.String()
	return nil
}

// ListByReference returns the newest entries for reference first
func (r *NotificationLogRepository) ListByReference(ctx context.Context, reference string, limit int32) ([]*domain.NotificationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.GetDB().Query(ctx, `
		SELECT id, received_at, reference, classif, outcome, rejection_code, message, params
		FROM smilepay_notification_log
		WHERE reference = $1
		ORDER BY received_at DESC
		LIMIT $2`, reference, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list notifications", err)
	}
	defer rows.Close()

	var entries []*domain.NotificationLogEntry
	for rows.Next() {
		var (
			entry                       domain.NotificationLogEntry
			id                          uuid.UUID
			ref, classif, code, message pgtype.Text
			outcome                     string
			paramsJSON                  []byte
		)
		if err := rows.Scan(&id, &entry.ReceivedAt, &ref, &classif, &outcome, &code, &message, &paramsJSON); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan notification", err)
		}
		if err := json.Unmarshal(paramsJSON, &entry.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}

		entry.ID = id.String()
		entry.Reference = ref.String
		entry.Classif = classif.String
		entry.Outcome = domain.NotificationOutcome(outcome)
		entry.RejectionCode = domain.ErrorCode(code.String)
		entry.Message = message.String
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate notifications", err)
	}
	return entries, nil
}

var _ ports.NotificationLogRepository = (*NotificationLogRepository)(nil)
