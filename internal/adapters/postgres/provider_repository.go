package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

// ProviderRepository implements ports.ProviderRepository using pgx
type ProviderRepository struct {
	db ports.DBPort
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db ports.DBPort) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// Create inserts a provider configuration
func (r *ProviderRepository) Create(ctx context.Context, provider *domain.Provider) error {
	id, err := parseID(provider.ID)
	if err != nil {
		return err
	}

	err = r.db.GetDB().QueryRow(ctx, `
		INSERT INTO smilepay_providers (
			id, code, name, merchant_id, parameter_code, verify_key, verification_seed,
			secret_path, method_variant, environment, endpoint_override
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		id, provider.Code, provider.Name, provider.MerchantID, provider.ParameterCode,
		provider.VerifyKey, provider.VerificationSeed, nullText(provider.SecretPath),
		string(provider.MethodVariant), string(provider.Environment), nullText(provider.EndpointOverride),
	).Scan(&provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create provider", err)
	}

	provider.ID = id.String()
	return nil
}

// Get retrieves a provider by ID
func (r *ProviderRepository) Get(ctx context.Context, id string) (*domain.Provider, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrProviderNotFound
	}

	var (
		p                    domain.Provider
		providerID           uuid.UUID
		secretPath, endpoint pgtype.Text
		variant, environment string
	)
	err = r.db.GetDB().QueryRow(ctx, `
		SELECT id, code, name, merchant_id, parameter_code, verify_key, verification_seed,
			secret_path, method_variant, environment, endpoint_override, created_at, updated_at
		FROM smilepay_providers
		WHERE id = $1`, parsed,
	).Scan(
		&providerID, &p.Code, &p.Name, &p.MerchantID, &p.ParameterCode, &p.VerifyKey, &p.VerificationSeed,
		&secretPath, &variant, &environment, &endpoint, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProviderNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get provider", err)
	}

	p.ID = providerID.String()
	p.SecretPath = secretPath.String
	p.EndpointOverride = endpoint.String
	p.MethodVariant = domain.MethodVariant(variant)
	p.Environment = domain.Environment(environment)
	return &p, nil
}

// UpdateMethodVariant changes the provider's variant unless transactions already use it.
// The provider row is locked so a concurrent transaction insert cannot slip in between
// the check and the update.
func (r *ProviderRepository) UpdateMethodVariant(ctx context.Context, id string, variant domain.MethodVariant) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrProviderNotFound
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT method_variant FROM smilepay_providers WHERE id = $1 FOR UPDATE`, parsed,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrProviderNotFound
			}
			return domain.WrapError(domain.ErrorCodeDatabaseError, "lock provider", err)
		}
		if domain.MethodVariant(current) == variant {
			return nil
		}

		var used bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE provider_id = $1)`, parsed,
		).Scan(&used)
		if err != nil {
			return domain.WrapError(domain.ErrorCodeDatabaseError, "count provider transactions", err)
		}
		if used {
			return domain.ErrProviderVariantLocked
		}

		_, err = tx.Exec(ctx,
			`UPDATE smilepay_providers SET method_variant = $2, updated_at = NOW() WHERE id = $1`,
			parsed, string(variant))
		if err != nil {
			return domain.WrapError(domain.ErrorCodeDatabaseError, "update provider", err)
		}
		return nil
	})
}

var _ ports.ProviderRepository = (*ProviderRepository)(nil)
