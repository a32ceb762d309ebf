package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	adapterports "github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

// Service manages provider configurations
type Service struct {
	providers ports.ProviderRepository
	cache     *CredentialCache
	secretMgr adapterports.SecretManagerAdapter
	logger    *zap.Logger
}

// NewService creates a provider service. secretMgr may be nil when providers
// keep their credentials in the database.
func NewService(
	providers ports.ProviderRepository,
	cache *CredentialCache,
	secretMgr adapterports.SecretManagerAdapter,
	logger *zap.Logger,
) *Service {
	return &Service{
		providers: providers,
		cache:     cache,
		secretMgr: secretMgr,
		logger:    logger,
	}
}

// Register stores a new provider. Credentials may be incomplete at this point;
// they are checked when an instruction is requested.
//
// When SecretPath is set, VerifyKey and VerificationSeed are written to the
// secret manager and left blank on the stored row.
func (s *Service) Register(ctx context.Context, provider *domain.Provider) error {
	if provider.Code == "" {
		provider.Code = domain.ProviderCodeSmilePay
	}
	if provider.Environment == "" {
		provider.Environment = domain.EnvironmentTest
	}
	if provider.ID == "" {
		provider.ID = uuid.NewString()
	}
	if !provider.MethodVariant.Valid() {
		return domain.NewDomainError(domain.ErrorCodeConfigIncomplete,
			fmt.Sprintf("unknown payment method %q", provider.MethodVariant))
	}
	if !validSeed(provider.VerificationSeed) {
		return domain.NewDomainError(domain.ErrorCodeConfigIncomplete,
			"verification_seed must be at most 4 digits").
			WithDetail("provider_id", provider.ID)
	}

	wroteSecret, err := s.storeSecret(ctx, provider)
	if err != nil {
		return err
	}

	if err := s.providers.Create(ctx, provider); err != nil {
		if wroteSecret {
			s.discardSecret(ctx, provider)
		}
		return fmt.Errorf("create provider: %w", err)
	}

	s.logger.Info("Registered SmilePay provider",
		zap.String("provider_id", provider.ID),
		zap.String("method", string(provider.MethodVariant)),
		zap.String("environment", string(provider.Environment)),
		zap.Bool("secret_manager", provider.SecretPath != ""),
	)
	return nil
}

// storeSecret moves the credentials into the secret manager and reports
// whether anything was written
func (s *Service) storeSecret(ctx context.Context, provider *domain.Provider) (bool, error) {
	if provider.SecretPath == "" {
		return false, nil
	}
	if s.secretMgr == nil {
		return false, domain.NewDomainError(domain.ErrorCodeConfigIncomplete,
			"secret_path is set but no secret manager is configured").
			WithDetail("provider_id", provider.ID)
	}
	if provider.VerifyKey == "" && provider.VerificationSeed == "" {
		// Secret provisioned out of band
		return false, nil
	}

	doc, err := json.Marshal(providerSecret{
		VerifyKey:        provider.VerifyKey,
		VerificationSeed: provider.VerificationSeed,
	})
	if err != nil {
		return false, fmt.Errorf("encode provider secret: %w", err)
	}

	version, err := s.secretMgr.PutSecret(ctx, provider.SecretPath, string(doc), map[string]string{
		"provider_id": provider.ID,
		"environment": string(provider.Environment),
	})
	if err != nil {
		return false, fmt.Errorf("store provider secret: %w", err)
	}

	s.logger.Info("Stored provider credentials in secret manager",
		zap.String("provider_id", provider.ID),
		zap.String("secret_path", provider.SecretPath),
		zap.String("version", version),
	)
	provider.VerifyKey = ""
	provider.VerificationSeed = ""
	return true, nil
}

func (s *Service) discardSecret(ctx context.Context, provider *domain.Provider) {
	if err := s.secretMgr.DeleteSecret(ctx, provider.SecretPath); err != nil {
		s.logger.Error("Failed to remove secret of unregistered provider",
			zap.String("provider_id", provider.ID),
			zap.String("secret_path", provider.SecretPath),
			zap.Error(err),
		)
	}
}

func validSeed(seed string) bool {
	if len(seed) > 4 {
		return false
	}
	for _, r := range seed {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Get returns the resolved provider, credentials included
func (s *Service) Get(ctx context.Context, providerID string) (*domain.Provider, error) {
	return s.cache.Get(ctx, providerID)
}

// ChangeMethodVariant switches the provider's payment method. Rejected with
// domain.ErrProviderVariantLocked once any transaction references the provider.
func (s *Service) ChangeMethodVariant(ctx context.Context, providerID string, variant domain.MethodVariant) error {
	if !variant.Valid() {
		return domain.NewDomainError(domain.ErrorCodeConfigIncomplete,
			fmt.Sprintf("unknown payment method %q", variant))
	}

	if err := s.providers.UpdateMethodVariant(ctx, providerID, variant); err != nil {
		s.logger.Warn("Provider method change rejected",
			zap.String("provider_id", providerID),
			zap.String("method", string(variant)),
			zap.Error(err),
		)
		return err
	}

	s.cache.Invalidate(providerID)
	return nil
}
