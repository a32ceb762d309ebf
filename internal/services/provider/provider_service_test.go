package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapterports "github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/testutil"
	"github.com/kevin07696/smilepay-service/internal/testutil/fixtures"
	"github.com/kevin07696/smilepay-service/internal/testutil/mocks"
)

func setupCache(t *testing.T, secrets adapterports.SecretManagerAdapter, maxSize int) (*CredentialCache, *testutil.MemoryProviderRepository, *testutil.MemoryTransactionRepository) {
	t.Helper()
	txRepo := testutil.NewMemoryTransactionRepository()
	providers := testutil.NewMemoryProviderRepository(txRepo)
	cache := NewCredentialCache(providers, secrets, zap.NewNop(), 5*time.Minute, maxSize)
	return cache, providers, txRepo
}

func TestCredentialCache_CachesUntilTTL(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 10)
	provider := fixtures.NewProvider().Build()
	require.NoError(t, providers.Create(context.Background(), provider))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	got, err := cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, "VK-SECRET", got.VerifyKey)

	// Stored changes are invisible until the entry expires
	require.NoError(t, providers.UpdateMethodVariant(context.Background(), provider.ID, domain.MethodIbon))
	got, err = cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodBankTransfer, got.MethodVariant)

	now = now.Add(6 * time.Minute)
	got, err = cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodIbon, got.MethodVariant)
}

func TestCredentialCache_ReturnsCopies(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 10)
	provider := fixtures.NewProvider().Build()
	require.NoError(t, providers.Create(context.Background(), provider))

	first, err := cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	first.MethodVariant = domain.MethodBarcode

	second, err := cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodBankTransfer, second.MethodVariant)
}

func TestCredentialCache_MergesSecret(t *testing.T) {
	secrets := new(mocks.MockSecretManager)
	secrets.On("GetSecret", mock.Anything, "smilepay/providers/p1").
		Return(&adapterports.Secret{Value: `{"verify_key":"VK-FROM-VAULT","verification_seed":"1234"}`}, nil).Once()

	cache, providers, _ := setupCache(t, secrets, 10)
	provider := fixtures.NewProvider().
		WithID("p1").
		WithCredentials("DCVC01", "RVG2C01", "").
		WithSeed("").
		WithSecretPath("smilepay/providers/p1").
		Build()
	require.NoError(t, providers.Create(context.Background(), provider))

	got, err := cache.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "VK-FROM-VAULT", got.VerifyKey)
	assert.Equal(t, "1234", got.VerificationSeed)
	assert.NoError(t, got.Validate())

	_, err = cache.Get(context.Background(), "p1")
	require.NoError(t, err)
	secrets.AssertNumberOfCalls(t, "GetSecret", 1)
}

func TestCredentialCache_SecretErrors(t *testing.T) {
	t.Run("no secret manager", func(t *testing.T) {
		cache, providers, _ := setupCache(t, nil, 10)
		provider := fixtures.NewProvider().WithSecretPath("smilepay/providers/p1").Build()
		require.NoError(t, providers.Create(context.Background(), provider))

		_, err := cache.Get(context.Background(), provider.ID)
		assert.True(t, errors.Is(err, domain.ErrConfigIncomplete))
	})

	t.Run("invalid json", func(t *testing.T) {
		secrets := new(mocks.MockSecretManager)
		secrets.On("GetSecret", mock.Anything, mock.Anything).
			Return(&adapterports.Secret{Value: "not json"}, nil)
		cache, providers, _ := setupCache(t, secrets, 10)
		provider := fixtures.NewProvider().WithSecretPath("smilepay/providers/p1").Build()
		require.NoError(t, providers.Create(context.Background(), provider))

		_, err := cache.Get(context.Background(), provider.ID)
		assert.True(t, errors.Is(err, domain.ErrConfigIncomplete))
	})

	t.Run("fetch failure is not cached", func(t *testing.T) {
		secrets := new(mocks.MockSecretManager)
		secrets.On("GetSecret", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		cache, providers, _ := setupCache(t, secrets, 10)
		provider := fixtures.NewProvider().WithSecretPath("smilepay/providers/p1").Build()
		require.NoError(t, providers.Create(context.Background(), provider))

		_, err := cache.Get(context.Background(), provider.ID)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 0, cache.size())
	})
}

func TestCredentialCache_UnknownProvider(t *testing.T) {
	cache, _, _ := setupCache(t, nil, 10)

	_, err := cache.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
}

func TestCredentialCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		require.NoError(t, providers.Create(context.Background(), fixtures.NewProvider().WithID(id).Build()))
	}

	for _, id := range ids {
		now = now.Add(time.Second)
		_, err := cache.Get(context.Background(), id)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cache.size())
	cache.mu.Lock()
	_, hasOldest := cache.entries["a"]
	cache.mu.Unlock()
	assert.False(t, hasOldest)
}

func TestCredentialCache_Invalidate(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 10)
	provider := fixtures.NewProvider().Build()
	require.NoError(t, providers.Create(context.Background(), provider))

	_, err := cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.size())

	cache.Invalidate(provider.ID)
	assert.Equal(t, 0, cache.size())

	_, err = cache.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	cache.InvalidateAll()
	assert.Equal(t, 0, cache.size())
}

func TestService_ChangeMethodVariant(t *testing.T) {
	cache, providers, txRepo := setupCache(t, nil, 10)
	svc := NewService(providers, cache, nil, zap.NewNop())

	provider := fixtures.NewProvider().Build()
	require.NoError(t, svc.Register(context.Background(), provider))

	// Warm the cache so the change must invalidate it
	_, err := svc.Get(context.Background(), provider.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ChangeMethodVariant(context.Background(), provider.ID, domain.MethodFamiPort))
	got, err := svc.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodFamiPort, got.MethodVariant)

	txn := fixtures.NewTransaction().ForProvider(got).Build()
	require.NoError(t, txRepo.Create(context.Background(), txn))

	err = svc.ChangeMethodVariant(context.Background(), provider.ID, domain.MethodIbon)
	assert.True(t, errors.Is(err, domain.ErrProviderVariantLocked))

	got, err = svc.Get(context.Background(), provider.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodFamiPort, got.MethodVariant)
}

func TestService_Register(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 10)
	svc := NewService(providers, cache, nil, zap.NewNop())

	provider := &domain.Provider{Name: "SmilePay", MethodVariant: domain.MethodIbon}
	require.NoError(t, svc.Register(context.Background(), provider))
	assert.NotEmpty(t, provider.ID)
	assert.Equal(t, domain.ProviderCodeSmilePay, provider.Code)
	assert.Equal(t, domain.EnvironmentTest, provider.Environment)

	err := svc.Register(context.Background(), &domain.Provider{MethodVariant: "paypal"})
	assert.True(t, errors.Is(err, domain.ErrConfigIncomplete))

	err = svc.ChangeMethodVariant(context.Background(), provider.ID, "paypal")
	assert.True(t, errors.Is(err, domain.ErrConfigIncomplete))
}

func TestService_RegisterRejectsBadSeed(t *testing.T) {
	cache, providers, _ := setupCache(t, nil, 10)
	svc := NewService(providers, cache, nil, zap.NewNop())

	for _, seed := range []string{"12345", "12a4", "１２"} {
		err := svc.Register(context.Background(), fixtures.NewProvider().WithSeed(seed).Build())
		assert.True(t, errors.Is(err, domain.ErrConfigIncomplete), seed)
	}
}

func TestService_RegisterWritesCredentialsToSecretManager(t *testing.T) {
	secrets := new(mocks.MockSecretManager)
	cache, providers, _ := setupCache(t, secrets, 10)
	svc := NewService(providers, cache, secrets, zap.NewNop())

	provider := fixtures.NewProvider().
		WithID("p1").
		WithCredentials("DCVC01", "RVG2C01", "VK-NEW").
		WithSeed("0777").
		WithSecretPath("smilepay/providers/p1").
		Build()

	var stored string
	secrets.On("PutSecret", mock.Anything, "smilepay/providers/p1", mock.Anything,
		map[string]string{"provider_id": "p1", "environment": "test"}).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return("v1", nil).Once()

	require.NoError(t, svc.Register(context.Background(), provider))
	assert.JSONEq(t, `{"verify_key":"VK-NEW","verification_seed":"0777"}`, stored)

	row, err := providers.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, row.VerifyKey)
	assert.Empty(t, row.VerificationSeed)

	// Resolution reads back what Register wrote
	secrets.On("GetSecret", mock.Anything, "smilepay/providers/p1").
		Return(&adapterports.Secret{Value: stored, Version: "v1"}, nil).Once()
	got, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "VK-NEW", got.VerifyKey)
	assert.Equal(t, "0777", got.VerificationSeed)
	secrets.AssertExpectations(t)
}

func TestService_RegisterSkipsWriteWithoutCredentials(t *testing.T) {
	secrets := new(mocks.MockSecretManager)
	cache, providers, _ := setupCache(t, secrets, 10)
	svc := NewService(providers, cache, secrets, zap.NewNop())

	provider := fixtures.NewProvider().
		WithCredentials("DCVC01", "RVG2C01", "").
		WithSeed("").
		WithSecretPath("smilepay/providers/external").
		Build()

	require.NoError(t, svc.Register(context.Background(), provider))
	secrets.AssertNotCalled(t, "PutSecret", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RegisterSecretErrors(t *testing.T) {
	t.Run("no secret manager", func(t *testing.T) {
		cache, providers, _ := setupCache(t, nil, 10)
		svc := NewService(providers, cache, nil, zap.NewNop())

		err := svc.Register(context.Background(), fixtures.NewProvider().WithSecretPath("smilepay/providers/p1").Build())
		assert.True(t, errors.Is(err, domain.ErrConfigIncomplete))
	})

	t.Run("write failure stores nothing", func(t *testing.T) {
		secrets := new(mocks.MockSecretManager)
		secrets.On("PutSecret", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)
		cache, providers, _ := setupCache(t, secrets, 10)
		svc := NewService(providers, cache, secrets, zap.NewNop())

		provider := fixtures.NewProvider().WithID("p1").WithSecretPath("smilepay/providers/p1").Build()
		err := svc.Register(context.Background(), provider)
		assert.ErrorIs(t, err, assert.AnError)

		_, err = providers.Get(context.Background(), "p1")
		assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
	})

	t.Run("create failure removes the secret", func(t *testing.T) {
		secrets := new(mocks.MockSecretManager)
		secrets.On("PutSecret", mock.Anything, "smilepay/providers/p1", mock.Anything, mock.Anything).Return("v1", nil).Once()
		secrets.On("DeleteSecret", mock.Anything, "smilepay/providers/p1").Return(nil).Once()
		cache, providers, _ := setupCache(t, secrets, 10)
		svc := NewService(failingCreateRepository{providers}, cache, secrets, zap.NewNop())

		provider := fixtures.NewProvider().WithID("p1").WithSecretPath("smilepay/providers/p1").Build()
		err := svc.Register(context.Background(), provider)
		assert.ErrorIs(t, err, assert.AnError)
		secrets.AssertExpectations(t)
	})
}

// failingCreateRepository rejects every insert
type failingCreateRepository struct {
	*testutil.MemoryProviderRepository
}

func (failingCreateRepository) Create(context.Context, *domain.Provider) error {
	return assert.AnError
}
