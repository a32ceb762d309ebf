// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"net/url"

	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
)

// MockInstructionGateway is a testify mock of ports.InstructionGateway.
// BuildInstructionRequest delegates to BuildFunc when set and is not recorded.
type MockInstructionGateway struct {
	mock.Mock
	BuildFunc func(provider *domain.Provider, txn *domain.Transaction, callbackURL string) url.Values
}

func (m *MockInstructionGateway) BuildInstructionRequest(provider *domain.Provider, txn *domain.Transaction, callbackURL string) url.Values {
	if m.BuildFunc != nil {
		return m.BuildFunc(provider, txn, callbackURL)
	}
	params := url.Values{}
	params.Set("Od_sob", txn.Reference)
	params.Set("Roturl", callbackURL)
	return params
}

func (m *MockInstructionGateway) RequestInstruction(ctx context.Context, provider *domain.Provider, params url.Values) (*ports.InstructionResponse, error) {
	args := m.Called(ctx, provider, params)
	if resp := args.Get(0); resp != nil {
		return resp.(*ports.InstructionResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSecretManager is a testify mock of ports.SecretManagerAdapter
type MockSecretManager struct {
	mock.Mock
}

func (m *MockSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	args := m.Called(ctx, path)
	if s := args.Get(0); s != nil {
		return s.(*ports.Secret), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSecretManager) PutSecret(ctx context.Context, path, value string, labels map[string]string) (string, error) {
	args := m.Called(ctx, path, value, labels)
	return args.String(0), args.Error(1)
}

func (m *MockSecretManager) DeleteSecret(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

var (
	_ ports.InstructionGateway   = (*MockInstructionGateway)(nil)
	_ ports.SecretManagerAdapter = (*MockSecretManager)(nil)
	_ ports.HTTPClient           = (*MockHTTPClient)(nil)
)
