package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
)

// localSecretManager implements SecretManagerAdapter using local filesystem.
// Each secret is one file whose content is the secret value.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// resolve maps a secret path inside basePath, rejecting traversal
func (m *localSecretManager) resolve(secretPath string) (string, error) {
	clean := filepath.Clean("/" + secretPath)
	if clean == "/" || strings.Contains(secretPath, "..") {
		return "", fmt.Errorf("invalid secret path %q", secretPath)
	}
	return filepath.Join(m.basePath, clean), nil
}

// GetSecret reads a secret from the local filesystem
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Reading secret from filesystem", zap.String("path", secretPath))

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ports.ErrSecretNotFound, secretPath)
		}
		return nil, fmt.Errorf("failed to stat secret: %w", err)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	return &ports.Secret{
		Value:   strings.TrimSpace(string(data)),
		Version: strconv.FormatInt(info.ModTime().UnixNano(), 10),
	}, nil
}

// PutSecret writes a secret to the local filesystem. Labels are not persisted.
func (m *localSecretManager) PutSecret(ctx context.Context, secretPath, secretValue string, _ map[string]string) (string, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return "", err
	}

	m.logger.Info("Storing secret to filesystem", zap.String("path", secretPath))

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(secretValue), 0600); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat secret: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

// DeleteSecret removes a secret from the local filesystem
func (m *localSecretManager) DeleteSecret(ctx context.Context, secretPath string) error {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return err
	}

	m.logger.Info("Deleting secret from filesystem", zap.String("path", secretPath))

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ports.ErrSecretNotFound, secretPath)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
