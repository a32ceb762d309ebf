package ports

import (
	"context"
	"errors"
)

// ErrSecretNotFound is wrapped by every adapter when the path does not exist
var ErrSecretNotFound = errors.New("secret not found")

// Secret is one stored version of a provider credential document
type Secret struct {
	Value   string // JSON document holding verify_key and verification_seed
	Version string
}

// SecretManagerAdapter stores provider credentials outside the database.
// Implementations: local filesystem (development), AWS Secrets Manager, HashiCorp Vault.
// Paths look like "smilepay/providers/{provider_id}".
type SecretManagerAdapter interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or replaces the secret and returns the new version.
	// Labels are attached where the backend supports them.
	PutSecret(ctx context.Context, path, value string, labels map[string]string) (version string, err error)

	// DeleteSecret removes the secret; AWS keeps it recoverable for a window
	DeleteSecret(ctx context.Context, path string) error
}
