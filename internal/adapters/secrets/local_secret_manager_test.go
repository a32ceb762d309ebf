package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
)

func TestLocalSecretManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewLocalSecretManager(dir, zap.NewNop())

	value := `{"verify_key":"key-1","verification_seed":"0042"}`
	version, err := m.PutSecret(ctx, "smilepay/providers/p1", value, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	info, err := os.Stat(filepath.Join(dir, "smilepay", "providers", "p1"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	secret, err := m.GetSecret(ctx, "smilepay/providers/p1")
	require.NoError(t, err)
	assert.Equal(t, value, secret.Value)
	assert.Equal(t, version, secret.Version)

	require.NoError(t, m.DeleteSecret(ctx, "smilepay/providers/p1"))
	_, err = m.GetSecret(ctx, "smilepay/providers/p1")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestLocalSecretManager_TrimsFileContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed"), []byte("0042\n"), 0600))

	secret, err := NewLocalSecretManager(dir, zap.NewNop()).GetSecret(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "0042", secret.Value)
}

func TestLocalSecretManager_NotFound(t *testing.T) {
	m := NewLocalSecretManager(t.TempDir(), zap.NewNop())

	_, err := m.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)

	err = m.DeleteSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestLocalSecretManager_RejectsTraversal(t *testing.T) {
	m := NewLocalSecretManager(t.TempDir(), zap.NewNop())

	for _, path := range []string{"../etc/passwd", "a/../../b", "", "/"} {
		t.Run(path, func(t *testing.T) {
			_, err := m.GetSecret(context.Background(), path)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ports.ErrSecretNotFound)

			_, err = m.PutSecret(context.Background(), path, "x", nil)
			assert.Error(t, err)
		})
	}
}
