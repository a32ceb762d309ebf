package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
)

// Non-object secrets are stored under this key of the KV data map
const vaultPlainValueKey = "value"

// VaultConfig selects the server, the auth method and the KV mount
type VaultConfig struct {
	Address   string
	Namespace string

	// AuthMethod is "token", "approle" or "kubernetes"
	AuthMethod   string
	Token        string
	RoleID       string
	SecretID     string
	K8sRole      string
	K8sTokenPath string

	MountPath string
	KVVersion string // "v1" or "v2"
}

// DefaultVaultConfig returns token auth against a KV v2 mount named "secret"
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:      address,
		AuthMethod:   "token",
		MountPath:    "secret",
		KVVersion:    "v2",
		K8sTokenPath: "/var/run/secrets/kubernetes.io/serviceaccount/token",
	}
}

// kvStore hides the differences between the KV v1 and v2 engines
type kvStore interface {
	get(ctx context.Context, path string) (*vault.KVSecret, error)
	put(ctx context.Context, path string, data map[string]interface{}, labels map[string]string) (*vault.KVSecret, error)
	remove(ctx context.Context, path string) error
}

type kvV1Store struct{ kv *vault.KVv1 }

func (s kvV1Store) get(ctx context.Context, path string) (*vault.KVSecret, error) {
	return s.kv.Get(ctx, path)
}

// put ignores labels; KV v1 has no metadata
func (s kvV1Store) put(ctx context.Context, path string, data map[string]interface{}, _ map[string]string) (*vault.KVSecret, error) {
	return nil, s.kv.Put(ctx, path, data)
}

func (s kvV1Store) remove(ctx context.Context, path string) error {
	return s.kv.Delete(ctx, path)
}

type kvV2Store struct{ kv *vault.KVv2 }

func (s kvV2Store) get(ctx context.Context, path string) (*vault.KVSecret, error) {
	return s.kv.Get(ctx, path)
}

func (s kvV2Store) put(ctx context.Context, path string, data map[string]interface{}, labels map[string]string) (*vault.KVSecret, error) {
	written, err := s.kv.Put(ctx, path, data)
	if err != nil || len(labels) == 0 {
		return written, err
	}
	custom := make(map[string]interface{}, len(labels))
	for k, v := range labels {
		custom[k] = v
	}
	return written, s.kv.PutMetadata(ctx, path, vault.KVMetadataPutInput{CustomMetadata: custom})
}

// remove drops every version along with the metadata
func (s kvV2Store) remove(ctx context.Context, path string) error {
	return s.kv.DeleteMetadata(ctx, path)
}

// vaultAdapter stores provider credential documents in a Vault KV engine
type vaultAdapter struct {
	store  kvStore
	logger *zap.Logger
}

// NewVaultAdapter connects and authenticates to Vault
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address
	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)
	return newVaultAdapter(newKVStore(client, cfg), logger), nil
}

func newKVStore(client *vault.Client, cfg *VaultConfig) kvStore {
	if cfg.KVVersion == "v1" {
		return kvV1Store{kv: client.KVv1(cfg.MountPath)}
	}
	return kvV2Store{kv: client.KVv2(cfg.MountPath)}
}

func newVaultAdapter(store kvStore, logger *zap.Logger) *vaultAdapter {
	return &vaultAdapter{store: store, logger: logger}
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token", "":
		if cfg.Token == "" {
			return errors.New("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return errors.New("role_id and secret_id are required for AppRole auth")
		}
		return vaultLogin(ctx, client, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})

	case "kubernetes":
		if cfg.K8sRole == "" {
			return errors.New("k8s role is required for Kubernetes auth")
		}
		jwt, err := os.ReadFile(cfg.K8sTokenPath)
		if err != nil {
			return fmt.Errorf("failed to read service account token: %w", err)
		}
		return vaultLogin(ctx, client, "auth/kubernetes/login", map[string]interface{}{
			"role": cfg.K8sRole,
			"jwt":  strings.TrimSpace(string(jwt)),
		})
	}
	return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
}

func vaultLogin(ctx context.Context, client *vault.Client, path string, data map[string]interface{}) error {
	resp, err := client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return fmt.Errorf("login at %s failed: %w", path, err)
	}
	if resp == nil || resp.Auth == nil {
		return fmt.Errorf("login at %s returned no auth info", path)
	}
	client.SetToken(resp.Auth.ClientToken)
	return nil
}

func (v *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	kv, err := v.store.get(ctx, path)
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return nil, fmt.Errorf("%w: %s", ports.ErrSecretNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}

	value, err := encodeVaultData(kv.Data)
	if err != nil {
		return nil, err
	}
	return &ports.Secret{Value: value, Version: kvVersion(kv)}, nil
}

// PutSecret stores a JSON object field by field, anything else under "value"
func (v *vaultAdapter) PutSecret(ctx context.Context, path, value string, labels map[string]string) (string, error) {
	written, err := v.store.put(ctx, path, decodeVaultData(value), labels)
	if err != nil {
		return "", fmt.Errorf("failed to write secret %s: %w", path, err)
	}
	v.logger.Info("Provider secret written to Vault", zap.String("path", path))
	return kvVersion(written), nil
}

func (v *vaultAdapter) DeleteSecret(ctx context.Context, path string) error {
	if err := v.store.remove(ctx, path); err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", path, err)
	}
	v.logger.Warn("Provider secret deleted from Vault", zap.String("path", path))
	return nil
}

// kvVersion is empty for KV v1, which does not version entries
func kvVersion(kv *vault.KVSecret) string {
	if kv == nil || kv.VersionMetadata == nil {
		return ""
	}
	return strconv.Itoa(kv.VersionMetadata.Version)
}

func encodeVaultData(data map[string]interface{}) (string, error) {
	if len(data) == 1 {
		if s, ok := data[vaultPlainValueKey].(string); ok {
			return s, nil
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode secret data: %w", err)
	}
	return string(b), nil
}

func decodeVaultData(value string) map[string]interface{} {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(value), &data); err == nil && data != nil {
		return data
	}
	return map[string]interface{}{vaultPlainValueKey: value}
}
