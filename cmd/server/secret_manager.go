package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/adapters/secrets"
	"github.com/kevin07696/smilepay-service/internal/config"
)

// initSecretManager initializes the secret manager selected by SECRETS_BACKEND.
// Supports:
//   - local (development): one file per secret under SECRETS_LOCAL_PATH
//   - aws: AWS Secrets Manager in AWS_REGION
//   - vault: HashiCorp Vault KV at VAULT_ADDR
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	switch cfg.Secrets.Backend {
	case config.SecretsBackendAWS:
		return initAWSSecretManager(ctx, cfg, logger)
	case config.SecretsBackendVault:
		return initVaultSecretManager(ctx, cfg, logger)
	default:
		logger.Warn("Using LOCAL secret manager - NOT for production use!",
			zap.String("path", cfg.Secrets.LocalPath),
		)
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalPath, logger)
	}
}

func initAWSSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
	awsCfg.Profile = cfg.Secrets.AWSProfile
	awsCfg.Endpoint = cfg.Secrets.AWSEndpoint

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", cfg.Secrets.AWSRegion),
		)
	}
	return sm
}

func initVaultSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
	vaultCfg.AuthMethod = cfg.Secrets.VaultAuthMethod
	vaultCfg.Token = cfg.Secrets.VaultToken
	vaultCfg.RoleID = cfg.Secrets.VaultRoleID
	vaultCfg.SecretID = cfg.Secrets.VaultSecretID
	vaultCfg.K8sRole = cfg.Secrets.VaultK8sRole
	vaultCfg.Namespace = cfg.Secrets.VaultNamespace
	vaultCfg.MountPath = cfg.Secrets.VaultMountPath
	vaultCfg.KVVersion = cfg.Secrets.VaultKVVersion

	sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault",
			zap.Error(err),
			zap.String("address", cfg.Secrets.VaultAddress),
		)
	}
	return sm
}
