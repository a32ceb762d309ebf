package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
)

// AWSSecretsManagerConfig selects the region and, for local stacks, the endpoint
type AWSSecretsManagerConfig struct {
	Region   string
	Profile  string // shared config profile, development only
	Endpoint string // LocalStack and similar

	// RecoveryWindowDays keeps deleted provider credentials restorable
	RecoveryWindowDays int64
}

// DefaultAWSSecretsManagerConfig returns a config for region with a 30 day recovery window
func DefaultAWSSecretsManagerConfig(region string) *AWSSecretsManagerConfig {
	return &AWSSecretsManagerConfig{Region: region, RecoveryWindowDays: 30}
}

// secretsManagerAPI is the part of *secretsmanager.Client the adapter calls
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// awsSecretsManagerAdapter keeps each provider's credential document as a secret string
type awsSecretsManagerAdapter struct {
	client         secretsManagerAPI
	recoveryWindow int64
	logger         *zap.Logger
}

// NewAWSSecretsManagerAdapter builds an adapter on the default credential chain
func NewAWSSecretsManagerAdapter(ctx context.Context, cfg *AWSSecretsManagerConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("AWS Secrets Manager adapter initialized",
		zap.String("region", cfg.Region),
		zap.Bool("custom_endpoint", cfg.Endpoint != ""),
	)
	return newAWSSecretsManagerAdapter(client, cfg, logger), nil
}

func newAWSSecretsManagerAdapter(client secretsManagerAPI, cfg *AWSSecretsManagerConfig, logger *zap.Logger) *awsSecretsManagerAdapter {
	window := cfg.RecoveryWindowDays
	if window <= 0 {
		window = 30
	}
	return &awsSecretsManagerAdapter{client: client, recoveryWindow: window, logger: logger}
}

func isAWSNotFound(err error) bool {
	var nf *smtypes.ResourceNotFoundException
	return errors.As(err, &nf)
}

func (a *awsSecretsManagerAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(path)})
	switch {
	case isAWSNotFound(err):
		return nil, fmt.Errorf("%w: %s", ports.ErrSecretNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}
	return &ports.Secret{
		Value:   aws.ToString(out.SecretString),
		Version: aws.ToString(out.VersionId),
	}, nil
}

// PutSecret writes a new version, creating the secret with labels as tags on first write
func (a *awsSecretsManagerAdapter) PutSecret(ctx context.Context, path, value string, labels map[string]string) (string, error) {
	out, err := a.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(path),
		SecretString: aws.String(value),
	})
	if err == nil {
		a.logger.Info("Provider secret updated", zap.String("path", path))
		return aws.ToString(out.VersionId), nil
	}
	if !isAWSNotFound(err) {
		return "", fmt.Errorf("failed to update secret %s: %w", path, err)
	}

	created, err := a.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(path),
		SecretString: aws.String(value),
		Description:  aws.String("SmilePay provider credentials"),
		Tags:         awsTags(labels),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create secret %s: %w", path, err)
	}
	a.logger.Info("Provider secret created", zap.String("path", path))
	return aws.ToString(created.VersionId), nil
}

func (a *awsSecretsManagerAdapter) DeleteSecret(ctx context.Context, path string) error {
	_, err := a.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:             aws.String(path),
		RecoveryWindowInDays: aws.Int64(a.recoveryWindow),
	})
	switch {
	case isAWSNotFound(err):
		return fmt.Errorf("%w: %s", ports.ErrSecretNotFound, path)
	case err != nil:
		return fmt.Errorf("failed to delete secret %s: %w", path, err)
	}
	a.logger.Warn("Provider secret scheduled for deletion",
		zap.String("path", path),
		zap.Int64("recovery_window_days", a.recoveryWindow),
	)
	return nil
}

// awsTags converts labels to tags sorted by key
func awsTags(labels map[string]string) []smtypes.Tag {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tags []smtypes.Tag
	for _, k := range keys {
		tags = append(tags, smtypes.Tag{Key: aws.String(k), Value: aws.String(labels[k])})
	}
	return tags
}
