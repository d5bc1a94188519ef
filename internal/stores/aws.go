package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSConfig holds the settings shared by the AWS stores.
type AWSConfig struct {
	Region          string
	Profile         string
	Endpoint        string // Optional custom endpoint for LocalStack or testing
	AccessKeyID     string
	SecretAccessKey string
}

func parseAWSConfig(configMap map[string]interface{}) AWSConfig {
	cfg := AWSConfig{Region: "us-east-1"}
	if r, ok := configMap["region"].(string); ok && r != "" {
		cfg.Region = r
	}
	if p, ok := configMap["profile"].(string); ok {
		cfg.Profile = p
	}
	if e, ok := configMap["endpoint"].(string); ok {
		cfg.Endpoint = e
	}
	if ak, ok := configMap["access_key_id"].(string); ok {
		cfg.AccessKeyID = ak
	}
	if sk, ok := configMap["secret_access_key"].(string); ok {
		cfg.SecretAccessKey = sk
	}
	return cfg
}

// loadAWSConfig resolves credentials through the default chain unless static
// credentials are configured.
func loadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(c.Region))

	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func isAWSAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "UnrecognizedClientException") ||
		strings.Contains(errStr, "InvalidClientTokenId") ||
		strings.Contains(errStr, "ExpiredToken")
}
