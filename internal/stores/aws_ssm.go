package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/pkg/store"
)

// SSMClientAPI is the subset of the SSM client used by the store.
type SSMClientAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// SSMStore writes documents to a SecureString parameter.
type SSMStore struct {
	client          SSMClientAPI
	config          AWSConfig
	parameterPrefix string
	kmsKeyID        string
	logger          *logging.Logger
}

// SSMOption configures an SSMStore.
type SSMOption func(*SSMStore)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(s *SSMStore) {
		s.client = client
	}
}

// NewSSMStore creates a Parameter Store backed store.
func NewSSMStore(configMap map[string]interface{}, opts ...SSMOption) (*SSMStore, error) {
	s := &SSMStore{
		config: parseAWSConfig(configMap),
		logger: logging.Discard(),
	}
	if prefix, ok := configMap["parameter_prefix"].(string); ok {
		s.parameterPrefix = prefix
	}
	if key, ok := configMap["kms_key_id"].(string); ok {
		s.kmsKeyID = key
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cfg, err := loadAWSConfig(context.Background(), s.config)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*ssm.Options)
		if s.config.Endpoint != "" {
			endpoint := s.config.Endpoint
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = ssm.NewFromConfig(cfg, clientOpts...)
	}
	return s, nil
}

// Name implements store.Store.
func (s *SSMStore) Name() string {
	return TypeAWSSSM
}

func (s *SSMStore) parameterName(secretID string) string {
	return s.parameterPrefix + secretID
}

// WriteDocument overwrites the parameter with the document.
func (s *SSMStore) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	name := s.parameterName(secretID)

	var out *ssm.PutParameterOutput
	err := doc.With(func(plaintext []byte) error {
		input := &ssm.PutParameterInput{
			Name:      aws.String(name),
			Value:     aws.String(string(plaintext)),
			Type:      types.ParameterTypeSecureString,
			Overwrite: aws.Bool(true),
		}
		if s.kmsKeyID != "" {
			input.KeyId = aws.String(s.kmsKeyID)
		}
		var err error
		out, err = s.client.PutParameter(ctx, input)
		return err
	})
	if err != nil {
		return "", s.handleError(err, name)
	}

	s.logger.Debug("Updated parameter %s", name)
	return strconv.FormatInt(out.Version, 10), nil
}

// ReadDocument implements store.Store.
func (s *SSMStore) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	name := s.parameterName(secretID)
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, s.handleError(err, name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter '%s' has no value", name)
	}
	return []byte(*out.Parameter.Value), nil
}

// Grant is not supported: Parameter Store access is managed with IAM
// identity policies.
func (s *SSMStore) Grant(ctx context.Context, secretID, principal string, access store.Access) error {
	return store.UnsupportedError{Store: s.Name(), Operation: "grant"}
}

// Validate implements store.Store.
func (s *SSMStore) Validate(ctx context.Context) error {
	_, err := s.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("AWS authentication failed: %v", err),
		}
	}
	return nil
}

func (s *SSMStore) handleError(err error, name string) error {
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return store.NotFoundError{Store: s.Name(), SecretID: name}
	}
	if isAWSAuthError(err) {
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}
	return fmt.Errorf("AWS SSM error: %w", err)
}
