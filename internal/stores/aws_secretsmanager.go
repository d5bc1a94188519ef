package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/cespare/xxhash/v2"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/pkg/store"
)

// SecretsManagerClientAPI is the subset of the Secrets Manager client used by
// the store.
type SecretsManagerClientAPI interface {
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	GetResourcePolicy(ctx context.Context, params *secretsmanager.GetResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetResourcePolicyOutput, error)
	PutResourcePolicy(ctx context.Context, params *secretsmanager.PutResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutResourcePolicyOutput, error)
}

// STSClientAPI is used to validate credentials.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Actions granted by resource policy statements.
var (
	secretsManagerReadActions  = []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"}
	secretsManagerWriteActions = []string{"secretsmanager:PutSecretValue", "secretsmanager:UpdateSecret"}
)

// SecretsManagerStore writes documents to AWS Secrets Manager.
type SecretsManagerStore struct {
	client SecretsManagerClientAPI
	sts    STSClientAPI
	config AWSConfig
	logger *logging.Logger
}

// SecretsManagerOption configures a SecretsManagerStore.
type SecretsManagerOption func(*SecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSClientAPI) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.sts = client
	}
}

// WithSecretsManagerLogger sets the logger.
func WithSecretsManagerLogger(l *logging.Logger) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.logger = l
	}
}

// NewSecretsManagerStore creates a Secrets Manager store. Real clients are
// only built when none were injected.
func NewSecretsManagerStore(configMap map[string]interface{}, opts ...SecretsManagerOption) (*SecretsManagerStore, error) {
	s := &SecretsManagerStore{
		config: parseAWSConfig(configMap),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client != nil && s.sts != nil {
		return s, nil
	}

	cfg, err := loadAWSConfig(context.Background(), s.config)
	if err != nil {
		return nil, err
	}
	if s.client == nil {
		var clientOpts []func(*secretsmanager.Options)
		if s.config.Endpoint != "" {
			endpoint := s.config.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}
	if s.sts == nil {
		var stsOpts []func(*sts.Options)
		if s.config.Endpoint != "" {
			endpoint := s.config.Endpoint
			stsOpts = append(stsOpts, func(o *sts.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.sts = sts.NewFromConfig(cfg, stsOpts...)
	}
	return s, nil
}

// Name implements store.Store.
func (s *SecretsManagerStore) Name() string {
	return TypeAWSSecretsManager
}

// WriteDocument replaces the secret string. Secrets Manager keeps the previous
// value as AWSPREVIOUS.
func (s *SecretsManagerStore) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	var out *secretsmanager.UpdateSecretOutput
	err := doc.With(func(plaintext []byte) error {
		var err error
		out, err = s.client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
			SecretId:     aws.String(secretID),
			SecretString: aws.String(string(plaintext)),
		})
		return err
	})
	if err != nil {
		return "", s.handleError(err, secretID)
	}

	s.logger.Debug("Updated Secrets Manager secret %s", secretID)
	if out.VersionId != nil {
		return *out.VersionId, nil
	}
	return "", nil
}

// ReadDocument implements store.Store.
func (s *SecretsManagerStore) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, s.handleError(err, secretID)
	}
	switch {
	case out.SecretString != nil:
		return []byte(*out.SecretString), nil
	case out.SecretBinary != nil:
		return out.SecretBinary, nil
	default:
		return nil, fmt.Errorf("secret '%s' has no value", secretID)
	}
}

// Grant adds resource policy statements for principal. Existing statements
// are kept and a statement already present is not duplicated.
func (s *SecretsManagerStore) Grant(ctx context.Context, secretID, principal string, access store.Access) error {
	current, err := s.client.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return s.handleError(err, secretID)
	}

	var raw string
	if current.ResourcePolicy != nil {
		raw = *current.ResourcePolicy
	}
	policy, err := parsePolicy(raw)
	if err != nil {
		return fmt.Errorf("existing resource policy on %s is not valid JSON: %w", secretID, err)
	}

	changed := false
	if access.Reads() {
		changed = policy.add(statementFor(principal, "Read", secretsManagerReadActions)) || changed
	}
	if access.Writes() {
		changed = policy.add(statementFor(principal, "Write", secretsManagerWriteActions)) || changed
	}
	if !changed {
		s.logger.Debug("Resource policy on %s already grants %s to %s", secretID, access, principal)
		return nil
	}

	doc, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode resource policy: %w", err)
	}
	if _, err := s.client.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{
		SecretId:       aws.String(secretID),
		ResourcePolicy: aws.String(string(doc)),
	}); err != nil {
		return s.handleError(err, secretID)
	}
	return nil
}

// Validate checks that credentials resolve to an identity.
func (s *SecretsManagerStore) Validate(ctx context.Context) error {
	out, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("AWS authentication failed: %v", err),
		}
	}
	if out.Arn != nil {
		s.logger.Debug("Authenticated as %s", *out.Arn)
	}
	return nil
}

func (s *SecretsManagerStore) handleError(err error, secretID string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return store.NotFoundError{Store: s.Name(), SecretID: secretID}
	}
	if isAWSAuthError(err) {
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}
	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

// resourcePolicy is an IAM policy document. Statements other than the ones
// added here are carried through untouched.
type resourcePolicy struct {
	Version   string           `json:"Version"`
	Statement policyStatements `json:"Statement"`

	sids map[string]bool
}

// policyStatements accepts both forms IAM allows for Statement: an array of
// statements or a single statement object. It is always written as an array.
type policyStatements []json.RawMessage

func (s *policyStatements) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		*s = policyStatements{json.RawMessage(append([]byte(nil), trimmed...))}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

type policyStatement struct {
	Sid       string          `json:"Sid"`
	Effect    string          `json:"Effect"`
	Principal policyPrincipal `json:"Principal"`
	Action    []string        `json:"Action"`
	Resource  string          `json:"Resource"`
}

type policyPrincipal struct {
	AWS string `json:"AWS"`
}

func parsePolicy(raw string) (*resourcePolicy, error) {
	p := &resourcePolicy{Version: "2012-10-17", sids: make(map[string]bool)}
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return nil, err
	}
	for _, st := range p.Statement {
		var head struct {
			Sid string `json:"Sid"`
		}
		if json.Unmarshal(st, &head) == nil && head.Sid != "" {
			p.sids[head.Sid] = true
		}
	}
	return p, nil
}

// add appends st unless a statement with the same Sid exists.
func (p *resourcePolicy) add(st policyStatement) bool {
	if p.sids[st.Sid] {
		return false
	}
	encoded, err := json.Marshal(st)
	if err != nil {
		return false
	}
	p.Statement = append(p.Statement, encoded)
	p.sids[st.Sid] = true
	return true
}

// statementFor derives a stable Sid from the principal so repeated grants are
// idempotent. Sids must be alphanumeric.
func statementFor(principal, kind string, actions []string) policyStatement {
	return policyStatement{
		Sid:       fmt.Sprintf("Multisecret%s%016x", kind, xxhash.Sum64String(principal)),
		Effect:    "Allow",
		Principal: policyPrincipal{AWS: principal},
		Action:    actions,
		Resource:  "*",
	}
}
