package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Values holds every SecretString written per secret, oldest first.
	Values map[string][]string
	// Policies holds the resource policy per secret.
	Policies map[string]string
	// PutPolicyCalls counts PutResourcePolicy calls.
	PutPolicyCalls int
	// Err, when set, is returned by every call.
	Err error
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Values:   make(map[string][]string),
		Policies: make(map[string]string),
	}
}

// AddSecret creates an empty secret.
func (f *FakeSecretsManagerClient) AddSecret(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Values[name]; !ok {
		f.Values[name] = nil
	}
}

// Current returns the latest value of name.
func (f *FakeSecretsManagerClient) Current(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.Values[name]
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

func (f *FakeSecretsManagerClient) notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// UpdateSecret implements SecretsManagerClientAPI.
func (f *FakeSecretsManagerClient) UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.SecretId)
	values, ok := f.Values[name]
	if !ok {
		return nil, f.notFound(name)
	}
	f.Values[name] = append(values, aws.ToString(params.SecretString))
	return &secretsmanager.UpdateSecretOutput{
		ARN:       aws.String(name),
		Name:      aws.String(name),
		VersionId: aws.String(fmt.Sprintf("00000000-0000-0000-0000-%012d", len(f.Values[name]))),
	}, nil
}

// GetSecretValue implements SecretsManagerClientAPI.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.SecretId)
	values := f.Values[name]
	if len(values) == 0 {
		return nil, f.notFound(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:          aws.String(name),
		SecretString:  aws.String(values[len(values)-1]),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// GetResourcePolicy implements SecretsManagerClientAPI.
func (f *FakeSecretsManagerClient) GetResourcePolicy(ctx context.Context, params *secretsmanager.GetResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetResourcePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.SecretId)
	if _, ok := f.Values[name]; !ok {
		return nil, f.notFound(name)
	}
	out := &secretsmanager.GetResourcePolicyOutput{Name: aws.String(name)}
	if p, ok := f.Policies[name]; ok {
		out.ResourcePolicy = aws.String(p)
	}
	return out, nil
}

// PutResourcePolicy implements SecretsManagerClientAPI.
func (f *FakeSecretsManagerClient) PutResourcePolicy(ctx context.Context, params *secretsmanager.PutResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutResourcePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.SecretId)
	if _, ok := f.Values[name]; !ok {
		return nil, f.notFound(name)
	}
	f.Policies[name] = aws.ToString(params.ResourcePolicy)
	f.PutPolicyCalls++
	return &secretsmanager.PutResourcePolicyOutput{Name: aws.String(name)}, nil
}

// FakeSTSClient answers GetCallerIdentity.
type FakeSTSClient struct {
	Arn string
	Err error
}

// NewFakeSTSClient returns a client reporting a fixed role session.
func NewFakeSTSClient() *FakeSTSClient {
	return &FakeSTSClient{Arn: "arn:aws:sts::123456789012:assumed-role/deployer/session"}
}

// GetCallerIdentity implements STSClientAPI.
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String(f.Arn),
	}, nil
}

// FakeSSMClient is an in-memory Parameter Store.
type FakeSSMClient struct {
	mu sync.Mutex

	Parameters map[string]ssmtypes.Parameter
	// LastPut records the last PutParameter input.
	LastPut *ssm.PutParameterInput
	Err     error
}

// NewFakeSSMClient creates an empty fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{Parameters: make(map[string]ssmtypes.Parameter)}
}

// PutParameter implements SSMClientAPI.
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name := aws.ToString(params.Name)
	existing, ok := f.Parameters[name]
	if ok && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String(name)}
	}
	version := existing.Version + 1
	f.Parameters[name] = ssmtypes.Parameter{
		Name:    aws.String(name),
		Value:   params.Value,
		Type:    params.Type,
		Version: version,
	}
	f.LastPut = params
	return &ssm.PutParameterOutput{Version: version, Tier: ssmtypes.ParameterTierStandard}, nil
}

// GetParameter implements SSMClientAPI.
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Parameters[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: params.Name}
	}
	return &ssm.GetParameterOutput{Parameter: &p}, nil
}

// DescribeParameters implements SSMClientAPI.
func (f *FakeSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &ssm.DescribeParametersOutput{}, nil
}
