package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	iampb "cloud.google.com/go/iam/apiv1/iampb"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager keyed by secret
// resource name (projects/X/secrets/Y).
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex

	// Versions holds the payload of every version, oldest first.
	Versions map[string][][]byte
	Policies map[string]*iampb.Policy
	// SetPolicyCalls counts SetIamPolicy calls.
	SetPolicyCalls int
	// Err, when set, is returned by every call.
	Err error
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][][]byte),
		Policies: make(map[string]*iampb.Policy),
	}
}

// AddSecret creates a secret without versions.
func (f *FakeGCPSecretManagerClient) AddSecret(resource string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Versions[resource]; !ok {
		f.Versions[resource] = nil
	}
}

func notFound(name string) error {
	return status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", name)
}

// AddSecretVersion implements GCPSecretManagerClientAPI.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	versions, ok := f.Versions[req.GetParent()]
	if !ok {
		return nil, notFound(req.GetParent())
	}
	f.Versions[req.GetParent()] = append(versions, req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", req.GetParent(), len(versions)+1),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// AccessSecretVersion implements GCPSecretManagerClientAPI. Only "latest" and
// numeric versions are understood.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	idx := strings.LastIndex(req.GetName(), "/versions/")
	if idx < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid version name %s", req.GetName())
	}
	secret, version := req.GetName()[:idx], req.GetName()[idx+len("/versions/"):]
	versions := f.Versions[secret]
	if len(versions) == 0 {
		return nil, notFound(secret)
	}

	n := len(versions)
	if version != "latest" {
		if _, err := fmt.Sscanf(version, "%d", &n); err != nil || n < 1 || n > len(versions) {
			return nil, notFound(req.GetName())
		}
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secret, n),
		Payload: &secretmanagerpb.SecretPayload{Data: versions[n-1]},
	}, nil
}

// GetIamPolicy implements GCPSecretManagerClientAPI.
func (f *FakeGCPSecretManagerClient) GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.Versions[req.GetResource()]; !ok {
		return nil, notFound(req.GetResource())
	}
	if p, ok := f.Policies[req.GetResource()]; ok {
		return proto.Clone(p).(*iampb.Policy), nil
	}
	return &iampb.Policy{Version: 1}, nil
}

// SetIamPolicy implements GCPSecretManagerClientAPI.
func (f *FakeGCPSecretManagerClient) SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.Versions[req.GetResource()]; !ok {
		return nil, notFound(req.GetResource())
	}
	f.Policies[req.GetResource()] = proto.Clone(req.GetPolicy()).(*iampb.Policy)
	f.SetPolicyCalls++
	return req.GetPolicy(), nil
}

// CheckAccess implements GCPSecretManagerClientAPI.
func (f *FakeGCPSecretManagerClient) CheckAccess(ctx context.Context, projectID string) error {
	return f.Err
}
