package stores

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	iampb "cloud.google.com/go/iam/apiv1/iampb"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/pkg/store"
)

// IAM roles granted by the GCP store.
const (
	gcpReadRole  = "roles/secretmanager.secretAccessor"
	gcpWriteRole = "roles/secretmanager.secretVersionAdder"
)

// GCPSecretManagerClientAPI is the subset of the Secret Manager client used by
// the store. CheckAccess lists at most one secret of the project.
type GCPSecretManagerClientAPI interface {
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	CheckAccess(ctx context.Context, projectID string) error
}

// gcpClient adds CheckAccess to the generated client.
type gcpClient struct {
	*secretmanager.Client
}

func (c gcpClient) CheckAccess(ctx context.Context, projectID string) error {
	it := c.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   "projects/" + projectID,
		PageSize: 1,
	})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

// GCPSecretManagerStore writes documents as new secret versions.
type GCPSecretManagerStore struct {
	client    GCPSecretManagerClientAPI
	projectID string
	logger    *logging.Logger
}

// GCPOption configures a GCPSecretManagerStore.
type GCPOption func(*GCPSecretManagerStore)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(s *GCPSecretManagerStore) {
		s.client = client
	}
}

// NewGCPSecretManagerStore creates a Secret Manager store. project_id falls
// back to the usual environment variables.
func NewGCPSecretManagerStore(configMap map[string]interface{}, opts ...GCPOption) (*GCPSecretManagerStore, error) {
	s := &GCPSecretManagerStore{logger: logging.Discard()}
	if projectID, ok := configMap["project_id"].(string); ok {
		s.projectID = projectID
	}
	if s.projectID == "" {
		s.projectID = gcpProjectFromEnv()
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOptions []option.ClientOption
		if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
			if strings.HasPrefix(keyPath, "~/") {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, fmt.Errorf("failed to get home directory: %w", err)
				}
				keyPath = filepath.Join(home, keyPath[2:])
			}
			clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
		}
		if endpoint, ok := configMap["endpoint"].(string); ok && endpoint != "" {
			clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
		}

		client, err := secretmanager.NewClient(context.Background(), clientOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = gcpClient{client}
	}
	return s, nil
}

func gcpProjectFromEnv() string {
	for _, name := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Name implements store.Store.
func (s *GCPSecretManagerStore) Name() string {
	return TypeGCPSecretManager
}

// secretResource returns projects/<p>/secrets/<name> for a short name and
// leaves full resource names alone.
func (s *GCPSecretManagerStore) secretResource(secretID string) (string, error) {
	if strings.HasPrefix(secretID, "projects/") {
		return secretID, nil
	}
	if s.projectID == "" {
		return "", store.AuthError{
			Store:   s.Name(),
			Message: "project_id is required to address secret " + secretID,
		}
	}
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secretID), nil
}

// WriteDocument adds a new secret version holding the document.
func (s *GCPSecretManagerStore) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	parent, err := s.secretResource(secretID)
	if err != nil {
		return "", err
	}

	var version *secretmanagerpb.SecretVersion
	err = doc.With(func(plaintext []byte) error {
		data := make([]byte, len(plaintext))
		copy(data, plaintext)
		var err error
		version, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
			Parent:  parent,
			Payload: &secretmanagerpb.SecretPayload{Data: data},
		})
		return err
	})
	if err != nil {
		return "", s.handleError(err, secretID)
	}

	name := version.GetName()
	s.logger.Debug("Added secret version %s", name)
	return name[strings.LastIndex(name, "/")+1:], nil
}

// ReadDocument returns the latest version.
func (s *GCPSecretManagerStore) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	parent, err := s.secretResource(secretID)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: parent + "/versions/latest",
	})
	if err != nil {
		return nil, s.handleError(err, secretID)
	}
	if resp.GetPayload() == nil || resp.GetPayload().GetData() == nil {
		return nil, fmt.Errorf("secret '%s' has no data", secretID)
	}
	return resp.GetPayload().GetData(), nil
}

// Grant adds principal to the role bindings of the secret's IAM policy.
func (s *GCPSecretManagerStore) Grant(ctx context.Context, secretID, principal string, access store.Access) error {
	resource, err := s.secretResource(secretID)
	if err != nil {
		return err
	}

	policy, err := s.client.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: resource})
	if err != nil {
		return s.handleError(err, secretID)
	}
	if policy == nil {
		policy = &iampb.Policy{}
	}

	member := gcpMember(principal)
	changed := false
	if access.Reads() {
		changed = addBinding(policy, gcpReadRole, member) || changed
	}
	if access.Writes() {
		changed = addBinding(policy, gcpWriteRole, member) || changed
	}
	if !changed {
		return nil
	}

	if _, err := s.client.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
		Resource: resource,
		Policy:   policy,
	}); err != nil {
		return s.handleError(err, secretID)
	}
	s.logger.Debug("Granted %s on %s to %s", access, resource, member)
	return nil
}

// Validate implements store.Store.
func (s *GCPSecretManagerStore) Validate(ctx context.Context) error {
	if s.projectID == "" {
		return store.AuthError{
			Store:   s.Name(),
			Message: "project_id is not configured and GOOGLE_CLOUD_PROJECT is not set",
		}
	}
	if err := s.client.CheckAccess(ctx, s.projectID); err != nil {
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("GCP authentication failed: %v", err),
		}
	}
	return nil
}

func (s *GCPSecretManagerStore) handleError(err error, secretID string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return store.NotFoundError{Store: s.Name(), SecretID: secretID}
	case codes.PermissionDenied, codes.Unauthenticated:
		return store.AuthError{
			Store:   s.Name(),
			Message: fmt.Sprintf("GCP authentication/authorization failed: %v", err),
		}
	}
	return fmt.Errorf("GCP Secret Manager error: %w", err)
}

// gcpMember converts a principal to IAM member syntax. Prefixed members are
// passed through.
func gcpMember(principal string) string {
	switch {
	case strings.Contains(principal, ":"):
		return principal
	case strings.HasSuffix(principal, ".gserviceaccount.com"):
		return "serviceAccount:" + principal
	default:
		return "user:" + principal
	}
}

// addBinding adds member to role and reports whether the policy changed.
func addBinding(policy *iampb.Policy, role, member string) bool {
	for _, b := range policy.Bindings {
		if b.Role != role || b.Condition != nil {
			continue
		}
		for _, m := range b.Members {
			if m == member {
				return false
			}
		}
		b.Members = append(b.Members, member)
		return true
	}
	policy.Bindings = append(policy.Bindings, &iampb.Binding{Role: role, Members: []string{member}})
	return true
}
