// Package store defines the boundary between multisecret and the service that
// persists the generated document.
//
// multisecret needs exactly two capabilities from a secret-storage service:
// write the whole document as a JSON string, and grant read or write access to
// a named principal. ReadDocument and Validate support the CLI.
//
// Implementations live in internal/stores and are selected by type string:
//
//	aws.secretsmanager   AWS Secrets Manager (UpdateSecret, resource policy grants)
//	aws.ssm              AWS Systems Manager Parameter Store (SecureString)
//	gcp.secretmanager    Google Cloud Secret Manager (AddSecretVersion, IAM grants)
//	azure.keyvault       Azure Key Vault (SetSecret)
//	keychain             OS keyring, for local development
//	memory               in-process, for tests and dry runs
//
// Stores never retry; retry policy belongs to the caller's orchestration layer.
package store

import (
	"context"
	"fmt"

	"github.com/systmms/multisecret/internal/secure"
)

// Access is the level of access granted to a principal.
type Access string

const (
	AccessRead      Access = "read"
	AccessWrite     Access = "write"
	AccessReadWrite Access = "readwrite"
)

// ParseAccess converts a flag value to an Access.
func ParseAccess(s string) (Access, error) {
	switch Access(s) {
	case AccessRead, AccessWrite, AccessReadWrite:
		return Access(s), nil
	default:
		return "", fmt.Errorf("unknown access level %q: expected read, write or readwrite", s)
	}
}

// Reads reports whether the access level includes reading.
func (a Access) Reads() bool {
	return a == AccessRead || a == AccessReadWrite
}

// Writes reports whether the access level includes writing.
func (a Access) Writes() bool {
	return a == AccessWrite || a == AccessReadWrite
}

// Store persists generated documents.
type Store interface {
	// Name returns the store type, e.g. "aws.secretsmanager".
	Name() string

	// WriteDocument replaces the content of secretID with the sealed document
	// and returns the new version identifier, if the backend has one.
	WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error)

	// ReadDocument returns the current content of secretID.
	ReadDocument(ctx context.Context, secretID string) ([]byte, error)

	// Grant gives principal the requested access to secretID.
	Grant(ctx context.Context, secretID, principal string, access Access) error

	// Validate checks that the store is reachable with the configured
	// credentials.
	Validate(ctx context.Context) error
}

// NotFoundError indicates that the target secret does not exist.
type NotFoundError struct {
	Store    string
	SecretID string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.SecretID + " in " + e.Store
}

// AuthError indicates that the store rejected the caller's credentials.
type AuthError struct {
	Store   string
	Message string
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Store + ": " + e.Message
}

// UnsupportedError is returned by stores that cannot perform an operation,
// such as grants on backends without a policy API.
type UnsupportedError struct {
	Store     string
	Operation string
}

// Error implements the error interface.
func (e UnsupportedError) Error() string {
	return e.Store + " does not support " + e.Operation
}
