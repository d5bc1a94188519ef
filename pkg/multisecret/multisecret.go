// Package multisecret composes one managed secret, its key list and the
// populator into a single construct with typed accessors.
//
// A MultiSecret is built once from an immutable key list. Construction
// validates the list, so configuration errors surface before any provisioning
// is attempted:
//
//	ms, err := multisecret.New("arn:aws:secretsmanager:...:secret:app", keys,
//	    multisecret.WithStore(sm))
//	if err != nil {
//	    return err
//	}
//
//	ref, err := ms.SecretValueFromKey("dbPassword")
//	// ref.String() == "{{resolve:secretsmanager:arn:...:secret:app:SecretString:dbPassword::}}"
//
//	res, err := ms.Provision(ctx, previousFingerprint)
//
// Provision regenerates the whole document when the fingerprint differs from
// the previous one, and does nothing otherwise.
package multisecret

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/metrics"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/internal/validation"
	"github.com/systmms/multisecret/pkg/generator"
	"github.com/systmms/multisecret/pkg/populator"
	"github.com/systmms/multisecret/pkg/secretdoc"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/pkg/store"
)

// MultiSecret is one secret holding several generated values.
type MultiSecret struct {
	secretID    string
	specs       secretspec.List
	names       []string
	index       map[string]struct{}
	fingerprint string

	store     store.Store
	populator *populator.Populator
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Option configures a MultiSecret.
type Option func(*MultiSecret)

// WithStore sets the backend the document is written to.
func WithStore(s store.Store) Option {
	return func(m *MultiSecret) {
		m.store = s
	}
}

// WithPopulator replaces the populator.
func WithPopulator(p *populator.Populator) Option {
	return func(m *MultiSecret) {
		m.populator = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *MultiSecret) {
		m.logger = l
	}
}

// New validates specs and builds the construct. The list is copied; later
// changes to the caller's slice have no effect.
func New(secretID string, specs secretspec.List, opts ...Option) (*MultiSecret, error) {
	if secretID == "" {
		return nil, &secretspec.ConfigurationError{Field: "secret", Message: "secret identifier must not be empty"}
	}
	if err := specs.Validate(); err != nil {
		return nil, err
	}
	if err := generator.CheckList(specs); err != nil {
		return nil, err
	}

	m := &MultiSecret{
		secretID: secretID,
		specs:    specs.WithDefaults(),
		logger:   logging.Discard(),
		metrics:  metrics.NewRecorder(),
	}
	m.names = m.specs.Names()
	m.index = make(map[string]struct{}, len(m.names))
	for _, n := range m.names {
		m.index[n] = struct{}{}
	}
	m.fingerprint = secretspec.Fingerprint(m.specs)

	for _, opt := range opts {
		opt(m)
	}
	if m.populator == nil {
		m.populator = populator.New(populator.WithLogger(m.logger), populator.WithMetrics(m.metrics))
	}
	return m, nil
}

// SecretID returns the identifier of the managed secret.
func (m *MultiSecret) SecretID() string {
	return m.secretID
}

// Specs returns a copy of the key list.
func (m *MultiSecret) Specs() secretspec.List {
	out := make(secretspec.List, len(m.specs))
	copy(out, m.specs)
	return out
}

// KeyNames returns the configured key names in declared order.
func (m *MultiSecret) KeyNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// HasKey reports whether name is configured.
func (m *MultiSecret) HasKey(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Fingerprint returns the configuration fingerprint.
func (m *MultiSecret) Fingerprint() string {
	return m.fingerprint
}

func (m *MultiSecret) lookup(name string) error {
	if m.HasKey(name) {
		return nil
	}
	return &secretspec.AccessLookupError{Name: name, Available: m.KeyNames()}
}

// SecretValueFromKey returns a reference to one value of the secret.
func (m *MultiSecret) SecretValueFromKey(name string) (Reference, error) {
	if err := m.lookup(name); err != nil {
		return Reference{}, err
	}
	return Reference{SecretID: m.secretID, Key: name}, nil
}

// Result describes one Provision call.
type Result struct {
	Fingerprint string
	Regenerated bool
	Version     string
	KeyNames    []string
}

// Provision regenerates and writes the document unless previousFingerprint
// matches the current configuration. An empty previousFingerprint means first
// creation and always regenerates.
func (m *MultiSecret) Provision(ctx context.Context, previousFingerprint string) (Result, error) {
	res := Result{Fingerprint: m.fingerprint, KeyNames: m.KeyNames()}

	if previousFingerprint != "" && previousFingerprint == m.fingerprint {
		m.logger.Info("Configuration of %s unchanged (%s); keeping existing values", m.secretID, m.fingerprint)
		m.metrics.RecordStoreWrite(m.StoreName(), metrics.OutcomeSkipped)
		return res, nil
	}
	return m.regenerate(ctx, res)
}

// Regenerate unconditionally generates and writes a new document.
func (m *MultiSecret) Regenerate(ctx context.Context) (Result, error) {
	return m.regenerate(ctx, Result{Fingerprint: m.fingerprint, KeyNames: m.KeyNames()})
}

func (m *MultiSecret) regenerate(ctx context.Context, res Result) (Result, error) {
	if m.store == nil {
		return res, fmt.Errorf("no store configured for secret %s", m.secretID)
	}

	doc, err := m.populator.Populate(ctx, m.specs)
	if err != nil {
		return res, err
	}

	version, err := m.write(ctx, doc)
	if err != nil {
		return res, err
	}

	res.Regenerated = true
	res.Version = version
	m.logger.Info("Wrote %d keys to %s (fingerprint %s)", doc.Len(), m.secretID, m.fingerprint)
	return res, nil
}

func (m *MultiSecret) write(ctx context.Context, doc *secretdoc.Document) (string, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode secret document: %w", err)
	}
	sealed, err := secure.NewSecureBuffer(data)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret document: %w", err)
	}
	defer sealed.Destroy()

	start := time.Now()
	version, err := m.store.WriteDocument(ctx, m.secretID, sealed)
	if err != nil {
		m.metrics.RecordStoreWrite(m.StoreName(), metrics.OutcomeFailure)
		return "", fmt.Errorf("failed to write secret %s: %w", m.secretID, err)
	}
	m.metrics.RecordStoreWrite(m.StoreName(), metrics.OutcomeSuccess)
	m.logger.Debug("Store %s accepted write in %s", m.StoreName(), time.Since(start))
	return version, nil
}

// StoreName returns the type of the configured store, or "none".
func (m *MultiSecret) StoreName() string {
	if m.store == nil {
		return "none"
	}
	return m.store.Name()
}

// GrantRead allows principal to read the secret.
func (m *MultiSecret) GrantRead(ctx context.Context, principal string) error {
	return m.Grant(ctx, principal, store.AccessRead)
}

// GrantWrite allows principal to write the secret.
func (m *MultiSecret) GrantWrite(ctx context.Context, principal string) error {
	return m.Grant(ctx, principal, store.AccessWrite)
}

// Grant delegates an access grant to the store.
func (m *MultiSecret) Grant(ctx context.Context, principal string, access store.Access) error {
	if m.store == nil {
		return fmt.Errorf("no store configured for secret %s", m.secretID)
	}
	if principal == "" {
		return &secretspec.ConfigurationError{Field: "principal", Message: "principal must not be empty"}
	}
	if err := m.store.Grant(ctx, m.secretID, principal, access); err != nil {
		return fmt.Errorf("failed to grant %s access on %s to %s: %w", access, m.secretID, principal, err)
	}
	m.logger.Info("Granted %s access on %s to %s", access, m.secretID, principal)
	return nil
}

// Resolve reads the current value of one key from the store. Object values
// are returned as compact JSON.
func (m *MultiSecret) Resolve(ctx context.Context, name string) (logging.Secret, error) {
	if err := m.lookup(name); err != nil {
		return "", err
	}
	doc, err := m.readDocument(ctx)
	if err != nil {
		return "", err
	}
	value, ok := doc.Get(name)
	if !ok {
		return "", fmt.Errorf("key '%s' is configured but missing from %s; provision the secret again", name, m.secretID)
	}
	return logging.Secret(value.String()), nil
}

// ResolveAll reads every configured value with a single store read.
func (m *MultiSecret) ResolveAll(ctx context.Context) (map[string]logging.Secret, error) {
	doc, err := m.readDocument(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]logging.Secret, len(m.names))
	for _, name := range m.names {
		value, ok := doc.Get(name)
		if !ok {
			return nil, fmt.Errorf("key '%s' is configured but missing from %s; provision the secret again", name, m.secretID)
		}
		out[name] = logging.Secret(value.String())
	}
	return out, nil
}

func (m *MultiSecret) readDocument(ctx context.Context) (*secretdoc.Document, error) {
	if m.store == nil {
		return nil, fmt.Errorf("no store configured for secret %s", m.secretID)
	}
	data, err := m.store.ReadDocument(ctx, m.secretID)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", m.secretID, err)
	}
	doc, err := secretdoc.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("secret %s does not hold a multisecret document: %w", m.secretID, err)
	}
	return doc, nil
}

// Verify reads the stored document and checks it against the key list. A
// document that drifted from the configuration is reported in the result,
// not as an error.
func (m *MultiSecret) Verify(ctx context.Context) (*validation.ValidationResult, error) {
	if m.store == nil {
		return nil, fmt.Errorf("no store configured for secret %s", m.secretID)
	}
	data, err := m.store.ReadDocument(ctx, m.secretID)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", m.secretID, err)
	}
	return validation.NewDocumentValidator(m.logger).ValidateDocument(m.specs, data), nil
}
