// Package handler implements the CloudFormation custom resource that fills an
// existing Secrets Manager secret with generated values.
//
// Resource properties:
//
//	SecretArn   ARN of the secret to populate (required)
//	SecretKeys  key list, as a list of objects or a JSON string (required)
//	ConfigHash  fingerprint of the key list, reported back in Data
//
// Create generates and writes every value. Update does the same unless the
// secret and the key list fingerprint are unchanged, in which case the
// existing values are kept. Delete is a no-op: the secret belongs to the
// stack and is removed with it.
package handler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/metrics"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/multisecret"
	"github.com/systmms/multisecret/pkg/populator"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/pkg/store"
)

// Property and data field names.
const (
	PropSecretArn  = "SecretArn"
	PropSecretKeys = "SecretKeys"
	PropConfigHash = "ConfigHash"

	DataSuccess     = "Success"
	DataKeyNames    = "KeyNames"
	DataRegenerated = "Regenerated"

	physicalIDPrefix = "secret-populator-"
)

// Environment variables read by NewStoreFromEnv.
const (
	EnvRegion        = "AWS_REGION"
	EnvStoreEndpoint = "MULTISECRET_STORE_ENDPOINT"
)

// StoreFactory creates the store a request writes to.
type StoreFactory func(ctx context.Context) (store.Store, error)

// Handler serves custom resource events.
type Handler struct {
	newStore  StoreFactory
	populator *populator.Populator
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Option configures a Handler.
type Option func(*Handler)

// WithStoreFactory replaces the store factory.
func WithStoreFactory(f StoreFactory) Option {
	return func(h *Handler) {
		h.newStore = f
	}
}

// WithStore makes every request use s.
func WithStore(s store.Store) Option {
	return WithStoreFactory(func(context.Context) (store.Store, error) {
		return s, nil
	})
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithPopulator replaces the populator.
func WithPopulator(p *populator.Populator) Option {
	return func(h *Handler) {
		h.populator = p
	}
}

// New creates a Handler. Without options it writes to Secrets Manager using
// the Lambda environment.
func New(opts ...Option) *Handler {
	h := &Handler{
		newStore: NewStoreFromEnv,
		logger:   logging.Discard(),
		metrics:  metrics.NewRecorder(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.populator == nil {
		h.populator = populator.New(populator.WithLogger(h.logger), populator.WithMetrics(h.metrics))
	}
	return h
}

// NewStoreFromEnv creates a Secrets Manager store for the function's region.
func NewStoreFromEnv(ctx context.Context) (store.Store, error) {
	cfg := map[string]interface{}{}
	if region := os.Getenv(EnvRegion); region != "" {
		cfg["region"] = region
	}
	if endpoint := os.Getenv(EnvStoreEndpoint); endpoint != "" {
		cfg["endpoint"] = endpoint
	}
	return stores.NewRegistry().Create(stores.TypeAWSSecretsManager, cfg)
}

// Handle implements cfn.CustomResourceFunction.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	h.logger.Info("Received %s for %s (%s)", event.RequestType, event.LogicalResourceID, event.ResourceType)

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
		return h.populate(ctx, event)
	case cfn.RequestDelete:
		h.logger.Info("Nothing to clean up for %s", event.PhysicalResourceID)
		return event.PhysicalResourceID, nil, nil
	default:
		return "", nil, fmt.Errorf("unknown request type: %s", event.RequestType)
	}
}

func (h *Handler) populate(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	start := time.Now()

	arn, specs, err := decodeProperties(event.ResourceProperties)
	if err != nil {
		h.logger.Error("Invalid resource properties: %v", err)
		return "", nil, err
	}

	st, err := h.newStore(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create store: %w", err)
	}

	ms, err := multisecret.New(arn, specs,
		multisecret.WithStore(st),
		multisecret.WithPopulator(h.populator),
		multisecret.WithLogger(h.logger),
	)
	if err != nil {
		return "", nil, err
	}

	previous := ""
	if event.RequestType == cfn.RequestUpdate {
		previous = previousFingerprint(arn, event.OldResourceProperties)
	}
	if hash, ok := event.ResourceProperties[PropConfigHash].(string); ok && hash != "" && hash != ms.Fingerprint() {
		h.logger.Warn("ConfigHash %s does not match the key list fingerprint %s", hash, ms.Fingerprint())
	}

	res, err := ms.Provision(ctx, previous)
	if err != nil {
		h.logger.Error("Populating %s failed: %v", arn, err)
		return "", nil, err
	}
	if !res.Regenerated {
		h.metrics.RecordPopulate(metrics.OutcomeSkipped, 0, time.Since(start).Seconds())
	}

	h.logger.Info("Populated %s with %d keys in %s (regenerated: %t)", arn, len(res.KeyNames), time.Since(start), res.Regenerated)
	return physicalIDPrefix + arn, map[string]interface{}{
		PropSecretArn:   arn,
		DataSuccess:     true,
		PropConfigHash:  res.Fingerprint,
		DataKeyNames:    res.KeyNames,
		DataRegenerated: res.Regenerated,
	}, nil
}

func decodeProperties(props map[string]interface{}) (string, secretspec.List, error) {
	arn, _ := props[PropSecretArn].(string)
	if arn == "" {
		return "", nil, &secretspec.ConfigurationError{Field: PropSecretArn, Message: "SecretArn property is required"}
	}
	raw, ok := props[PropSecretKeys]
	if !ok {
		return "", nil, &secretspec.ConfigurationError{Field: PropSecretKeys, Message: "SecretKeys property is required"}
	}
	specs, err := secretspec.DecodeProperties(raw)
	if err != nil {
		return "", nil, err
	}
	return arn, specs, nil
}

// previousFingerprint returns the fingerprint of the old properties when they
// target the same secret. A different secret, or old properties that no
// longer decode, yield "" so the new secret is always populated.
func previousFingerprint(arn string, old map[string]interface{}) string {
	if old == nil {
		return ""
	}
	oldArn, oldSpecs, err := decodeProperties(old)
	if err != nil || oldArn != arn {
		return ""
	}
	return secretspec.Fingerprint(oldSpecs.WithDefaults())
}
