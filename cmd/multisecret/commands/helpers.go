package commands

import (
	"context"
	"errors"

	"github.com/systmms/multisecret/internal/config"
	dserrors "github.com/systmms/multisecret/internal/errors"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/multisecret"
	"github.com/systmms/multisecret/pkg/store"
)

// openStore creates the configured store. A memory store is prepared with the
// configured secret so it can serve as a throwaway target.
func openStore(cfg *config.Config) (store.Store, error) {
	def := cfg.Definition
	s, err := stores.NewRegistry().Create(def.Store.Type, def.Store.Config)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to initialize store",
			Details:    err.Error(),
			Suggestion: "Check the store section of your configuration and your credentials",
			Err:        err,
		}
	}
	if mem, ok := s.(*store.Memory); ok {
		mem.Create(def.Secret)
	}
	return s, nil
}

// loadSecret loads the configuration and builds the construct. When s is nil
// the configured store is used.
func loadSecret(cfg *config.Config, s store.Store) (*multisecret.MultiSecret, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if s == nil {
		var err error
		if s, err = openStore(cfg); err != nil {
			return nil, err
		}
	}
	return multisecret.New(cfg.Definition.Secret, cfg.Definition.Specs(),
		multisecret.WithStore(s),
		multisecret.WithLogger(cfg.Logger),
	)
}

// storeContext bounds one store operation by the configured timeout_ms.
func storeContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return stores.WithTimeout(context.Background(), stores.TimeoutMs(cfg.Definition.Store.Config))
}

// storeFailure wraps an error returned by a store operation for display.
func storeFailure(cfg *config.Config, ms *multisecret.MultiSecret, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return stores.TimeoutError(err, ms.StoreName(), stores.TimeoutMs(cfg.Definition.Store.Config))
	}
	return dserrors.StoreError(ms.StoreName(), operation, err)
}
