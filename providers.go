/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package userstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/suparena/userstore/config"
	"github.com/suparena/userstore/datastore"
	"github.com/suparena/userstore/datastore/ddb"
	"github.com/suparena/userstore/datastore/mock"
	"github.com/suparena/userstore/datastore/seed"
	"github.com/suparena/userstore/logging"
	"github.com/suparena/userstore/metrics"
	"github.com/suparena/userstore/repository"
	"go.uber.org/zap"
)

// Factory opens a Store from configuration.
type Factory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Store, error)

// Providers maps storage provider names (STORAGE_PROVIDER) to factories.
type Providers interface {
	// Register adds a factory under name.
	Register(name string, factory Factory) error
	// Open builds the Store registered under name.
	Open(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (datastore.Store, error)
	// Names lists the registered providers in sorted order.
	Names() []string
}

// providerRegistry is a thread-safe implementation of Providers.
type providerRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewProviders returns an empty registry.
func NewProviders() Providers {
	return &providerRegistry{
		factories: make(map[string]Factory),
	}
}

// DefaultProviders returns a registry holding the dynamodb, memory and seed
// providers.
func DefaultProviders() Providers {
	p := NewProviders()
	_ = p.Register(config.ProviderDynamoDB, openDynamoDB)
	_ = p.Register(config.ProviderMemory, openMemory)
	_ = p.Register(config.ProviderSeed, openSeed)
	return p
}

// Register stores the factory under the given name.
func (p *providerRegistry) Register(name string, factory Factory) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if factory == nil {
		return fmt.Errorf("provider %q has no factory", name)
	}
	if _, exists := p.factories[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	p.factories[name] = factory
	return nil
}

// Open looks the provider up and runs its factory.
func (p *providerRegistry) Open(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (datastore.Store, error) {
	p.mu.RLock()
	factory, exists := p.factories[name]
	p.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	store, err := factory(ctx, cfg, logging.OrNop(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open provider %q: %w", name, err)
	}
	return store, nil
}

// Names returns all registered provider names.
func (p *providerRegistry) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.factories))
	for name := range p.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openDynamoDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Store, error) {
	client, err := ddb.NewClient(ctx, ddb.ClientConfig{
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return ddb.NewStore(client, cfg.TableName, logger, cfg.StoreOptions()...), nil
}

func openMemory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Store, error) {
	return mock.New(), nil
}

func openSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Store, error) {
	return seed.NewStore()
}

// NewRepository opens the configured provider and builds a Repository on it.
// When cfg.SeedFallback is set, reads degrade to the seed dataset while the
// backend is unavailable. collector may be nil.
func NewRepository(ctx context.Context, providers Providers, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*repository.Repository, error) {
	logger = logging.OrNop(logger)
	store, err := providers.Open(ctx, cfg.Provider, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []repository.Option{
		repository.WithLogger(logger),
		repository.WithMetrics(collector),
	}
	if cfg.SeedFallback {
		ds, err := seed.Default()
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.WithSeedFallback(ds))
	}

	logger.Info("repository ready",
		zap.String("provider", cfg.Provider),
		zap.String("table", cfg.TableName),
		zap.Bool("seedFallback", cfg.SeedFallback))
	return repository.New(store, opts...), nil
}
