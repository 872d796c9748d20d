package di

import (
	"fmt"

	"github.com/LeJamon/goCustodyd/internal/config"
	"github.com/LeJamon/goCustodyd/internal/core/account"
	"github.com/LeJamon/goCustodyd/internal/core/credential"
	"github.com/LeJamon/goCustodyd/internal/core/deposit"
	"github.com/LeJamon/goCustodyd/internal/core/settlement"
	"github.com/LeJamon/goCustodyd/internal/events"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/kvstore"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/memory"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb/sqlstore"
	"github.com/LeJamon/goCustodyd/internal/wallet"
)

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
	logger    accountdb.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger routes store and service logging through the given logger.
func WithLogger(logger accountdb.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config, options ...ProviderOption) *Provider {
	p := &Provider{
		container: container,
		config:    cfg,
		logger:    accountdb.NewDefaultLogger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// RegisterAll registers all services.
func (p *Provider) RegisterAll() error {
	// Register config
	p.container.Register(ServiceConfig, p.config)

	// Register builders for lazy instantiation
	p.registerStorageBuilders()
	p.registerDomainBuilders()

	return nil
}

// registerStorageBuilders registers the store and its lifecycle manager.
func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceStore, func(c *Container) (interface{}, error) {
		switch p.config.Database.Backend {
		case config.BackendSQL:
			return sqlstore.New(&p.config.Database.SQL)
		case config.BackendKV:
			return kvstore.New(&p.config.Database.KV)
		case config.BackendMemory:
			return memory.New(), nil
		default:
			return nil, fmt.Errorf("%w: %s", accountdb.ErrInvalidBackend, p.config.Database.Backend)
		}
	})

	p.container.RegisterBuilder(ServiceStoreManager, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		manager := accountdb.NewManager(store, p.config.Database.Backend,
			accountdb.WithLogger(p.logger))
		return manager, nil
	})
}

// registerDomainBuilders registers the event bus and the domain services.
func (p *Provider) registerDomainBuilders() {
	p.container.RegisterBuilder(ServiceEventBus, func(c *Container) (interface{}, error) {
		return events.NewBus(events.WithLogger(p.logger)), nil
	})

	p.container.RegisterBuilder(ServiceWalletAllocator, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		return wallet.NewAllocator(wallet.NewLocalGenerator(), store.Accounts()), nil
	})

	p.container.RegisterBuilder(ServiceAccounts, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		return account.NewService(store), nil
	})

	p.container.RegisterBuilder(ServiceCredentials, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		allocator, err := p.GetWalletAllocator()
		if err != nil {
			return nil, err
		}
		return credential.NewService(store, allocator), nil
	})

	p.container.RegisterBuilder(ServiceIngestor, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		accounts, err := p.GetAccounts()
		if err != nil {
			return nil, err
		}
		bus, err := p.GetEventBus()
		if err != nil {
			return nil, err
		}
		return deposit.NewIngestor(store, accounts,
			deposit.WithLogger(p.logger),
			deposit.WithPublisher(bus))
	})

	p.container.RegisterBuilder(ServiceSettlement, func(c *Container) (interface{}, error) {
		store, err := p.GetStore()
		if err != nil {
			return nil, err
		}
		bus, err := p.GetEventBus()
		if err != nil {
			return nil, err
		}
		engine := settlement.NewEngine(store,
			p.config.Settlement.ShardIndex,
			p.config.Settlement.ShardCount,
			settlement.WithLogger(p.logger),
			settlement.WithPublisher(bus),
			settlement.WithAccountConcurrency(p.config.Settlement.AccountConcurrency))
		return engine, nil
	})
}

// GetConfig returns the configuration from the container.
func (p *Provider) GetConfig() *config.Config {
	return p.config
}

// GetStore returns the account store selected by database.backend.
func (p *Provider) GetStore() (accountdb.Store, error) {
	store, err := p.container.Get(ServiceStore)
	if err != nil {
		return nil, err
	}
	return store.(accountdb.Store), nil
}

// GetStoreManager returns the store lifecycle manager.
func (p *Provider) GetStoreManager() (*accountdb.Manager, error) {
	manager, err := p.container.Get(ServiceStoreManager)
	if err != nil {
		return nil, err
	}
	return manager.(*accountdb.Manager), nil
}

// GetEventBus returns the shared event bus.
func (p *Provider) GetEventBus() (*events.Bus, error) {
	bus, err := p.container.Get(ServiceEventBus)
	if err != nil {
		return nil, err
	}
	return bus.(*events.Bus), nil
}

// GetWalletAllocator returns the deposit wallet allocator.
func (p *Provider) GetWalletAllocator() (*wallet.Allocator, error) {
	allocator, err := p.container.Get(ServiceWalletAllocator)
	if err != nil {
		return nil, err
	}
	return allocator.(*wallet.Allocator), nil
}

// GetCredentials returns the credential service.
func (p *Provider) GetCredentials() (*credential.Service, error) {
	svc, err := p.container.Get(ServiceCredentials)
	if err != nil {
		return nil, err
	}
	return svc.(*credential.Service), nil
}

// GetAccounts returns the account service.
func (p *Provider) GetAccounts() (*account.Service, error) {
	svc, err := p.container.Get(ServiceAccounts)
	if err != nil {
		return nil, err
	}
	return svc.(*account.Service), nil
}

// GetIngestor returns the deposit ingestor.
func (p *Provider) GetIngestor() (*deposit.Ingestor, error) {
	ing, err := p.container.Get(ServiceIngestor)
	if err != nil {
		return nil, err
	}
	return ing.(*deposit.Ingestor), nil
}

// GetSettlement returns the settlement engine.
func (p *Provider) GetSettlement() (*settlement.Engine, error) {
	engine, err := p.container.Get(ServiceSettlement)
	if err != nil {
		return nil, err
	}
	return engine.(*settlement.Engine), nil
}
