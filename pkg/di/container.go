package di

import (
	"errors"

	"go.uber.org/zap"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
	"github.com/fluxori-systems/go-docstore-repository/repository"
)

// Container provides dependency injection for repository construction.
// It holds the shared document store client and logger; each repository
// still owns its private point cache, built from its own configuration.
type Container struct {
	client docstore.Client
	logger *zap.Logger
}

// Option adjusts Container construction.
type Option func(*Container)

// WithLogger installs the logger injected into repositories built through
// this container.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// NewContainer creates a DI container around the given store client.
func NewContainer(client docstore.Client, opts ...Option) (*Container, error) {
	if client == nil {
		return nil, errors.New("di: client is required")
	}
	c := &Container{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Client returns the shared document store client.
func (c *Container) Client() docstore.Client {
	return c.client
}

// Logger returns the shared logger instance.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// NewRepository builds a repository wired with the container's client and
// logger. An explicit Logger on cfg wins over the container's.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: NewRepository[*Product](container, cfg, handlers)
func NewRepository[T repository.Entity](c *Container, cfg repository.Config, handlers repository.ModelHandlers[T]) (*repository.Repository[T], error) {
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return repository.New(c.client, cfg, handlers)
}
