// Package di provides dependency injection container
package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stdf2h5/stdf2h5/pkg/api" //nolint:depguard
	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/config"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
	"github.com/stdf2h5/stdf2h5/pkg/dataset"
)

// CatalogOpener opens the conversion catalog in a directory
type CatalogOpener func(dir string) (*catalog.Store, error)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	openCatalog   CatalogOpener
	registry      *prometheus.Registry
	metrics       *converter.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		openCatalog:   catalog.Open,
		registry:      prometheus.NewRegistry(),
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// SetCatalogOpener allows overriding how the catalog is opened (for testing)
func (c *Container) SetCatalogOpener(open CatalogOpener) {
	c.openCatalog = open
}

// Registry returns the Prometheus registry shared by converters and the server
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// ConverterMetrics returns the converter metrics, registering them on first use
func (c *Container) ConverterMetrics() *converter.Metrics {
	if c.metrics == nil {
		c.metrics = converter.NewMetrics(c.registry)
	}
	return c.metrics
}

// OpenCatalog opens the catalog configured in cfg. It returns nil without an
// error when no catalog directory is configured.
func (c *Container) OpenCatalog(cfg *config.Config) (*catalog.Store, error) {
	if cfg.CatalogDir == "" {
		return nil, nil
	}
	return c.openCatalog(cfg.CatalogDir)
}

// ConverterOptions builds converter options from cfg. store may be nil.
func (c *Container) ConverterOptions(cfg *config.Config, store *catalog.Store, logger converter.SLogger) converter.Options {
	opts := converter.Options{
		OutputDir: cfg.OutputDir,
		Analysis:  cfg.Analysis,
		Persist: dataset.PersistOptions{
			ChunkRows:   cfg.Dataset.ChunkRows,
			Compression: cfg.Dataset.Compression,
		},
		Logger:  logger,
		Metrics: c.ConverterMetrics(),
	}
	// A nil *catalog.Store must not become a non-nil interface
	if store != nil {
		opts.Catalog = store
	}
	return opts
}
