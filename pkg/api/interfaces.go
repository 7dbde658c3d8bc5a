// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is done
	StartServer(ctx context.Context,
		registry IConverterRegistry,
		catalog ICatalog,
		config ServerConfig,
		reg *prometheus.Registry,
	) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
