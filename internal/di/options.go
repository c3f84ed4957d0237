package di

import (
	"github.com/rs/zerolog"
)

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithLogger overrides the logger the container hands out. By default the
// container uses ProvideLogger.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *options) {
		opts.logger = &logger
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func(orch *orchestrator.Orchestrator) Provisioner { return orch },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	logger    *zerolog.Logger
	providers []any
}
