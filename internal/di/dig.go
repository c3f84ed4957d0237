// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It simplifies container setup and provides type-safe dependency retrieval with generics.
package di

import (
	"github.com/rs/zerolog"
	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// Get returns an instance constructed via dependency injection.
func Get[T any](container Container) (want T, err error) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		return want, err
	}
	return want, nil
}

// MustGet returns an instance constructed via dependency injection or panics.
// If the dependency cannot be resolved, it will panic.
//
// Example:
//
//	orch := MustGet[*orchestrator.Orchestrator](container)
func MustGet[T any](container Container) T {
	want, err := Get[T](container)
	if err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container for the given environment.
// The environment string is automatically registered as a string dependency
// that can be injected as a regular string parameter.
//
// Constructors are lazy; nothing in the core set talks to AWS until a
// dependency that needs it is requested.
func New(env string, opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() string { return env }); err != nil {
		return nil, err
	}

	logger := ProvideLogger()
	if o.logger != nil {
		logger = *o.logger
	}
	if err := container.Provide(func() zerolog.Logger { return logger }); err != nil {
		return nil, err
	}

	// Register core constructors
	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	// Register all provided constructors
	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideContext,
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideParameterStore,
	ProvideAppConfig,
	ProvideS3Client,
	ProvideCloudFormationClient,
	ProvideDynamoDB,
	ProvideSTSClient,
	ProvideIMDSClient,
	ProvideObjectStore,
	ProvideStackService,
	ProvideInstanceMetadata,
	ProvideLaunchRecorder,
	ProvideOrchestrator,
}
