// Package di provides a lightweight wrapper around uber's dig dependency
// injection framework. It simplifies container setup and provides type-safe
// dependency retrieval with generics.
package di

import (
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

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the container
// when you're certain it exists.
//
// Example:
//
//	deployer := MustGet[*deploy.Deployer](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New creates a dependency injection container around a loaded bakery
// config. The config itself is registered so constructors can depend on
// *config.Config directly.
func New(opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

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
	ProvideCloudFormationClient,
	ProvideS3Client,
	ProvideSecretsManagerClient,
	ProvideIAMClient,
	ProvideSTSClient,
	ProvideSSMClient,
	ProvideECRClient,
	ProvideECSClient,
	ProvideELBClient,
	ProvideLogsClient,
	ProvideDynamoDBClient,
	ProvideStorageService,
	ProvideSecretsService,
	ProvideIAMService,
	ProvideSTSService,
	ProvideECRService,
	ProvideECSService,
	ProvideELBService,
	ProvideLogsService,
	ProvideParameterStoreService,
	ProvideHistoryDAO,
	ProvidePrefectClient,
	ProvidePolicyValidator,
	ProvideDeployer,
	ProvidePreflightRunner,
}
