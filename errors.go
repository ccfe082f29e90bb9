package di

import (
	"fmt"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

var (
	// ErrNoRegistration is returned when decorating a service type that has no registrations.
	ErrNoRegistration = errors.New("cannot decorate a type that has no registration")

	// ErrServiceNotRegistered is returned when resolving a service that is not registered.
	ErrServiceNotRegistered = errors.New("service not registered")

	// ErrDependencyCycle is returned when a dependency cycle is detected.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrContainerClosed is returned when using a Container that has been closed.
	ErrContainerClosed = errors.New("container closed")

	// ErrServicesBuilt is returned when modifying a Services table after it has been built.
	ErrServicesBuilt = errors.New("services already built")
)

// ConfigurationError is returned when a service can not be configured,
// e.g. decorating a service type that has no registrations.
type ConfigurationError struct {
	// Op is the configuration operation that failed.
	Op string
	// Type is the service type being configured.
	Type reflect.Type
	// Err is the underlying error.
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
