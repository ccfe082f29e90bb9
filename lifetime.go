package di

import (
	"fmt"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Lifetime specifies how services are created when resolved.
//
// Available lifetimes:
//   - [Singleton] specifies that a service is created once and subsequent requests return the same instance.
//   - [Transient] specifies that a service is created for each request.
//   - [Scoped] specifies that a service is created once per scope.
type Lifetime uint8

const (
	// Singleton specifies that a service is created once and subsequent requests to resolve return the same instance.
	//
	// This is the default lifetime for services.
	Singleton Lifetime = iota

	// Transient specifies that a service is created for each request.
	Transient

	// Scoped specifies that a service is created once per scope.
	Scoped
)

// WithLifetime is used to configure the lifetime of a service when calling [Services.Register]
// or [RegisterFactory].
//
// Example:
//
//	services := di.NewServices()
//	err := services.Register(NewService, di.WithLifetime(di.Transient))
//	// Lifetime can also be used directly as an option
//	err = services.Register(NewService, di.Transient)
func WithLifetime(lifetime Lifetime) RegisterOption {
	return lifetime
}

func (l Lifetime) applyRegistration(r *Registration) error {
	if r.Kind() == InstanceKind && l != Singleton {
		return errors.Errorf("lifetime %s: value services are always Singleton", l)
	}

	r.Lifetime = l
	return nil
}

var _ RegisterOption = Singleton

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Transient:
		return "Transient"
	case Scoped:
		return "Scoped"
	default:
		return fmt.Sprintf("Unknown Lifetime %d", l)
	}
}
