package di

import (
	"context"
	"reflect"
)

// Scope allows you to resolve services.
//
// Scope is implemented by *Container.
type Scope interface {
	// Contains returns true if the Scope has a service of the given type.
	Contains(t reflect.Type) bool

	// Resolve returns a service of the given type from the Scope.
	//
	// Resolving a slice type returns every registered service of the element type,
	// in registration order.
	Resolve(ctx context.Context, t reflect.Type) (any, error)
}

// Resolver is passed to a [Factory] to create a service.
//
// Resolver is implemented by *Container.
type Resolver interface {
	Scope

	// ResolveArgs resolves the parameters of a function type using constructor injection.
	//
	// The parameter at index skip is left as the zero [reflect.Value]. Use -1 to resolve every parameter.
	// [Optional] parameters and trailing variadic parameters default to the zero value
	// when the dependency is not registered.
	ResolveArgs(ctx context.Context, fn reflect.Type, skip int) ([]reflect.Value, error)

	// TrackForDisposal closes val when the scope that owns the Resolver is closed,
	// if it implements [Closer] or a compatible Close method.
	//
	// A value is only tracked once per scope.
	TrackForDisposal(val any)
}

// Resolve a service of type Service from the [Scope].
func Resolve[Service any](ctx context.Context, s Scope) (Service, error) {
	var val Service
	anyVal, err := s.Resolve(ctx, reflect.TypeFor[Service]())
	if anyVal != nil {
		val = anyVal.(Service)
	}

	return val, err
}

// MustResolve resolves a service of type Service from the [Scope].
//
// If the service cannot be resolved, this function will panic.
func MustResolve[Service any](ctx context.Context, s Scope) Service {
	val, err := Resolve[Service](ctx, s)
	if err != nil {
		panic(err)
	}
	return val
}

// ResolveAll resolves every registered service of type Service from the [Scope], in registration order.
func ResolveAll[Service any](ctx context.Context, s Scope) ([]Service, error) {
	return Resolve[[]Service](ctx, s)
}
