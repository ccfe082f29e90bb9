package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Factory creates a service using the provided [Resolver].
//
// The Resolver is bound to the scope that owns the service: the root [Container] for
// [Singleton] services and the resolving scope for [Scoped] and [Transient] services.
type Factory func(ctx context.Context, r Resolver) (any, error)

// RegistrationKind reports which implementation form a [Registration] uses.
type RegistrationKind uint8

const (
	// InstanceKind is a registration for a pre-built value.
	InstanceKind RegistrationKind = iota + 1
	// ConstructorKind is a registration for a constructor function whose
	// parameters are resolved from the container.
	ConstructorKind
	// FactoryKind is a registration for a [Factory].
	FactoryKind
)

func (k RegistrationKind) String() string {
	switch k {
	case InstanceKind:
		return "Instance"
	case ConstructorKind:
		return "Constructor"
	case FactoryKind:
		return "Factory"
	default:
		return fmt.Sprintf("Unknown RegistrationKind %d", k)
	}
}

// Registration describes how to create a service when it is resolved.
//
// Exactly one of Instance, Constructor, or Factory must be set.
type Registration struct {
	// ServiceType is the type the service is resolved as.
	ServiceType reflect.Type

	// Lifetime controls how instances are reused. Instance registrations are always [Singleton].
	Lifetime Lifetime

	// Instance is a pre-built value returned as-is when resolved.
	Instance any

	// Constructor is a function returning the service, or the service and an error.
	// Its parameters are resolved from the container when the service is resolved.
	Constructor any

	// Factory creates the service from a [Resolver].
	Factory Factory

	close     closePolicy
	closeFunc closerFactory
	deps      []dependency

	// decorated is the registration replaced by a decorator.
	decorated *Registration
}

// Kind returns the implementation form of the registration.
//
// Returns zero if no implementation is set.
func (r Registration) Kind() RegistrationKind {
	switch {
	case r.Factory != nil:
		return FactoryKind
	case r.Constructor != nil:
		return ConstructorKind
	case r.Instance != nil:
		return InstanceKind
	default:
		return 0
	}
}

// ImplementationType returns the type produced by the registration.
//
// For instances this is the dynamic type of the value, for constructors it is the
// return type of the function. Factories are opaque so the service type is returned.
func (r Registration) ImplementationType() reflect.Type {
	switch r.Kind() {
	case InstanceKind:
		return reflect.TypeOf(r.Instance)
	case ConstructorKind:
		return reflect.TypeOf(r.Constructor).Out(0)
	default:
		return r.ServiceType
	}
}

func (r Registration) String() string {
	if r.ServiceType == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s (%s %s)", r.ServiceType, r.Lifetime, r.Kind())
}

func (r Registration) validate() error {
	set := 0
	for _, ok := range []bool{r.Instance != nil, r.Constructor != nil, r.Factory != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of Instance, Constructor, or Factory must be set")
	}

	if r.ServiceType == nil {
		return errors.New("service type is nil")
	}
	if err := validateServiceType(r.ServiceType); err != nil {
		return err
	}

	switch r.Kind() {
	case InstanceKind:
		if r.Lifetime != Singleton {
			return errors.Errorf("value services are always Singleton, got %s", r.Lifetime)
		}

	case ConstructorKind:
		fnType := reflect.TypeOf(r.Constructor)
		if fnType.Kind() != reflect.Func {
			return errors.Errorf("constructor %T: expected function", r.Constructor)
		}
		if _, err := returnType(fnType); err != nil {
			return err
		}
	}

	if r.Lifetime > Scoped {
		return errors.Errorf("invalid lifetime %s", r.Lifetime)
	}

	if t := r.ImplementationType(); !t.AssignableTo(r.ServiceType) {
		return errors.Errorf("type %s not assignable to %s", t, r.ServiceType)
	}

	return nil
}

// construct captures how the registration builds its service.
//
// The returned Factory does not reference the registration table, so it can be
// used to build the original service after the table entry has been replaced.
func (r Registration) construct() Factory {
	switch r.Kind() {
	case InstanceKind:
		val := r.Instance
		return func(context.Context, Resolver) (any, error) {
			return val, nil
		}

	case ConstructorKind:
		fn := reflect.ValueOf(r.Constructor)
		return func(ctx context.Context, res Resolver) (any, error) {
			args, err := res.ResolveArgs(ctx, fn.Type(), -1)
			if err != nil {
				return nil, err
			}
			return callFunc(fn, args)
		}

	default:
		return r.Factory
	}
}

// dependencies returns the statically known dependencies of the registration.
func (r Registration) dependencies() []dependency {
	if r.deps != nil {
		return r.deps
	}

	if r.Kind() == ConstructorKind {
		return dependenciesOf(reflect.TypeOf(r.Constructor), -1)
	}

	return nil
}

// closerFor returns the Closer to use for a value created by this registration, if any.
func (r Registration) closerFor(val any) Closer {
	if isNil(val) {
		return nil
	}

	if r.closeFunc != nil {
		return r.closeFunc(val)
	}

	switch r.close {
	case closeIgnore:
		return nil
	case closeAlways:
		return getCloser(val)
	}

	// The container is not responsible for closing values it did not create.
	if r.Kind() == InstanceKind {
		return nil
	}
	return getCloser(val)
}

func validateServiceType(t reflect.Type) error {
	switch t {
	// These are the only special types used by the Container.
	case typeContext,
		typeScope,
		typeResolver,
		typeError:
		return errors.New("invalid service type")
	}

	switch t.Kind() {
	case reflect.Interface,
		reflect.Ptr,
		reflect.Struct:
		return nil
	}

	return errors.New("invalid service type")
}

// returnType returns the service type of a constructor function with the signature
// func(...) Service or func(...) (Service, error).
func returnType(fnType reflect.Type) (reflect.Type, error) {
	var t reflect.Type
	switch {
	case fnType.NumOut() == 1:
		t = fnType.Out(0)
	case fnType.NumOut() == 2 && fnType.Out(1) == typeError:
		t = fnType.Out(0)
	default:
		return nil, errors.New("function must return Service or (Service, error)")
	}

	if err := validateServiceType(t); err != nil {
		return nil, err
	}

	return t, nil
}

// callFunc calls a constructor function and returns the service and error, if any.
func callFunc(fn reflect.Value, args []reflect.Value) (any, error) {
	var out []reflect.Value
	if fn.Type().IsVariadic() {
		out = fn.CallSlice(args)
	} else {
		out = fn.Call(args)
	}

	val := out[0].Interface()

	var err error
	if len(out) == 2 {
		err, _ = out[1].Interface().(error)
	}

	return val, err
}
