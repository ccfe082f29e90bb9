package di

import (
	"context"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Register the provided function or value with the [Services] table.
//
// If a function is provided, it will be called to create the service when resolved.
//
// This function can take any number of arguments which will also be resolved from the Container.
// The function may also accept a [context.Context], [di.Scope], [di.Resolver], or [di.Optional]
// dependencies which default to the zero value when not registered.
//
// The function must return a service, or the service and an error.
// The service will be registered as the return type of the function (struct, pointer, or interface),
// unless [As] is used.
//
// If the resolved service implements [Closer], or a compatible Close method signature,
// it will be closed when the scope that created it is closed.
//
// If a value is provided, it will be returned as the service when resolved.
// (It will be registered as the actual type even if the the variable was declared as an interface.)
//
// Available options:
//   - [Lifetime] is used to specify how services are created when resolved.
//   - [As] registers the service as another type.
//   - [WithCloseFunc] specifies a function to be called when the service is closed.
//   - [IgnoreClose] specifies that the service should not be closed by the Container.
//     Function services are closed by default if they implement [Closer] or a compatible function signature.
//   - [WithClose] specifies that the service should be closed by the Container if it implements [Closer] or a compatible function signature.
//     This is the default for function services. Value services will not be closed by default.
func (s *Services) Register(funcOrValue any, opts ...RegisterOption) error {
	// Use a single Register function for both function and value services
	// because it's easier to use than separate functions.
	//
	// Examples:
	// Register(NewService) // This works as a func
	// Register(NewService()) // This works as a value

	if funcOrValue == nil {
		return errors.New("register: funcOrValue is nil")
	}

	if _, ok := funcOrValue.(RegisterOption); ok {
		return errors.Errorf("register %T: unexpected RegisterOption as funcOrValue", funcOrValue)
	}

	var r Registration
	t := reflect.TypeOf(funcOrValue)
	if t.Kind() == reflect.Func {
		st, err := returnType(t)
		if err != nil {
			return errors.Wrapf(err, "register %T", funcOrValue)
		}

		r = Registration{
			ServiceType: st,
			Constructor: funcOrValue,
		}
	} else {
		r = Registration{
			ServiceType: t,
			Instance:    funcOrValue,
		}
	}

	return s.register(r, opts, "register %T", funcOrValue)
}

// RegisterFactory registers a factory function for Service with the [Services] table.
//
// Available options are the same as [Services.Register].
func RegisterFactory[Service any](
	s *Services,
	f func(ctx context.Context, r Resolver) (Service, error),
	opts ...RegisterOption,
) error {
	t := reflect.TypeFor[Service]()
	if f == nil {
		return errors.Errorf("register factory %s: f is nil", t)
	}

	r := Registration{
		ServiceType: t,
		Factory: func(ctx context.Context, r Resolver) (any, error) {
			return f(ctx, r)
		},
	}

	return s.register(r, opts, "register factory %s", t)
}

func (s *Services) register(r Registration, opts []RegisterOption, msg string, args ...any) error {
	err := applyOptions(opts, func(o RegisterOption) error {
		return o.applyRegistration(&r)
	})
	if err != nil {
		return errors.Wrapf(err, msg, args...)
	}

	if s.built {
		return errors.Wrapf(ErrServicesBuilt, msg, args...)
	}
	if err := r.validate(); err != nil {
		return errors.Wrapf(err, msg, args...)
	}

	s.regs = append(s.regs, r)
	return nil
}

// RegisterOption is used to configure a service registration when calling [Services.Register]
// or [RegisterFactory].
type RegisterOption interface {
	applyRegistration(*Registration) error
}

type registerOption func(*Registration) error

func (o registerOption) applyRegistration(r *Registration) error {
	return o(r)
}

// As registers the service as type Service instead of the implementation type.
//
// The implementation type must be assignable to Service.
//
// Example:
//
//	err := services.Register(NewPostgresStore, di.As[Store]())
func As[Service any]() RegisterOption {
	return registerOption(func(r *Registration) error {
		t := reflect.TypeFor[Service]()
		impl := r.ImplementationType()
		if !impl.AssignableTo(t) {
			return errors.Errorf("as %s: type %s not assignable to %s", t, impl, t)
		}

		r.ServiceType = t
		return nil
	})
}
