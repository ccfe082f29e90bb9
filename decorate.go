package di

import (
	"context"
	"reflect"
	"slices"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Decorate wraps every registration of Service with a decorator.
//
// See [Services.Decorate] for details.
//
// Example:
//
//	services := di.NewServices()
//	err := services.Register(NewPostgresStore, di.As[Store](), di.Scoped)
//	err = di.Decorate[Store](services, NewCachingStore) // func NewCachingStore(inner Store, c *Cache) *CachingStore
func Decorate[Service any](s *Services, decorator any) error {
	return s.Decorate(reflect.TypeFor[Service](), decorator)
}

// Decorate replaces every registration of serviceType with one that wraps the original
// service using the decorator function.
//
// The decorator must be a function returning the decorator, or the decorator and an error.
// The decorator type must be assignable to serviceType. Exactly one parameter must accept
// serviceType: this parameter receives the original service. Every other parameter is
// resolved from the container like any constructor.
//
// Each registration keeps its position in the table and its [Lifetime]. If there are
// multiple registrations, each one is wrapped by its own decorator instance. Calling
// Decorate again on the same service type adds another layer around the previous one.
//
// The decorator type is also registered as a [Transient] service that resolves serviceType,
// so the decorator can be resolved by its own type. This registration is skipped if the
// decorator type is serviceType.
//
// For [Singleton] and [Scoped] services, both the decorator and the original service are
// closed when their scope is closed. The decorator is closed first.
//
// A [*ConfigurationError] is returned if serviceType has no registrations or if the decorator
// is not a valid decorator function. The table is not modified when an error is returned.
func (s *Services) Decorate(serviceType reflect.Type, decorator any) error {
	if s.built {
		return errors.Wrapf(ErrServicesBuilt, "decorate %s", serviceType)
	}

	d, err := newDecorator(serviceType, decorator)
	if err != nil {
		return &ConfigurationError{Op: "decorate", Type: serviceType, Err: err}
	}

	var matches []int
	for i, r := range s.All() {
		if r.ServiceType == serviceType {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		return &ConfigurationError{Op: "decorate", Type: serviceType, Err: ErrNoRegistration}
	}

	// Build every replacement before changing the table.
	// Each one captures how the registration it replaces was built.
	decorated := make([]Registration, len(matches))
	for i, idx := range matches {
		decorated[i] = d.decorate(s.regs[idx])
	}

	for i, idx := range matches {
		if err := s.ReplaceAt(idx, decorated[i]); err != nil {
			return errors.Wrapf(err, "decorate %s", serviceType)
		}
	}

	if d.t != serviceType {
		if err := s.Append(d.alias(serviceType)); err != nil {
			return errors.Wrapf(err, "decorate %s", serviceType)
		}
	}

	return nil
}

type decorator struct {
	fn    reflect.Value
	t     reflect.Type
	inner int
	deps  []dependency
}

func newDecorator(serviceType reflect.Type, fn any) (*decorator, error) {
	if fn == nil {
		return nil, errors.New("decorator is nil")
	}

	if _, ok := fn.(RegisterOption); ok {
		return nil, errors.Errorf("unexpected RegisterOption %T as decorator", fn)
	}

	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return nil, errors.Errorf("decorator %T: expected function", fn)
	}

	t, err := returnType(fnType)
	if err != nil {
		return nil, errors.Wrapf(err, "decorator %s", fnType)
	}

	if !t.AssignableTo(serviceType) {
		return nil, errors.Errorf("decorator %s: type %s not assignable to %s", fnType, t, serviceType)
	}

	inner, err := innerParam(fnType, serviceType)
	if err != nil {
		return nil, errors.Wrapf(err, "decorator %s", fnType)
	}

	return &decorator{
		fn:    reflect.ValueOf(fn),
		t:     t,
		inner: inner,
		deps:  dependenciesOf(fnType, inner),
	}, nil
}

// innerParam finds the parameter of fnType that receives the decorated service.
//
// A parameter of exactly serviceType is preferred over other parameters serviceType is assignable to.
func innerParam(fnType, serviceType reflect.Type) (int, error) {
	var exact, assignable []int

	for i := range fnType.NumIn() {
		if fnType.IsVariadic() && i == fnType.NumIn()-1 {
			continue
		}

		in := fnType.In(i)
		if in == serviceType {
			exact = append(exact, i)
			continue
		}

		switch in {
		case typeContext, typeScope, typeResolver:
			continue
		}

		if serviceType.AssignableTo(in) {
			assignable = append(assignable, i)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return -1, errors.Errorf("%d parameters of type %s", len(exact), serviceType)
	case len(assignable) == 1:
		return assignable[0], nil
	case len(assignable) > 1:
		return -1, errors.Errorf("%d parameters accept %s", len(assignable), serviceType)
	default:
		return -1, errors.Errorf("function must have a parameter that accepts %s", serviceType)
	}
}

// decorate returns a registration that wraps the service built by orig.
func (d *decorator) decorate(orig Registration) Registration {
	// Capture the original construction before the table entry is replaced.
	// Looking the service up from the table would find the decorator again.
	buildOriginal := orig.construct()
	lifetime := orig.Lifetime
	innerType := d.fn.Type().In(d.inner)

	factory := func(ctx context.Context, r Resolver) (any, error) {
		inner, err := buildOriginal(ctx, r)
		if err != nil {
			return nil, err
		}

		// The container only tracks the outer service, so the decorated
		// service is tracked here with its original close behavior.
		if lifetime != Transient {
			trackInner(r, orig, inner)
		}

		args, err := r.ResolveArgs(ctx, d.fn.Type(), d.inner)
		if err != nil {
			return nil, err
		}
		args[d.inner] = safeReflectValue(innerType, inner)

		return callFunc(d.fn, args)
	}

	return Registration{
		ServiceType: orig.ServiceType,
		Lifetime:    orig.Lifetime,
		Factory:     factory,
		deps:        slices.Concat(d.deps, orig.dependencies()),
		decorated:   &orig,
	}
}

// alias returns a registration that resolves the decorated service as the decorator type.
func (d *decorator) alias(serviceType reflect.Type) Registration {
	return Registration{
		ServiceType: d.t,
		Lifetime:    Transient,
		Factory: func(ctx context.Context, r Resolver) (any, error) {
			val, err := r.Resolve(ctx, serviceType)
			if err != nil {
				return nil, err
			}

			if val != nil && !reflect.TypeOf(val).AssignableTo(d.t) {
				return nil, errors.Errorf("%s is decorated by %T", serviceType, val)
			}

			return val, nil
		},
		close: closeIgnore,
		deps:  []dependency{{Type: serviceType}},
	}
}

type closerTracker interface {
	trackCloser(val any, closer Closer)
}

func trackInner(r Resolver, orig Registration, inner any) {
	closer := orig.closerFor(inner)
	if closer == nil {
		return
	}

	if t, ok := r.(closerTracker); ok {
		t.trackCloser(inner, closer)
		return
	}

	r.TrackForDisposal(inner)
}
