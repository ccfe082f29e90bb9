package di

import (
	"context"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

// resolver resolves services for a single call to Resolve.
//
// It carries the visitor used to detect dependency cycles, so it must not be
// shared between goroutines.
type resolver struct {
	scope   *Container
	visitor resolveVisitor
}

var _ Resolver = (*resolver)(nil)

func newResolver(scope *Container) *resolver {
	return &resolver{
		scope:   scope,
		visitor: make(resolveVisitor),
	}
}

// withScope returns a resolver for another scope that shares the visitor.
func (r *resolver) withScope(scope *Container) *resolver {
	if scope == r.scope {
		return r
	}

	return &resolver{
		scope:   scope,
		visitor: r.visitor,
	}
}

func (r *resolver) Contains(t reflect.Type) bool {
	return r.scope.Contains(t)
}

func (r *resolver) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	return r.resolveType(ctx, t, false)
}

func (r *resolver) TrackForDisposal(val any) {
	r.scope.TrackForDisposal(val)
}

func (r *resolver) trackCloser(val any, closer Closer) {
	r.scope.track(val, closer)
}

func (r *resolver) ResolveArgs(ctx context.Context, fn reflect.Type, skip int) ([]reflect.Value, error) {
	if fn.Kind() != reflect.Func {
		return nil, errors.Errorf("resolve args %s: expected function", fn)
	}

	n := fn.NumIn()
	args := make([]reflect.Value, n)
	for i := range n {
		if i == skip {
			continue
		}

		t := fn.In(i)
		variadic := fn.IsVariadic() && i == n-1

		val, err := r.resolveArg(ctx, t, variadic)
		if err != nil {
			// Stop at the first error
			return nil, errors.Wrapf(err, "dependency %s", t)
		}
		args[i] = val
	}

	return args, nil
}

func (r *resolver) resolveArg(ctx context.Context, t reflect.Type, variadic bool) (reflect.Value, error) {
	switch t {
	case typeContext:
		return safeReflectValue(t, ctx), nil
	case typeScope:
		return reflect.ValueOf(r.scope), nil
	case typeResolver:
		return reflect.ValueOf(r), nil
	}

	if svcType, ok := isOptional(t); ok {
		ptr := reflect.New(t)
		if !r.Contains(svcType) {
			return ptr.Elem(), nil
		}

		val, err := r.resolveType(ctx, svcType, false)
		if err != nil {
			return reflect.Value{}, err
		}

		ptr.Interface().(optionalDependency).set(val)
		return ptr.Elem(), nil
	}

	// A trailing variadic argument is treated as optional.
	val, err := r.resolveType(ctx, t, variadic)
	if err != nil {
		return reflect.Value{}, err
	}

	return safeReflectValue(t, val), nil
}

func (r *resolver) resolveType(ctx context.Context, t reflect.Type, optional bool) (any, error) {
	if t.Kind() == reflect.Slice {
		return r.resolveSlice(ctx, t, optional)
	}

	svc := r.scope.table.lookup(t)
	if svc == nil {
		return nil, ErrServiceNotRegistered
	}

	return r.resolveService(ctx, svc)
}

func (r *resolver) resolveSlice(ctx context.Context, t reflect.Type, optional bool) (any, error) {
	svcs := r.scope.table.all(t.Elem())
	if len(svcs) == 0 && !optional {
		return nil, ErrServiceNotRegistered
	}

	slice := reflect.MakeSlice(t, 0, len(svcs))
	for _, svc := range svcs {
		val, err := r.resolveService(ctx, svc)
		if err != nil {
			return nil, err
		}
		slice = reflect.Append(slice, safeReflectValue(t.Elem(), val))
	}

	return slice.Interface(), nil
}

func (r *resolver) resolveService(ctx context.Context, svc *service) (any, error) {
	// Check context for errors
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// For singleton services, use the root scope.
	// Otherwise, use the current scope.
	owner := r.scope
	switch svc.Lifetime {
	case Singleton:
		owner = r.scope.root
	case Scoped:
		if r.scope.parent == nil {
			return nil, errors.Errorf("scoped service %s must be resolved from a child scope", svc.ServiceType)
		}
	}

	// Throw an error if we've already visited this service
	if !r.visitor.Enter(svc) {
		return nil, ErrDependencyCycle
	}
	defer r.visitor.Leave(svc)

	res := r.withScope(owner)
	if svc.Lifetime == Transient {
		return res.create(ctx, svc)
	}

	// For Singleton or Scoped services, we store the result.
	// Only the first caller creates the service, others wait for the result.
	future, ok := owner.resolved.Load(svc)
	if !ok {
		var loaded bool
		future, loaded = owner.resolved.LoadOrStore(svc, newResolveFuture())
		if !loaded {
			future.setResult(res.create(ctx, svc))
		}
	}

	return future.Result()
}

func (r *resolver) create(ctx context.Context, svc *service) (any, error) {
	val, err := svc.build(ctx, r)
	if err != nil {
		return nil, err
	}

	if val != nil {
		if t := reflect.TypeOf(val); !t.AssignableTo(svc.ServiceType) {
			return nil, errors.Errorf("%s: created %s is not assignable to %s", svc, t, svc.ServiceType)
		}
	}

	if svc.Lifetime != Transient {
		if closer := svc.closerFor(val); closer != nil {
			r.trackCloser(val, closer)
		}
	}

	return val, nil
}

// dependency is a statically known dependency of a registration.
type dependency struct {
	Type     reflect.Type
	Optional bool
}

// dependenciesOf returns the dependencies of a function type, skipping the
// parameter at index skip and the special types provided by the Container.
func dependenciesOf(fn reflect.Type, skip int) []dependency {
	deps := []dependency{}
	for i := range fn.NumIn() {
		if i == skip {
			continue
		}

		t := fn.In(i)
		switch t {
		case typeContext, typeScope, typeResolver:
			continue
		}

		if svcType, ok := isOptional(t); ok {
			deps = append(deps, dependency{Type: svcType, Optional: true})
			continue
		}

		deps = append(deps, dependency{
			Type:     t,
			Optional: fn.IsVariadic() && i == fn.NumIn()-1,
		})
	}

	return deps
}

type resolveVisitor map[*service]struct{}

// Enter returns false if the service has already been visited.
func (v resolveVisitor) Enter(s *service) bool {
	if _, exists := v[s]; exists {
		return false
	}

	v[s] = struct{}{}
	return true
}

func (v resolveVisitor) Leave(s *service) {
	delete(v, s)
}
