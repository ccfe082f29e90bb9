package di

import (
	"context"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Invoke calls the given function with parameters resolved from the provided Scope.
//
// The function may take any number of parameters which will be resolved from the container,
// and may return any number of results.
// An [error] return parameter will be passed along and any other return parameters are ignored.
//
// If the Scope is a [Resolver], parameters are resolved with [Resolver.ResolveArgs], so
// [Optional] and variadic parameters are supported.
func Invoke(ctx context.Context, s Scope, fn any) error {
	if fn == nil {
		return errors.New("invoke: fn is nil")
	}

	fnType := reflect.TypeOf(fn)
	fnVal := reflect.ValueOf(fn)

	// Make sure fn is a function
	if fnType.Kind() != reflect.Func {
		return errors.Errorf("invoke %T: fn must be a function", fn)
	}

	in, err := invokeArgs(ctx, s, fnType)
	if err != nil {
		return errors.Wrapf(err, "invoke %T", fn)
	}

	// Check for a context error before we invoke the function
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "invoke %T", fn)
	}

	var out []reflect.Value
	if fnType.IsVariadic() {
		out = fnVal.CallSlice(in)
	} else {
		out = fnVal.Call(in)
	}

	// Return the first error return value, if any.
	// Don't wrap the error, return it as-is.
	for i := range fnType.NumOut() {
		if fnType.Out(i) == typeError {
			err, _ := out[i].Interface().(error)
			return err
		}
	}

	return nil
}

func invokeArgs(ctx context.Context, s Scope, fnType reflect.Type) ([]reflect.Value, error) {
	if r, ok := s.(Resolver); ok {
		return r.ResolveArgs(ctx, fnType, -1)
	}

	in := make([]reflect.Value, fnType.NumIn())
	for i := range fnType.NumIn() {
		t := fnType.In(i)

		var val any
		var err error

		switch t {
		case typeContext:
			val = ctx
		case typeScope:
			val = s
		default:
			val, err = s.Resolve(ctx, t)
		}

		if err != nil {
			// Stop at the first error
			return nil, errors.Wrapf(err, "dependency %s", t)
		}
		in[i] = safeReflectValue(t, val)
	}

	return in, nil
}
