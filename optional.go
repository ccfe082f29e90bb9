package di

import "reflect"

// Optional can be used as a constructor or decorator parameter for a dependency
// that may not be registered.
//
// If Service is registered, it is resolved and Get returns it with ok set to true.
// Otherwise the zero value is used and ok is false.
//
// Example:
//
//	func NewCachingStore(inner Store, metrics di.Optional[Metrics]) *CachingStore {
//		m, ok := metrics.Get()
//		...
//	}
type Optional[Service any] struct {
	val Service
	ok  bool
}

// Get returns the resolved service and whether it was registered.
func (o Optional[Service]) Get() (Service, bool) {
	return o.val, o.ok
}

// OrElse returns the resolved service, or def if the service was not registered.
func (o Optional[Service]) OrElse(def Service) Service {
	if !o.ok {
		return def
	}
	return o.val
}

func (*Optional[Service]) serviceType() reflect.Type {
	return reflect.TypeFor[Service]()
}

func (o *Optional[Service]) set(val any) {
	if val != nil {
		o.val = val.(Service)
	}
	o.ok = true
}

type optionalDependency interface {
	serviceType() reflect.Type
	set(val any)
}

var _ optionalDependency = (*Optional[any])(nil)

// isOptional returns the service type of t if it is an [Optional] parameter type.
func isOptional(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(typeOptional) {
		return nil, false
	}

	opt := reflect.New(t).Interface().(optionalDependency)
	return opt.serviceType(), true
}
