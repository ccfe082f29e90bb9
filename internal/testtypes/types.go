package testtypes

import (
	"context"
	"reflect"
	"sync"
)

var (
	TypeService          = reflect.TypeFor[Service]()
	TypeDecoratedService = reflect.TypeFor[DecoratedService]()
	TypeDecoratorPtr     = reflect.TypeFor[*Decorator]()
	TypeDisposable       = reflect.TypeFor[DisposableService]()
	TypeConcretePtr      = reflect.TypeFor[*Concrete]()
)

// Service is a dependency injected into decorated services and decorators.
type Service interface {
	Service()
}

type SomeService struct{}

func (*SomeService) Service() {}

func NewService() Service {
	return &SomeService{}
}

// DecoratedService is the service type that gets decorated.
type DecoratedService interface {
	Decorated()
}

type Decorated struct {
	Injected Service
}

func (*Decorated) Decorated() {}

func NewDecorated() *Decorated {
	return &Decorated{}
}

func NewDecoratedWithService(s Service) *Decorated {
	return &Decorated{Injected: s}
}

type OtherDecorated struct{}

func (*OtherDecorated) Decorated() {}

func NewOtherDecorated() *OtherDecorated {
	return &OtherDecorated{}
}

type Decorator struct {
	Inner    DecoratedService
	Injected Service
}

func (*Decorator) Decorated() {}

func NewDecorator(inner DecoratedService) *Decorator {
	return &Decorator{Inner: inner}
}

func NewDecoratorWithService(inner DecoratedService, s Service) *Decorator {
	return &Decorator{Inner: inner, Injected: s}
}

type OtherDecorator struct {
	Inner DecoratedService
}

func (*OtherDecorator) Decorated() {}

func NewOtherDecorator(inner DecoratedService) *OtherDecorator {
	return &OtherDecorator{Inner: inner}
}

// Concrete is decorated by its own type.
type Concrete struct {
	Dependency Service
	Inner      *Concrete
}

func NewConcrete(s Service) *Concrete {
	return &Concrete{Dependency: s}
}

func DecorateConcrete(inner *Concrete) *Concrete {
	return &Concrete{Inner: inner}
}

// CloseLog records the order services are closed in.
type CloseLog struct {
	mu    sync.Mutex
	names []string
}

func (l *CloseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *CloseLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

type DisposableService interface {
	Closed() bool
	Close(ctx context.Context) error
}

type Disposable struct {
	Log    *CloseLog
	closed bool
}

func (d *Disposable) Closed() bool { return d.closed }

func (d *Disposable) Close(context.Context) error {
	d.closed = true
	if d.Log != nil {
		d.Log.add("disposable")
	}
	return nil
}

// DisposableDecorator does not close its inner service; the container does.
type DisposableDecorator struct {
	Inner  DisposableService
	Log    *CloseLog
	closed bool
}

func (d *DisposableDecorator) Closed() bool { return d.closed }

func (d *DisposableDecorator) Close(context.Context) error {
	d.closed = true
	if d.Log != nil {
		d.Log.add("decorator")
	}
	return nil
}

func NewDisposableDecorator(inner DisposableService) *DisposableDecorator {
	d := &DisposableDecorator{Inner: inner}
	if in, ok := inner.(*Disposable); ok {
		d.Log = in.Log
	}
	return d
}

// InterfaceA and InterfaceB are used for general container tests.
type InterfaceA interface {
	A()
}

type InterfaceB interface {
	B()
}

type StructA struct {
	Tag any
}

func (*StructA) A() {}

type StructB struct {
	A InterfaceA
}

func (*StructB) B() {}

func NewInterfaceA() InterfaceA {
	return &StructA{}
}

func NewStructAPtr() *StructA {
	return &StructA{}
}

func NewInterfaceB(a InterfaceA) InterfaceB {
	return &StructB{A: a}
}
