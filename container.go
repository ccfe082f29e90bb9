package di

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Container is a dependency injection container.
// It is used to resolve services by first resolving their dependencies.
//
// A root Container is created with [Services.Build]. Child scopes are created
// with [Container.NewScope] and share the registrations of the root.
type Container struct {
	parent    *Container
	root      *Container
	table     *serviceTable
	resolved  *xsync.MapOf[*service, *resolveFuture]
	logger    *slog.Logger
	closers   []Closer
	tracked   map[any]struct{}
	closersMu sync.Mutex
	closedMu  sync.RWMutex
	closed    bool
}

var (
	_ Scope    = (*Container)(nil)
	_ Resolver = (*Container)(nil)
)

func newContainer(regs []Registration) *Container {
	c := &Container{
		table:    newServiceTable(regs),
		resolved: xsync.NewMapOf[*service, *resolveFuture](),
		logger:   slog.New(discardHandler{}),
	}
	c.root = c

	// Value services that opted in to closing are closed with the root
	// even if they are never resolved. This includes decorated values.
	for _, svc := range c.table.services {
		for r := &svc.Registration; r != nil; r = r.decorated {
			if r.Kind() != InstanceKind {
				continue
			}
			if closer := r.closerFor(r.Instance); closer != nil {
				c.track(r.Instance, closer)
			}
		}
	}

	return c
}

// NewScope creates a new child [Container] scope.
//
// Services registered with the root [Container] are available to the scope.
// [Scoped] services are created once per scope and closed when the scope is closed.
// [Singleton] services are always created and closed by the root [Container].
func (c *Container) NewScope() (*Container, error) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return nil, errors.Wrap(ErrContainerClosed, "new scope")
	}

	scope := &Container{
		parent:   c,
		root:     c.root,
		table:    c.table,
		resolved: xsync.NewMapOf[*service, *resolveFuture](),
		logger:   c.logger,
	}

	c.logger.Debug("scope created")
	return scope, nil
}

// Contains returns true if the [Container] has a service registered for the given [reflect.Type].
//
// For a slice type, the element type is checked.
func (c *Container) Contains(t reflect.Type) bool {
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	return c.table.contains(t)
}

// Resolve a service of the given [reflect.Type].
//
// The type must be registered with the [Container]. If there is more than one registration
// for the type, the last one is used. Resolving a slice type returns every registered
// service of the element type, in registration order.
//
// This will return an error if the [Container] has been closed.
func (c *Container) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return nil, errors.Wrapf(ErrContainerClosed, "resolve %s", t)
	}

	val, err := newResolver(c).Resolve(ctx, t)
	if err != nil {
		return val, errors.Wrapf(err, "resolve %s", t)
	}

	return val, nil
}

// ResolveArgs implements [Resolver].
func (c *Container) ResolveArgs(ctx context.Context, fn reflect.Type, skip int) ([]reflect.Value, error) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return nil, errors.Wrapf(ErrContainerClosed, "resolve args %s", fn)
	}

	args, err := newResolver(c).ResolveArgs(ctx, fn, skip)
	return args, errors.Wrapf(err, "resolve args %s", fn)
}

// TrackForDisposal implements [Resolver].
func (c *Container) TrackForDisposal(val any) {
	if closer := getCloser(val); closer != nil {
		c.track(val, closer)
	}
}

func (c *Container) track(val any, closer Closer) {
	c.closersMu.Lock()
	defer c.closersMu.Unlock()

	// Only pointers have a stable identity we can use to avoid closing the same value twice.
	if val != nil && reflect.TypeOf(val).Kind() == reflect.Ptr {
		if c.tracked == nil {
			c.tracked = make(map[any]struct{})
		}
		if _, ok := c.tracked[val]; ok {
			return
		}
		c.tracked[val] = struct{}{}
	}

	c.closers = append(c.closers, closer)
}

// Close the [Container] and the services it created.
//
// Services are closed in the reverse order they were resolved/created.
// A decorator is closed before the service it decorates.
// Errors returned from closing services are joined together.
//
// Close will return an error if called more than once.
func (c *Container) Close(ctx context.Context) error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return errors.Wrap(ErrContainerClosed, "close: already closed")
	}
	c.closed = true

	c.closersMu.Lock()
	closers := c.closers
	c.closers = nil
	c.closersMu.Unlock()

	// Close services in LIFO order
	// This is important because of dependencies
	var errs errors.MultiError
	for i := len(closers) - 1; i >= 0; i-- {
		err := closers[i].Close(ctx)
		if err != nil {
			c.logger.Warn("error closing service", "error", err)
		}
		errs = errs.Append(err)
	}

	c.logger.Debug("container closed", "closers", len(closers))
	return errs.Wrap("close")
}

// service is a registration that belongs to a built Container.
//
// The pointer identity is used to cache resolved instances.
type service struct {
	Registration
	build Factory
}

// serviceTable is the frozen registration table shared by a root Container and its scopes.
type serviceTable struct {
	services []*service
	byType   map[reflect.Type][]*service
}

func newServiceTable(regs []Registration) *serviceTable {
	t := &serviceTable{
		services: make([]*service, len(regs)),
		byType:   make(map[reflect.Type][]*service),
	}

	for i, r := range regs {
		svc := &service{
			Registration: r,
			build:        r.construct(),
		}
		t.services[i] = svc
		t.byType[r.ServiceType] = append(t.byType[r.ServiceType], svc)
	}

	return t
}

func (t *serviceTable) contains(st reflect.Type) bool {
	return len(t.byType[st]) > 0
}

// lookup returns the last registered service for the type.
func (t *serviceTable) lookup(st reflect.Type) *service {
	svcs := t.byType[st]
	if len(svcs) == 0 {
		return nil
	}

	return svcs[len(svcs)-1]
}

func (t *serviceTable) all(st reflect.Type) []*service {
	return t.byType[st]
}

type resolveFuture struct {
	val  any
	err  error
	done chan struct{}
}

func newResolveFuture() *resolveFuture {
	return &resolveFuture{
		done: make(chan struct{}),
	}
}

func (f *resolveFuture) setResult(val any, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

func (f *resolveFuture) Result() (any, error) {
	<-f.done
	return f.val, f.err
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
