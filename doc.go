/*
Package di is a dependency injection container with support for decorating registered services.

Services are registered with an ordered [Services] table. A decorator can then replace every
registration of a service type with one that wraps the original service:

	services := di.NewServices()

	err := services.Register(NewPostgresStore, di.As[Store](), di.Scoped)
	// NewCachingStore(inner Store, cache *Cache) *CachingStore
	err = di.Decorate[Store](services, NewCachingStore)

	c, err := services.Build()

	scope, err := c.NewScope()
	defer scope.Close(ctx)

	// store is a *CachingStore wrapping a *PostgresStore
	store, err := di.Resolve[Store](ctx, scope)

Decoration keeps the lifetime and position of each registration. Decorating a service type
with several registrations wraps each one, and decorating more than once adds layers.
*/
package di
