package di_test

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sectrean/di-decorate"
	"github.com/sectrean/di-decorate/internal/mocks"
	"github.com/sectrean/di-decorate/internal/testtypes"
	"github.com/sectrean/di-decorate/internal/testutils"
)

func Test_Decorate(t *testing.T) {
	t.Run("decorate type", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		assert.IsType(t, &testtypes.Decorated{}, decorator.Inner)
	})

	t.Run("multiple levels", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		outer, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		inner, ok := outer.Inner.(*testtypes.Decorator)
		require.True(t, ok, "got %T", outer.Inner)
		assert.IsType(t, &testtypes.Decorated{}, inner.Inner)
	})

	t.Run("different decorators", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewOtherDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		assert.Equal(t, &testtypes.OtherDecorator{
			Inner: &testtypes.Decorator{
				Inner: &testtypes.Decorated{},
			},
		}, got)
	})

	t.Run("many levels", func(t *testing.T) {
		const depth = 10

		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		for range depth {
			require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		}

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		for range depth {
			decorator, ok := got.(*testtypes.Decorator)
			require.True(t, ok, "got %T", got)
			got = decorator.Inner
		}
		assert.IsType(t, &testtypes.Decorated{}, got)
	})

	t.Run("multiple registrations", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, services.Register(testtypes.NewOtherDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.ResolveAll[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		assert.Equal(t, []testtypes.DecoratedService{
			&testtypes.Decorator{Inner: &testtypes.Decorated{}},
			&testtypes.Decorator{Inner: &testtypes.OtherDecorated{}},
		}, got)

		// Each registration gets its own decorator
		assert.NotSame(t, got[0], got[1])
	})

	t.Run("existing instance", func(t *testing.T) {
		existing := &testtypes.Decorated{}

		services := di.NewServices()
		require.NoError(t, services.Register(existing, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		assert.Same(t, existing, decorator.Inner)
	})

	t.Run("factory registration", func(t *testing.T) {
		decorated := &testtypes.Decorated{}

		services := di.NewServices()
		err := di.RegisterFactory(services, func(context.Context, di.Resolver) (testtypes.DecoratedService, error) {
			return decorated, nil
		})
		require.NoError(t, err)
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		assert.Same(t, decorated, decorator.Inner)
	})

	t.Run("inject into decorated type", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService))
		require.NoError(t, services.Register(testtypes.NewDecoratedWithService, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		svc, err := di.Resolve[testtypes.Service](ctx, c)
		require.NoError(t, err)

		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		decorated, ok := decorator.Inner.(*testtypes.Decorated)
		require.True(t, ok, "got %T", decorator.Inner)
		assert.Same(t, svc, decorated.Injected)
	})

	t.Run("inject into decorating type", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService))
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecoratorWithService))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		svc, err := di.Resolve[testtypes.Service](ctx, c)
		require.NoError(t, err)

		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		assert.Same(t, svc, decorator.Injected)
	})

	t.Run("shared singleton dependency", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService))
		require.NoError(t, services.Register(testtypes.NewDecoratedWithService,
			di.As[testtypes.DecoratedService](),
			di.Transient,
		))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecoratorWithService))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		decorated, ok := decorator.Inner.(*testtypes.Decorated)
		require.True(t, ok, "got %T", decorator.Inner)

		assert.NotNil(t, decorator.Injected)
		assert.Same(t, decorator.Injected, decorated.Injected)
	})

	t.Run("optional dependency", func(t *testing.T) {
		newDecorator := func(inner testtypes.DecoratedService, s di.Optional[testtypes.Service]) *testtypes.Decorator {
			svc, _ := s.Get()
			return testtypes.NewDecoratorWithService(inner, svc)
		}

		t.Run("not registered", func(t *testing.T) {
			services := di.NewServices()
			require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
			require.NoError(t, di.Decorate[testtypes.DecoratedService](services, newDecorator))

			c, err := services.Build()
			require.NoError(t, err)

			ctx := context.Background()
			got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
			require.NoError(t, err)

			assert.Equal(t, &testtypes.Decorator{Inner: &testtypes.Decorated{}}, got)
		})

		t.Run("registered", func(t *testing.T) {
			services := di.NewServices()
			require.NoError(t, services.Register(testtypes.NewService))
			require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
			require.NoError(t, di.Decorate[testtypes.DecoratedService](services, newDecorator))

			c, err := services.Build()
			require.NoError(t, err)

			ctx := context.Background()
			got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
			require.NoError(t, err)

			decorator, ok := got.(*testtypes.Decorator)
			require.True(t, ok, "got %T", got)
			assert.NotNil(t, decorator.Injected)
		})
	})

	t.Run("inner parameter not first", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService))
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))

		err := di.Decorate[testtypes.DecoratedService](services,
			func(ctx context.Context, s testtypes.Service, inner testtypes.DecoratedService) *testtypes.Decorator {
				assert.NotNil(t, ctx)
				return testtypes.NewDecoratorWithService(inner, s)
			},
		)
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.Decorator)
		require.True(t, ok, "got %T", got)
		assert.IsType(t, &testtypes.Decorated{}, decorator.Inner)
		assert.NotNil(t, decorator.Injected)
	})

	t.Run("concrete type", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService, di.Transient))
		require.NoError(t, services.Register(testtypes.NewConcrete, di.Transient))
		require.NoError(t, di.Decorate[*testtypes.Concrete](services, testtypes.DecorateConcrete))

		// The decorator type is the service type, so there is nothing else to register
		assert.Equal(t, 2, services.Len())

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[*testtypes.Concrete](ctx, c)
		require.NoError(t, err)

		require.NotNil(t, got.Inner)
		assert.Nil(t, got.Dependency)
		assert.NotNil(t, got.Inner.Dependency)
	})

	t.Run("decorator returns service type", func(t *testing.T) {
		calls := 0

		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		err := di.Decorate[testtypes.DecoratedService](services,
			func(inner testtypes.DecoratedService) testtypes.DecoratedService {
				calls++
				return inner
			},
		)
		require.NoError(t, err)
		assert.Equal(t, 1, services.Len())

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		assert.IsType(t, &testtypes.Decorated{}, got)
		assert.Equal(t, 1, calls)
	})

	t.Run("resolve decorator type", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[*testtypes.Decorator](ctx, c)
		require.NoError(t, err)

		svc, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		require.NoError(t, err)

		// The decorator is a singleton, so this is the same instance
		assert.Same(t, svc, got)
	})

	t.Run("resolve decorator type after another decorator", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewOtherDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[*testtypes.Decorator](ctx, c)
		testutils.LogError(t, err)

		assert.Nil(t, got)
		assert.EqualError(t, err,
			"resolve *testtypes.Decorator: testtypes.DecoratedService is decorated by *testtypes.OtherDecorator")
	})

	t.Run("decorator error", func(t *testing.T) {
		errDecorator := stderrors.New("decorator error")

		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		err := di.Decorate[testtypes.DecoratedService](services,
			func(testtypes.DecoratedService) (*testtypes.Decorator, error) {
				return nil, errDecorator
			},
		)
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		testutils.LogError(t, err)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, errDecorator)
		assert.EqualError(t, err, "resolve testtypes.DecoratedService: decorator error")
	})

	t.Run("original constructor error", func(t *testing.T) {
		errConstructor := stderrors.New("constructor error")

		services := di.NewServices()
		err := services.Register(func() (testtypes.DecoratedService, error) {
			return nil, errConstructor
		})
		require.NoError(t, err)
		err = di.Decorate[testtypes.DecoratedService](services,
			func(testtypes.DecoratedService) *testtypes.Decorator {
				assert.Fail(t, "decorator should not be called")
				return nil
			},
		)
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		testutils.LogError(t, err)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, errConstructor)
		assert.EqualError(t, err, "resolve testtypes.DecoratedService: constructor error")
	})

	t.Run("decorator dependency not registered", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecoratorWithService))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DecoratedService](ctx, c)
		testutils.LogError(t, err)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, di.ErrServiceNotRegistered)
		assert.EqualError(t, err,
			"resolve testtypes.DecoratedService: dependency testtypes.Service: service not registered")
	})

	t.Run("no registration", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewService))

		err := di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator)
		testutils.LogError(t, err)

		var configErr *di.ConfigurationError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, "decorate", configErr.Op)
		assert.Equal(t, testtypes.TypeDecoratedService, configErr.Type)
		assert.ErrorIs(t, err, di.ErrNoRegistration)
		assert.EqualError(t, err,
			"decorate testtypes.DecoratedService: cannot decorate a type that has no registration")

		// The table is not modified
		assert.Equal(t, 1, services.Len())
		assert.Equal(t, testtypes.TypeService, services.At(0).ServiceType)
		assert.Equal(t, di.ConstructorKind, services.At(0).Kind())
	})

	t.Run("after build", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))

		_, err := services.Build()
		require.NoError(t, err)

		err = di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator)
		testutils.LogError(t, err)

		assert.ErrorIs(t, err, di.ErrServicesBuilt)
		assert.EqualError(t, err, "decorate testtypes.DecoratedService: services already built")
	})

	t.Run("singleton is created once", func(t *testing.T) {
		var innerCalls, decoratorCalls atomic.Int32

		services := di.NewServices()
		err := services.Register(func() testtypes.DecoratedService {
			innerCalls.Add(1)
			return &testtypes.Decorated{}
		})
		require.NoError(t, err)
		err = di.Decorate[testtypes.DecoratedService](services, func(inner testtypes.DecoratedService) *testtypes.Decorator {
			decoratorCalls.Add(1)
			return testtypes.NewDecorator(inner)
		})
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		results := make([]testtypes.DecoratedService, 100)
		testutils.RunParallel(len(results), func(i int) {
			results[i] = di.MustResolve[testtypes.DecoratedService](ctx, c)
		})

		for _, got := range results {
			assert.Same(t, results[0], got)
		}
		assert.Equal(t, int32(1), innerCalls.Load())
		assert.Equal(t, int32(1), decoratorCalls.Load())
	})
}

func Test_Decorate_Registrations(t *testing.T) {
	t.Run("replaces registration", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		descriptors := services.Descriptors(testtypes.TypeDecoratedService)
		require.Len(t, descriptors, 1)
		assert.Equal(t, testtypes.TypeDecoratedService, descriptors[0].ServiceType)
		assert.Equal(t, di.FactoryKind, descriptors[0].Kind())
		assert.NotNil(t, descriptors[0].Factory)
	})

	t.Run("preserves position and lifetime", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService](), di.Scoped))
		require.NoError(t, services.Register(testtypes.NewService))
		require.NoError(t, services.Register(testtypes.NewOtherDecorated, di.As[testtypes.DecoratedService](), di.Transient))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		require.Equal(t, 4, services.Len())

		assert.Equal(t, testtypes.TypeDecoratedService, services.At(0).ServiceType)
		assert.Equal(t, di.Scoped, services.At(0).Lifetime)
		assert.Equal(t, di.FactoryKind, services.At(0).Kind())

		// Other services are untouched
		assert.Equal(t, testtypes.TypeService, services.At(1).ServiceType)
		assert.Equal(t, di.ConstructorKind, services.At(1).Kind())

		assert.Equal(t, testtypes.TypeDecoratedService, services.At(2).ServiceType)
		assert.Equal(t, di.Transient, services.At(2).Lifetime)
		assert.Equal(t, di.FactoryKind, services.At(2).Kind())

		// The decorator type is appended
		assert.Equal(t, testtypes.TypeDecoratorPtr, services.At(3).ServiceType)
		assert.Equal(t, di.Transient, services.At(3).Lifetime)
	})

	t.Run("one alias per layer", func(t *testing.T) {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, services.Register(testtypes.NewOtherDecorated, di.As[testtypes.DecoratedService]()))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))

		assert.Len(t, services.Descriptors(testtypes.TypeDecoratedService), 2)
		assert.Len(t, services.Descriptors(testtypes.TypeDecoratorPtr), 2)
		assert.Equal(t, 4, services.Len())
	})

	t.Run("invalid decorator", func(t *testing.T) {
		tests := []struct {
			name      string
			decorator any
			want      string
		}{
			{
				name:      "nil",
				decorator: nil,
				want:      "decorate testtypes.DecoratedService: decorator is nil",
			},
			{
				name:      "not a function",
				decorator: 1234,
				want:      "decorate testtypes.DecoratedService: decorator int: expected function",
			},
			{
				name:      "option",
				decorator: di.Scoped,
				want:      "decorate testtypes.DecoratedService: unexpected RegisterOption di.Lifetime as decorator",
			},
			{
				name:      "no return value",
				decorator: func(testtypes.DecoratedService) {},
				want: "decorate testtypes.DecoratedService: decorator func(testtypes.DecoratedService): " +
					"function must return Service or (Service, error)",
			},
			{
				name:      "not assignable",
				decorator: func(testtypes.DecoratedService) *testtypes.StructA { return nil },
				want: "decorate testtypes.DecoratedService: decorator func(testtypes.DecoratedService) *testtypes.StructA: " +
					"type *testtypes.StructA not assignable to testtypes.DecoratedService",
			},
			{
				name:      "no inner parameter",
				decorator: func(testtypes.Service) *testtypes.Decorator { return nil },
				want: "decorate testtypes.DecoratedService: decorator func(testtypes.Service) *testtypes.Decorator: " +
					"function must have a parameter that accepts testtypes.DecoratedService",
			},
			{
				name:      "ambiguous inner parameter",
				decorator: func(testtypes.DecoratedService, testtypes.DecoratedService) *testtypes.Decorator { return nil },
				want: "decorate testtypes.DecoratedService: " +
					"decorator func(testtypes.DecoratedService, testtypes.DecoratedService) *testtypes.Decorator: " +
					"2 parameters of type testtypes.DecoratedService",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				services := di.NewServices()
				require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService]()))

				err := services.Decorate(testtypes.TypeDecoratedService, tt.decorator)
				testutils.LogError(t, err)

				var configErr *di.ConfigurationError
				assert.ErrorAs(t, err, &configErr)
				assert.EqualError(t, err, tt.want)

				// The table is not modified
				assert.Equal(t, 1, services.Len())
				assert.Equal(t, di.ConstructorKind, services.At(0).Kind())
			})
		}
	})
}

func Test_Decorate_Lifetime(t *testing.T) {
	newServices := func(t *testing.T, lifetime di.Lifetime) *di.Services {
		services := di.NewServices()
		require.NoError(t, services.Register(testtypes.NewDecorated, di.As[testtypes.DecoratedService](), lifetime))
		require.NoError(t, di.Decorate[testtypes.DecoratedService](services, testtypes.NewDecorator))
		return services
	}

	t.Run("singleton", func(t *testing.T) {
		c, err := newServices(t, di.Singleton).Build()
		require.NoError(t, err)

		scope, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got1 := di.MustResolve[testtypes.DecoratedService](ctx, c)
		got2 := di.MustResolve[testtypes.DecoratedService](ctx, scope)

		assert.Same(t, got1, got2)
	})

	t.Run("scoped", func(t *testing.T) {
		c, err := newServices(t, di.Scoped).Build()
		require.NoError(t, err)

		scope1, err := c.NewScope()
		require.NoError(t, err)
		scope2, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got1 := di.MustResolve[testtypes.DecoratedService](ctx, scope1)
		got1Again := di.MustResolve[testtypes.DecoratedService](ctx, scope1)
		got2 := di.MustResolve[testtypes.DecoratedService](ctx, scope2)

		assert.Same(t, got1, got1Again)
		assert.NotSame(t, got1, got2)
		assert.NotSame(t, got1.(*testtypes.Decorator).Inner, got2.(*testtypes.Decorator).Inner)
	})

	t.Run("scoped from root", func(t *testing.T) {
		c, err := newServices(t, di.Scoped).Build()
		require.NoError(t, err)

		ctx := context.Background()
		_, err = di.Resolve[testtypes.DecoratedService](ctx, c)
		testutils.LogError(t, err)

		assert.EqualError(t, err,
			"resolve testtypes.DecoratedService: scoped service testtypes.DecoratedService must be resolved from a child scope")
	})

	t.Run("transient", func(t *testing.T) {
		c, err := newServices(t, di.Transient).Build()
		require.NoError(t, err)

		ctx := context.Background()
		got1 := di.MustResolve[testtypes.DecoratedService](ctx, c)
		got2 := di.MustResolve[testtypes.DecoratedService](ctx, c)

		assert.NotSame(t, got1, got2)
		assert.NotSame(t, got1.(*testtypes.Decorator).Inner, got2.(*testtypes.Decorator).Inner)
	})
}

func Test_Decorate_Close(t *testing.T) {
	newServices := func(t *testing.T, lifetime di.Lifetime) (*di.Services, *testtypes.CloseLog) {
		log := &testtypes.CloseLog{}

		services := di.NewServices()
		require.NoError(t, services.Register(log))
		err := services.Register(
			func(log *testtypes.CloseLog) *testtypes.Disposable {
				return &testtypes.Disposable{Log: log}
			},
			di.As[testtypes.DisposableService](),
			lifetime,
		)
		require.NoError(t, err)
		require.NoError(t, di.Decorate[testtypes.DisposableService](services, testtypes.NewDisposableDecorator))

		return services, log
	}

	t.Run("scoped", func(t *testing.T) {
		services, log := newServices(t, di.Scoped)
		c, err := services.Build()
		require.NoError(t, err)

		scope, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DisposableService](ctx, scope)
		require.NoError(t, err)

		decorator, ok := got.(*testtypes.DisposableDecorator)
		require.True(t, ok, "got %T", got)
		assert.False(t, decorator.Closed())
		assert.False(t, decorator.Inner.Closed())

		err = scope.Close(ctx)
		require.NoError(t, err)

		assert.True(t, decorator.Closed())
		assert.True(t, decorator.Inner.Closed())
		assert.Equal(t, []string{"decorator", "disposable"}, log.Names())
	})

	t.Run("singleton", func(t *testing.T) {
		services, log := newServices(t, di.Singleton)
		c, err := services.Build()
		require.NoError(t, err)

		scope, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DisposableService](ctx, scope)
		require.NoError(t, err)

		// Singletons belong to the root container
		err = scope.Close(ctx)
		require.NoError(t, err)
		assert.False(t, got.Closed())

		err = c.Close(ctx)
		require.NoError(t, err)

		assert.True(t, got.Closed())
		assert.True(t, got.(*testtypes.DisposableDecorator).Inner.Closed())
		assert.Equal(t, []string{"decorator", "disposable"}, log.Names())
	})

	t.Run("transient", func(t *testing.T) {
		services, log := newServices(t, di.Transient)
		c, err := services.Build()
		require.NoError(t, err)

		scope, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DisposableService](ctx, scope)
		require.NoError(t, err)

		require.NoError(t, scope.Close(ctx))
		require.NoError(t, c.Close(ctx))

		assert.False(t, got.Closed())
		assert.False(t, got.(*testtypes.DisposableDecorator).Inner.Closed())
		assert.Empty(t, log.Names())
	})

	t.Run("multiple levels", func(t *testing.T) {
		services, log := newServices(t, di.Scoped)
		require.NoError(t, di.Decorate[testtypes.DisposableService](services, testtypes.NewDisposableDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		scope, err := c.NewScope()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DisposableService](ctx, scope)
		require.NoError(t, err)

		require.NoError(t, scope.Close(ctx))

		outer := got.(*testtypes.DisposableDecorator)
		inner := outer.Inner.(*testtypes.DisposableDecorator)
		assert.True(t, outer.Closed())
		assert.True(t, inner.Closed())
		assert.True(t, inner.Inner.Closed())
		// Only the innermost decorator shares the log
		assert.Equal(t, []string{"decorator", "disposable"}, log.Names())
	})

	t.Run("decorator returns inner", func(t *testing.T) {
		closer := mocks.NewCloserMock(t)
		closer.On("Close", mock.Anything).Return(nil).Once()

		services := di.NewServices()
		require.NoError(t, services.Register(func() di.Closer { return closer }))
		err := di.Decorate[di.Closer](services, func(inner di.Closer) di.Closer {
			return inner
		})
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		_, err = di.Resolve[di.Closer](ctx, c)
		require.NoError(t, err)

		// Closed once even though it was tracked as the decorator and the original
		require.NoError(t, c.Close(ctx))
	})

	t.Run("instance with close not resolved", func(t *testing.T) {
		log := &testtypes.CloseLog{}
		disposable := &testtypes.Disposable{Log: log}

		services := di.NewServices()
		require.NoError(t, services.Register(disposable, di.As[testtypes.DisposableService](), di.WithClose()))
		require.NoError(t, di.Decorate[testtypes.DisposableService](services, testtypes.NewDisposableDecorator))
		require.NoError(t, di.Decorate[testtypes.DisposableService](services, testtypes.NewDisposableDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		require.NoError(t, c.Close(context.Background()))

		assert.True(t, disposable.Closed())
		assert.Equal(t, []string{"disposable"}, log.Names())
	})

	t.Run("instance with close resolved", func(t *testing.T) {
		log := &testtypes.CloseLog{}
		disposable := &testtypes.Disposable{Log: log}

		services := di.NewServices()
		require.NoError(t, services.Register(disposable, di.As[testtypes.DisposableService](), di.WithClose()))
		require.NoError(t, di.Decorate[testtypes.DisposableService](services, testtypes.NewDisposableDecorator))

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[testtypes.DisposableService](ctx, c)
		require.NoError(t, err)

		// Closed once, after the decorator
		require.NoError(t, c.Close(ctx))
		assert.True(t, got.Closed())
		assert.Equal(t, []string{"decorator", "disposable"}, log.Names())
	})

	t.Run("original ignores close", func(t *testing.T) {
		closer := mocks.NewCloserMock(t)

		services := di.NewServices()
		require.NoError(t, services.Register(func() di.Closer { return closer }, di.IgnoreClose()))
		err := di.Decorate[di.Closer](services, func(di.Closer) *testtypes.Disposable {
			return &testtypes.Disposable{}
		})
		require.NoError(t, err)

		c, err := services.Build()
		require.NoError(t, err)

		ctx := context.Background()
		got, err := di.Resolve[di.Closer](ctx, c)
		require.NoError(t, err)

		// The mock has no expectations, so it fails the test if it is closed
		require.NoError(t, c.Close(ctx))
		assert.True(t, got.(*testtypes.Disposable).Closed())
	})
}
