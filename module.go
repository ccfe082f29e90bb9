package di

import (
	"github.com/sectrean/di-decorate/internal/errors"
)

// A Module is a re-usable group of related registrations.
//
// Entries are applied in order, so a decorator entry must come after the registrations it decorates.
//
// Example:
//
//	var StoreModule = di.Module{
//		di.Provide(NewDB),
//		di.Provide(NewPostgresStore, di.As[Store](), di.Scoped),
//		di.DecorateWith[Store](NewCachingStore),
//	}
type Module []ModuleEntry

// ModuleEntry adds registrations to a [Services] table.
type ModuleEntry func(s *Services) error

// Provide returns a [ModuleEntry] that calls [Services.Register].
func Provide(funcOrValue any, opts ...RegisterOption) ModuleEntry {
	return func(s *Services) error {
		return s.Register(funcOrValue, opts...)
	}
}

// DecorateWith returns a [ModuleEntry] that calls [Decorate].
func DecorateWith[Service any](decorator any) ModuleEntry {
	return func(s *Services) error {
		return Decorate[Service](s, decorator)
	}
}

// Include returns a [ModuleEntry] that applies another [Module].
func Include(m Module) ModuleEntry {
	return func(s *Services) error {
		return s.addModule(m)
	}
}

// AddModules applies the entries of each [Module] in order.
//
// It stops at the first error. Entries applied before the error are kept.
func (s *Services) AddModules(modules ...Module) error {
	for _, m := range modules {
		if err := s.addModule(m); err != nil {
			return errors.Wrap(err, "add modules")
		}
	}

	return nil
}

func (s *Services) addModule(m Module) error {
	for i, entry := range m {
		if entry == nil {
			return errors.Errorf("module entry %d is nil", i)
		}
		if err := entry(s); err != nil {
			return err
		}
	}

	return nil
}
