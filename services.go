package di

import (
	"iter"
	"reflect"

	"github.com/sectrean/di-decorate/internal/errors"
)

// Services is an ordered table of service registrations used to build a [Container].
//
// Multiple registrations may share the same service type. The order matters:
// resolving a slice of a service type returns every registration in order, and
// resolving a single service returns the last registration.
//
// Services is not safe for concurrent use. It is expected to be configured from a
// single goroutine before calling [Services.Build]. After Build, the table is frozen.
type Services struct {
	regs  []Registration
	built bool
}

// NewServices creates an empty [Services] table.
func NewServices() *Services {
	return &Services{}
}

// Len returns the number of registrations.
func (s *Services) Len() int {
	return len(s.regs)
}

// At returns the registration at index i.
func (s *Services) At(i int) Registration {
	return s.regs[i]
}

// All returns an iterator over the registrations and their indexes, in order.
func (s *Services) All() iter.Seq2[int, Registration] {
	return func(yield func(int, Registration) bool) {
		for i, r := range s.regs {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Descriptors returns the registrations for the given service type, in order.
func (s *Services) Descriptors(t reflect.Type) []Registration {
	var regs []Registration
	for _, r := range s.All() {
		if r.ServiceType == t {
			regs = append(regs, r)
		}
	}
	return regs
}

// Contains returns true if there is at least one registration for the given service type.
func (s *Services) Contains(t reflect.Type) bool {
	for _, r := range s.All() {
		if r.ServiceType == t {
			return true
		}
	}
	return false
}

// Add validates and appends a registration to the end of the table.
func (s *Services) Add(r Registration) error {
	if s.built {
		return errors.Wrapf(ErrServicesBuilt, "add %s", r)
	}

	if err := r.validate(); err != nil {
		return errors.Wrapf(err, "add %s", r)
	}

	s.regs = append(s.regs, r)
	return nil
}

// Append is an alias for [Services.Add].
func (s *Services) Append(r Registration) error {
	return s.Add(r)
}

// ReplaceAt validates a registration and replaces the registration at index i with it.
//
// The position of the registration in the table is preserved.
func (s *Services) ReplaceAt(i int, r Registration) error {
	if s.built {
		return errors.Wrapf(ErrServicesBuilt, "replace at %d", i)
	}

	if i < 0 || i >= len(s.regs) {
		return errors.Errorf("replace at %d: index out of range [0, %d)", i, len(s.regs))
	}

	if err := r.validate(); err != nil {
		return errors.Wrapf(err, "replace at %d", i)
	}

	s.regs[i] = r
	return nil
}

// Build creates a new root [Container] from the registrations.
//
// The Services table can not be modified after Build is called.
//
// Available options:
//   - [WithLogger] sets the logger used by the Container.
//   - [WithDependencyValidation] validates service dependencies.
func (s *Services) Build(opts ...ContainerOption) (*Container, error) {
	if s.built {
		return nil, errors.Wrap(ErrServicesBuilt, "build")
	}

	c := newContainer(s.regs)

	err := applyOptions(opts, func(o ContainerOption) error {
		return o.applyContainer(c)
	})
	if err != nil {
		return nil, errors.Wrap(err, "build")
	}

	s.built = true
	c.logger.Debug("container built", "services", len(s.regs))

	return c, nil
}
