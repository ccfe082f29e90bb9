package di

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/sectrean/di-decorate/internal/errors"
)

// ContainerOption is used to configure a new [Container] when calling [Services.Build].
type ContainerOption interface {
	applyContainer(*Container) error
}

type containerOption func(*Container) error

func (o containerOption) applyContainer(c *Container) error {
	return o(c)
}

// WithLogger sets the logger used by the [Container] and its scopes.
//
// By default, nothing is logged.
func WithLogger(logger *slog.Logger) ContainerOption {
	return containerOption(func(c *Container) error {
		if logger == nil {
			return errors.New("with logger: logger is nil")
		}

		c.logger = logger
		return nil
	})
}

// WithDependencyValidation validates registered services on [Container] creation.
//
// This will check that all dependencies are registered and that there are no dependency cycles.
// It will return an error with details if any issues are found.
//
// Dependencies of services registered with a [Factory] can not be validated.
func WithDependencyValidation() ContainerOption {
	return containerOption(func(c *Container) error {
		return errors.Wrap(c.validateDependencies(), "with dependency validation")
	})
}

func (c *Container) validateDependencies() error {
	var errs errors.MultiError
	svcProblems := make(map[*service]string)

	for _, svc := range c.table.services {
		prob := c.validateService(svc, svcProblems, make(resolveVisitor))
		if prob != "" {
			errs = errs.Append(errors.Errorf("service %s: %s", svc, prob))
		}
	}

	return errs.Join()
}

func (c *Container) validateService(svc *service, svcProblems map[*service]string, visitor resolveVisitor) string {
	if prob, ok := svcProblems[svc]; ok {
		return prob
	}

	deps := svc.dependencies()
	if len(deps) == 0 {
		svcProblems[svc] = ""
		return ""
	}

	if !visitor.Enter(svc) {
		return ErrDependencyCycle.Error()
	}
	defer visitor.Leave(svc)

	var problems []string
	for _, dep := range deps {
		t := dep.Type
		if t.Kind() == reflect.Slice {
			// Check that the element type is registered
			t = t.Elem()
		}

		svcs := c.table.all(t)
		if len(svcs) == 0 {
			if !dep.Optional {
				problems = append(problems, fmt.Sprintf("dependency %s: %s", dep.Type, ErrServiceNotRegistered))
			}
			continue
		}

		if dep.Type.Kind() != reflect.Slice {
			// Only the last registration is resolved
			svcs = svcs[len(svcs)-1:]
		}

		for _, depSvc := range svcs {
			prob := c.validateService(depSvc, svcProblems, visitor)
			if prob != "" {
				problems = append(problems, fmt.Sprintf("dependency %s: %s", dep.Type, prob))
				break
			}
		}
	}

	if len(problems) > 0 {
		probs := strings.Join(problems, "; ")
		svcProblems[svc] = probs
		return probs
	}

	svcProblems[svc] = ""
	return ""
}
