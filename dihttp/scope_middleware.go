package dihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sectrean/di-decorate"
	"github.com/sectrean/di-decorate/dicontext"
	"github.com/sectrean/di-decorate/internal/errors"
)

// NewRequestScopeMiddleware returns middleware that creates a new child scope of the
// [di.Container] for each request. The scope is closed after the request has been processed.
//
// The scope is stored on the request context and can be accessed using [dicontext.Scope],
// [dicontext.Resolve], or [dicontext.MustResolve]. The current [*http.Request] is also
// stored on the context and can be used by a [di.Factory] with [Request].
//
// Available options:
//   - [WithNewScopeErrorHandler] sets the error handler for when there is an error creating a new scope.
//   - [WithScopeCloseErrorHandler] sets the error handler for when there is an error closing the scope.
func NewRequestScopeMiddleware(
	parent *di.Container,
	opts ...RequestScopeOption,
) (func(http.Handler) http.Handler, error) {
	if parent == nil {
		return nil, errors.New("dihttp.NewRequestScopeMiddleware: parent is nil")
	}

	cfg := requestScopeConfig{
		newScopeHandler: defaultNewScopeErrorHandler,
		closeHandler:    defaultScopeCloseErrorHandler,
	}

	var errs errors.MultiError
	for _, opt := range opts {
		errs = errs.Append(opt.applyRequestScope(&cfg))
	}
	if err := errs.Wrap("dihttp.NewRequestScopeMiddleware"); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return &scopeMiddleware{
			parent:             parent,
			requestScopeConfig: cfg,
			next:               next,
		}
	}, nil
}

type requestContextKey struct{}

// Request returns the [*http.Request] stored on the context by the request scope middleware.
func Request(ctx context.Context) *http.Request {
	r, _ := ctx.Value(requestContextKey{}).(*http.Request)
	return r
}

// NewScopeErrorHandler is a function that writes an error response to the client.
// This is called by the scope middleware when there is an error creating the scope.
//
// The default handler logs the error to [slog.Default] and writes a 500 Internal Server Error response.
type NewScopeErrorHandler = func(w http.ResponseWriter, r *http.Request, err error)

func defaultNewScopeErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "error creating new HTTP request scope", "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// ScopeCloseErrorHandler is a function that handles errors when closing the scope
// after the request has completed.
//
// The default handler logs the error to [slog.Default].
type ScopeCloseErrorHandler = func(r *http.Request, err error)

func defaultScopeCloseErrorHandler(r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "error closing HTTP request scope", "error", err)
}

// RequestScopeOption is used to configure the middleware when calling [NewRequestScopeMiddleware].
type RequestScopeOption interface {
	applyRequestScope(*requestScopeConfig) error
}

type requestScopeOption func(*requestScopeConfig) error

func (o requestScopeOption) applyRequestScope(c *requestScopeConfig) error {
	return o(c)
}

// WithNewScopeErrorHandler sets the error handler for when there is an error creating a new scope.
func WithNewScopeErrorHandler(h NewScopeErrorHandler) RequestScopeOption {
	return requestScopeOption(func(c *requestScopeConfig) error {
		if h == nil {
			return errors.New("WithNewScopeErrorHandler: h is nil")
		}

		c.newScopeHandler = h
		return nil
	})
}

// WithScopeCloseErrorHandler sets the error handler for when there is an error closing the scope.
func WithScopeCloseErrorHandler(h ScopeCloseErrorHandler) RequestScopeOption {
	return requestScopeOption(func(c *requestScopeConfig) error {
		if h == nil {
			return errors.New("WithScopeCloseErrorHandler: h is nil")
		}

		c.closeHandler = h
		return nil
	})
}

type requestScopeConfig struct {
	newScopeHandler NewScopeErrorHandler
	closeHandler    ScopeCloseErrorHandler
}

type scopeMiddleware struct {
	requestScopeConfig
	parent *di.Container
	next   http.Handler
}

func (m *scopeMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope, err := m.parent.NewScope()
	if err != nil {
		m.newScopeHandler(w, r, err)
		return
	}

	ctx := context.WithValue(r.Context(), requestContextKey{}, r)
	ctx = dicontext.WithScope(ctx, scope)

	// Close the scope even if next panics.
	defer func() {
		if closeErr := scope.Close(ctx); closeErr != nil {
			m.closeHandler(r, closeErr)
		}
	}()

	m.next.ServeHTTP(w, r.WithContext(ctx))
}
