/*
Package dihttp provides HTTP middleware for creating [di.Container] scopes for each request.

Example:

	package main

	import (
		"log"
		"net/http"

		"github.com/sectrean/di-decorate"
		"github.com/sectrean/di-decorate/dicontext"
		"github.com/sectrean/di-decorate/dihttp"
	)

	func main() {
		services := di.NewServices()
		_ = services.Register(NewStore, di.As[Store](), di.Scoped)
		_ = di.Decorate[Store](services, NewLoggingStore)

		c, err := services.Build()
		if err != nil {
			log.Fatal(err)
		}

		// Create a new scope middleware
		scopeMiddleware, err := dihttp.NewRequestScopeMiddleware(c)
		if err != nil {
			log.Fatal(err)
		}

		// Create a handler function
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := dicontext.MustResolve[Store](r.Context())
			store.HandleRequest(w, r)
		})

		// Wrap the handler with the scope middleware
		http.Handle("/", scopeMiddleware(handler))
		log.Fatal(http.ListenAndServe(":8080", nil))
	}
*/
package dihttp
