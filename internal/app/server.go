package app

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewServer wraps the API in an http.Server. Request contexts derive from a
// base context that Shutdown cancels, so open event streams return instead
// of holding the drain until its deadline. Sessions are unmounted at the
// same time.
func NewServer(addr string, service *Service, corsOrigin string) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPServer(service, corsOrigin).Handler(),
		BaseContext:       func(net.Listener) context.Context { return base },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: /api/stream responses stay open.
		IdleTimeout: 60 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		cancel()
		service.Shutdown()
	})
	return server
}
