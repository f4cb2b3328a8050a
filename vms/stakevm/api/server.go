// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the staking VM's handlers over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/luxfi/log"
)

const baseURL = "/ext"

// HTTPConfig bounds the server's connection handling.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout"`
}

var DefaultHTTPConfig = HTTPConfig{
	ReadTimeout:       30 * time.Second,
	ReadHeaderTimeout: 30 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       120 * time.Second,
	ShutdownTimeout:   10 * time.Second,
}

// Server maintains the HTTP router
type Server struct {
	log    log.Logger
	config HTTPConfig
	srv    *http.Server
}

// NewHandler routes each endpoint of handlers under /ext/<base>, behind the
// bearer token middleware and CORS.
func NewHandler(
	base string,
	handlers map[string]http.Handler,
	auth *Auth,
	allowedOrigins []string,
) http.Handler {
	router := mux.NewRouter()
	for endpoint, handler := range handlers {
		router.Handle(path.Join(baseURL, base, endpoint), auth.Middleware(handler))
	}
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}).Handler(router)
}

func NewServer(logger log.Logger, handler http.Handler, config HTTPConfig) *Server {
	return &Server{
		log:    logger,
		config: config,
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
	}
}

// Dispatch serves on listener until ctx is done.
func (s *Server) Dispatch(ctx context.Context, listener net.Listener) error {
	errs := make(chan error, 1)
	go func() {
		s.log.Info("API server listening",
			log.String("address", listener.Addr().String()),
		)
		errs <- s.srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
