// Package server exposes a [filetree.TreeOperator] over HTTP
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/gorilla/mux"
)

// NewRouter builds the route table. Everything below /api requires a
// bearer token resolved by auth and, when configured, is rate limited per user.
func NewRouter(cfg *config.Config, ops filetree.TreeOperator, auth filetree.Authenticator) *mux.Router {
	h := &handlers{ops: ops, maxBodyBytes: cfg.MaxBodyBytes}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.Use(requestID, accessLog)

	r.HandleFunc("/health", health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authenticate(auth))
	if cfg.RateLimit > 0 {
		api.Use(newUserLimiter(cfg.RateLimit, cfg.RateBurst).middleware())
	}
	api.HandleFunc("/getCurrentUser", h.getCurrentUser).Methods(http.MethodGet)
	api.HandleFunc("/createFolder", h.createFolder()).Methods(http.MethodPost)
	api.HandleFunc("/createFile", h.createFile()).Methods(http.MethodPost)
	api.HandleFunc("/deleteFile", h.deleteFile()).Methods(http.MethodPost)
	api.HandleFunc("/deleteFolder", h.deleteFolder()).Methods(http.MethodPost)

	return r
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Server owns the http.Server serving the tree
type Server struct {
	cfg    *config.Config
	server *http.Server
}

// New creates a Server given your config and collaborators.
func New(cfg *config.Config, ops filetree.TreeOperator, auth filetree.Authenticator) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      NewRouter(cfg, ops, auth),
			ReadTimeout:  seconds(cfg.ReadTimeout),
			WriteTimeout: seconds(cfg.WriteTimeout),
			ErrorLog:     util.NewLogLogger("HTTPServer", util.ErrorLevel),
		},
	}
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	logger := util.GetLogger("Server")
	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeAsync listens on the configured address and serves in the background.
// Listen errors are returned directly; serve errors arrive on the channel.
func (s *Server) ServeAsync() (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, nil, err
	}
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(ln)
		close(done)
	}()

	return ln.Addr(), done, nil
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded by
// the configured shutdown timeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, seconds(s.cfg.ShutdownTimeout))
	defer cancel()
	return s.server.Shutdown(ctx)
}
