// Package statusserver serves the state of a running cluster over HTTP.
package statusserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bento/internal/orchestrator"
	"bento/pkg/logging"
)

// SnapshotFunc returns the current cluster view.
type SnapshotFunc func() orchestrator.Snapshot

// Server is the optional status endpoint.
type Server struct {
	router   *gin.Engine
	srv      *http.Server
	listener net.Listener
}

// NewRouter builds the routes: GET /api/v1/status and, when metrics is not
// nil, GET /metrics.
func NewRouter(snapshot SnapshotFunc, metrics http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshot())
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}

// Start listens on addr and serves in the background.
func Start(addr string, snapshot SnapshotFunc, metrics http.Handler) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   NewRouter(snapshot, metrics),
		listener: l,
	}
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("StatusServer", err, "Status server stopped")
		}
	}()
	logging.Info("StatusServer", "Serving cluster status on http://%s/api/v1/status", l.Addr())
	return s, nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
