// Package monitor exposes live training progress over HTTP while an arena
// run is in flight.
package monitor

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

type GroupStats struct {
	Episodes  int     `json:"episodes"`
	Loss      float64 `json:"loss"`
	MeanValue float64 `json:"mean_value"`
}

// Stats aggregates per-group progress. Group runners update it from their
// own goroutines, so access is locked; the protocol itself stays lock-free.
type Stats struct {
	lock   sync.Mutex
	groups map[string]GroupStats
}

func NewStats() *Stats {
	return &Stats{groups: make(map[string]GroupStats)}
}

func (s *Stats) Update(name string, episodes int, loss, meanValue float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.groups[name] = GroupStats{Episodes: episodes, Loss: loss, MeanValue: meanValue}
}

func (s *Stats) snapshot() map[string]GroupStats {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]GroupStats, len(s.groups))
	for k, v := range s.groups {
		out[k] = v
	}
	return out
}

// Server serves the stats endpoint.
type Server struct {
	server *http.Server
}

func NewServer(addr string, stats *Stats) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.snapshot())
	})
	return &Server{
		server: &http.Server{Addr: addr, Handler: r},
	}
}

// Start serves in the background. Errors other than a clean shutdown are
// reported on the returned channel.
func (s *Server) Start() <-chan error {
	errs := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()
	return errs
}

func (s *Server) Stop() error {
	return s.server.Close()
}
