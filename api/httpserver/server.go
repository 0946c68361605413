// Package httpserver exposes a byte queue over HTTP for producers and
// consumers that would rather speak REST than link the library.
//
//	POST   /queue        enqueue the request body, 202
//	DELETE /queue        dequeue, 200 + body or 204 when empty
//	HEAD   /queue        X-Queue-Len header
//	GET    /queue/stats  pointer snapshot as JSON
package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"

	"eventq/queue"
)

type Server struct {
	echo *echo.Echo
	q    *queue.Queue[[]byte]

	// guards the queue handle, which is not internally synchronized
	mu *sync.Mutex
}

// New builds the server over q. mu must be shared with every other user of
// the same queue handle (e.g. a shipper).
func New(q *queue.Queue[[]byte], mu *sync.Mutex) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, q: q, mu: mu}
	e.POST("/queue", s.handlePush)
	e.DELETE("/queue", s.handlePop)
	e.HEAD("/queue", s.handleHead)
	e.GET("/queue/stats", s.handleStats)
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func (s *Server) handlePush(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "failed to read body")
	}
	if len(body) == 0 {
		return c.String(http.StatusBadRequest, "empty body")
	}

	s.mu.Lock()
	err = s.q.PushBack(body)
	s.mu.Unlock()
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handlePop(c echo.Context) error {
	s.mu.Lock()
	payload, ok, err := s.q.PopFront()
	s.mu.Unlock()
	if err != nil {
		// Corruption and backend failures surface as 500s; an empty
		// queue is the only condition that maps to 204.
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, payload)
}

func (s *Server) handleHead(c echo.Context) error {
	s.mu.Lock()
	n := s.q.Len()
	s.mu.Unlock()
	c.Response().Header().Set("X-Queue-Len", strconv.FormatUint(n, 10))
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleStats(c echo.Context) error {
	s.mu.Lock()
	stats := s.q.Stats()
	s.mu.Unlock()
	return c.JSON(http.StatusOK, stats)
}
