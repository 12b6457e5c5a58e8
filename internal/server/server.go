package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/pipeline"
)

// Runner executes one evaluation. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Handler serves signal reports over HTTP.
type Handler struct {
	runner   Runner
	defaults pipeline.Request
	log      *logrus.Entry
}

func NewHandler(runner Runner, defaults pipeline.Request, logger *logrus.Logger) *Handler {
	return &Handler{runner: runner, defaults: defaults, log: logging.Component(logger, "http")}
}

// NewRouter wires the API routes. gatherer backs /metrics; nil uses the
// default registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	v1 := r.Group("/api/v1")
	v1.GET("/signals", h.GetSignals)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSignals evaluates ?timeframe=&days=|bars=&transitions= and returns the report.
func (h *Handler) GetSignals(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	report, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

func (h *Handler) parseRequest(c *gin.Context) (pipeline.Request, error) {
	req := h.defaults

	if v := c.Query("timeframe"); v != "" {
		tf, err := model.ParseTimeframe(v)
		if err != nil {
			return req, err
		}
		req.Timeframe = tf
	}

	days, bars := c.Query("days"), c.Query("bars")
	switch {
	case days != "" && bars != "":
		return req, errors.New("days and bars are mutually exclusive")
	case days != "":
		n, err := positiveInt("days", days)
		if err != nil {
			return req, err
		}
		req.Horizon = model.Days(n)
	case bars != "":
		n, err := positiveInt("bars", bars)
		if err != nil {
			return req, err
		}
		req.Horizon = model.Bars(n)
	}

	if v := c.Query("transitions"); v != "" {
		n, err := positiveInt("transitions", v)
		if err != nil {
			return req, err
		}
		req.Transitions = n
	}
	return req, nil
}

func positiveInt(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, v)
	}
	return n, nil
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// Server is the HTTP surface with graceful shutdown.
type Server struct {
	srv *http.Server
	log *logrus.Entry
}

func New(addr string, router http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logging.Component(logger, "http"),
	}
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}
