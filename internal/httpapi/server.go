// Package httpapi is the gin HTTP surface of the AutoRig service.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/internal/metrics"
)

// VersionInfo is reported by GET /version
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Options configure the router
type Options struct {
	Mode           string
	MaxUploadBytes int64
	RateRPS        float64
	RateBurst      int
	Version        VersionInfo
	Logger         *zap.Logger
	Metrics        *metrics.Manager
}

// Server holds the router and its dependencies
type Server struct {
	engine  *autorig.Engine
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Manager
	router  *gin.Engine
}

// New builds the router for engine
func New(engine *autorig.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewManager()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.RateRPS <= 0 {
		opts.RateRPS = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	s := &Server{
		engine:  engine,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(s.logger))
	r.Use(CORS())
	r.Use(Metrics(s.metrics))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "AutoRig Backend API Running"})
	})
	r.GET("/healthz", s.health)
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.opts.Version)
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	r.POST("/process-image", RateLimit(opts.RateRPS, opts.RateBurst, s.logger), s.processImage)

	s.router = r
	return s
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        s.opts.Version.Version,
		"live_detection": s.engine.LiveDetection(),
	})
}
