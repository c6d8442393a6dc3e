// Package httpapi serves subscription feeds and the sync control endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/models"
	"xui-sub-sync/internal/reconcile"
)

// FeedSource builds the feed behind a subscription token
type FeedSource interface {
	FeedForToken(ctx context.Context, token string) (models.Feed, error)
}

// SyncControl exposes the reconciliation scheduler
type SyncControl interface {
	Trigger() bool
	Status() reconcile.Status
}

// QRGenerator renders text as a PNG QR code
type QRGenerator interface {
	GenerateQR(text string) ([]byte, error)
}

// Options configures the router
type Options struct {
	SubscriptionName    string
	PublicURL           string
	UpdateIntervalHours int
	Metrics             http.Handler
}

// Server holds the handlers' dependencies
type Server struct {
	feeds  FeedSource
	sync   SyncControl
	qr     QRGenerator
	opts   Options
	logger *logrus.Logger
}

// NewServer creates a new HTTP server. A nil sync control disables the sync endpoints.
func NewServer(feeds FeedSource, sync SyncControl, qr QRGenerator, opts Options, logger *logrus.Logger) *Server {
	return &Server{
		feeds:  feeds,
		sync:   sync,
		qr:     qr,
		opts:   opts,
		logger: logger,
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/sub/:token", s.handleFeed)
	r.GET("/sub/:token/qr", s.handleQR)
	r.POST("/sync", s.handleTrigger)
	r.GET("/sync/status", s.handleStatus)

	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	return r
}

// requestLogger logs every request through logrus
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// the token is a credential, log the route instead of the path
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		entry := s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"route":    path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Microsecond),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
