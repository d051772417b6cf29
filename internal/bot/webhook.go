package bot

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// WebhookServer receives Bot API updates over HTTPS and serves the health
// probe. It implements server.Service.
type WebhookServer struct {
	srv     *http.Server
	engine  *gin.Engine
	logger  *zap.Logger
	handler func(context.Context, Update)
}

// NewWebhookServer builds the HTTP routes: POST /telegram/<secret> for
// updates and GET /healthz for probes. Updates are handled asynchronously.
//
// Precondition: secret must be non-empty when updates are expected.
func NewWebhookServer(addr, secret string, handler func(context.Context, Update), health HealthFunc, logger *zap.Logger) *WebhookServer {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	w := &WebhookServer{engine: r, logger: logger, handler: handler}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if health != nil {
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if secret != "" {
		r.POST("/telegram/"+secret, w.receive)
	}

	w.srv = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return w
}

// Handler exposes the routes for tests.
func (w *WebhookServer) Handler() http.Handler { return w.engine }

func (w *WebhookServer) receive(c *gin.Context) {
	var raw tgbotapi.Update
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	if upd, ok := Convert(raw); ok {
		go w.handler(context.Background(), upd)
	}
	c.Status(http.StatusOK)
}

// Start serves until Stop.
func (w *WebhookServer) Start() error {
	w.logger.Info("webhook listening", zap.String("addr", w.srv.Addr))
	if err := w.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (w *WebhookServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.srv.Shutdown(ctx); err != nil {
		w.logger.Warn("webhook shutdown", zap.Error(err))
	}
}
