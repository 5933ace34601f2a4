// Package api exposes the matching services over HTTP using gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/services"
	"github.com/ersonp/menu-core/internal/infrastructure/config"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actorHeader     = "X-Actor"
	defaultActor    = "api"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Engine      *matching.Engine
	Catalog     *services.CatalogService
	Restaurants *services.RestaurantService
	Menus       *services.MenuService
	Matcher     *services.MatchService
	Ledger      *services.LedgerService
}

// Server serves the REST API.
type Server struct {
	svc    Services
	logger *zap.SugaredLogger
}

// NewServer creates a new API server.
func NewServer(svc Services, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{svc: svc, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.logger))

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	v1.GET("/health", s.health)

	menus := v1.Group("/standard-menus")
	menus.GET("", s.listStandardMenus)
	menus.POST("", s.createStandardMenu)
	menus.GET("/popular", s.popularStandardMenus)
	menus.GET("/:id", s.getStandardMenu)
	menus.PUT("/:id", s.updateStandardMenu)
	menus.DELETE("/:id", s.deleteStandardMenu)
	menus.POST("/:id/aliases", s.addAlias)
	menus.DELETE("/:id/aliases/:alias", s.removeAlias)

	restaurants := v1.Group("/restaurants")
	restaurants.GET("", s.listRestaurants)
	restaurants.POST("", s.createRestaurant)
	restaurants.GET("/:id/menus", s.restaurantMenus)

	items := v1.Group("/menus")
	items.POST("", s.createMenuItem)
	items.POST("/batch-match", s.batchMatch)
	items.POST("/rematch-unmatched", s.rematchUnmatched)
	items.GET("/:id", s.getMenuItem)
	items.PATCH("/:id", s.patchMenuItem)
	items.DELETE("/:id", s.deleteMenuItem)
	items.POST("/:id/match", s.matchMenuItem)
	items.GET("/:id/history", s.menuItemHistory)

	v1.POST("/match/preview", s.preview)
	v1.GET("/overrides", s.listOverrides)
	v1.GET("/alias-suggestions", s.aliasSuggestions)

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.Router(),
		ReadTimeout:    cfg.ReadTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infow("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"index_ready": s.svc.Engine.Index.Ready(),
		"entries":     s.svc.Engine.Index.Len(),
	})
}

// requestID tags each request with an id, reusing the caller's when given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Errorw("http request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warnw("http request", fields...)
		default:
			logger.Debugw("http request", fields...)
		}
	}
}

func actor(c *gin.Context) string {
	if a := c.GetHeader(actorHeader); a != "" {
		return a
	}
	return defaultActor
}
