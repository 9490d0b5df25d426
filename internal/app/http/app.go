package http

import (
	"context"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/handlers"
	"github.com/14kear/online_voting/voting-engine/internal/routes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net/http"
)

type App struct {
	log    *slog.Logger
	engine *gin.Engine
	server *http.Server
	port   int
}

// NewApp builds the gin engine with CORS, the voting API under /api/voting,
// the Prometheus endpoint and a healthcheck.
func NewApp(
	log *slog.Logger,
	port int,
	allowOrigins []string,
	handler *handlers.VotingHandler,
	authMiddleware gin.HandlerFunc,
	optionalAuth gin.HandlerFunc,
	gatherer prometheus.Gatherer,
) *App {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	if len(allowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	{
		publicGroup := api.Group("/voting", optionalAuth)
		routes.RegisterPublicRoutes(publicGroup, handler)

		privateGroup := api.Group("/voting", authMiddleware)
		routes.RegisterPrivateRoutes(privateGroup, handler)
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	return &App{
		log:    log,
		engine: r,
		server: httpServer,
		port:   port,
	}
}

func (a *App) Run() error {
	a.log.Info("HTTP server is running", slog.String("addr", a.server.Addr))
	return a.server.ListenAndServe()
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("HTTP server is stopping")
	return a.server.Shutdown(ctx)
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}
