package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/crisiswatch/internal/admin"
	"github.com/mr1hm/crisiswatch/internal/alertview"
	"github.com/mr1hm/crisiswatch/internal/api"
	"github.com/mr1hm/crisiswatch/internal/app"
	"github.com/mr1hm/crisiswatch/internal/auth"
	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/config"
	"github.com/mr1hm/crisiswatch/internal/events"
	"github.com/mr1hm/crisiswatch/internal/filter"
	"github.com/mr1hm/crisiswatch/internal/location"
	"github.com/mr1hm/crisiswatch/internal/logging"
	"github.com/mr1hm/crisiswatch/internal/mapview"
	"github.com/mr1hm/crisiswatch/internal/models"
	"github.com/mr1hm/crisiswatch/internal/prefs"
	"github.com/mr1hm/crisiswatch/internal/proximity"
	"github.com/mr1hm/crisiswatch/internal/report"
	"github.com/mr1hm/crisiswatch/internal/routeplan"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logger := logging.Setup(cfg.Logging.Level)

	logger.Info("engine starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "backend", cfg.Backend.BaseURL)

	tokens := auth.Guest
	if cfg.Auth.Token != "" {
		tokens = &auth.Static{
			Token: cfg.Auth.Token,
			User:  &auth.Identity{UID: cfg.Auth.UID, Admin: cfg.Auth.Admin},
		}
	}

	client := backend.NewClient(cfg.Backend.BaseURL, tokens, logger)
	client.SetTimeout(cfg.Backend.Timeout)

	local, err := prefs.NewLocalStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize local store: %v", err)
	}
	defer local.Close()
	store := prefs.NewStore(local, client, tokens, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Components publish through callbacks that close over the coordinator,
	// which is constructed after them.
	var coord *app.Coordinator

	provider := location.NewRemoteProvider()
	locSvc := location.NewService(provider, nil, logger, func(loc models.UserLocation) {
		coord.OnLocationChange(loc)
	})

	repo := events.NewRepository(client, nil, logger, models.Severity(cfg.Events.MinSeverity), func(set models.EventSet) {
		coord.OnEventsChanged(set)
	})
	repo.SetRefreshInterval(cfg.Events.RefreshInterval)

	poller := proximity.New(client, nil, logger, func(snap proximity.Snapshot) {
		coord.OnProximity(snap)
	})

	routes := routeplan.NewWorkflow(client, logger, func(snap routeplan.Snapshot) {
		coord.OnRouteChanged(snap)
	})

	reports := report.NewWorkflow(client, repo, nil, logger)

	alerts := alertview.NewPresenter(&alertview.LogBeeper{Logger: logger}, store, client, tokens, logger)

	// The shell shows its own confirmation dialog before issuing a delete, so
	// the engine-side confirmer accepts.
	ops := admin.NewOps(client, repo, tokens, func(models.Event) bool { return true }, logger)

	coord = app.NewCoordinator(app.Deps{
		Logger:    logger,
		Location:  locSvc,
		Prefs:     store,
		Events:    repo,
		Poller:    poller,
		Filter:    filter.NewEngine(logger),
		Map:       mapview.NewPresenter(nil, logger),
		AlertView: alerts,
		Routes:    routes,
		Reports:   reports,
		Admin:     ops,
	})
	coord.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(coord, provider, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("surface listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancel()
	coord.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
