package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"harmonia/config"
	"harmonia/daemon"
	"harmonia/handlers"
	"harmonia/middleware"
	"harmonia/services"
	"harmonia/websocket"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// StartWebServer wires the services together and runs the HTTP server until
// an interrupt arrives.
func StartWebServer(cfg *config.Config, logger *log.Logger) error {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	hub := websocket.NewHub(logger)
	go hub.Run()

	stats, err := services.NewStatsStore(cfg.Stats.DatabasePath)
	if err != nil {
		return err
	}
	defer stats.Close()

	resolver := services.NewMetadataResolver(logger)
	library := services.NewLibraryService(
		cfg.Library.MusicRoot,
		time.Duration(cfg.Library.RescanIntervalSec)*time.Second,
		resolver,
		hub,
		logger,
	)
	go library.Run(ctx)

	daemonClient := daemon.NewClient(cfg.Daemon.RPCURL, time.Duration(cfg.Daemon.RPCTimeoutSec)*time.Second)
	correlator := services.NewCorrelator(
		daemonClient,
		stats,
		library,
		hub,
		logger,
		time.Duration(cfg.Daemon.PollIntervalSec)*time.Second,
		time.Duration(cfg.Daemon.RPCTimeoutSec)*time.Second,
	)
	go correlator.Run(ctx)

	player := services.NewPlayerEngine(services.NopAudioEngine(), stats, hub, logger)

	// Initialize handlers
	libraryHandler := handlers.NewLibraryHandler(library)
	downloadHandler := handlers.NewDownloadHandler(daemonClient, correlator)
	playerHandler := handlers.NewPlayerHandler(player, library)
	statsHandler := handlers.NewStatsHandler(stats)
	artworkHandler := handlers.NewArtworkHandler(library)
	healthHandler := handlers.NewHealthHandler(library)
	settingsHandler := handlers.NewSettingsHandler(library)
	wsHandler := handlers.NewWSHandler(hub, logger)

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Logging(logger))

	setupRoutes(r, libraryHandler, downloadHandler, playerHandler, statsHandler, artworkHandler, healthHandler, settingsHandler, wsHandler)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("harmonia server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupRoutes configures all the HTTP routes
func setupRoutes(
	r *gin.Engine,
	libraryHandler *handlers.LibraryHandler,
	downloadHandler *handlers.DownloadHandler,
	playerHandler *handlers.PlayerHandler,
	statsHandler *handlers.StatsHandler,
	artworkHandler *handlers.ArtworkHandler,
	healthHandler *handlers.HealthHandler,
	settingsHandler *handlers.SettingsHandler,
	wsHandler *handlers.WSHandler,
) {
	// Health check endpoint
	r.GET("/health", healthHandler.HealthCheck)

	// API routes group
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		// Library endpoints
		libraryGroup := apiGroup.Group("/library")
		{
			libraryGroup.GET("", libraryHandler.GetCatalog)
			libraryGroup.POST("/rescan", libraryHandler.Rescan)
			libraryGroup.GET("/albums/:id/artwork", artworkHandler.GetAlbumArtwork)
		}

		// Download management endpoints
		downloadsGroup := apiGroup.Group("/downloads")
		{
			downloadsGroup.GET("", downloadHandler.ListTransfers)
			downloadsGroup.POST("", downloadHandler.AddTransfer)
			downloadsGroup.DELETE("/:id", downloadHandler.RemoveTransfer)
		}

		// Playback endpoints
		playerGroup := apiGroup.Group("/player")
		{
			playerGroup.GET("", playerHandler.GetState)
			playerGroup.POST("/load", playerHandler.Load)
			playerGroup.POST("/toggle", playerHandler.Toggle)
			playerGroup.POST("/next", playerHandler.Next)
			playerGroup.POST("/previous", playerHandler.Previous)
			playerGroup.POST("/shuffle", playerHandler.Shuffle)
			playerGroup.POST("/repeat", playerHandler.Repeat)
			playerGroup.POST("/seek", playerHandler.Seek)
			playerGroup.POST("/volume", playerHandler.Volume)
		}

		// Stats endpoint
		apiGroup.GET("/stats", statsHandler.GetStats)

		// Settings endpoints
		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)

		// WebSocket endpoint for real-time state
		apiGroup.GET("/ws", wsHandler.HandleConnection)
	}
}
