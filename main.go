package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"roomsync/config"
	"roomsync/features"
	"roomsync/game"
	"roomsync/logger"
	"roomsync/world"
)

const shutdownTimeout = 10 * time.Second

// CreateServer builds the engine every route hangs off. Only /health is
// reachable without an allowed Origin.
func CreateServer(server config.ServerConfig) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	allowedOrigins := server.AllowedOrigins
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r, nil
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		log.Debug().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", ctx.ClientIP()).
			Msg("request")
	}
}

// newEngine wires the room layer onto a fresh server.
func newEngine(cfg config.Config) (*gin.Engine, error) {
	templates, err := features.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load feature catalog: %w", err)
	}
	catalog := features.NewRegistry(templates, features.Options{
		MaxEntities:     cfg.World.MaxEntities,
		DealSize:        cfg.World.DealSize,
		StarterDealSize: cfg.World.StarterDealSize,
	})

	registry := game.NewRegistry(game.Options{
		MaxPlayers:    cfg.Rooms.MaxPlayers,
		MaxJamPlayers: cfg.Rooms.MaxJamPlayers,
		Jam: game.JamOptions{
			DefaultTempo: cfg.Jam.DefaultTempo,
			MinTempo:     cfg.Jam.MinTempo,
			MaxTempo:     cfg.Jam.MaxTempo,
		},
		World: world.Options{
			MaxEntities:         cfg.World.MaxEntities,
			ClapPeakThreshold:   cfg.World.ClapPeakThreshold,
			LoudVolumeThreshold: cfg.World.LoudVolumeThreshold,
		},
	})

	handler := game.NewHandler(game.NewRouter(registry, catalog), registry, catalog, game.RateLimit{
		MessagesPerSecond: cfg.RateLimit.MessagesPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	r, err := CreateServer(cfg.Server)
	if err != nil {
		return nil, err
	}
	handler.RegisterRoutes(r)
	return r, nil
}

func main() {
	flagSet := pflag.NewFlagSet("roomsync", pflag.ExitOnError)
	configPath := flagSet.String("config", os.Getenv("ROOMSYNC_CONFIG"), "path to a YAML config file")
	addr := flagSet.String("addr", "", "listen address (overrides config)")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomsync: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	r, err := newEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr).Strs("origins", cfg.Server.AllowedOrigins).Msg("server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh
	log.Info().Msg("SIGTERM or SIGINT received, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	log.Info().Msg("server stopped")
}
