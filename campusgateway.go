package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"CampusHub/global/config"
	"CampusHub/logger"
	"CampusHub/service/backplane"
	"CampusHub/service/realtime"
	"CampusHub/service/storage"
	storageredis "CampusHub/service/storage/redis"
)

func main() {
	cfg := config.Load()
	config.ConfigIds(cfg)

	bp, presence := buildBackplane(cfg)

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Log.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()

	// One registry and one publisher per process, passed by reference
	// everywhere; no package-level singletons.
	mgr := realtime.NewManager(presence, cfg.WriteTimeout)
	svc := realtime.NewService(bp)
	gw := realtime.NewGateway(mgr, svc, bp, realtime.NewPgxMembershipResolver(pool), realtime.NewJWTVerifier(cfg.JWTSecret), presence)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", gw.HandleWS) // ws://host/ws?token=<jwt>
	r.GET("/ws/presence/:user_id", gw.HandlePresence)
	r.GET("/ws/stats", gw.HandleStats)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("[HTTP] listening on %s gateway_id=%s backplane=%s", cfg.HTTPAddr, cfg.GatewayID, cfg.Backplane)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Closing the sockets drives every connection through its normal
	// teardown path: listener joined, subscription closed, registry and
	// mirror cleaned.
	mgr.Close()
}

type presenceStore interface {
	realtime.PresenceMirror
	realtime.PresenceQuerier
}

func buildBackplane(cfg *config.AppConfig) (backplane.Backplane, presenceStore) {
	switch cfg.Backplane {
	case "memory":
		logger.Warn("memory backplane selected: single-process mode, no cross-process delivery")
		return backplane.NewMemoryBackplane(), storage.NewMemoryPresenceStore()

	case "nats":
		bp, err := backplane.NewNatsBackplane(backplane.NatsConfig{
			Servers: cfg.NatsServers,
			Name:    cfg.GatewayID,
		})
		if err != nil {
			logger.Log.Fatal("nats backplane init failed", zap.Error(err))
		}
		// The presence mirror stays on Redis regardless of the broker
		// carrying events.
		initRedis(cfg)
		return bp, storage.NewPresenceStore(storageredis.GetRedis())

	default:
		initRedis(cfg)
		rdb := storageredis.GetRedis()
		return backplane.NewRedisBackplane(rdb), storage.NewPresenceStore(rdb)
	}
}

func initRedis(cfg *config.AppConfig) {
	err := storageredis.InitRedis(storageredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal("redis init failed", zap.Error(err))
	}
}
