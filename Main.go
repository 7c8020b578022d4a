package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"member/cache"
	"member/config"
	"member/jwt"
	"member/logger"
	"member/password"
	"member/routers"
	"member/services"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	// 設定檔載入前先以預設等級輸出
	bootLog := logger.NewDefault("info")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLog.Error("無法讀取設定檔", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("服務異常結束", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := config.SetupDatabase(cfg.Database, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		if dbInstance, err := db.DB(); err == nil {
			_ = dbInstance.Close()
		}
	}()

	rdb, err := config.SetupRedisConnection(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	// Redis 未啟用時不使用地址快取
	var addressCache services.AddressCache
	if rdb != nil {
		defer rdb.Close()
		addressCache = cache.NewAddressCache(rdb, cfg.Redis.AddressTTL)
	}

	tokens, err := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	users := services.NewUserService(db, password.NewHasher(cfg.Security.BcryptCost), addressCache, log)
	router, err := routers.SetupRouters(routers.Dependencies{
		Users:     users,
		Addresses: services.NewAddressService(db, addressCache, log),
		Sessions:  services.NewSessionService(tokens, users, log),
		Logger:    log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
