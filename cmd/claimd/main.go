// Package main 声明服务入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimd/internal/claimd"
	"claimd/internal/config"
	"claimd/internal/shared/claimstore"
	"claimd/internal/shared/claimstore/etcd"
	"claimd/internal/shared/claimstore/postgres"
	"claimd/internal/shared/claimstore/redis"
	"claimd/internal/uniqueness"
	"claimd/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML）
	cfg := config.Load()

	log.Printf("Starting claimd... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open claim store: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	logger := logging.Default("claimd")
	registry := claimd.BuildRegistry(cfg.Claims.Rules)
	checker := uniqueness.NewChecker(store, registry, uniqueness.Config{
		DefaultPartition:       cfg.Claims.DefaultPartition,
		PartitionByCommandType: cfg.Claims.PartitionByCommandType,
	}, logger).WithMetrics(uniqueness.NewMetrics("claimd"))

	h := claimd.NewHandler(checker, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("claimd listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openStore 按配置选择声明存储适配器
//
// adapter = none 返回 nil：编排器进入"视为唯一"降级模式。
func openStore(cfg *config.Config) (claimstore.ClaimStore, error) {
	switch config.Adapter(cfg.Claims.Adapter) {
	case config.AdapterRedis:
		return redis.NewStoreFromURL(cfg.RedisURL)
	case config.AdapterEtcd:
		return etcd.NewStore(etcd.Config{
			Endpoints: cfg.EtcdEndpoints,
			Prefix:    cfg.EtcdPrefix,
		})
	case config.AdapterPostgres:
		store, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.AdapterNone:
		log.Println("WARNING: claim adapter disabled, all commands will be assumed unique")
		return nil, nil
	default:
		log.Println("Using in-memory claim store (single process only)")
		return claimstore.NewMemoryStore(), nil
	}
}
