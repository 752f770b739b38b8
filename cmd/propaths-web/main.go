// Command propaths-web runs the ProPaths interaction store web API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propaths/propaths/internal/config"
	"github.com/propaths/propaths/internal/connections"
	"github.com/propaths/propaths/internal/metrics"
	"github.com/propaths/propaths/internal/server"
	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/internal/storage/postgres"
	"github.com/propaths/propaths/internal/storage/sqlite"
	propsync "github.com/propaths/propaths/internal/sync"
)

func main() {
	configPath := flag.String("config", "", "Path to connections config file (default: config/connections.json)")
	flag.Parse()

	if *configPath == "" {
		defaultPath := "config/connections.json"
		if _, err := os.Stat(defaultPath); err == nil {
			*configPath = defaultPath
			log.Printf("Using connections config: %s", defaultPath)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, closeStore, err := openStore(cfg, *configPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewPrometheusCollector()

	engine := propsync.NewEngine(propsync.NewSyncer(store, collector), cfg.Sync.Workers, cfg.Sync.QueueSize)

	addr, wsHub := server.Start(ctx, cfg, store, engine, collector)

	// Batch results flow out to connected clients as they complete.
	engine.OnBatchDone = func(result *propsync.BatchResult, err error) {
		msg := map[string]interface{}{
			"event":  "sync_complete",
			"result": result,
		}
		if err != nil {
			msg["error"] = err.Error()
		}
		wsHub.Broadcast(msg)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start sync engine: %v", err)
	}

	log.Printf("ProPaths API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down sync engine: %v", err)
	}

	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore picks the storage backend: a connections.json file when one is
// available, otherwise the engine named in the environment config.
func openStore(cfg *config.Config, connectionsPath string) (storage.InteractionStore, func(), error) {
	if connectionsPath != "" {
		manager, err := connections.NewManager(connectionsPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := manager.Default()
		if err != nil {
			manager.Close()
			return nil, nil, err
		}
		return store, func() { manager.Close() }, nil
	}

	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := sqlite.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}
