// Command propaths-sync imports legacy cache snapshots into the interaction
// store and runs storage maintenance (counter recount, duplicate repair).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/propaths/propaths/internal/config"
	"github.com/propaths/propaths/internal/connections"
	"github.com/propaths/propaths/internal/discovery"
	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/internal/storage/postgres"
	"github.com/propaths/propaths/internal/storage/sqlite"
	propsync "github.com/propaths/propaths/internal/sync"
)

var (
	configPath = flag.String("config", "", "Path to connections config file (optional)")
	cacheDir   = flag.String("cache", "", "Directory of cache snapshots to import (overrides config)")
	file       = flag.String("file", "", "Import a single snapshot file and exit")
	fetch      = flag.String("fetch", "", "Fetch findings for one protein from the discovery pipeline and exit")
	recount    = flag.Bool("recount", false, "Recount interaction counters and exit")
	dedup      = flag.Bool("dedup", false, "Repair duplicate pair rows and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, closeStore, err := openStore(cfg, *configPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	ctx := context.Background()

	if *recount {
		handleRecount(ctx, store)
		return
	}
	if *dedup {
		handleDedup(ctx, store)
		return
	}

	syncer := propsync.NewSyncer(store, nil)

	if *file != "" {
		if err := importSnapshot(ctx, syncer, *file); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	}

	if *fetch != "" {
		if err := fetchAndSync(ctx, syncer, cfg, *fetch); err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}
		return
	}

	dir := cfg.Storage.CachePath
	if *cacheDir != "" {
		dir = *cacheDir
	}
	if err := importDir(ctx, syncer, dir); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
}

func handleRecount(ctx context.Context, store storage.InteractionStore) {
	repaired, err := store.RecountInteractions(ctx)
	if err != nil {
		log.Fatalf("Recount failed: %v", err)
	}
	fmt.Printf("Repaired interaction counts for %d proteins\n", repaired)
}

func handleDedup(ctx context.Context, store storage.InteractionStore) {
	removed, err := store.DeduplicateInteractions(ctx)
	if err != nil {
		log.Fatalf("Deduplication failed: %v", err)
	}
	fmt.Printf("Removed %d duplicate interaction rows\n", removed)
}

// importDir imports every *.json snapshot in the directory, one batch per
// file. A failing file is reported and skipped; the rest still import.
func importDir(ctx context.Context, syncer *propsync.Syncer, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no snapshots found in %s", dir)
	}
	sort.Strings(paths)

	failures := 0
	for _, path := range paths {
		if err := importSnapshot(ctx, syncer, path); err != nil {
			log.Printf("Skipping %s: %v", path, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d snapshots failed to import", failures, len(paths))
	}
	return nil
}

// fetchAndSync pulls the pipeline's findings for one protein and syncs them
// as a single batch.
func fetchAndSync(ctx context.Context, syncer *propsync.Syncer, cfg *config.Config, protein string) error {
	if cfg.Pipeline.URL == "" {
		return fmt.Errorf("PROPATHS_PIPELINE_URL is not configured")
	}

	client := discovery.NewClient(cfg.Pipeline.URL, cfg.Pipeline.Token,
		time.Duration(cfg.Pipeline.TimeoutSeconds)*time.Second)
	items, err := client.FetchInteractions(ctx, protein)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("Pipeline returned no findings for %s", protein)
		return nil
	}

	runID := propsync.NewRunID()
	result, err := syncer.SyncBatch(ctx, runID, items)
	if result != nil {
		log.Printf("%s: %d synced, %d failed (%s)", protein, result.Synced, result.Failed, result.RunID)
	}
	return err
}

func importSnapshot(ctx context.Context, syncer *propsync.Syncer, path string) error {
	items, err := loadSnapshot(path)
	if err != nil {
		return err
	}

	runID := propsync.NewRunID()
	result, err := syncer.SyncBatch(ctx, runID, items)
	if result != nil {
		log.Printf("%s: %d synced, %d failed, %d skipped (%s)",
			filepath.Base(path), result.Synced, result.Failed, result.Skipped, result.RunID)
	}
	return err
}

// loadSnapshot reads one cache file. Snapshots come in two layouts: a bare
// JSON array of findings, or an object wrapping the array under
// "interactions" with the query protein alongside.
func loadSnapshot(path string) ([]discovery.DiscoveredInteraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []discovery.DiscoveredInteraction
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Query        string                            `json:"query_protein"`
		Interactions []discovery.DiscoveredInteraction `json:"interactions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized snapshot layout: %w", err)
	}

	// Older snapshots record the query protein once at the top level.
	for i := range wrapped.Interactions {
		if wrapped.Interactions[i].Query == "" {
			wrapped.Interactions[i].Query = wrapped.Query
		}
	}
	return wrapped.Interactions, nil
}

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
