package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/config"
	"github.com/optiq-ai/optiq/internal/pipeline"
	"github.com/optiq-ai/optiq/internal/server"
	"github.com/optiq-ai/optiq/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the optimization pipeline server",
	Long:  `Starts the optiq HTTP server: problem submission, run status, cancellation, region health and a websocket event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		orch, rt, c, bus, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		var runs *store.Runs
		var runStore pipeline.RunStore
		if cfg.DataDir != "" {
			dbPath := filepath.Join(cfg.DataDir, "optiq.db")
			database, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			runs = store.NewRuns(database)
			runStore = runs
			entries := store.NewCacheEntries(database)
			warmCache(c, entries, cfg.CacheTTL)
		}

		service := pipeline.NewService(orch, runStore)
		defer service.Close()

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: true,
		}, service, rt, bus, runs)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "optiq server v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Regions: %d\n", len(cfg.Regions))
		if cfg.DataDir != "" {
			fmt.Fprintf(os.Stderr, "  Database: %s\n", filepath.Join(cfg.DataDir, "optiq.db"))
		}

		return srv.Start()
	},
}

// warmCache loads persisted cache entries and installs the write-through
// hook so new validated results survive restarts.
func warmCache(c *cache.Cache, entries *store.CacheEntries, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loaded, err := entries.Load(ctx, ttl)
	if err != nil {
		log.Printf("serve: warming cache: %v", err)
	}
	for _, e := range loaded {
		c.Put(e.Stage, e.Fingerprint, e.Payload, e.CreatedAt)
	}
	if len(loaded) > 0 {
		log.Printf("serve: warmed cache with %d entries", len(loaded))
	}

	c.SetPersist(func(e cache.Entry) {
		saveCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := entries.Save(saveCtx, e); err != nil {
			log.Printf("serve: persisting cache entry: %v", err)
		}
	})
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
