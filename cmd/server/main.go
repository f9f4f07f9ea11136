// Package main is the entry point for the DRO viewer server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/droview/server/internal/api"
	"github.com/droview/server/internal/cache"
	"github.com/droview/server/internal/config"
	"github.com/droview/server/internal/data/dro"
	"github.com/droview/server/internal/data/tdb"
	"github.com/droview/server/internal/pk"
	"github.com/droview/server/internal/render"
	"github.com/droview/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting DRO viewer server on port %d", cfg.Server.Port)

	// Load the study. A malformed study is fatal: the viewer never serves
	// a partially consistent dataset.
	dataset, err := loadStudy(cfg)
	if err != nil {
		log.Fatalf("Failed to load study %q: %v", cfg.Data.StudyPath, err)
	}
	log.Printf("Loaded study %q: %dx%d voxels, %d time points, %d models",
		dataset.Name, dataset.NX, dataset.NY, dataset.NT, len(dataset.Models()))

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		DerivedCacheSize: cfg.Cache.DerivedEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize figure renderer
	renderer := render.NewRenderer(render.Config{
		DefaultColormap: cfg.Render.DefaultColormap,
	})

	// Initialize viewer service
	viewer := service.NewViewerService(service.ViewerServiceConfig{
		Dataset:         dataset,
		Registry:        pk.NewRegistry(),
		Cache:           cacheManager,
		Renderer:        renderer,
		FigureWidth:     cfg.Render.FigureWidth,
		FigureHeight:    cfg.Render.FigureHeight,
		DefaultColormap: cfg.Render.DefaultColormap,
	})

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Viewer:      viewer,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadStudy reads the study from the configured source.
func loadStudy(cfg *config.Config) (*dro.Dataset, error) {
	switch cfg.Data.Source {
	case "", "dir":
		return dro.Load(cfg.Data.StudyPath)
	case "tiledb":
		reader, err := tdb.NewReader(cfg.Data.StudyPath)
		if err != nil {
			return nil, err
		}
		if !reader.Supported() {
			return nil, tdb.ErrUnsupported
		}
		return reader.Load()
	default:
		return nil, fmt.Errorf("unknown data source %q (expected dir or tiledb)", cfg.Data.Source)
	}
}
