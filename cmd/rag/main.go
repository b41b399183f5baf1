package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/httpapi"
	"ragqa/internal/logging"
	"ragqa/internal/service"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, snapshotDir string
	var serve bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragqa/config.yaml if not provided)")
	flag.StringVar(&snapshotDir, "snapshot", "", "Snapshot directory to load, or to write after ingesting files")
	flag.BoolVar(&serve, "serve", false, "Serve the HTTP API instead of the TUI")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if snapshotDir == "" && len(inputs) == 0 {
		snapshotDir = cfg.Snapshot.Dir
	}
	if len(inputs) == 0 && snapshotDir == "" {
		fmt.Println("Usage: rag [--config=config.yaml] [--snapshot=dir] [--serve] file1.txt [file2.pdf ...]")
		os.Exit(1)
	}

	// the TUI owns the terminal, so its logs go to a file or nowhere
	var fallback io.Writer = io.Discard
	if serve {
		fallback = os.Stderr
	}
	logger, closer, err := logging.Open(cfg.Logging, fallback)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closer.Close()

	comps, err := app.Build(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build components: %v", err)
	}
	defer comps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := load(ctx, comps.Service, inputs, snapshotDir)
	if err != nil {
		log.Fatalf("failed to load documents: %v", err)
	}

	if serve {
		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := httpapi.NewRouter(comps.Service, logger)
		if err := httpapi.Serve(ctx, cfg.Server.Addr, router, logger); err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	m := tui.New(comps.Service, stats, cfg.Retrieval.TopK, comps.CanAnswer)
	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
		log.Fatal(err)
	}
}

// load ingests inputs and writes them to snapshotDir when both are given,
// otherwise it restores snapshotDir.
func load(ctx context.Context, svc *service.RAGService, inputs []string, snapshotDir string) (service.IngestStats, error) {
	if len(inputs) == 0 {
		return svc.LoadSnapshot(ctx, snapshotDir)
	}
	stats, err := svc.IngestDocuments(ctx, inputs)
	if err != nil {
		return service.IngestStats{}, err
	}
	if snapshotDir != "" {
		if err := svc.SaveSnapshot(snapshotDir); err != nil {
			return service.IngestStats{}, err
		}
	}
	return stats, nil
}
