package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/logging"
)

var (
	cfgPath = flag.String("config", "", "Path to YAML config file (optional)")
	outDir  = flag.String("out", "", "Snapshot output directory (defaults to snapshot.dir from the config)")
)

func main() {
	_ = godotenv.Load()
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	out := *outDir
	if out == "" {
		out = cfg.Snapshot.Dir
	}
	if len(inputs) == 0 || out == "" {
		fmt.Println("Usage: rag-index [--config=config.yaml] --out=dir file1.txt [dir/ *.pdf ...]")
		os.Exit(1)
	}

	logger, closer, err := logging.Open(cfg.Logging, os.Stderr)
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

	start := time.Now()
	stats, err := comps.Service.IngestDocuments(ctx, inputs)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	if err := comps.Service.SaveSnapshot(out); err != nil {
		log.Fatalf("failed to write snapshot: %v", err)
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Println(boldGreen("Snapshot written to " + out))
	fmt.Printf("Build:      %s\n", boldCyan(stats.BuildID))
	fmt.Printf("Embedder:   %s (dim %d)\n", boldCyan(stats.Model), stats.Dimension)
	fmt.Printf("Files:      %d\n", stats.Files)
	fmt.Printf("Documents:  %d\n", stats.Documents)
	fmt.Printf("Chunks:     %d\n", stats.Chunks)
	if stats.Skipped > 0 || stats.EmptyDocuments > 0 {
		fmt.Printf("Skipped:    %s files, %s empty documents\n", yellow(stats.Skipped), yellow(stats.EmptyDocuments))
	}
	fmt.Printf("Elapsed:    %s\n", time.Since(start).Round(time.Millisecond))
}
