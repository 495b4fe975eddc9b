package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"courserag/internal/capability"
	"courserag/internal/chunker"
	"courserag/internal/config"
	"courserag/internal/embedding"
	openaiembed "courserag/internal/embedding/openai"
	"courserag/internal/embedding/tfidf"
	openaigen "courserag/internal/generator/openai"
	"courserag/internal/orchestrator"
	"courserag/internal/service"
	"courserag/internal/session"
	"courserag/internal/tui"
	"courserag/internal/vectorstore"
	"courserag/internal/vectorstore/memory"
	"courserag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var replace bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/courserag/config.yaml if not provided)")
	flag.BoolVar(&replace, "replace", false, "Re-ingest courses that already exist in the store")
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Println("Usage: courserag [--config=config.yaml] [--replace] <docs-folder>")
		os.Exit(1)
	}
	docsDir := args[0]

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

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.New()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := openaiembed.NewClient(openaiembed.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var st vectorstore.Store
	switch cfg.VectorStore.Type {
	case "memory", "":
		st = memory.New(emb, memory.WithMinCatalogSimilarity(cfg.Search.MinCatalogSimilarity))
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		st = qdrant.New(qdrant.Config{
			URL:     cfg.VectorStore.Qdrant.URL,
			APIKey:  cfg.VectorStore.Qdrant.APIKey,
			Prefix:  cfg.VectorStore.Qdrant.Prefix,
			Timeout: time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}, emb, qdrant.WithMinCatalogSimilarity(cfg.Search.MinCatalogSimilarity))
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var gen *openaigen.Generator
	switch cfg.Generator.Type {
	case "openai", "":
		gen, err = openaigen.New(openaigen.Config{
			BaseURL:   cfg.Generator.BaseURL,
			APIKeyEnv: cfg.Generator.APIKeyEnv,
			Model:     cfg.Generator.Model,
			MaxTokens: cfg.Generator.MaxTokens,
			Timeout:   time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("generator init failed: %v", err)
		}
	default:
		log.Fatalf("unknown generator: %s", cfg.Generator.Type)
	}

	registry := capability.NewRegistry()
	if err := registry.Register(capability.NewSearch(st, cfg.Search.MaxResults)); err != nil {
		log.Fatalf("capability registration failed: %v", err)
	}

	loop := orchestrator.New(gen, registry)
	sessions := session.NewManager(cfg.Session.MaxHistory)
	proc := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	svc := service.New(proc, emb, st, loop, sessions)

	ctx := context.Background()
	report, err := svc.AddCourseFolder(ctx, docsDir, replace)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	log.Printf("ingested %d courses (%d chunks, %d skipped)", report.Courses, report.Chunks, report.Skipped)

	overview := report.Overview
	if overview == "" {
		overview = fmt.Sprintf("Loaded %d courses.", report.Courses)
	}
	m := tui.New(svc, overview)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
