package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/qualagents/qualagents/internal/agent"
	"github.com/qualagents/qualagents/internal/cache"
	"github.com/qualagents/qualagents/internal/config"
	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/memory"
	"github.com/qualagents/qualagents/internal/notify"
	"github.com/qualagents/qualagents/internal/server"
	"github.com/qualagents/qualagents/internal/services"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/internal/storage/postgres"
	"github.com/qualagents/qualagents/internal/storage/sqlite"
	"github.com/qualagents/qualagents/internal/tools"
	"github.com/qualagents/qualagents/pkg/types"
)

func main() {
	agentName := flag.String("agent", "", "Named agent definition to run analyses with")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	generator, err := llm.NewGeneratorChain(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}

	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Printf("Warning: no embedding provider, falling back to keyword search: %v", err)
		embedder = nil
	}

	pipeline := memory.New(store, generator, embedder)

	registry := tools.NewRegistry()
	registry.Register(tools.NewDocumentSearch(store, embedder, pipeline))
	registry.Register(tools.NewGenerateInsight(generator))
	registry.Register(tools.NewSentimentAnalysis(generator))
	registry.Register(tools.NewThemeCluster(generator))
	registry.Register(tools.NewSummarizeMemory(generator))
	registry.Register(tools.NewLLMRouter(generator, registry))

	buildOrchestrator := func() *agent.Orchestrator {
		return agent.New(agent.Config{
			Generator: generator,
			Registry:  registry,
			Extractor: extractor.New(generator, cfg.LLM.ExtractorMaxRetries),
			Cache:     cache.New(store, cfg.Cache.Enabled, cfg.Cache.DefaultTTL),
			Memory:    pipeline,
			Agent:     resolveAgent(cfg, *agentName),
		})
	}

	runner := &swappableRunner{}
	runner.swap(buildOrchestrator())

	// Pick up agent definition edits without a restart.
	if cfg.Analysis.AgentsFile != "" {
		watcher := notify.NewFileWatcher(cfg.Analysis.AgentsFile, func(path string) {
			log.Printf("Reloading agent definitions from %s", path)
			runner.swap(buildOrchestrator())
		})
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: failed to watch agents file: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	analysisService := services.NewAnalysisService(store, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, hub, err := server.Start(ctx, cfg, server.Deps{
		Analysis: analysisService,
		Store:    store,
		Projects: store,
		Agents:   store,
		Embedder: embedder,
		Memory:   pipeline,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	analysisService.AddListener(hub)
	log.Printf("QualAgents API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	analysisService.Wait()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// swappableRunner lets the agents-file watcher replace the orchestrator
// while jobs keep running against the instance they started with.
type swappableRunner struct {
	mu      sync.RWMutex
	current services.Runner
}

func (r *swappableRunner) swap(next services.Runner) {
	r.mu.Lock()
	r.current = next
	r.mu.Unlock()
}

func (r *swappableRunner) Run(ctx context.Context, scope types.MemoryScope, input []types.TextItem, params types.AnalysisParameters) (*types.FinalReport, error) {
	r.mu.RLock()
	runner := r.current
	r.mu.RUnlock()
	return runner.Run(ctx, scope, input, params)
}

// openStore selects the storage engine from configuration.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.NewStore(cfg.Storage.DataPath + "/qualagents.db")
	}
}

// resolveAgent loads the named agent definition from the configured agents
// file, falling back to a default built from the analysis config.
func resolveAgent(cfg *config.Config, name string) types.AgentConfig {
	fallback := types.AgentConfig{
		Model:        cfg.Analysis.DefaultModel,
		MaxToolCalls: cfg.Analysis.MaxToolCalls,
	}

	if cfg.Analysis.AgentsFile == "" || name == "" {
		return fallback
	}
	defs, err := config.LoadAgentDefinitions(cfg.Analysis.AgentsFile)
	if err != nil {
		log.Printf("Warning: failed to load agent definitions: %v", err)
		return fallback
	}
	agentConfig, ok := defs.Lookup(name)
	if !ok {
		log.Printf("Warning: agent %q not found in %s, using defaults", name, cfg.Analysis.AgentsFile)
		return fallback
	}
	if agentConfig.MaxToolCalls == 0 {
		agentConfig.MaxToolCalls = cfg.Analysis.MaxToolCalls
	}
	return agentConfig
}
