package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/config"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
	"github.com/jmkang/policy-qa-agent/internal/core/usecase"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/catalog/excel"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/chunking"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/extractor/announcement"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/llm/ollama"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/queue/nats"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/repository/postgres"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/resilience"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/storage/localfs"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/vector/qdrant"
	"github.com/jmkang/policy-qa-agent/internal/infrastructure/websearch"
	"github.com/jmkang/policy-qa-agent/internal/observability/logging"
	"github.com/jmkang/policy-qa-agent/internal/observability/metrics"
)

// App holds the wired object graph shared by the api, worker and
// importer binaries. Each binary uses the slice of it that it needs.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       ports.MessageQueue
	QA          ports.QAService
	Search      ports.PolicySearchService
	Eligibility ports.EligibilityService
	Indexer     ports.PolicyIndexer
	Importer    ports.CatalogImporter

	Sessions   ports.SessionStore
	WebSources ports.WebSourceStore

	APIMetrics    *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	policyRepo := postgres.NewPolicyRepository(db)
	if err := policyRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sessionRepo := postgres.NewSessionRepository(db)
	webSourceRepo := postgres.NewWebSourceRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	eligibilityRepo := postgres.NewEligibilityRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	apiMetrics := metrics.NewHTTPServerMetrics(service)
	workerMetrics := metrics.NewWorkerMetrics(service)

	var providers []websearch.Provider
	if cfg.TavilyAPIKey != "" {
		providers = append(providers, websearch.NewTavilyClient(cfg.TavilySearchURL, cfg.TavilyAPIKey, cfg.WebSearchDepth))
	}
	providers = append(providers, websearch.NewDuckDuckGoClient(cfg.DDGSearchURL))
	webExecutor := resilience.NewExecutor(resilience.WebSearchConfig())
	webChain := websearch.NewChain(logger, webExecutor, providers...)
	webChain.SetObserver(func(provider, result string) {
		apiMetrics.IncWebProvider(service, provider, result)
	})

	keywords, err := cfg.LoadClassifierKeywords()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load classifier keywords: %w", err)
	}
	classifier := usecase.NewKeywordClassifier(keywords)
	evaluator := usecase.NewSufficiencyEvaluator(cfg.SufficiencyMinPassages, cfg.SufficiencyMinAvgScore)
	retriever := usecase.NewRetriever(embedder, vectorDB, cfg.RetrievalTopK, cfg.RetrievalScoreThreshold)

	qa := usecase.NewQAWorkflow(
		classifier,
		evaluator,
		retriever,
		webChain,
		generator,
		policyRepo,
		sessionRepo,
		webSourceRepo,
		logger,
		usecase.QAWorkflowConfig{
			WebMaxResults:       cfg.WebMaxResults,
			SessionHistoryLimit: cfg.SessionHistoryLimit,
			EvidenceContentMax:  cfg.EvidenceContentMax,
		},
	)
	qa.SetStageObserver(func(stage string, duration time.Duration) {
		apiMetrics.ObserveStage(service, stage, duration)
		if stage == usecase.StageWebSearch {
			apiMetrics.IncWebSearchTrigger(service, "workflow")
		}
	})

	search := usecase.NewPolicySearchService(
		embedder,
		vectorDB,
		policyRepo,
		webChain,
		logger,
		usecase.SearchConfig{
			ScoreThreshold: cfg.SearchScoreThreshold,
			MinLocalHits:   cfg.SearchMinLocalHits,
			WebQuerySuffix: cfg.WebQuerySuffix,
		},
	)
	search.SetWebFallbackObserver(func() {
		apiMetrics.IncSearchWebFallback(service)
	})

	eligibility := usecase.NewEligibilityWorkflow(policyRepo, generator, eligibilityRepo, logger)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := announcement.NewExtractor(storage)

	indexer := usecase.NewIndexer(policyRepo, documentRepo, extractor, chunker, embedder, vectorDB, logger)
	indexer.SetChunkObserver(func(count int) {
		workerMetrics.ObserveIndexedChunks(service, count)
	})

	importer := usecase.NewCatalogImportService(excel.NewReader(), policyRepo, queue, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		QA:          qa,
		Search:      search,
		Eligibility: eligibility,
		Indexer:     indexer,
		Importer:    importer,

		Sessions:   sessionRepo,
		WebSources: webSourceRepo,

		APIMetrics:    apiMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
