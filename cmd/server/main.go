package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"verity/internal/concordance"
	"verity/internal/config"
	"verity/internal/domain"
	"verity/internal/engines"
	"verity/internal/engines/ocrhttp"
	"verity/internal/engines/pdftext"
	"verity/internal/ensemble"
	"verity/internal/handler"
	"verity/internal/repository/postgres"
	"verity/internal/router"
	"verity/internal/service"
	s3storage "verity/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	fieldRepo := postgres.NewEnsembleFieldRepo(db)
	accountRepo := postgres.NewAccountRepo(db)
	concordanceRepo := postgres.NewConcordanceRepo(db)

	// Initialize storage
	store, err := s3storage.NewObjectStore(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Register engine kinds and build the configured engine set
	engines.Register(engines.KindPDFText, pdftext.Factory)
	engines.Register(engines.KindOCRHTTP, ocrhttp.Factory)
	engineSet, err := engines.BuildFromConfig(&cfg.Engines)
	if err != nil {
		return fmt.Errorf("failed to build extraction engines: %w", err)
	}
	log.Printf("server: %d extraction engines configured", len(engineSet))

	ensembleEngine := ensemble.NewEngine(ensembleConfig(&cfg.Ensemble), engineSet)
	confidenceEngine := ensemble.NewConfidenceEngine(nil)

	// Initialize services
	concordanceSvc := concordance.NewService(concordanceRepo, fieldRepo, accountRepo)
	extractionSvc := service.NewExtractionService(
		docRepo, fieldRepo, ensembleEngine, concordanceSvc, store, cfg.S3.Bucket)

	// Initialize handlers
	docH := handler.NewDocumentHandler(extractionSvc)
	concordanceH := handler.NewConcordanceHandler(extractionSvc, concordanceSvc)
	reviewH := handler.NewReviewHandler(extractionSvc, confidenceEngine)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(docH, concordanceH, reviewH, healthH)

	// Start the extraction queue worker; it drains in-flight work on shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewExtractQueueWorker(docRepo, extractionSvc, service.ExtractQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxRetries:   cfg.Queue.MaxRetries,
		Concurrency:  cfg.Queue.Concurrency,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	log.Printf("Server starting on %s", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Printf("Shutdown signal received, draining worker")
		<-workerDone
		return nil
	}
}

func ensembleConfig(cfg *config.EnsembleConfig) ensemble.Config {
	ec := ensemble.DefaultConfig()
	if cfg.ConsensusThreshold > 0 {
		ec.ConsensusThreshold = cfg.ConsensusThreshold
	}
	if cfg.ReviewThreshold > 0 {
		ec.ReviewThreshold = cfg.ReviewThreshold
	}
	if cfg.LowConfidenceThreshold > 0 {
		ec.LowConfidenceThreshold = cfg.LowConfidenceThreshold
	}
	if cfg.ConsensusBonus > 0 {
		ec.ConsensusBonus = cfg.ConsensusBonus
	}
	if cfg.StrongConsensusBonus > 0 {
		ec.StrongConsensusBonus = cfg.StrongConsensusBonus
	}
	if cfg.HighTrustEngine != "" {
		ec.HighTrustEngine = domain.EngineName(cfg.HighTrustEngine)
	}
	return ec
}
