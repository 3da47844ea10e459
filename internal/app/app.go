package app

import (
	"context"
	"fmt"
	"net/http"

	"crashwatch/internal/capability"
	"crashwatch/internal/config"
	"crashwatch/internal/highlight"
	"crashwatch/internal/ledger"
	"crashwatch/internal/logger"
	"crashwatch/internal/metrics"
	"crashwatch/internal/notify"
	"crashwatch/internal/pipeline"
	"crashwatch/internal/routes"
	"crashwatch/internal/store"
	"crashwatch/internal/store/sqlite"
	"crashwatch/internal/ws"
)

// App wires the pipeline, stores and transport together.
type App struct {
	config     *config.Config
	log        *logger.Logger
	db         *sqlite.DB
	dispatcher *pipeline.Dispatcher
	server     *http.Server
}

// New builds the application: stores, startup reconciliation, capabilities,
// orchestrator, dispatcher and routes.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	segments, err := store.NewSegmentStore(cfg.DataDirectory)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	images := sqlite.NewIncidentImageRepository(db)

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, err
	}

	// Startup reconciliation: the image store is authoritative for key
	// existence, the ledger for the richer metadata.
	imageRecords, err := images.Records()
	if err != nil {
		return nil, err
	}
	if err := led.Reconcile(imageRecords); err != nil {
		return nil, err
	}
	log.Info("ledger reconciled: %d records", led.Len())

	detector, err := capability.NewDetector(cfg.Detector, cfg.ModelPath, cfg.ModelConfigPath, log)
	if err != nil {
		return nil, err
	}
	tracker, err := capability.NewTracker(cfg.Tracker)
	if err != nil {
		return nil, err
	}
	impact, err := capability.NewImpact(cfg.Impact)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(log)
	met := metrics.New()

	orch := pipeline.New(pipeline.Deps{
		Segments: segments,
		Videos:   segments,
		Recon:    highlight.NewReconstructor(segments, log),
		Thumbs:   store.NewThumbnailProvider(images, segments),
		Images:   images,
		Ledger:   led,
		Notifier: notify.NewHubNotifier(hub, log),
		Detector: detector,
		Tracker:  tracker,
		Impact:   impact,
		Metrics:  met,
		Log:      log,
	})

	dispatcher := pipeline.NewDispatcher(orch, cfg.Workers, cfg.QueueDepth, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: routes.Setup(dispatcher, orch, hub, met, log),
	}

	return &App{
		config:     cfg,
		log:        log,
		db:         db,
		dispatcher: dispatcher,
		server:     server,
	}, nil
}

// Run serves until the listener fails or Shutdown is called.
func (a *App) Run() error {
	a.log.Info("crashwatch server listening on :%d (detector=%s tracker=%s impact=%s workers=%d)",
		a.config.Port, a.config.Detector, a.config.Tracker, a.config.Impact, a.config.Workers)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, drains the pipeline and closes the stores.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.dispatcher.Stop()
	if closeErr := a.db.Close(); err == nil {
		err = closeErr
	}
	a.log.Info("server stopped")
	return err
}
