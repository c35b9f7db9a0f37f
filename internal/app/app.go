// Package app provides application-level wiring: repositories, the engine,
// and the publishing services, built from dependencies main() provides.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"statcube/internal/config"
	"statcube/internal/db/repository"
	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/binder"
	"statcube/internal/service/classify"
	"statcube/internal/service/cube"
	"statcube/internal/service/preview"
	"statcube/internal/service/referencedata"
	"statcube/internal/storage"
	"statcube/internal/taxonomy"
)

// Deps holds the external dependencies main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
	Clock   clockwork.Clock // nil means the real clock
}

// Services groups the service pointers the API handlers need.
type Services struct {
	Classify *classify.Service
	Binder   *binder.Service
	Preview  *preview.Service
	Cubes    *cube.Tracker
}

// Repositories groups the repositories handlers reach directly for plain
// CRUD, without a service in between.
type Repositories struct {
	Datasets    domain.DatasetRepository
	FactColumns domain.FactColumnRepository
	Dimensions  domain.DimensionRepository
	Lookups     domain.LookupTableRepository
}

// App is the fully wired application.
type App struct {
	Services  Services
	Repos     Repositories
	Engine    *engine.Engine
	Assembler *cube.Assembler
	Janitor   *cube.Janitor
	Blobs     domain.BlobStore
}

// New wires repositories, the engine, storage, and all services.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	datasets := repository.NewDatasetRepo(deps.WriteDB)
	columns := repository.NewFactColumnRepo(deps.WriteDB)
	dims := repository.NewDimensionRepo(deps.WriteDB)
	lookups := repository.NewLookupTableRepo(deps.WriteDB)
	tax := taxonomy.NewStore(deps.ReadDB)

	eng, err := engine.Open(deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	blobs, err := newBlobStore(ctx, &cfg.Storage)
	if err != nil {
		eng.Close()
		return nil, err
	}

	calendar := referencedata.NewCalendarGenerator(cfg.Languages...)

	classifySvc := classify.NewService(datasets, columns, dims, eng, blobs, deps.Logger)
	binderSvc := binder.NewService(datasets, columns, dims, lookups, eng, blobs, tax, calendar, deps.Logger)
	previewSvc := preview.NewService(datasets, columns, dims, lookups, eng, blobs, tax, calendar, deps.Logger)

	assembler := cube.NewAssembler(datasets, dims, lookups, eng, blobs, tax, calendar, deps.Logger)
	tracker := cube.NewTracker(assembler, clock, deps.Logger)

	janitor, err := cube.NewJanitor(eng, cfg.JanitorSchedule, deps.Logger)
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("schedule janitor: %w", err)
	}

	return &App{
		Services: Services{
			Classify: classifySvc,
			Binder:   binderSvc,
			Preview:  previewSvc,
			Cubes:    tracker,
		},
		Repos: Repositories{
			Datasets:    datasets,
			FactColumns: columns,
			Dimensions:  dims,
			Lookups:     lookups,
		},
		Engine:    eng,
		Assembler: assembler,
		Janitor:   janitor,
		Blobs:     blobs,
	}, nil
}

// Close releases the engine. Database handles belong to main().
func (a *App) Close() error {
	a.Janitor.Stop()
	return a.Engine.Close()
}

// newBlobStore builds the configured storage backend wrapped in the
// timeout/rate guard.
func newBlobStore(ctx context.Context, cfg *config.StorageConfig) (domain.BlobStore, error) {
	var inner domain.BlobStore
	var err error
	switch cfg.Backend {
	case config.StorageFilesystem:
		inner = storage.NewFilesystemStore(cfg.Dir)
	case config.StorageS3:
		inner, err = storage.NewS3Store(storage.S3Config{
			KeyID:    cfg.S3KeyID,
			Secret:   cfg.S3Secret,
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Bucket:   cfg.S3Bucket,
		})
	case config.StorageAzure:
		inner, err = storage.NewAzureStore(storage.AzureConfig{
			AccountName: cfg.AzureAccount,
			AccountKey:  cfg.AzureKey,
			Container:   cfg.AzureContainer,
		})
	case config.StorageGCS:
		inner, err = storage.NewGCSStore(ctx, storage.GCSConfig{
			KeyFilePath: cfg.GCSCredentialsFile,
			Bucket:      cfg.GCSBucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Backend, err)
	}
	return storage.NewGuardedStore(inner, cfg.CallTimeout, cfg.RateRPS, cfg.RateBurst), nil
}
