// Package app wires the Syncline engine into a runnable demo application:
// SQLite-backed metadata, a local JSON-lines audit log, Prometheus metrics,
// and a seeded in-memory storefront as the external commerce system.
package app

import (
	"context"
	"embed"
	"fmt"
	"time"

	"go.uber.org/fx"

	service "github.com/syncline/syncline/pkg/sync/application/service"
	config "github.com/syncline/syncline/pkg/sync/core/config"
	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/engine/conflict"
	"github.com/syncline/syncline/pkg/sync/engine/delta"
	"github.com/syncline/syncline/pkg/sync/engine/orchestrator"
	"github.com/syncline/syncline/pkg/sync/infrastructure/commerce/memory"
	infraMetrics "github.com/syncline/syncline/pkg/sync/infrastructure/metrics"
	"github.com/syncline/syncline/pkg/sync/infrastructure/migration"
	sqlrepo "github.com/syncline/syncline/pkg/sync/infrastructure/repository/sql"
	storageLocal "github.com/syncline/syncline/pkg/sync/infrastructure/storage/local"
	"github.com/syncline/syncline/pkg/sync/support/util/logger"
)

// RunApplication sets up and runs the demo application using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, migrationsFS embed.FS) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLogLevel(cfg.Syncline.System.Logging.Level)

	// Apply schema migrations before the engine opens its connections.
	dbName := cfg.Syncline.Infrastructure.RepositoryDBRef
	dbCfg, ok := cfg.Syncline.Databases[dbName]
	if !ok {
		logger.Fatalf("Database connection %q is not configured.", dbName)
	}
	if err := migration.Run(dbCfg, migrationsFS, "resources/migrations"); err != nil {
		logger.Fatalf("Failed to apply schema migrations: %v", err)
	}

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		config.Module,

		sqlrepo.Module,
		storageLocal.Module,
		infraMetrics.Module,

		fx.Provide(memory.NewMemoryCommerceClient),
		fx.Provide(func(c *memory.MemoryCommerceClient) port.CommerceClient { return c }),
		fx.Provide(memory.NewMemoryLocalStore),
		fx.Provide(func(s *memory.MemoryLocalStore) port.LocalStore { return s }),

		delta.Module,
		conflict.Module,
		orchestrator.Module,
		service.Module,

		fx.Invoke(runDemo),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// runDemo seeds the storefront and drives one preview/execute/status round
// trip, then shuts the application down.
func runDemo(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	svc *service.SyncService,
	client *memory.MemoryCommerceClient,
	store *memory.MemoryLocalStore,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := demo(context.Background(), svc, client, store); err != nil {
					logger.Errorf("Demo run failed: %v", err)
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Shutdown failed: %v", err)
				}
			}()
			return nil
		},
	})
}

func demo(ctx context.Context, svc *service.SyncService, client *memory.MemoryCommerceClient, store *memory.MemoryLocalStore) error {
	seedStorefront(client, store)

	rc := service.RequestContext{AuthToken: "demo-token", OrgID: "org-demo"}

	preview, err := svc.Preview(ctx, rc, "woocommerce", model.SyncFilter{}, false)
	if err != nil {
		return err
	}
	logger.Infof("Preview %s: %d new, %d updated, %d deleted (%.1f%% change, cached: %t).",
		preview.SyncID,
		preview.Delta.NewCount, preview.Delta.UpdatedCount, preview.Delta.DeletedCount,
		preview.Delta.PercentageChange, preview.Cached)

	result, err := svc.Execute(ctx, rc, preview.SyncID, "skip")
	if err != nil {
		return err
	}
	if result.Rollback {
		logger.Warnf("Execution rolled back: %s", result.RollbackReason)
	} else {
		logger.Infof("Execution %s: %d batches, %d created, %d updated, %d failed.",
			result.State, result.Summary.TotalBatches,
			result.Summary.Created, result.Summary.Updated, result.Summary.Failed)
	}

	status, err := svc.Status(ctx, rc, preview.SyncID)
	if err != nil {
		return err
	}
	logger.Infof("Status: state=%s, batches=%d, conflicts=%d.",
		status.State, status.Progress.BatchesProcessed, status.Progress.Conflicts)
	return nil
}

// seedStorefront loads a small customer population: most records are new,
// a few already exist locally (some stale), and one triggers a duplicate-key
// conflict.
func seedStorefront(client *memory.MemoryCommerceClient, store *memory.MemoryLocalStore) {
	now := time.Now()
	records := make([]model.ExternalRecord, 0, 120)
	for i := 0; i < 120; i++ {
		records = append(records, model.ExternalRecord{
			ID:        model.NewID(),
			Email:     demoEmail(i),
			Segment:   demoSegment(i),
			Status:    "active",
			UpdatedAt: now,
		})
	}
	client.Seed(records)

	// A handful of records already exist locally, some with stale segments.
	for i, rec := range records[:10] {
		local := model.LocalRecord{
			EntityID:   model.NewID(),
			ExternalID: rec.ID,
			Email:      rec.Email,
			Segment:    rec.Segment,
			Status:     rec.Status,
			UpdatedAt:  now.Add(-24 * time.Hour),
		}
		if i%2 == 0 {
			local.Segment = "stale"
		}
		store.SeedLocal("org-demo", local)
	}

	// One incoming email collides with a different existing entity.
	collision := records[20]
	store.AddConflictRule(func(orgID string, rec model.ExternalRecord) *port.ConflictError {
		if rec.ID != collision.ID {
			return nil
		}
		return &port.ConflictError{
			EntityID:   "entity-existing",
			ExternalID: rec.ID,
			Detail: model.DuplicateKeyDetail{
				Key:              "email",
				Value:            rec.Email,
				ExistingEntityID: "entity-existing",
			},
		}
	})
}

func demoEmail(i int) string {
	return fmt.Sprintf("customer%03d@example.com", i)
}

func demoSegment(i int) string {
	if i%3 == 0 {
		return "wholesale"
	}
	return "retail"
}
