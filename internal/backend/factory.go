package backend

import (
	"context"
	"fmt"
	"log/slog"

	"financify/internal/catalog/memory"
	"financify/internal/catalog/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new catalog factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateCatalog implements Factory.CreateCatalog
func (f *DefaultFactory) CreateCatalog(ctx context.Context, config Config) (*CatalogResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteCatalog(ctx, config)
	case MemoryBackend:
		return f.createMemoryCatalog(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteCatalog(ctx context.Context, config Config) (*CatalogResult, error) {
	repo, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite catalog: %w", err)
	}

	lessons, err := repo.List(ctx)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to read SQLite catalog: %w", err)
	}

	f.logger.Info("Initialized SQLite catalog",
		"db_path", config.SQLiteDBPath,
		"lessons", len(lessons))

	return &CatalogResult{
		Catalog: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryCatalog(ctx context.Context) (*CatalogResult, error) {
	store := memory.NewBuiltin()
	lessons, _ := store.List(ctx)

	f.logger.Info("Initialized memory catalog", "lessons", len(lessons))

	return &CatalogResult{
		Catalog: store,
		Cleanup: nil, // No cleanup needed for memory catalog
	}, nil
}
