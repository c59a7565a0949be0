package backend

import (
	"context"
	"fmt"
	"log/slog"

	"oyken/internal/storage/csvstore"
	"oyken/internal/storage/memory"
	"oyken/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case CSVBackend:
		res, err = f.createCSVBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		res, err = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := res.Repository.Ping(ctx); err != nil {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
		return nil, fmt.Errorf("%s backend not reachable: %w", config.Type, err)
	}
	return res, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	store, err := csvstore.New(config.DataDirectory, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV store: %w", err)
	}

	f.logger.Info("Initialized CSV backend", "data_directory", config.DataDirectory)

	return &BackendResult{
		Repository: store,
		Cleanup:    store.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Repository: memory.New(),
		Cleanup:    nil, // No cleanup needed for memory backend
	}, nil
}
