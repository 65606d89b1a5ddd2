package backend

import (
	"context"

	"financify/internal/catalog"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// CatalogResult contains the lesson catalog and an optional cleanup function
type CatalogResult struct {
	Catalog catalog.LessonReader
	Cleanup CleanupFunc
}

// Factory creates lesson catalogs based on configuration
type Factory interface {
	CreateCatalog(ctx context.Context, config Config) (*CatalogResult, error)
}

// Config holds configuration for catalog creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of catalog backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
