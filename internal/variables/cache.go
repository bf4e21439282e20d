package variables

import (
	"context"

	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
)

// Cache holds the stores loaded during one build run, keyed by directory.
// Stores load lazily on first access and are never invalidated; a Cache is
// not safe for concurrent use.
type Cache struct {
	project *project.Project
	stores  map[project.FilePath]*Store
	logger  logging.Logger
}

// NewCache creates an empty cache over p.
func NewCache(p *project.Project, logger logging.Logger) *Cache {
	return &Cache{
		project: p,
		stores:  make(map[project.FilePath]*Store),
		logger:  logger.WithComponent("variables"),
	}
}

// Get returns the store of dir, loading its variables files on first use.
func (c *Cache) Get(ctx context.Context, dir project.FilePath) (*Store, error) {
	if store, ok := c.stores[dir]; ok {
		return store, nil
	}

	files, err := c.project.Files(dir)
	if err != nil {
		return nil, err
	}
	store := NewStore()
	for _, file := range files {
		if !file.IsVariables() {
			continue
		}
		data, err := c.project.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := store.Load(file, data); err != nil {
			return nil, err
		}
	}

	c.stores[dir] = store
	if store.Len() > 0 {
		c.logger.Debug(ctx, "Loaded variables", "dir", dir.String(), "values", store.Len())
	}
	return store, nil
}

// Assets returns the project-wide asset store, the terminal fallback.
func (c *Cache) Assets(ctx context.Context) (*Store, error) {
	return c.Get(ctx, c.project.AssetDir())
}
