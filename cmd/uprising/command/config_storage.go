package command

import (
	"fmt"
	"os"

	"github.com/latchko/go-uprising/internal/storage"
	"github.com/latchko/go-uprising/internal/world"
	"github.com/pixil98/go-errors"
)

type StorageConfig struct {
	Corporations AssetConfig[*world.CorporationSpec] `json:"corporations"`
	Items        AssetConfig[*world.ItemSpec]        `json:"items"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()
	el.Add(c.Corporations.Validate("corporations"))
	el.Add(c.Items.Validate("items"))
	return el.Err()
}

// Catalogs is the loaded spec set the world is seeded from.
type Catalogs struct {
	Corporations *storage.FileStore[*world.CorporationSpec]
	Items        *storage.FileStore[*world.ItemSpec]
}

func (c *StorageConfig) BuildCatalogs() (*Catalogs, error) {
	corps, err := c.Corporations.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating corporation store: %w", err)
	}
	items, err := c.Items.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating item store: %w", err)
	}

	return &Catalogs{
		Corporations: corps,
		Items:        items,
	}, nil
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
