package fixtures

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/usecasehub/usecase-hub/internal/models"
)

//go:embed data/*.yaml
var embedded embed.FS

// Loader holds the static fallback snapshot of the catalog. The embedded
// snapshot ships with the binary; operators may overlay a newer one from a
// directory at startup.
type Loader struct {
	mu       sync.RWMutex
	useCases map[string]*models.UseCase
	ordered  []*models.UseCase
}

// NewLoader creates an empty fixture loader
func NewLoader() *Loader {
	return &Loader{
		useCases: make(map[string]*models.UseCase),
	}
}

// LoadEmbedded loads the snapshot compiled into the binary
func (l *Loader) LoadEmbedded() error {
	entries, err := fs.ReadDir(embedded, "data")
	if err != nil {
		return fmt.Errorf("failed to read embedded fixtures: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := fs.ReadFile(embedded, "data/"+entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read embedded fixture %s: %w", entry.Name(), err)
		}

		if err := l.add(entry.Name(), data); err != nil {
			slog.Warn("failed to load embedded fixture", "file", entry.Name(), "error", err)
			continue
		}
		loaded++
	}

	slog.Info("embedded fixtures loaded", "count", loaded)
	return nil
}

// LoadFromDir overlays fixture files from a directory. Records with an ID
// already present replace the embedded version.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading fixtures from directory", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read fixtures directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("failed to read fixture", "file", entry.Name(), "error", err)
			continue
		}

		if err := l.add(entry.Name(), data); err != nil {
			slog.Warn("failed to load fixture", "file", entry.Name(), "error", err)
			continue
		}
		loaded++
	}

	slog.Info("fixtures loaded", "count", loaded, "dir", dir)
	return nil
}

// add parses one fixture file and registers its record. Structural
// validation only: a record needs an id and a title to be usable.
func (l *Loader) add(name string, data []byte) error {
	var uc models.UseCase
	if err := yaml.Unmarshal(data, &uc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if uc.ID == "" {
		return fmt.Errorf("fixture %s: use case id is required", name)
	}
	if uc.Title == "" {
		return fmt.Errorf("fixture %s: use case title is required", name)
	}
	if uc.Popularity < 0 {
		return fmt.Errorf("fixture %s: popularity must be non-negative", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.useCases[uc.ID]; exists {
		for i, existing := range l.ordered {
			if existing.ID == uc.ID {
				l.ordered[i] = &uc
				break
			}
		}
	} else {
		l.ordered = append(l.ordered, &uc)
	}
	l.useCases[uc.ID] = &uc

	return nil
}

// Get retrieves a fixture record by ID
func (l *Loader) Get(id string) *models.UseCase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.useCases[id]
}

// List returns the snapshot ordered by descending popularity, reproducing
// the store's default ordering
func (l *Loader) List() []*models.UseCase {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.UseCase, len(l.ordered))
	copy(result, l.ordered)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Popularity > result[j].Popularity
	})
	return result
}

// Count returns the number of loaded fixture records
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.useCases)
}
