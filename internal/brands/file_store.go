package brands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
	"gopkg.in/yaml.v3"
)

type brandsFile struct {
	Brands []models.Brand `yaml:"brands"`
}

// FileStore serves brand configuration from a YAML file. The file is re-read
// when its modification time changes, so edits are picked up without a
// restart.
type FileStore struct {
	path string

	mu      sync.RWMutex
	brands  []models.Brand
	modTime time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) GetBrand(ctx context.Context, brandID string) (models.Brand, error) {
	brands, err := s.ListBrands(ctx)
	if err != nil {
		return models.Brand{}, err
	}
	for _, b := range brands {
		if b.ID == brandID {
			return b, nil
		}
	}
	return models.Brand{}, models.ErrBrandNotFound
}

func (s *FileStore) ListBrands(ctx context.Context) ([]models.Brand, error) {
	if err := s.refresh(); err != nil {
		// keep serving the last good copy
		slog.Warn("[BrandStore] Failed to reload brands file, using cached copy",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Brand(nil), s.brands...), nil
}

func (s *FileStore) refresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}
	return s.reload()
}

func (s *FileStore) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat brands file: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read brands file: %w", err)
	}
	brands, err := Parse(data)
	if err != nil {
		return fmt.Errorf("invalid brands file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.brands = brands
	s.modTime = info.ModTime()
	s.mu.Unlock()

	slog.Info("[BrandStore] Loaded brands",
		slog.String("path", s.path),
		slog.Int("count", len(brands)))
	return nil
}

// Parse decodes and validates a brands document, applying defaults.
func Parse(data []byte) ([]models.Brand, error) {
	var doc brandsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(doc.Brands))
	for i := range doc.Brands {
		b := &doc.Brands[i]
		if err := validate(b); err != nil {
			return nil, fmt.Errorf("brand at index %d: %w", i, err)
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("duplicate brand id %q", b.ID)
		}
		seen[b.ID] = true
		setDefaults(b)
	}
	return doc.Brands, nil
}

func validate(b *models.Brand) error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("brand id is required")
	}
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("brand name is required")
	}
	groupIDs := make(map[string]bool, len(b.Groups))
	for i, g := range b.Groups {
		if strings.TrimSpace(g.ID) == "" {
			return fmt.Errorf("group at index %d has no id", i)
		}
		if groupIDs[g.ID] {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		groupIDs[g.ID] = true
		switch g.Status {
		case "", models.GroupRunning, models.GroupPaused:
		default:
			return fmt.Errorf("group %s has invalid status %q", g.ID, g.Status)
		}
	}
	return nil
}

func setDefaults(b *models.Brand) {
	b.Platforms = normalizePlatforms(b.Platforms)
	for i := range b.Groups {
		g := &b.Groups[i]
		g.BrandID = b.ID
		if g.Name == "" {
			g.Name = g.ID
		}
		if g.Status == "" {
			g.Status = models.GroupRunning
		}
		if g.Frequency == "" {
			g.Frequency = models.Frequency1h
		}
		g.Platforms = normalizePlatforms(g.Platforms)
	}
}

// normalizePlatforms resolves aliases and drops unknown names.
func normalizePlatforms(in []models.Platform) []models.Platform {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Platform, 0, len(in))
	for _, raw := range in {
		p, err := models.ParsePlatform(string(raw))
		if err != nil {
			slog.Warn("[BrandStore] Ignoring unknown platform", slog.String("platform", string(raw)))
			continue
		}
		out = append(out, p)
	}
	return out
}
