package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/brandpulse/internal/models"
)

// BrandRepository reads brand configuration. Brand and group CRUD lives in
// another service; this side never writes.
type BrandRepository struct {
	db *sql.DB
}

func NewBrandRepository(db *sql.DB) *BrandRepository {
	return &BrandRepository{db: db}
}

const selectBrandColumns = `id, name, keywords, platforms, include_keywords, exclude_keywords, language, country`

const selectGroupColumns = `id, brand_id, name, keywords, platforms, include_keywords, exclude_keywords,
        language, country, frequency, status`

func (r *BrandRepository) GetBrand(ctx context.Context, brandID string) (models.Brand, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectBrandColumns+` FROM brands WHERE id = $1`, brandID)
	brand, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Brand{}, models.ErrBrandNotFound
	}
	if err != nil {
		return models.Brand{}, err
	}

	groups, err := r.listGroups(ctx, `WHERE brand_id = $1`, brandID)
	if err != nil {
		return models.Brand{}, err
	}
	brand.Groups = groups[brandID]
	return brand, nil
}

// ListBrands returns every brand with its keyword groups attached.
func (r *BrandRepository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectBrandColumns+` FROM brands ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []models.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brand rows: %w", err)
	}

	groups, err := r.listGroups(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range brands {
		brands[i].Groups = groups[brands[i].ID]
	}
	return brands, nil
}

func (r *BrandRepository) listGroups(ctx context.Context, where string, args ...any) (map[string][]models.KeywordGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectGroupColumns+` FROM keyword_groups `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]models.KeywordGroup)
	for rows.Next() {
		var (
			g                                     models.KeywordGroup
			keywords, platforms, include, exclude []byte
			frequency, status                     string
		)
		if err := rows.Scan(&g.ID, &g.BrandID, &g.Name, &keywords, &platforms, &include, &exclude,
			&g.Language, &g.Country, &frequency, &status); err != nil {
			return nil, fmt.Errorf("failed to scan keyword group: %w", err)
		}
		if err := decodeLists(keywords, include, exclude, &g.Keywords, &g.IncludeKeywords, &g.ExcludeKeywords); err != nil {
			return nil, fmt.Errorf("keyword group %s: %w", g.ID, err)
		}
		if g.Platforms, err = decodePlatforms(platforms); err != nil {
			return nil, fmt.Errorf("keyword group %s: %w", g.ID, err)
		}
		g.Frequency = models.Frequency(frequency)
		g.Status = models.GroupStatus(status)
		groups[g.BrandID] = append(groups[g.BrandID], g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword group rows: %w", err)
	}
	return groups, nil
}

func scanBrand(row scanner) (models.Brand, error) {
	var (
		b                                     models.Brand
		keywords, platforms, include, exclude []byte
	)
	if err := row.Scan(&b.ID, &b.Name, &keywords, &platforms, &include, &exclude, &b.Language, &b.Country); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("failed to scan brand row: %w", err)
	}
	if err := decodeLists(keywords, include, exclude, &b.Keywords, &b.IncludeKeywords, &b.ExcludeKeywords); err != nil {
		return b, fmt.Errorf("brand %s: %w", b.ID, err)
	}
	platformList, err := decodePlatforms(platforms)
	if err != nil {
		return b, fmt.Errorf("brand %s: %w", b.ID, err)
	}
	b.Platforms = platformList
	return b, nil
}

func decodeLists(keywords, include, exclude []byte, kwDst, incDst, excDst *[]string) error {
	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{{keywords, kwDst}, {include, incDst}, {exclude, excDst}} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return fmt.Errorf("invalid keyword list: %w", err)
		}
	}
	return nil
}

// decodePlatforms drops names that are not known platforms instead of
// failing the whole brand.
func decodePlatforms(raw []byte) ([]models.Platform, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("invalid platform list: %w", err)
	}
	platforms := make([]models.Platform, 0, len(names))
	for _, name := range names {
		p, err := models.ParsePlatform(name)
		if err != nil {
			slog.Warn("[BrandRepository] Ignoring unknown platform", slog.String("platform", name))
			continue
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}
