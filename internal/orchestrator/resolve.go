package orchestrator

import (
	"strings"

	"github.com/spacesedan/brandpulse/internal/models"
)

// ResolveExecutions derives the units of work for one run. Configured
// keyword groups win; running groups inherit any field they leave empty from
// the brand. A brand without groups gets one synthetic brand-default
// execution. An empty result means there is nothing to do.
func ResolveExecutions(brand models.Brand) []models.Execution {
	if len(brand.Groups) == 0 {
		exec := models.Execution{
			BrandID:         brand.ID,
			BrandName:       brand.Name,
			Keywords:        cleanKeywords(brand.Keywords),
			Platforms:       supportedPlatforms(brand.Platforms),
			IncludeKeywords: brand.IncludeKeywords,
			ExcludeKeywords: brand.ExcludeKeywords,
			Language:        brand.Language,
			Country:         brand.Country,
		}
		if len(exec.Keywords) == 0 || len(exec.Platforms) == 0 {
			return nil
		}
		return []models.Execution{exec}
	}

	var execs []models.Execution
	for _, g := range brand.Groups {
		if g.IsPaused() {
			continue
		}
		exec := models.Execution{
			BrandID:         brand.ID,
			BrandName:       brand.Name,
			GroupID:         g.ID,
			GroupName:       g.Name,
			Keywords:        cleanKeywords(g.Keywords),
			Platforms:       supportedPlatforms(orList(g.Platforms, brand.Platforms)),
			IncludeKeywords: orList(g.IncludeKeywords, brand.IncludeKeywords),
			ExcludeKeywords: orList(g.ExcludeKeywords, brand.ExcludeKeywords),
			Language:        orString(g.Language, brand.Language),
			Country:         orString(g.Country, brand.Country),
		}
		if len(exec.Keywords) == 0 || len(exec.Platforms) == 0 {
			continue
		}
		execs = append(execs, exec)
	}
	return execs
}

// cleanKeywords trims, drops blanks and removes case-insensitive repeats,
// keeping first-seen order.
func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

func supportedPlatforms(in []models.Platform) []models.Platform {
	seen := make(map[models.Platform]bool, len(in))
	out := make([]models.Platform, 0, len(in))
	for _, p := range in {
		if !p.IsSupported() || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func orList[T any](primary, fallback []T) []T {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func orString(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}
