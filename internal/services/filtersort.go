package services

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tcgscan/collection-engine/internal/models"
)

// ApplyFilterSort is the pure transform (list, config) -> list'. Steps run
// in a fixed order: expansion filter, search filter, stable sort. The input
// list is never mutated and re-invocation with identical inputs yields the
// same output.
func ApplyFilterSort(list []models.CollectionEntry, cfg models.FilterSortConfig) []models.CollectionEntry {
	out := make([]models.CollectionEntry, 0, len(list))

	if cfg.SelectedExpansion != "" && cfg.SelectedExpansion != models.ExpansionAll {
		for i := range list {
			if list[i].ExpansionKey() == cfg.SelectedExpansion {
				out = append(out, list[i])
			}
		}
	} else {
		out = append(out, list...)
	}

	if q := strings.ToLower(strings.TrimSpace(cfg.SearchQuery)); q != "" {
		kept := out[:0]
		for i := range out {
			if strings.Contains(strings.ToLower(out[i].DisplayName()), q) {
				kept = append(kept, out[i])
			}
		}
		out = kept
	}

	cmp := compareFunc(cfg.SortBy)
	if cmp == nil {
		return out
	}

	dir := 1
	if cfg.SortDir == models.SortDesc {
		dir = -1
	}

	// Stable sort preserves the original relative order of ties.
	sort.SliceStable(out, func(i, j int) bool {
		return dir*cmp(&out[i], &out[j]) < 0
	})
	return out
}

// compareFunc returns the ascending comparator for a sort field, or nil for
// an unknown field (original order kept).
func compareFunc(field models.SortField) func(a, b *models.CollectionEntry) int {
	switch field {
	case models.SortPrice:
		return func(a, b *models.CollectionEntry) int {
			return compareFloat(a.FromPriceValue(), b.FromPriceValue())
		}
	case models.SortPriceTrend:
		return func(a, b *models.CollectionEntry) int {
			return compareFloat(a.TrendValue(), b.TrendValue())
		}
	case models.SortName:
		// Collators are stateful; build one per pipeline run.
		c := collate.New(language.Und)
		return func(a, b *models.CollectionEntry) int {
			return c.CompareString(a.DisplayName(), b.DisplayName())
		}
	case models.SortAvailability:
		return func(a, b *models.CollectionEntry) int {
			return compareInt(a.AvailabilityValue(), b.AvailabilityValue())
		}
	case models.SortDateAdded:
		return func(a, b *models.CollectionEntry) int {
			return compareInt64(a.DateAddedValue(), b.DateAddedValue())
		}
	default:
		return nil
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ExpansionOptions derives the expansion filter choices from a card list:
// "All" first, then the distinct expansion ids in sorted order.
func ExpansionOptions(list []models.CollectionEntry) []models.ExpansionOption {
	seen := make(map[string]struct{})
	var keys []string
	for i := range list {
		key := list[i].ExpansionKey()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	options := make([]models.ExpansionOption, 0, len(keys)+1)
	options = append(options, models.ExpansionOption{ID: models.ExpansionAll, Label: "All Sets"})
	for _, key := range keys {
		options = append(options, models.ExpansionOption{ID: key, Label: key})
	}
	return options
}
