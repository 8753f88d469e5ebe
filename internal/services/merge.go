package services

import (
	"github.com/tcgscan/collection-engine/internal/models"
)

// MergeView combines the collection mirror with the full catalog per the
// view mode and returns the working list. The inputs are never mutated.
//
// owned returns the mirror as-is, including zero-quantity rows. missing is
// every catalog card whose cardMarketId does not appear in the mirror,
// wrapped as a zero-quantity entry. all is owned followed by missing; the
// halves are disjoint by construction so no de-duplication pass is needed.
//
// An owned card absent from the loaded catalog (stale catalog cache) stays
// in owned and all: ownership data takes precedence over catalog
// completeness.
func MergeView(owned []models.CollectionEntry, catalog []models.CatalogCard, mode models.ViewMode) []models.CollectionEntry {
	switch mode {
	case models.ViewMissing:
		return missingEntries(owned, catalog)
	case models.ViewAll:
		out := make([]models.CollectionEntry, 0, len(owned)+len(catalog))
		out = append(out, owned...)
		return append(out, missingEntries(owned, catalog)...)
	default:
		out := make([]models.CollectionEntry, len(owned))
		copy(out, owned)
		return out
	}
}

func missingEntries(owned []models.CollectionEntry, catalog []models.CatalogCard) []models.CollectionEntry {
	ownedIDs := make(map[int64]struct{}, len(owned))
	for i := range owned {
		ownedIDs[owned[i].CardMarketID] = struct{}{}
	}

	out := make([]models.CollectionEntry, 0, len(catalog))
	for _, card := range catalog {
		if _, ok := ownedIDs[card.CardMarketID]; ok {
			continue
		}
		out = append(out, models.CollectionEntry{CatalogCard: card})
	}
	return out
}
