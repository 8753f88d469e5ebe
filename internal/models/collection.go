package models

import (
	"time"
)

// CollectionEntry extends a catalog card's identity with the user's ownership
// state as returned by the collection service. An entry with zero quantities
// is known-but-unowned, which is still distinct from a card that only exists
// in the catalog.
type CollectionEntry struct {
	CatalogCard

	UserCollectionID      int64  `json:"user_collection_id,omitempty"`
	UserID                int64  `json:"user_id,omitempty"`
	Quantity              int    `json:"quantity"`
	QuantityFoil          int    `json:"quantity_foil,omitempty"`
	CollectionLastUpdated string `json:"collection_last_updated,omitempty"`
}

// Owned reports whether the user currently holds at least one copy.
func (e *CollectionEntry) Owned() bool {
	return e.Quantity > 0 || e.QuantityFoil > 0
}

// dateAddedLayouts are tried in order when parsing collection_last_updated.
// The collection service emits RFC3339, older rows a bare date-time or date.
var dateAddedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DateAddedValue returns collection_last_updated as Unix milliseconds for
// the dateAdded sort. Missing or unparseable timestamps sort as epoch 0.
func (e *CollectionEntry) DateAddedValue() int64 {
	if e.CollectionLastUpdated == "" {
		return 0
	}
	for _, layout := range dateAddedLayouts {
		if t, err := time.Parse(layout, e.CollectionLastUpdated); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// ViewMode selects which merge of collection and catalog feeds the working
// list. Transient UI state, never persisted.
type ViewMode string

const (
	ViewOwned   ViewMode = "owned"
	ViewMissing ViewMode = "missing"
	ViewAll     ViewMode = "all"
)

// ParseViewMode maps a query-string value to a ViewMode, defaulting to owned.
func ParseViewMode(s string) ViewMode {
	switch ViewMode(s) {
	case ViewMissing:
		return ViewMissing
	case ViewAll:
		return ViewAll
	default:
		return ViewOwned
	}
}

// SortField selects the sort key of the filter/sort pipeline.
type SortField string

const (
	SortPrice        SortField = "price"
	SortPriceTrend   SortField = "priceTrend"
	SortName         SortField = "name"
	SortAvailability SortField = "availability"
	SortDateAdded    SortField = "dateAdded"
)

// SortDirection is "asc" or "desc".
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ExpansionAll disables the expansion filter.
const ExpansionAll = "All"

// FilterSortConfig is the pure value object driving one pipeline invocation.
type FilterSortConfig struct {
	SearchQuery       string        `json:"search_query"`
	SelectedExpansion string        `json:"selected_expansion"`
	SortBy            SortField     `json:"sort_by"`
	SortDir           SortDirection `json:"sort_dir"`
}

// AggregateStats are the derived totals over a displayed list. Always a pure
// function of the list passed in, never cached.
type AggregateStats struct {
	TotalCount      int     `json:"total_count"`
	TotalValue      float64 `json:"total_value"`
	TotalTrendValue float64 `json:"total_trend_value"`
}

// ExpansionOption is one entry of the expansion filter dropdown.
type ExpansionOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AddCardRequest is the delta payload of the collection service's addCard
// operation. Exactly one of CardMarketID / CardID identifies the card;
// card_market_id is preferred. A nil Quantity means the caller omitted it
// and the default of 1 applies; an explicit 0 is honored (foil-only add).
type AddCardRequest struct {
	CardMarketID *int64 `json:"card_market_id,omitempty"`
	CardID       *int64 `json:"card_id,omitempty"`
	Quantity     *int   `json:"quantity"`
	QuantityFoil int    `json:"quantity_foil"`
}

// RemoveCardRequest is the delta payload of removeCard. Quantities are
// non-negative magnitudes to subtract.
type RemoveCardRequest struct {
	CardMarketID int64 `json:"card_market_id"`
	Quantity     int   `json:"quantity"`
	QuantityFoil int   `json:"quantity_foil"`
}

// SwitchGameRequest selects a different game for the whole app.
type SwitchGameRequest struct {
	TCGID   int64  `json:"tcg_id"`
	TCGName string `json:"tcg_name"`
}

// UpdateQuantityRequest sets an absolute target quantity for a card; the
// store converts it into the service's delta protocol.
type UpdateQuantityRequest struct {
	CardMarketID int64 `json:"card_market_id"`
	Quantity     int   `json:"quantity"`
}

// MutationResponse is the collection service's reply to add/remove calls.
type MutationResponse struct {
	Success          bool   `json:"success"`
	UserCollectionID *int64 `json:"user_collection_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

// CollectionViewResponse is the UI-facing recomputation result: the merged,
// filtered, sorted rows plus the stats derived from exactly those rows.
type CollectionViewResponse struct {
	Cards      []CollectionEntry `json:"cards"`
	Stats      AggregateStats    `json:"stats"`
	Expansions []ExpansionOption `json:"expansions"`
}
