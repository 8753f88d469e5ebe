package models

import (
	"strconv"
)

// Game identifies a trading card game. The collection service keys games by
// numeric id, the catalog service by name.
type Game struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CatalogCard is one known card printing for a game, with the pricing
// snapshot the catalog service returns alongside it. Numeric price fields are
// pointers: absent values stay absent for display and coerce to 0 only when
// a derivation needs a number.
type CatalogCard struct {
	CardMarketID int64  `json:"cardMarketId"`
	CardID       *int64 `json:"card_id,omitempty"`
	TCGID        int64  `json:"tcg_id,omitempty"`
	ExpansionID  *int64 `json:"expansion_id,omitempty"`
	Name         string `json:"name"`
	CardName     string `json:"card_name,omitempty"`
	Rarity       string `json:"rarity,omitempty"`

	FromPrice  *float64 `json:"from_price,omitempty"`
	PriceFoil  *float64 `json:"price_foil,omitempty"`
	PriceTrend *float64 `json:"price_trend,omitempty"`
	Avg        *float64 `json:"avg,omitempty"`
	Avg1d      *float64 `json:"avg_1d,omitempty"`
	Avg7d      *float64 `json:"avg_7d,omitempty"`
	Avg30d     *float64 `json:"avg_30d,omitempty"`
	LowFoil    *float64 `json:"low_foil,omitempty"`
	TrendFoil  *float64 `json:"trend_foil,omitempty"`
	Avg1Foil   *float64 `json:"avg_1_foil,omitempty"`
	Avg7Foil   *float64 `json:"avg_7_foil,omitempty"`
	Avg30Foil  *float64 `json:"avg_30_foil,omitempty"`

	Available     *int `json:"available,omitempty"`
	AvailableFoil *int `json:"available_foil,omitempty"`
	Stock         *int `json:"stock,omitempty"`

	CardURL  string `json:"card_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// DisplayName returns the card's name for search and display.
// Fallback order: card_name, then name.
func (c *CatalogCard) DisplayName() string {
	if c.CardName != "" {
		return c.CardName
	}
	return c.Name
}

// ExpansionKey returns the stringified expansion id used by the expansion
// filter, or "" when the card carries no expansion.
func (c *CatalogCard) ExpansionKey() string {
	if c.ExpansionID == nil {
		return ""
	}
	return strconv.FormatInt(*c.ExpansionID, 10)
}

// FromPriceValue returns the standard-print price, 0 when absent.
func (c *CatalogCard) FromPriceValue() float64 {
	return floatOrZero(c.FromPrice)
}

// LowFoilValue returns the lowest foil price, 0 when absent.
func (c *CatalogCard) LowFoilValue() float64 {
	return floatOrZero(c.LowFoil)
}

// TrendValue returns the price-trend signal used by both the priceTrend sort
// and the trend aggregation. Fallback order: price_trend when present and
// non-zero; the foil trend when no standard averages (avg, avg_1d) exist;
// otherwise 0. No standard-print trend data means the foil trend is the best
// available signal.
func (c *CatalogCard) TrendValue() float64 {
	if t := floatOrZero(c.PriceTrend); t != 0 {
		return t
	}
	if floatOrZero(c.Avg) == 0 && floatOrZero(c.Avg1d) == 0 {
		return floatOrZero(c.TrendFoil)
	}
	return 0
}

// AvailabilityValue returns how many copies are listed.
// Fallback order: available, available_foil, stock, 0.
func (c *CatalogCard) AvailabilityValue() int {
	if c.Available != nil {
		return *c.Available
	}
	if c.AvailableFoil != nil {
		return *c.AvailableFoil
	}
	if c.Stock != nil {
		return *c.Stock
	}
	return 0
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Expansion is one entry of the catalog service's per-game expansion list.
// The service is inconsistent about the label field, hence both.
type Expansion struct {
	ID    *int64 `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
}

// DisplayName returns the expansion label. Fallback order: name, then title.
func (e *Expansion) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Title
}
