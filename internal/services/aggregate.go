package services

import (
	"github.com/tcgscan/collection-engine/internal/models"
)

// Aggregate reduces a card list to its derived totals. It must be fed the
// exact list being displayed (post-filter, post-sort) so stats and visible
// rows never diverge. Absent numeric fields count as 0; the trend uses the
// same fallback rule as the priceTrend sort key.
func Aggregate(list []models.CollectionEntry) models.AggregateStats {
	var stats models.AggregateStats
	for i := range list {
		e := &list[i]
		stats.TotalCount += e.Quantity + e.QuantityFoil
		stats.TotalValue += e.FromPriceValue()*float64(e.Quantity) +
			e.LowFoilValue()*float64(e.QuantityFoil)
		stats.TotalTrendValue += e.TrendValue() * float64(e.Quantity)
	}
	return stats
}
