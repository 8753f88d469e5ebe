package database

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tcgscan/collection-engine/internal/models"
)

func newTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.CachedSnapshot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewSnapshotCache(db)
}

func fp(v float64) *float64 { return &v }

func TestCollectionSnapshotRoundtrip(t *testing.T) {
	cache := newTestCache(t)

	entries := []models.CollectionEntry{
		{
			CatalogCard: models.CatalogCard{CardMarketID: 7, Name: "Goku", FromPrice: fp(5)},
			Quantity:    2,
		},
	}
	if err := cache.SaveCollection(1, entries); err != nil {
		t.Fatalf("SaveCollection failed: %v", err)
	}

	loaded, err := cache.LoadCollection(1)
	if err != nil {
		t.Fatalf("LoadCollection failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].CardMarketID != 7 || loaded[0].Quantity != 2 {
		t.Errorf("loaded = %+v, want the saved entry back", loaded)
	}
	if loaded[0].FromPrice == nil || *loaded[0].FromPrice != 5 {
		t.Errorf("from_price not preserved: %+v", loaded[0].FromPrice)
	}
}

func TestCollectionSnapshotIsolatedPerGame(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.SaveCollection(1, []models.CollectionEntry{
		{CatalogCard: models.CatalogCard{CardMarketID: 7}, Quantity: 1},
	}); err != nil {
		t.Fatalf("SaveCollection failed: %v", err)
	}

	loaded, err := cache.LoadCollection(2)
	if err != nil {
		t.Fatalf("LoadCollection failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("game 2 returned game 1's snapshot: %+v", loaded)
	}
}

func TestSnapshotUpsertOverwrites(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.SaveCatalog("dbfw", []models.CatalogCard{{CardMarketID: 1, Name: "Goku"}}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := cache.SaveCatalog("dbfw", []models.CatalogCard{
		{CardMarketID: 1, Name: "Goku"},
		{CardMarketID: 2, Name: "Vegeta"},
	}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := cache.LoadCatalog("dbfw")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("got %d cards after overwrite, want 2", len(loaded))
	}
}

func TestMissingSnapshotIsEmptyNotError(t *testing.T) {
	cache := newTestCache(t)

	cards, err := cache.LoadCatalog("never saved")
	if err != nil {
		t.Fatalf("LoadCatalog of a missing snapshot returned error: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("missing snapshot returned %d cards, want 0", len(cards))
	}

	exps, err := cache.LoadExpansions("never saved")
	if err != nil {
		t.Fatalf("LoadExpansions of a missing snapshot returned error: %v", err)
	}
	if len(exps) != 0 {
		t.Errorf("missing snapshot returned %d expansions, want 0", len(exps))
	}
}

func TestExpansionsSnapshotRoundtrip(t *testing.T) {
	cache := newTestCache(t)

	id := int64(3)
	if err := cache.SaveExpansions("dbfw", []models.Expansion{{ID: &id, Name: "Awakened Pulse"}}); err != nil {
		t.Fatalf("SaveExpansions failed: %v", err)
	}

	loaded, err := cache.LoadExpansions("dbfw")
	if err != nil {
		t.Fatalf("LoadExpansions failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].DisplayName() != "Awakened Pulse" {
		t.Errorf("loaded = %+v, want the saved expansion back", loaded)
	}
}
