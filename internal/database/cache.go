package database

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tcgscan/collection-engine/internal/models"
)

const (
	snapshotKindCollection = "collection"
	snapshotKindCatalog    = "catalog"
	snapshotKindExpansions = "expansions"
)

// SnapshotCache stores the last good remote payload per game so the app can
// come up with data before (or without) the first successful fetch.
type SnapshotCache struct {
	db *gorm.DB
}

// NewSnapshotCache creates a snapshot cache on top of the given database.
func NewSnapshotCache(db *gorm.DB) *SnapshotCache {
	return &SnapshotCache{db: db}
}

// SaveCollection persists the collection mirror for a game.
func (c *SnapshotCache) SaveCollection(tcgID int64, entries []models.CollectionEntry) error {
	return c.save(snapshotKindCollection, strconv.FormatInt(tcgID, 10), entries)
}

// LoadCollection returns the cached collection mirror for a game.
// A missing snapshot returns an empty list, not an error.
func (c *SnapshotCache) LoadCollection(tcgID int64) ([]models.CollectionEntry, error) {
	var entries []models.CollectionEntry
	if err := c.load(snapshotKindCollection, strconv.FormatInt(tcgID, 10), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveCatalog persists the full card catalog for a game.
func (c *SnapshotCache) SaveCatalog(tcgName string, cards []models.CatalogCard) error {
	return c.save(snapshotKindCatalog, tcgName, cards)
}

// LoadCatalog returns the cached catalog for a game.
func (c *SnapshotCache) LoadCatalog(tcgName string) ([]models.CatalogCard, error) {
	var cards []models.CatalogCard
	if err := c.load(snapshotKindCatalog, tcgName, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// SaveExpansions persists the expansion list for a game.
func (c *SnapshotCache) SaveExpansions(tcgName string, expansions []models.Expansion) error {
	return c.save(snapshotKindExpansions, tcgName, expansions)
}

// LoadExpansions returns the cached expansion list for a game.
func (c *SnapshotCache) LoadExpansions(tcgName string) ([]models.Expansion, error) {
	var expansions []models.Expansion
	if err := c.load(snapshotKindExpansions, tcgName, &expansions); err != nil {
		return nil, err
	}
	return expansions, nil
}

// save upserts one snapshot row keyed by (kind, game_key).
func (c *SnapshotCache) save(kind, gameKey string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", kind, err)
	}

	snapshot := models.CachedSnapshot{
		Kind:    kind,
		GameKey: gameKey,
		Payload: data,
	}

	err = c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "game_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to save %s snapshot for %s: %w", kind, gameKey, err)
	}
	return nil
}

func (c *SnapshotCache) load(kind, gameKey string, out any) error {
	var snapshot models.CachedSnapshot
	err := c.db.Where("kind = ? AND game_key = ?", kind, gameKey).First(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return fmt.Errorf("failed to load %s snapshot for %s: %w", kind, gameKey, err)
	}
	if err := json.Unmarshal(snapshot.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s snapshot for %s: %w", kind, gameKey, err)
	}
	return nil
}
