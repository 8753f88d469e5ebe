package models

import (
	"time"
)

// CachedSnapshot persists the last good payload fetched from a remote
// service, keyed by kind ("collection" or "catalog") and game. A failed load
// on the next start still renders the cached list instead of nothing.
type CachedSnapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind      string    `json:"kind" gorm:"not null;uniqueIndex:idx_snapshot_kind_game"`
	GameKey   string    `json:"game_key" gorm:"not null;uniqueIndex:idx_snapshot_kind_game"`
	Payload   []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
