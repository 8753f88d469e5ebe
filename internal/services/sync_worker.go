package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tcgscan/collection-engine/internal/metrics"
)

const defaultSyncInterval = 15 * time.Minute

// SyncWorker periodically reconciles the collection mirror and refreshes the
// catalog snapshot for the active game, so prices and quantities stay
// current even when the user never pulls to refresh.
type SyncWorker struct {
	store    *CollectionStore
	catalog  *CatalogFetcher
	games    *GameState
	interval time.Duration

	mu            sync.RWMutex
	lastSync      time.Time
	lastSyncErr   error
	syncsRunToday int
	lastStatsDay  time.Time
}

// SyncStatus reports the worker's bookkeeping for the status endpoint.
type SyncStatus struct {
	LastSyncTime  time.Time `json:"last_sync_time"`
	NextSyncTime  time.Time `json:"next_sync_time"`
	SyncsRunToday int       `json:"syncs_run_today"`
	LastError     string    `json:"last_error,omitempty"`
}

func NewSyncWorker(store *CollectionStore, catalog *CatalogFetcher, games *GameState, interval time.Duration) *SyncWorker {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &SyncWorker{
		store:    store,
		catalog:  catalog,
		games:    games,
		interval: interval,
	}
}

// Start begins the background reconciliation loop. It returns when ctx is
// cancelled.
func (w *SyncWorker) Start(ctx context.Context) {
	log.Printf("Sync worker started: reconciling %q every %v", w.games.Current().Name, w.interval)

	// Run immediately on startup
	w.sync(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sync worker stopping...")
			return
		case <-ticker.C:
			w.sync(ctx)
		}
	}
}

func (w *SyncWorker) sync(ctx context.Context) {
	w.resetDailyStatsIfNeeded()

	var firstErr error
	if _, err := w.store.FetchCollection(ctx); err != nil {
		firstErr = err
		log.Printf("Sync worker: collection resync failed: %v", err)
	}
	if _, err := w.catalog.FetchCards(ctx, w.games.Current().Name); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		log.Printf("Sync worker: catalog refresh failed: %v", err)
	}

	w.mu.Lock()
	w.lastSync = time.Now()
	w.lastSyncErr = firstErr
	w.syncsRunToday++
	w.mu.Unlock()

	if firstErr != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.SyncRunsTotal.WithLabelValues("success").Inc()
	metrics.SyncLastSuccessTimestamp.Set(float64(time.Now().Unix()))
}

// resetDailyStatsIfNeeded resets syncsRunToday at midnight.
func (w *SyncWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if w.lastStatsDay.Before(today) {
		w.syncsRunToday = 0
		w.lastStatsDay = today
	}
}

// Status returns the current worker bookkeeping.
func (w *SyncWorker) Status() SyncStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := SyncStatus{
		LastSyncTime:  w.lastSync,
		SyncsRunToday: w.syncsRunToday,
	}
	if !w.lastSync.IsZero() {
		status.NextSyncTime = w.lastSync.Add(w.interval)
	}
	if w.lastSyncErr != nil {
		status.LastError = w.lastSyncErr.Error()
	}
	return status
}
