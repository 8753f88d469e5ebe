package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcgscan/collection-engine/internal/database"
	"github.com/tcgscan/collection-engine/internal/metrics"
	"github.com/tcgscan/collection-engine/internal/models"
)

const collectionDefaultTimeout = 10 * time.Second

// TokenSource supplies the bearer credential for the collection service.
// Token storage and refresh belong to the auth collaborator, not the store.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource around a fixed credential.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", fmt.Errorf("no credential configured")
	}
	return string(t), nil
}

// CollectionStore holds the authoritative local mirror of the user's owned
// cards and keeps it consistent with the collection service through delta
// mutations reconciled by refetch. The remote service is the single source
// of truth for quantities: the store never does local optimistic arithmetic,
// so its mirror can never go negative ahead of a resync.
//
// Mutations are not serialized against each other. Two rapid mutations for
// the same card before the resync completes can race; each request carries
// an idempotency key so the service can drop duplicate deliveries, and the
// final refetch wins. This is a known limitation of the delta protocol.
type CollectionStore struct {
	client  *http.Client
	baseURL string
	tokens  TokenSource
	cache   *database.SnapshotCache

	mu         sync.RWMutex
	entries    []models.CollectionEntry
	tcgID      int64
	generation uint64
}

// NewCollectionStore creates a collection store for the given game. tokens
// must not be nil; snapshots may be nil to disable the offline cache.
func NewCollectionStore(baseURL string, tcgID int64, tokens TokenSource, snapshots *database.SnapshotCache) *CollectionStore {
	return &CollectionStore{
		client: &http.Client{
			Timeout: collectionDefaultTimeout,
		},
		baseURL: baseURL,
		tcgID:   tcgID,
		tokens:  tokens,
		cache:   snapshots,
	}
}

// Entries returns a copy of the current mirror. Downstream transforms work
// on this snapshot and never mutate store state.
func (s *CollectionStore) Entries() []models.CollectionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CollectionEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ActiveGame returns the game id the mirror currently belongs to.
func (s *CollectionStore) ActiveGame() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tcgID
}

// SetActiveGame switches the selected game. Any in-flight fetch for the
// previous selection is invalidated and will not commit its result.
func (s *CollectionStore) SetActiveGame(tcgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcgID == tcgID {
		return
	}
	s.tcgID = tcgID
	s.generation++
	s.entries = nil
}

// Invalidate prevents any in-flight fetch from committing, without touching
// the current mirror. Used when the consuming view goes away.
func (s *CollectionStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// LoadCached hydrates the mirror from the offline snapshot cache. Only used
// at startup, before the first fetch; a populated mirror is left alone.
func (s *CollectionStore) LoadCached() {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 {
		return
	}
	entries, err := s.cache.LoadCollection(s.tcgID)
	if err != nil {
		log.Printf("Collection store: failed to load cached collection: %v", err)
		return
	}
	if len(entries) > 0 {
		s.entries = entries
		log.Printf("Collection store: loaded %d cached entries for game %d", len(entries), s.tcgID)
	}
}

// FetchCollection replaces the mirror with the service's current snapshot.
// On failure the previous mirror is retained untouched. Only the newest
// fetch for the currently selected game commits: a result arriving after a
// newer fetch started, or after the game switched, is discarded and the
// committed mirror is returned in its place.
func (s *CollectionStore) FetchCollection(ctx context.Context) ([]models.CollectionEntry, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	tcgID := s.tcgID
	s.mu.Unlock()

	rows, err := s.fetchRemote(ctx, tcgID)
	if err != nil {
		metrics.CollectionFetchesTotal.WithLabelValues("error").Inc()
		log.Printf("Collection store: fetch failed for game %d, keeping previous snapshot: %v", tcgID, err)
		return nil, err
	}

	s.mu.Lock()
	if gen != s.generation || tcgID != s.tcgID {
		// Superseded: hand back the committed mirror, never the stale rows.
		committed := make([]models.CollectionEntry, len(s.entries))
		copy(committed, s.entries)
		s.mu.Unlock()
		metrics.CollectionFetchesTotal.WithLabelValues("discarded").Inc()
		log.Printf("Collection store: discarding stale fetch result for game %d (generation %d)", tcgID, gen)
		return committed, nil
	}
	s.entries = rows
	s.mu.Unlock()

	metrics.CollectionFetchesTotal.WithLabelValues("success").Inc()
	s.publishStats(rows)

	if s.cache != nil {
		if err := s.cache.SaveCollection(tcgID, rows); err != nil {
			log.Printf("Collection store: failed to persist collection snapshot: %v", err)
		}
	}
	return rows, nil
}

// AddCard sends a positive delta for the card to the collection service and
// resynchronizes via FetchCollection. Identity resolution prefers
// cardMarketId, falls back to card_id, and fails with NotFoundError when
// neither is usable. Returns the server-assigned user collection id.
//
// Errors are returned for the caller to log or map to a sentinel; they must
// not abort a render cycle. The mirror is unchanged on failure because the
// post-mutation refetch simply does not happen.
func (s *CollectionStore) AddCard(ctx context.Context, card models.CatalogCard, quantity, quantityFoil int) (int64, error) {
	if quantity < 0 || quantityFoil < 0 {
		return 0, fmt.Errorf("add card: quantities must be non-negative (got %d/%d)", quantity, quantityFoil)
	}

	req := models.AddCardRequest{
		Quantity:     &quantity,
		QuantityFoil: quantityFoil,
	}
	switch {
	case card.CardMarketID != 0:
		id := card.CardMarketID
		req.CardMarketID = &id
	case card.CardID != nil:
		req.CardID = card.CardID
	default:
		metrics.CollectionMutationsTotal.WithLabelValues("add", "error").Inc()
		return 0, &models.NotFoundError{Op: "add card"}
	}

	resp, err := s.postMutation(ctx, "addCard", req)
	if err != nil {
		metrics.CollectionMutationsTotal.WithLabelValues("add", "error").Inc()
		log.Printf("Collection store: add card failed: %v", err)
		return 0, err
	}
	metrics.CollectionMutationsTotal.WithLabelValues("add", "success").Inc()

	// Remote state is authoritative; resync instead of trusting local math.
	if _, err := s.FetchCollection(ctx); err != nil {
		log.Printf("Collection store: resync after add failed: %v", err)
	}

	if resp.UserCollectionID == nil {
		return 0, nil
	}
	return *resp.UserCollectionID, nil
}

// RemoveCard sends a remove-N delta for the card and resynchronizes.
// quantity and quantityFoil are non-negative magnitudes to subtract; the
// store refuses to send negative quantities to the service.
func (s *CollectionStore) RemoveCard(ctx context.Context, cardMarketID int64, quantity, quantityFoil int) error {
	if quantity < 0 || quantityFoil < 0 {
		return fmt.Errorf("remove card: quantities must be non-negative magnitudes (got %d/%d)", quantity, quantityFoil)
	}

	req := models.RemoveCardRequest{
		CardMarketID: cardMarketID,
		Quantity:     quantity,
		QuantityFoil: quantityFoil,
	}
	if _, err := s.postMutation(ctx, "removeCard", req); err != nil {
		metrics.CollectionMutationsTotal.WithLabelValues("remove", "error").Inc()
		log.Printf("Collection store: remove card failed: %v", err)
		return err
	}
	metrics.CollectionMutationsTotal.WithLabelValues("remove", "success").Inc()

	if _, err := s.FetchCollection(ctx); err != nil {
		log.Printf("Collection store: resync after remove failed: %v", err)
	}
	return nil
}

// UpdateCardQuantity converts an absolute target quantity into the delta
// protocol: an add for a positive delta, a remove for a negative one, a
// no-op for zero. This is the only place an absolute quantity enters the
// mutation path.
func (s *CollectionStore) UpdateCardQuantity(ctx context.Context, cardMarketID int64, targetQuantity int) error {
	if targetQuantity < 0 {
		return fmt.Errorf("update quantity: target must be non-negative (got %d)", targetQuantity)
	}

	current := 0
	s.mu.RLock()
	for i := range s.entries {
		if s.entries[i].CardMarketID == cardMarketID {
			current = s.entries[i].Quantity
			break
		}
	}
	s.mu.RUnlock()

	delta := targetQuantity - current
	switch {
	case delta == 0:
		return nil
	case delta > 0:
		_, err := s.AddCard(ctx, models.CatalogCard{CardMarketID: cardMarketID}, delta, 0)
		return err
	default:
		return s.RemoveCard(ctx, cardMarketID, -delta, 0)
	}
}

// fetchRemote retrieves the collection snapshot for a game.
func (s *CollectionStore) fetchRemote(ctx context.Context, tcgID int64) ([]models.CollectionEntry, error) {
	op := "fetch collection"

	token, err := s.tokens.Token()
	if err != nil {
		return nil, &models.AuthError{Op: op}
	}

	params := url.Values{}
	if tcgID != 0 {
		params.Set("tcg_id", strconv.FormatInt(tcgID, 10))
	}
	reqURL := fmt.Sprintf("%s/collection/", s.baseURL)
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &models.AuthError{Op: op}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.NetworkError{Op: op, Status: resp.StatusCode}
	}

	var rows []models.CollectionEntry
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if rows == nil {
		rows = []models.CollectionEntry{}
	}
	return rows, nil
}

// postMutation delivers one delta to the collection service. Every request
// carries a fresh idempotency key so retried or duplicated deliveries of the
// same mutation are safe to drop server-side.
func (s *CollectionStore) postMutation(ctx context.Context, action string, payload any) (*models.MutationResponse, error) {
	op := "collection " + action

	token, err := s.tokens.Token()
	if err != nil {
		return nil, &models.AuthError{Op: op}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/collection/%s", s.baseURL, action)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &models.AuthError{Op: op}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &models.NetworkError{Op: op, Status: resp.StatusCode}
	}

	var result models.MutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !result.Success {
		if result.Error != "" {
			return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("service error: %s", result.Error)}
		}
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("service returned unsuccessful response")}
	}
	return &result, nil
}

// publishStats exports mirror-level gauges after a successful commit.
func (s *CollectionStore) publishStats(entries []models.CollectionEntry) {
	stats := Aggregate(entries)
	metrics.CollectionCardsTotal.Set(float64(stats.TotalCount))
	metrics.CollectionValueEUR.Set(stats.TotalValue)
}
