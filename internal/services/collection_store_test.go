package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tcgscan/collection-engine/internal/models"
)

// fakeCollectionService implements the remote collection service contract:
// a snapshot GET plus delta-based addCard/removeCard mutations.
type fakeCollectionService struct {
	mu          sync.Mutex
	entries     map[int64]*models.CollectionEntry
	nextID      int64
	failFetch   bool
	failMutate  bool
	addCalls    []models.AddCardRequest
	removeCalls []models.RemoveCardRequest
	idemKeys    []string
	fetchGate   chan struct{} // when set, GET blocks until closed
}

func newFakeCollectionService() *fakeCollectionService {
	return &fakeCollectionService{
		entries: make(map[int64]*models.CollectionEntry),
		nextID:  1,
	}
}

func (f *fakeCollectionService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/collection/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.mu.Lock()
		gate := f.fetchGate
		fail := f.failFetch
		rows := make([]models.CollectionEntry, 0, len(f.entries))
		for _, e := range f.entries {
			rows = append(rows, *e)
		}
		f.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(rows)
	})

	mux.HandleFunc("/collection/addCard", func(w http.ResponseWriter, r *http.Request) {
		var req models.AddCardRequest
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.addCalls = append(f.addCalls, req)
		f.idemKeys = append(f.idemKeys, r.Header.Get("X-Idempotency-Key"))

		if f.failMutate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		id := int64(0)
		if req.CardMarketID != nil {
			id = *req.CardMarketID
		} else if req.CardID != nil {
			id = *req.CardID
		}
		e, ok := f.entries[id]
		if !ok {
			e = &models.CollectionEntry{
				CatalogCard:      models.CatalogCard{CardMarketID: id},
				UserCollectionID: f.nextID,
			}
			f.nextID++
			f.entries[id] = e
		}
		if req.Quantity != nil {
			e.Quantity += *req.Quantity
		}
		e.QuantityFoil += req.QuantityFoil
		e.CollectionLastUpdated = time.Now().UTC().Format(time.RFC3339)

		json.NewEncoder(w).Encode(models.MutationResponse{
			Success:          true,
			UserCollectionID: &e.UserCollectionID,
		})
	})

	mux.HandleFunc("/collection/removeCard", func(w http.ResponseWriter, r *http.Request) {
		var req models.RemoveCardRequest
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.removeCalls = append(f.removeCalls, req)

		if f.failMutate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if e, ok := f.entries[req.CardMarketID]; ok {
			e.Quantity -= req.Quantity
			if e.Quantity < 0 {
				e.Quantity = 0
			}
			e.QuantityFoil -= req.QuantityFoil
			if e.QuantityFoil < 0 {
				e.QuantityFoil = 0
			}
		}
		json.NewEncoder(w).Encode(models.MutationResponse{Success: true})
	})

	return mux
}

func newTestStore(t *testing.T, fake *fakeCollectionService) (*CollectionStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	store := NewCollectionStore(srv.URL, 1, StaticToken("test-token"), nil)
	return store, srv
}

func TestAddCardThenFetch(t *testing.T) {
	fake := newFakeCollectionService()
	fake.nextID = 42
	store, _ := newTestStore(t, fake)

	id, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 3, 0)
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if id != 42 {
		t.Errorf("AddCard returned id %d, want 42", id)
	}

	// The resync after the mutation is the source of truth
	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("mirror has %d entries after add+resync, want 1", len(entries))
	}
	if entries[0].CardMarketID != 7 || entries[0].Quantity != 3 {
		t.Errorf("mirror entry = %+v, want cardMarketId 7 quantity 3", entries[0])
	}

	if len(fake.idemKeys) != 1 || fake.idemKeys[0] == "" {
		t.Error("mutation did not carry an idempotency key")
	}
}

func TestAddCardPrefersCardMarketID(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	cardID := int64(5)
	_, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7, CardID: &cardID}, 1, 0)
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}

	req := fake.addCalls[0]
	if req.CardMarketID == nil || *req.CardMarketID != 7 {
		t.Errorf("add request sent %+v, want card_market_id 7", req)
	}
	if req.CardID != nil {
		t.Error("add request sent card_id although card_market_id was usable")
	}
}

func TestAddCardFallsBackToCardID(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	cardID := int64(5)
	_, err := store.AddCard(context.Background(), models.CatalogCard{CardID: &cardID}, 1, 0)
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	req := fake.addCalls[0]
	if req.CardID == nil || *req.CardID != 5 {
		t.Errorf("add request sent %+v, want card_id 5", req)
	}
}

func TestAddCardNoIdentity(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	_, err := store.AddCard(context.Background(), models.CatalogCard{}, 1, 0)
	var nfe *models.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("AddCard with no identity returned %v, want NotFoundError", err)
	}
	if len(fake.addCalls) != 0 {
		t.Error("a request was sent despite the unresolvable identity")
	}
}

func TestAddCardFoilOnlySendsExplicitZero(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	if _, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 0, 2); err != nil {
		t.Fatalf("foil-only add failed: %v", err)
	}

	req := fake.addCalls[0]
	if req.Quantity == nil || *req.Quantity != 0 {
		t.Errorf("add request sent quantity %v, want explicit 0", req.Quantity)
	}
	if req.QuantityFoil != 2 {
		t.Errorf("add request sent quantity_foil %d, want 2", req.QuantityFoil)
	}

	entries := store.Entries()
	if len(entries) != 1 || entries[0].Quantity != 0 || entries[0].QuantityFoil != 2 {
		t.Errorf("mirror = %+v, want 0 standard / 2 foil copies", entries)
	}
}

func TestFetchFailureRetainsPreviousSnapshot(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	if _, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 2, 0); err != nil {
		t.Fatalf("seed add failed: %v", err)
	}

	fake.mu.Lock()
	fake.failFetch = true
	fake.mu.Unlock()

	if _, err := store.FetchCollection(context.Background()); err == nil {
		t.Fatal("FetchCollection succeeded against a failing service")
	}

	entries := store.Entries()
	if len(entries) != 1 || entries[0].Quantity != 2 {
		t.Errorf("previous snapshot not retained after failed fetch: %+v", entries)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	fake := newFakeCollectionService()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := NewCollectionStore(srv.URL, 1, StaticToken("wrong-token"), nil)
	_, err := store.FetchCollection(context.Background())
	if !models.IsAuthError(err) {
		t.Fatalf("FetchCollection returned %v, want AuthError", err)
	}
}

func TestMutationFailureLeavesStateUnchanged(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	if _, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 2, 0); err != nil {
		t.Fatalf("seed add failed: %v", err)
	}

	fake.mu.Lock()
	fake.failMutate = true
	fake.mu.Unlock()

	if _, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 5, 0); err == nil {
		t.Fatal("AddCard succeeded against a failing service")
	}

	entries := store.Entries()
	if len(entries) != 1 || entries[0].Quantity != 2 {
		t.Errorf("mirror changed after failed mutation: %+v", entries)
	}
}

func TestRemoveCardRejectsNegativeMagnitudes(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	if err := store.RemoveCard(context.Background(), 7, -1, 0); err == nil {
		t.Fatal("RemoveCard accepted a negative magnitude")
	}
	if len(fake.removeCalls) != 0 {
		t.Error("a negative quantity reached the service")
	}
}

func TestUpdateCardQuantity(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	// Seed: quantity 2, mirror synced
	if _, err := store.AddCard(context.Background(), models.CatalogCard{CardMarketID: 7}, 2, 0); err != nil {
		t.Fatalf("seed add failed: %v", err)
	}

	// Raise to 5: one add with delta 3
	if err := store.UpdateCardQuantity(context.Background(), 7, 5); err != nil {
		t.Fatalf("UpdateCardQuantity(5) failed: %v", err)
	}
	if n := len(fake.addCalls); n != 2 {
		t.Fatalf("expected 2 add calls (seed + delta), got %d", n)
	}
	if got := fake.addCalls[1].Quantity; got == nil || *got != 3 {
		t.Errorf("delta add sent quantity %v, want 3", got)
	}

	// Lower to 1: one remove with magnitude 4
	if err := store.UpdateCardQuantity(context.Background(), 7, 1); err != nil {
		t.Fatalf("UpdateCardQuantity(1) failed: %v", err)
	}
	if n := len(fake.removeCalls); n != 1 {
		t.Fatalf("expected 1 remove call, got %d", n)
	}
	if got := fake.removeCalls[0].Quantity; got != 4 {
		t.Errorf("remove sent magnitude %d, want 4", got)
	}

	// Same target: no-op
	addsBefore, removesBefore := len(fake.addCalls), len(fake.removeCalls)
	if err := store.UpdateCardQuantity(context.Background(), 7, 1); err != nil {
		t.Fatalf("UpdateCardQuantity(no-op) failed: %v", err)
	}
	if len(fake.addCalls) != addsBefore || len(fake.removeCalls) != removesBefore {
		t.Error("no-op update issued a mutation")
	}

	// The refetched state matches the target
	entries := store.Entries()
	if len(entries) != 1 || entries[0].Quantity != 1 {
		t.Errorf("mirror = %+v, want quantity 1", entries)
	}
}

// A fetch started before a game switch must not commit its result.
func TestStaleFetchDiscardedOnGameSwitch(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	// Seed entry in the remote service only
	fake.mu.Lock()
	fake.entries[7] = &models.CollectionEntry{
		CatalogCard: models.CatalogCard{CardMarketID: 7},
		Quantity:    2,
	}
	gate := make(chan struct{})
	fake.fetchGate = gate
	fake.mu.Unlock()

	done := make(chan struct{})
	var staleRows []models.CollectionEntry
	go func() {
		defer close(done)
		staleRows, _ = store.FetchCollection(context.Background())
	}()

	// Wait for the fetch to be in flight, then switch games
	time.Sleep(50 * time.Millisecond)
	store.SetActiveGame(2)
	close(gate)
	<-done

	if entries := store.Entries(); len(entries) != 0 {
		t.Errorf("stale fetch committed %d entries into the new game's mirror", len(entries))
	}
	if len(staleRows) != 0 {
		t.Errorf("discarded fetch handed back %d rows from the old game, want the committed mirror", len(staleRows))
	}
	if store.ActiveGame() != 2 {
		t.Errorf("active game = %d, want 2", store.ActiveGame())
	}
}

// A superseded fetch is discarded even without a game switch.
func TestNewerFetchWins(t *testing.T) {
	fake := newFakeCollectionService()
	store, _ := newTestStore(t, fake)

	fake.mu.Lock()
	gate := make(chan struct{})
	fake.fetchGate = gate
	fake.mu.Unlock()

	done := make(chan struct{})
	var staleRows []models.CollectionEntry
	go func() {
		defer close(done)
		staleRows, _ = store.FetchCollection(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	// Newer fetch starts and completes first
	fake.mu.Lock()
	fake.fetchGate = nil
	fake.entries[9] = &models.CollectionEntry{
		CatalogCard: models.CatalogCard{CardMarketID: 9},
		Quantity:    1,
	}
	fake.mu.Unlock()

	if _, err := store.FetchCollection(context.Background()); err != nil {
		t.Fatalf("newer fetch failed: %v", err)
	}

	// Release the older fetch; its (empty) result must not overwrite
	close(gate)
	<-done

	entries := store.Entries()
	if len(entries) != 1 || entries[0].CardMarketID != 9 {
		t.Errorf("older fetch overwrote newer result: %+v", entries)
	}
	if len(staleRows) != 1 || staleRows[0].CardMarketID != 9 {
		t.Errorf("superseded fetch returned %+v, want the committed mirror", staleRows)
	}
}
