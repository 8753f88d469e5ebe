package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/tcgscan/collection-engine/internal/database"
	"github.com/tcgscan/collection-engine/internal/metrics"
	"github.com/tcgscan/collection-engine/internal/models"
)

const (
	catalogDefaultTimeout = 10 * time.Second

	// catalogCacheSize bounds the per-game LRU snapshot caches. A handful of
	// games is typical; the catalog payloads are large.
	catalogCacheSize = 8
)

// CatalogFetcher retrieves the full card catalog and expansion list for a
// game from the remote catalog service. Results are cached per game, both
// in-process (LRU) and on disk, so a failed fetch degrades to the last good
// snapshot instead of an empty screen.
type CatalogFetcher struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter

	cards      *lru.Cache[string, []models.CatalogCard]
	expansions *lru.Cache[string, []models.Expansion]
	store      *database.SnapshotCache
}

// NewCatalogFetcher creates a catalog fetcher. requestsPerSecond limits
// outgoing calls to the catalog service; zero or negative selects a default
// of 5 rps. snapshots may be nil to disable the on-disk cache.
func NewCatalogFetcher(baseURL string, requestsPerSecond float64, snapshots *database.SnapshotCache) *CatalogFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	cardCache, _ := lru.New[string, []models.CatalogCard](catalogCacheSize)
	expCache, _ := lru.New[string, []models.Expansion](catalogCacheSize)

	return &CatalogFetcher{
		client: &http.Client{
			Timeout: catalogDefaultTimeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		cards:      cardCache,
		expansions: expCache,
		store:      snapshots,
	}
}

// FetchCards returns the full catalog for a game. The priced endpoint is
// tried first; when it fails the plain (unpriced) endpoint is used. When
// both fail, the last cached snapshot is returned and the error is logged,
// so callers always get a valid list if one was ever loaded.
func (f *CatalogFetcher) FetchCards(ctx context.Context, tcgName string) ([]models.CatalogCard, error) {
	cards, err := f.fetchCardList(ctx, "cards-with-prices", tcgName)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("priced", "error").Inc()
		log.Printf("Catalog fetcher: priced endpoint failed for %q, trying plain cards: %v", tcgName, err)
		cards, err = f.fetchCardList(ctx, "cards", tcgName)
		if err != nil {
			metrics.CatalogFetchesTotal.WithLabelValues("plain", "error").Inc()
			if cached, ok := f.CachedCards(tcgName); ok {
				metrics.CatalogCacheHits.Inc()
				log.Printf("Catalog fetcher: serving cached catalog for %q after fetch failure: %v", tcgName, err)
				return cached, nil
			}
			return nil, err
		}
		metrics.CatalogFetchesTotal.WithLabelValues("plain", "success").Inc()
	} else {
		metrics.CatalogFetchesTotal.WithLabelValues("priced", "success").Inc()
	}

	f.cards.Add(tcgName, cards)
	metrics.CatalogCardsTotal.Set(float64(len(cards)))
	if f.store != nil {
		if err := f.store.SaveCatalog(tcgName, cards); err != nil {
			log.Printf("Catalog fetcher: failed to persist catalog snapshot for %q: %v", tcgName, err)
		}
	}
	return cards, nil
}

// CachedCards returns the cached catalog for a game without touching the
// network. The LRU is consulted first, then the on-disk snapshot.
func (f *CatalogFetcher) CachedCards(tcgName string) ([]models.CatalogCard, bool) {
	if cards, ok := f.cards.Get(tcgName); ok {
		return cards, true
	}
	if f.store != nil {
		cards, err := f.store.LoadCatalog(tcgName)
		if err != nil {
			log.Printf("Catalog fetcher: failed to load catalog snapshot for %q: %v", tcgName, err)
			return nil, false
		}
		if len(cards) > 0 {
			f.cards.Add(tcgName, cards)
			return cards, true
		}
	}
	return nil, false
}

// FetchExpansions returns the expansion list for a game, with the same
// cache-on-failure behavior as FetchCards.
func (f *CatalogFetcher) FetchExpansions(ctx context.Context, tcgName string) ([]models.Expansion, error) {
	body, err := f.get(ctx, "expansions", tcgName)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("expansions", "error").Inc()
		if cached, ok := f.expansions.Get(tcgName); ok {
			metrics.CatalogCacheHits.Inc()
			return cached, nil
		}
		if f.store != nil {
			if cached, cacheErr := f.store.LoadExpansions(tcgName); cacheErr == nil && len(cached) > 0 {
				metrics.CatalogCacheHits.Inc()
				return cached, nil
			}
		}
		return nil, err
	}

	var expansions []models.Expansion
	if err := json.Unmarshal(body, &expansions); err != nil {
		return nil, &models.NetworkError{Op: "fetch expansions", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	metrics.CatalogFetchesTotal.WithLabelValues("expansions", "success").Inc()

	f.expansions.Add(tcgName, expansions)
	if f.store != nil {
		if err := f.store.SaveExpansions(tcgName, expansions); err != nil {
			log.Printf("Catalog fetcher: failed to persist expansions snapshot for %q: %v", tcgName, err)
		}
	}
	return expansions, nil
}

// fetchCardList calls one of the card list endpoints and decodes either a
// bare array or a {"cards": [...]} envelope.
func (f *CatalogFetcher) fetchCardList(ctx context.Context, endpoint, tcgName string) ([]models.CatalogCard, error) {
	body, err := f.get(ctx, endpoint, tcgName)
	if err != nil {
		return nil, err
	}

	var cards []models.CatalogCard
	if err := json.Unmarshal(body, &cards); err == nil {
		return cards, nil
	}

	var envelope struct {
		Cards []models.CatalogCard `json:"cards"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Cards != nil {
		return envelope.Cards, nil
	}

	return nil, &models.NetworkError{Op: "fetch " + endpoint, Err: fmt.Errorf("unexpected response shape")}
}

func (f *CatalogFetcher) get(ctx context.Context, endpoint, tcgName string) ([]byte, error) {
	op := "fetch " + endpoint

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}

	params := url.Values{}
	params.Set("tcg_name", tcgName)
	reqURL := fmt.Sprintf("%s/%s/?%s", f.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.NetworkError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}
