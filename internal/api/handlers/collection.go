package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tcgscan/collection-engine/internal/models"
	"github.com/tcgscan/collection-engine/internal/services"
)

// Maximum quantity allowed per mutation
const maxQuantity = 9999

type CollectionHandler struct {
	store   *services.CollectionStore
	catalog *services.CatalogFetcher
	games   *services.GameState
}

func NewCollectionHandler(store *services.CollectionStore, catalog *services.CatalogFetcher, games *services.GameState) *CollectionHandler {
	return &CollectionHandler{
		store:   store,
		catalog: catalog,
		games:   games,
	}
}

// GetCollection returns the raw collection mirror.
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Entries())
}

// GetView is the single recomputation entrypoint for the UI: it merges the
// mirror with the catalog per the view mode, runs the filter/sort pipeline,
// and aggregates stats over exactly the rows it returns.
func (h *CollectionHandler) GetView(c *gin.Context) {
	mode := models.ParseViewMode(c.DefaultQuery("mode", string(models.ViewOwned)))
	cfg := models.FilterSortConfig{
		SearchQuery:       c.Query("search"),
		SelectedExpansion: c.DefaultQuery("expansion", models.ExpansionAll),
		SortBy:            models.SortField(c.DefaultQuery("sort", string(models.SortPrice))),
		SortDir:           models.SortDirection(c.DefaultQuery("dir", string(models.SortDesc))),
	}

	owned := h.store.Entries()

	// The merge tolerates a missing catalog: owned rows are never dropped.
	catalog, err := h.catalog.FetchCards(c.Request.Context(), h.games.Current().Name)
	if err != nil {
		log.Printf("Collection view: catalog unavailable, merging against empty catalog: %v", err)
		catalog = nil
	}

	merged := services.MergeView(owned, catalog, mode)
	rows := services.ApplyFilterSort(merged, cfg)

	c.JSON(http.StatusOK, models.CollectionViewResponse{
		Cards:      rows,
		Stats:      services.Aggregate(rows),
		Expansions: services.ExpansionOptions(merged),
	})
}

// AddCard sends a positive delta for a card. A remote failure is reported as
// success=false with a null user_collection_id rather than a 5xx, so a
// single failed add never breaks the UI's render cycle.
func (h *CollectionHandler) AddCard(c *gin.Context) {
	var req models.AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An omitted quantity defaults to 1; an explicit 0 is a foil-only add.
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 0 || req.QuantityFoil < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if quantity == 0 && req.QuantityFoil == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to add"})
		return
	}
	if quantity > maxQuantity || req.QuantityFoil > maxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
		return
	}

	card := models.CatalogCard{}
	if req.CardMarketID != nil {
		card.CardMarketID = *req.CardMarketID
	}
	card.CardID = req.CardID

	id, err := h.store.AddCard(c.Request.Context(), card, quantity, req.QuantityFoil)
	if err != nil {
		h.respondMutationError(c, err)
		return
	}

	resp := models.MutationResponse{Success: true}
	if id != 0 {
		resp.UserCollectionID = &id
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveCard sends a remove-N delta for a card.
func (h *CollectionHandler) RemoveCard(c *gin.Context) {
	var req models.RemoveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CardMarketID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_market_id is required"})
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || req.QuantityFoil < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantities are non-negative magnitudes"})
		return
	}

	if err := h.store.RemoveCard(c.Request.Context(), req.CardMarketID, quantity, req.QuantityFoil); err != nil {
		h.respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MutationResponse{Success: true})
}

// UpdateQuantity sets an absolute target quantity for a card; the store
// translates it into the service's delta protocol.
func (h *CollectionHandler) UpdateQuantity(c *gin.Context) {
	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CardMarketID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_market_id is required"})
		return
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity out of range"})
		return
	}

	if err := h.store.UpdateCardQuantity(c.Request.Context(), req.CardMarketID, req.Quantity); err != nil {
		h.respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MutationResponse{Success: true})
}

// SwitchGame changes the selected game. Any in-flight fetch for the old
// game is invalidated, then the new game's collection is synced. A failed
// sync still switches; the mirror stays empty until the next refresh.
func (h *CollectionHandler) SwitchGame(c *gin.Context) {
	var req models.SwitchGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TCGID <= 0 || req.TCGName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tcg_id and tcg_name are required"})
		return
	}

	game := models.Game{ID: req.TCGID, Name: req.TCGName}
	if !h.games.Switch(game) {
		c.JSON(http.StatusOK, gin.H{"switched": false, "game": game})
		return
	}
	h.store.SetActiveGame(game.ID)
	h.store.LoadCached()

	synced := true
	if _, err := h.store.FetchCollection(c.Request.Context()); err != nil {
		if models.IsAuthError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		log.Printf("Game switch: initial sync for %q failed: %v", game.Name, err)
		synced = false
	}

	c.JSON(http.StatusOK, gin.H{"switched": true, "synced": synced, "game": game, "cards": h.store.Entries()})
}

// Refresh forces a full reconciliation against the collection service. On
// failure the previous mirror is returned, so the UI still shows a valid
// (possibly stale) list.
func (h *CollectionHandler) Refresh(c *gin.Context) {
	rows, err := h.store.FetchCollection(c.Request.Context())
	if err != nil {
		if models.IsAuthError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		log.Printf("Collection refresh failed, serving previous snapshot: %v", err)
		c.JSON(http.StatusOK, gin.H{"synced": false, "cards": h.store.Entries()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": true, "cards": rows})
}

func (h *CollectionHandler) respondMutationError(c *gin.Context, err error) {
	var nfe *models.NotFoundError
	switch {
	case models.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.As(err, &nfe):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no usable card identity"})
	default:
		// The store already logged it; the UI sees the sentinel and keeps
		// rendering the confirmed state.
		c.JSON(http.StatusOK, models.MutationResponse{Success: false})
	}
}
