package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tcgscan/collection-engine/internal/models"
	"github.com/tcgscan/collection-engine/internal/services"
)

type CatalogHandler struct {
	catalog *services.CatalogFetcher
	games   *services.GameState
}

func NewCatalogHandler(catalog *services.CatalogFetcher, games *services.GameState) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		games:   games,
	}
}

// GetCards returns the full catalog for a game. A failed load presents an
// empty list, never an error page.
func (h *CatalogHandler) GetCards(c *gin.Context) {
	tcgName := c.DefaultQuery("tcg_name", h.games.Current().Name)

	cards, err := h.catalog.FetchCards(c.Request.Context(), tcgName)
	if err != nil {
		log.Printf("Catalog handler: fetch failed for %q: %v", tcgName, err)
		c.JSON(http.StatusOK, []models.CatalogCard{})
		return
	}
	c.JSON(http.StatusOK, cards)
}

// GetExpansions returns the expansion list for a game.
func (h *CatalogHandler) GetExpansions(c *gin.Context) {
	tcgName := c.DefaultQuery("tcg_name", h.games.Current().Name)

	expansions, err := h.catalog.FetchExpansions(c.Request.Context(), tcgName)
	if err != nil {
		log.Printf("Catalog handler: expansions fetch failed for %q: %v", tcgName, err)
		c.JSON(http.StatusOK, []models.Expansion{})
		return
	}
	c.JSON(http.StatusOK, expansions)
}
