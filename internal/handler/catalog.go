package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"g4m3ify-proxy/internal/catalog"
	"g4m3ify-proxy/internal/config"
)

// CatalogHandler serves the game catalog as JSON. Frame sources point at the
// configured proxy base URL.
type CatalogHandler struct {
	catalog   *catalog.Catalog
	proxyBase string
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(c *catalog.Catalog, cfg *config.Config) *CatalogHandler {
	return &CatalogHandler{catalog: c, proxyBase: cfg.Catalog.ProxyBaseURL}
}

type gamesResponse struct {
	Games      []catalog.Tile `json:"games"`
	Categories []string       `json:"categories"`
}

// List handles GET /api/games?q=&category=.
func (h *CatalogHandler) List(c echo.Context) error {
	entries := h.catalog.Filter(c.QueryParam("q"), c.QueryParam("category"))
	games := make([]catalog.Tile, 0, len(entries))
	for _, e := range entries {
		games = append(games, h.tile(e))
	}
	return c.JSON(http.StatusOK, gamesResponse{
		Games:      games,
		Categories: h.catalog.Categories(),
	})
}

// Get handles GET /api/games/:id.
func (h *CatalogHandler) Get(c echo.Context) error {
	e, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "game not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, h.tile(e))
}

// Categories handles GET /api/categories.
func (h *CatalogHandler) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"categories": h.catalog.Categories()})
}

// The server has no view of a browser's frame failures, so tiles it serves
// are never degraded.
func (h *CatalogHandler) tile(e catalog.Entry) catalog.Tile {
	return catalog.Tile{
		Entry:       e,
		FrameSrc:    catalog.FrameSource(e, h.proxyBase),
		FallbackURL: e.URL,
	}
}
