package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"

	"github.com/sundarv/curryleaf/internal/service/search"
	"github.com/sundarv/curryleaf/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func NewSearchHandler(es *elasticsearch.Client, index string) *SearchHandler {
	return &SearchHandler{
		ES:    es,
		Index: index,
	}
}

// Handler runs a fuzzy full-text query over the menu index.
func (h *SearchHandler) Handler(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	page, size := util.PageFromQuery(c)
	from, size := util.Calculate(page, size)

	total, items, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		c.Logger().Errorf("menu search error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "items": items})
}
