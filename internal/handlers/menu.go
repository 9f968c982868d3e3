package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/cache"
	"github.com/sundarv/curryleaf/internal/models"
	"github.com/sundarv/curryleaf/internal/mykafka"
	"github.com/sundarv/curryleaf/internal/service/search"
	"github.com/sundarv/curryleaf/internal/util"
)

type MenuHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Cache    *cache.Client
	ES       *elasticsearch.Client
	ESIndex  string
}

type menuPage struct {
	Data []models.MenuItem `json:"data"`
	Meta pageMeta          `json:"meta"`
}

type pageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func (h *MenuHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "menu_events", fmt.Sprint(event["item_id"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// GetMenuItem returns one item regardless of availability so direct links to
// a sold-out dish still resolve.
func (h *MenuHandler) GetMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid menu item id")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
	}
	return c.JSON(http.StatusOK, item)
}

// GetMenu lists available items. Unfiltered pages are served from the cache
// when one is configured; category-filtered pages always hit the database.
func (h *MenuHandler) GetMenu(c echo.Context) error {
	page, size := util.PageFromQuery(c)
	category := c.QueryParam("category")

	if category == "" {
		var cached menuPage
		hit, err := h.Cache.GetMenuPage(c.Request().Context(), page, size, &cached)
		if err != nil {
			c.Logger().Errorf("menu cache read error: %v", err)
		}
		if hit {
			return c.JSON(http.StatusOK, cached)
		}
	}

	offset, limit := util.Calculate(page, size)

	query := h.DB.Model(&models.MenuItem{}).Where("available = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not count menu items")
	}

	var items []models.MenuItem
	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load menu")
	}

	resp := menuPage{
		Data: items,
		Meta: pageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	}

	if category == "" {
		if err := h.Cache.SetMenuPage(c.Request().Context(), page, size, resp); err != nil {
			c.Logger().Errorf("menu cache write error: %v", err)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *MenuHandler) afterMenuChange(c echo.Context, item models.MenuItem, deleted bool) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if deleted {
		if err := search.DeleteMenuItem(ctx, h.ES, h.ESIndex, item.ID); err != nil {
			c.Logger().Errorf("search deindex error: %v", err)
		}
	} else {
		if err := search.IndexMenuItem(ctx, h.ES, h.ESIndex, item); err != nil {
			c.Logger().Errorf("search index error: %v", err)
		}
	}
	if err := h.Cache.InvalidateMenu(ctx); err != nil {
		c.Logger().Errorf("menu cache invalidate error: %v", err)
	}
}

func (h *MenuHandler) CreateMenuItem(c echo.Context) error {
	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		ImageURL    string  `json:"image_url"`
		Category    string  `json:"category"`
		Available   *bool   `json:"available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "title and a positive price are required")
	}

	item := models.MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		Available:   true,
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := h.DB.Create(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create menu item")
	}

	h.afterMenuChange(c, item, false)
	h.publish(c, map[string]interface{}{
		"type":    "menu_item_created",
		"item_id": item.ID,
		"title":   item.Title,
	})
	return c.JSON(http.StatusCreated, item)
}

// PatchMenuItem applies a partial update; absent fields keep their value.
func (h *MenuHandler) PatchMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid menu item id")
	}

	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		ImageURL    *string  `json:"image_url"`
		Category    *string  `json:"category"`
		Available   *bool    `json:"available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be positive")
		}
		item.Price = *req.Price
	}
	if req.ImageURL != nil {
		item.ImageURL = *req.ImageURL
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update menu item")
	}

	h.afterMenuChange(c, item, false)
	h.publish(c, map[string]interface{}{
		"type":    "menu_item_updated",
		"item_id": item.ID,
		"title":   item.Title,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) DeleteMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid menu item id")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
	}
	if err := h.DB.Delete(&models.MenuItem{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete menu item")
	}

	h.afterMenuChange(c, item, true)
	h.publish(c, map[string]interface{}{
		"type":    "menu_item_deleted",
		"item_id": item.ID,
		"title":   item.Title,
	})
	return c.NoContent(http.StatusNoContent)
}
