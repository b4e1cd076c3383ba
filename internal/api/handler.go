// Package api exposes a small read-only HTTP API over the tracked-item
// store, useful for dashboards and quick checks without opening Telegram.
package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

type Handler struct {
	store *tracker.Store
}

func NewHandler(store *tracker.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the endpoints under /api.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id/items", h.ListItems)
		api.GET("/users/:id/items/:uuid/history", h.GetPriceHistory)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	ids, err := h.store.UserIDs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": ids})
}

func (h *Handler) ListItems(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	items, err := h.store.Items(userID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch items"})
		return
	}
	c.JSON(http.StatusOK, tracker.TrackedItems{TrackedItems: items})
}

func (h *Handler) GetPriceHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	items, err := h.store.Items(userID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch items"})
		return
	}
	for _, item := range items {
		if item.UUID == c.Param("uuid") {
			c.JSON(http.StatusOK, gin.H{"name": item.Name, "priceHistory": item.PriceHistory})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
}
