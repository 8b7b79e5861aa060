package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ashdowne/gallery-sync-server/pkg/database"
	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/remote"
	"github.com/ashdowne/gallery-sync-server/pkg/storage"
	"github.com/ashdowne/gallery-sync-server/pkg/utils"
)

// Syncer triggers reconciliation runs. False means skipped (lock/cooldown)
// or failed; callers treat it as non-fatal.
type Syncer interface {
	SyncHero(ctx context.Context) bool
	SyncPortfolio(ctx context.Context, category string) bool
}

type Handlers struct {
	Database database.Backend
	Storage  storage.Backend
	Remote   remote.Source
	Syncer   Syncer

	AdminUsername string
	AdminPassword string
	JWTSecret     []byte
	CronSecret    string
}

// SyncHero is the scheduled-job trigger for the hero domain. The cron
// caller gets 200 whether the run completed or was skipped; skips are
// expected steady-state behaviour and live in the logs.
func (h *Handlers) SyncHero(c *gin.Context) {
	if h.Syncer.SyncHero(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"message": "hero images sync completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "hero images sync skipped or failed, see logs"})
}

// SyncAllPortfolio is the scheduled-job trigger for every portfolio
// category.
func (h *Handlers) SyncAllPortfolio(c *gin.Context) {
	if h.Syncer.SyncPortfolio(c.Request.Context(), "") {
		c.JSON(http.StatusOK, gin.H{"message": "portfolio sync completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "portfolio sync partially skipped or failed, see logs"})
}

type AdminSyncRequest struct {
	Type       string `json:"type" binding:"required"`
	Categories string `json:"categories"`
}

// AdminSync lets the admin panel trigger a sync on demand for the hero
// domain, specific categories, or the whole portfolio.
func (h *Handlers) AdminSync(c *gin.Context) {
	var json AdminSyncRequest
	if err := c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	switch json.Type {
	case "hero":
		ok := h.Syncer.SyncHero(ctx)
		c.JSON(http.StatusOK, gin.H{"success": ok, "message": syncMessage(ok, "hero images")})
	case "portfolio":
		categories := utils.CleanStringSlice(strings.Split(json.Categories, ","))
		if len(categories) == 0 {
			ok := h.Syncer.SyncPortfolio(ctx, "")
			c.JSON(http.StatusOK, gin.H{"success": ok, "message": syncMessage(ok, "all portfolio categories")})
			return
		}

		ok := true
		for _, category := range categories {
			if !h.Syncer.SyncPortfolio(ctx, category) {
				ok = false
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": ok, "message": syncMessage(ok, "requested categories")})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sync type"})
	}
}

func syncMessage(ok bool, what string) string {
	if ok {
		return "synced " + what
	}
	return "sync of " + what + " skipped or failed, see logs"
}

type imageEntry struct {
	Src      string `json:"src"`
	Pathname string `json:"pathname"`
}

func (h *Handlers) listImages(c *gin.Context, prefix string) {
	blobs, err := h.Storage.List(prefix)
	if err != nil {
		log.Error().Err(err).Str("prefix", prefix).Msg("Failed to list cached images")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list images"})
		return
	}

	images := make([]imageEntry, 0, len(blobs))
	for _, blob := range blobs {
		images = append(images, imageEntry{Src: blob.URL, Pathname: blob.Pathname})
	}

	c.JSON(http.StatusOK, gin.H{"images": images})
}

// HeroImages lists the cached hero slideshow images.
func (h *Handlers) HeroImages(c *gin.Context) {
	h.listImages(c, "hero_images/")
}

// PortfolioImages lists the cached images of one portfolio category.
func (h *Handlers) PortfolioImages(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing category query parameter"})
		return
	}

	h.listImages(c, "portfolio_images/"+strings.ToLower(category)+"/")
}

// ImagePath serves a cached file directly when the disk backend is in use.
func (h *Handlers) ImagePath(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("filepath"), "/")

	if h.Storage.Type() != "disk" {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	path, err := h.Storage.GetFilePath(key)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		} else {
			log.Error().Err(err).Msg("Failed to get file")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get file"})
		}
		return
	}

	c.File(path)
}
