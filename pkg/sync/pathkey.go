package sync

import (
	"path"
	"strings"

	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

const (
	// HeroPrefix and PortfolioPrefix are the cache-store path roots for the
	// two sync domains.
	HeroPrefix      = "hero_images"
	PortfolioPrefix = "portfolio_images"
)

// fileExt extracts a lowercase extension from a remote file name, falling
// back to jpg when the name carries none.
func fileExt(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return "jpg"
	}
	return strings.ToLower(ext)
}

// CachePathKey derives the deterministic cache path for a remote file.
// Category is empty for the hero domain. The remote id is the join key
// between remote and cached state, so two files with the same id always
// map to the same key.
func CachePathKey(prefix, category string, file s.RemoteFile) string {
	if category == "" {
		return prefix + "/" + file.ID + "." + fileExt(file.Name)
	}
	return prefix + "/" + strings.ToLower(category) + "/" + file.ID + "." + fileExt(file.Name)
}
