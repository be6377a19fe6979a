package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/multierr"

	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// ErrNotImage is returned in sniffing mode when a body is not an image.
var ErrNotImage = errors.New("content is not an image")

// TierStats summarizes one tier directory.
type TierStats struct {
	Tier  model.Tier
	Files int
	Bytes int64
}

// CachedPaths lists image files cached for tier, sorted by name. A missing
// directory yields an empty list.
func (c *Cache) CachedPaths(tier model.Tier) []string {
	paths, _, err := scanImages(c.tierDir(tier))
	if err != nil {
		c.log.Warn("list cached images", logger.Int("tier", int(tier)), logger.Error(err))
		return []string{}
	}
	return paths
}

// Stats reports file counts and sizes for every tier.
func (c *Cache) Stats() []TierStats {
	out := make([]TierStats, 0, model.MaxTier)
	for _, tier := range model.AllTiers() {
		paths, size, err := scanImages(c.tierDir(tier))
		if err != nil {
			c.log.Warn("stat tier", logger.Int("tier", int(tier)), logger.Error(err))
		}
		out = append(out, TierStats{Tier: tier, Files: len(paths), Bytes: size})
	}
	return out
}

// Clear removes one tier directory, or the whole cache root when tier is nil.
func (c *Cache) Clear(tier *model.Tier) error {
	if tier != nil {
		if err := os.RemoveAll(c.tierDir(*tier)); err != nil {
			return fmt.Errorf("failed to clear tier %d: %w", int(*tier), err)
		}
		return nil
	}
	var errs error
	for _, t := range model.AllTiers() {
		errs = multierr.Append(errs, os.RemoveAll(c.tierDir(t)))
	}
	errs = multierr.Append(errs, os.RemoveAll(c.opts.Root))
	if errs != nil {
		return fmt.Errorf("failed to clear cache: %w", errs)
	}
	return nil
}

func (c *Cache) tierDir(tier model.Tier) string {
	return config.TierDir(c.opts.Root, tier)
}

func (c *Cache) extension(u string, data []byte) (string, error) {
	if !c.opts.SniffExtension {
		return extensionFromURL(u), nil
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	ext := mt.Extension()
	if _, ok := imageExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return ext, nil
}

// extensionFromURL picks the extension by substring, defaulting to .jpg.
func extensionFromURL(u string) string {
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, ".png"):
		return ".png"
	case strings.Contains(lower, ".gif"):
		return ".gif"
	case strings.Contains(lower, ".webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

// contentHash is the first 16 lowercase hex chars of the SHA-256 digest.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// existingHashes creates dir when needed and returns the hashes already
// stored in it.
func existingHashes(dir string) (map[string]struct{}, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tier dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier dir: %w", err)
	}
	hashes := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		hashes[strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))] = struct{}{}
	}
	return hashes, nil
}

func scanImages(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, 0, nil
		}
		return []string{}, 0, err
	}
	paths := []string{}
	var size int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
		if info, err := e.Info(); err == nil {
			size += info.Size()
		}
	}
	sort.Strings(paths)
	return paths, size, nil
}

// writeAtomic writes data to dir/name through a temp file and rename.
func writeAtomic(dir, name string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to move file into cache: %w", err)
	}
	return nil
}
