package session

import (
	"context"
	"fmt"

	"github.com/verte-zerg/tiertrain/internal/model"
)

// Content is what a Source hands to Start.
type Content struct {
	Exploration []string
	Focus       []string
	// RequireFocus makes an empty focus list insufficient.
	RequireFocus bool
}

// Source loads session content. An error with partial content is logged
// and the partial content is still used.
type Source interface {
	Load(ctx context.Context) (Content, error)
}

// TierCache lists cached files for a tier.
type TierCache interface {
	CachedPaths(tier model.Tier) []string
}

// ProgressReader exposes the user's current tier.
type ProgressReader interface {
	Progress(ctx context.Context) (model.UserProgress, error)
}

// CacheSource serves the cached images of the user's current tier as a
// single list. Sessions from it have no focus phase.
type CacheSource struct {
	Cache    TierCache
	Progress ProgressReader
}

// Load implements Source.
func (s CacheSource) Load(ctx context.Context) (Content, error) {
	tier := model.MinTier
	var err error
	if s.Progress != nil {
		p, perr := s.Progress.Progress(ctx)
		if perr != nil {
			err = fmt.Errorf("read progress: %w", perr)
		} else {
			tier = model.ClampTier(p.ContentTier)
		}
	}
	return Content{Exploration: s.Cache.CachedPaths(tier)}, err
}

// UserLists returns the user's (exploration, focus) lists.
type UserLists interface {
	Lists() ([]string, []string)
}

// UserSource serves the user's own two lists; both must be non-empty.
type UserSource struct {
	Library UserLists
}

// Load implements Source.
func (s UserSource) Load(context.Context) (Content, error) {
	exploration, focus := s.Library.Lists()
	return Content{Exploration: exploration, Focus: focus, RequireFocus: true}, nil
}
