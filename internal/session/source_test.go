package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/model"
)

type tierCache map[model.Tier][]string

func (c tierCache) CachedPaths(tier model.Tier) []string { return c[tier] }

type progressStub struct {
	p   model.UserProgress
	err error
}

func (s progressStub) Progress(context.Context) (model.UserProgress, error) { return s.p, s.err }

type listsStub struct {
	exploration, focus []string
}

func (l listsStub) Lists() ([]string, []string) { return l.exploration, l.focus }

func TestCacheSourceUsesCurrentTier(t *testing.T) {
	cache := tierCache{1: paths("t1", 2), 4: paths("t4", 3)}
	src := CacheSource{Cache: cache, Progress: progressStub{p: model.UserProgress{ContentTier: 4}}}

	c, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paths("t4", 3), c.Exploration)
	assert.Empty(t, c.Focus)
	assert.False(t, c.RequireFocus)
}

func TestCacheSourceFallsBackToFirstTier(t *testing.T) {
	cache := tierCache{1: paths("t1", 2)}
	src := CacheSource{Cache: cache, Progress: progressStub{err: errors.New("db locked")}}

	c, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, paths("t1", 2), c.Exploration)
}

func TestUserSourceRequiresFocus(t *testing.T) {
	src := UserSource{Library: listsStub{exploration: paths("e", 2), focus: paths("f", 1)}}
	c, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.RequireFocus)
	assert.Len(t, c.Focus, 1)
}
