package main

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/cache"
	"github.com/verte-zerg/tiertrain/internal/model"
)

func TestApplyIntConfig(t *testing.T) {
	newCmd := func() (*cobra.Command, *int) {
		var v int
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().IntVar(&v, "max", 5, "")
		return cmd, &v
	}

	cmd, target := newCmd()
	cfg := 12
	applyIntConfig(cmd, "max", target, &cfg)
	assert.Equal(t, 12, *target)

	cmd, target = newCmd()
	require.NoError(t, cmd.Flags().Set("max", "3"))
	applyIntConfig(cmd, "max", target, &cfg)
	assert.Equal(t, 3, *target)

	cmd, target = newCmd()
	applyIntConfig(cmd, "max", target, nil)
	assert.Equal(t, 5, *target)
}

func TestParseTierFlag(t *testing.T) {
	tier, err := parseTierFlag(0)
	require.NoError(t, err)
	assert.Nil(t, tier)

	tier, err = parseTierFlag(3)
	require.NoError(t, err)
	require.NotNil(t, tier)
	assert.Equal(t, model.Tier(3), *tier)

	_, err = parseTierFlag(99)
	assert.Error(t, err)
}

func TestWriteCacheStats(t *testing.T) {
	var buf bytes.Buffer
	err := writeCacheStats(&buf, "/tmp/cache", []cache.TierStats{
		{Tier: 1, Files: 2, Bytes: 2000},
		{Tier: 2, Files: 0, Bytes: 0},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Cache: /tmp/cache\n")
	assert.Contains(t, out, "Tier 1")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "Total")
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "downloads_total"}, []string{"tier"})
	reg.MustRegister(counter)
	counter.WithLabelValues("2").Add(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeMetrics(&buf, families))
	assert.Equal(t, "downloads_total{tier=\"2\"} 3\n", buf.String())
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret("abc"))
	assert.Equal(t, "****5678", maskSecret("12345678"))
	assert.Equal(t, "", maskSecret(""))
}

func TestInsufficientContentErrorHints(t *testing.T) {
	err := insufficientContentError(sourceUser, assert.AnError)
	assert.Contains(t, err.Error(), "content import --role focus")

	err = insufficientContentError(sourceCache, assert.AnError)
	assert.Contains(t, err.Error(), "cache download")
}

func TestPromptSecretReadsLine(t *testing.T) {
	var out bytes.Buffer
	secret, err := promptSecret(bytes.NewBufferString("  s3cret \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "Client secret: ", out.String())
}

func TestTaskLevel(t *testing.T) {
	level, err := taskLevel("", model.LevelMiddle)
	require.NoError(t, err)
	assert.Equal(t, model.LevelMiddle, level)

	level, err = taskLevel(" Senior ", model.LevelIntern)
	require.NoError(t, err)
	assert.Equal(t, model.LevelSenior, level)

	_, err = taskLevel("principal", model.LevelIntern)
	assert.Error(t, err)
}
