package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/model"
)

func TestLayoutTableAlignsColumns(t *testing.T) {
	cols := []Column{{Title: "Tier"}, {Title: "Sessions", Right: true}, {Title: "Focus", Right: true}}
	lines := layoutTable(cols, [][]string{
		{"Tier 1", "12", "50%"},
		{"Tier 10", "3", "100%"},
	})
	require.Len(t, lines, 3)
	assert.Equal(t, "Tier    Sessions Focus", lines[0])
	assert.Equal(t, "Tier 1        12   50%", lines[1])
	assert.Equal(t, "Tier 10        3  100%", lines[2])
}

func TestLayoutTableWideRunes(t *testing.T) {
	lines := layoutTable([]Column{{Title: "Name"}, {Title: "N"}}, [][]string{{"日本", "1"}, {"ab", "2"}})
	require.Len(t, lines, 3)
	assert.Equal(t, "日本 1", lines[1])
	assert.Equal(t, "ab   2", lines[2])
}

func TestTierCells(t *testing.T) {
	cells := TierCells(TierRow{Tier: 3, Sessions: 4, AvgDuration: 95 * time.Second, FocusRate: 0.25})
	assert.Equal(t, []string{"Tier 3", "4", "01:35", "25%"}, cells)
	assert.Len(t, cells, len(TierColumns))
}

func TestHistoryCells(t *testing.T) {
	cells := HistoryCells(model.TrainingSession{
		Date:               time.Now(),
		DurationSeconds:    90,
		Level:              model.LevelJunior,
		ContentTier:        2,
		FocusPhaseUsed:     true,
		ExplorationSeconds: 60,
		FocusSeconds:       model.NotRecorded,
	})
	require.Len(t, cells, len(HistoryColumns))
	assert.Equal(t, []string{"01:30", "2", "Junior", "yes", "60.0", "-"}, cells[1:])
}

func TestNewest(t *testing.T) {
	sessions := []model.TrainingSession{{ID: 1}, {ID: 2}, {ID: 3}}
	got := Newest(sessions, 2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	assert.Len(t, Newest(sessions, 0), 3)
	assert.Len(t, Newest(sessions, 10), 3)
}

func TestRenderHistorySkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHistory(&buf, nil, 5))
	assert.Empty(t, buf.String())

	require.NoError(t, RenderHistory(&buf, []model.TrainingSession{{DurationSeconds: 12, ContentTier: 1, Level: model.LevelIntern}}, 5))
	assert.Contains(t, buf.String(), "Recent Sessions")
	assert.Contains(t, buf.String(), "Explore (s)")
	assert.Contains(t, buf.String(), "00:12")
}
