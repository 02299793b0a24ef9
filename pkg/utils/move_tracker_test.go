package utils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveTrackerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	mt := NewMoveTracker(&buf, "louvain")
	mt.LogMove(0, 3, 3, 1, 0.25, 0.1)
	mt.LogMove(1, 0, 0, 2, 0.5, 0.3)
	require.NoError(t, mt.Close())

	var events []MoveEvent
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var ev MoveEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, 2, mt.Moves())
	assert.Equal(t, 1, events[0].MoveNumber)
	assert.Equal(t, "louvain", events[0].Algorithm)
	assert.Equal(t, 3, events[0].Node)
	assert.Equal(t, 1, events[1].Level)
	assert.Equal(t, 2, events[1].ToComm)
}

func TestNilMoveTracker(t *testing.T) {
	var mt *MoveTracker
	mt.LogMove(0, 1, 1, 2, 0, 0)
	assert.Zero(t, mt.Moves())
	assert.NoError(t, mt.Close())
}

func TestCreateMoveTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.jsonl")
	mt, err := CreateMoveTracker(path, "louvain")
	require.NoError(t, err)
	mt.LogMove(0, 1, 1, 0, 0.1, 0.2)
	require.NoError(t, mt.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"from_comm":1`)

	_, err = CreateMoveTracker(filepath.Join(t.TempDir(), "missing", "moves.jsonl"), "louvain")
	assert.Error(t, err)
}
