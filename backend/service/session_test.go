package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/connectome-service/backend/metrics"
	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/dataset"
	"github.com/gilchrisn/connectome-service/pkg/threshold"
)

func f(v float64) *float64 { return &v }

func square() *dataset.Document {
	// 4-cycle with one diagonal
	return &dataset.Document{Matrix: [][]*float64{
		{nil, f(0.9), f(0.2), f(0.8)},
		{f(0.9), nil, f(0.7), nil},
		{f(0.2), f(0.7), nil, f(0.6)},
		{f(0.8), nil, f(0.6), nil},
	}}
}

func TestCreateRespectsLimits(t *testing.T) {
	s := NewSessionService(1, 3, metrics.NewRegistry())

	_, err := s.Create("big", square())
	assert.ErrorIs(t, err, brain.ErrInput)

	s.maxNodes = 10
	sess, err := s.Create("", square())
	require.NoError(t, err)
	assert.Equal(t, "Unnamed Session", sess.Name)
	assert.Equal(t, 4, sess.Nodes)

	_, err = s.Create("second", square())
	assert.ErrorIs(t, err, ErrSessionLimit)
	assert.Equal(t, 1, s.Count())
}

func TestThresholdUpdatesMetadata(t *testing.T) {
	s := NewSessionService(4, 10, metrics.NewRegistry())
	sess, err := s.Create("sq", square())
	require.NoError(t, err)

	n := 3
	res, err := s.Threshold(context.Background(), sess.ID, threshold.Request{TotalEdges: &n})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Edges)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Edges)
	require.NotNil(t, got.Threshold)
	assert.InDelta(t, 0.6, *got.Threshold, 1e-12)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestOperationsOnMissingSession(t *testing.T) {
	s := NewSessionService(4, 10, metrics.NewRegistry())

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, brain.ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), brain.ErrNotFound)
	_, err = s.Clone("missing", "")
	assert.ErrorIs(t, err, brain.ErrNotFound)
	_, err = s.Graph("missing")
	assert.ErrorIs(t, err, brain.ErrNotFound)
}

func TestFinite(t *testing.T) {
	assert.Nil(t, Finite(math.Inf(-1)))
	assert.Nil(t, Finite(math.NaN()))
	require.NotNil(t, Finite(0.5))
	assert.Equal(t, 0.5, *Finite(0.5))
}
