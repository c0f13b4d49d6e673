package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropout_InferenceMode(t *testing.T) {
	// In inference mode (training=false), dropout should return a clone
	data := []float32{1.0, 2.0, 3.0, 4.0, 5.0}
	tensor, err := FromSlice(data, []int{5})
	require.NoError(t, err)

	result := tensor.Dropout(0.5, false, nil)

	assert.Equal(t, data, result.Data)
	assert.NotSame(t, &result.Data[0], &tensor.Data[0], "expected a clone, not the same storage")
}

func TestDropout_ZeroProbability(t *testing.T) {
	// With p=0, all values should be kept (and scaled by 1.0)
	data := []float32{1.0, 2.0, 3.0, 4.0, 5.0}
	tensor, err := FromSlice(data, []int{5})
	require.NoError(t, err)

	result := tensor.Dropout(0.0, true, rand.New(rand.NewSource(42)))
	assert.Equal(t, data, result.Data)
}

func TestDropout_TrainingMode(t *testing.T) {
	// In training mode, approximately p% of values should be dropped
	rng := rand.New(rand.NewSource(42))

	data := make([]float32, 1000)
	for i := range data {
		data[i] = 1.0
	}
	tensor, err := FromSlice(data, []int{1000})
	require.NoError(t, err)

	p := float32(0.3)
	result := tensor.Dropout(p, true, rng)

	droppedCount := 0
	for _, v := range result.Data {
		switch v {
		case 0:
			droppedCount++
		case 1.0 / (1.0 - p):
		default:
			t.Errorf("Unexpected value: %f (should be 0 or %f)", v, 1.0/(1.0-p))
		}
	}

	// Allow some variance (20% to 40%)
	dropRate := float32(droppedCount) / float32(len(data))
	assert.InDelta(t, p, dropRate, 0.1, "dropped %d of %d", droppedCount, len(data))
}

func TestDropout_SameSeedSameMask(t *testing.T) {
	x := Full([]int{64}, 1)

	a := x.Dropout(0.5, true, rand.New(rand.NewSource(7)))
	b := x.Dropout(0.5, true, rand.New(rand.NewSource(7)))
	assert.Equal(t, a.Data, b.Data)
}

func TestDropout_InvalidUse(t *testing.T) {
	x := Full([]int{4}, 1)
	assert.Panics(t, func() { x.Dropout(1.0, true, rand.New(rand.NewSource(1))) })
	assert.Panics(t, func() { x.Dropout(0.5, true, nil) })
}

func TestApplyDropout(t *testing.T) {
	data := []float32{1.0, 2.0, 3.0, 4.0, 5.0}
	tensor, err := FromSlice(data, []int{5})
	require.NoError(t, err)

	// Should work the same as Dropout method
	result := ApplyDropout(tensor, 0.5, false, nil)
	assert.Equal(t, data, result.Data)
}
