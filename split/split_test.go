package split

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const tol = 1e-9

// segments 逐个累加子步，返回每个非零区间的累加和
func segments(t *testing.T, targets, steps []float64) []float64 {
	t.Helper()
	points := targets
	if targets[0] != 0 {
		points = append([]float64{0}, targets...)
	}
	var sums []float64
	pos, j := 0.0, 0
	for k := 1; k < len(points); k++ {
		start := pos
		for j < len(steps) && math.Abs(pos-points[k]) > tol {
			pos += steps[j]
			j++
		}
		require.InDelta(t, points[k], pos, tol)
		if math.Abs(points[k]-points[k-1]) >= 1e-12 {
			sums = append(sums, pos-start)
		}
	}
	require.Equal(t, len(steps), j, "存在未归属的子步")
	return sums
}

func TestStaticExample(t *testing.T) {
	targets := []float64{0, 1.0, -1.0, 0.0}
	steps, err := Static(targets, 0.3)
	require.NoError(t, err)

	assert.Len(t, steps, 4+7+4)
	for _, s := range steps {
		assert.LessOrEqual(t, math.Abs(s), 0.3+1e-12)
	}
	sums := segments(t, targets, steps)
	require.Len(t, sums, 3)
	assert.InDelta(t, 1.0, sums[0], tol)
	assert.InDelta(t, -2.0, sums[1], tol)
	assert.InDelta(t, 1.0, sums[2], tol)
	assert.InDelta(t, 0.0, floats.Sum(steps), tol)

	// 每段仅最后一个余量可以小于最大步长
	assert.InDelta(t, 0.1, steps[3], tol)
	assert.InDelta(t, -0.2, steps[10], tol)
	assert.InDelta(t, 0.1, steps[14], tol)
}

func TestStaticSingleTarget(t *testing.T) {
	_, err := Static([]float64{5.0}, 0)
	assert.ErrorIs(t, err, ErrMaxStepRequired)

	steps, err := Static([]float64{5.0}, 1.0)
	require.NoError(t, err)
	assert.Len(t, steps, 5)
	for _, s := range steps {
		assert.LessOrEqual(t, math.Abs(s), 1.0)
	}
	assert.InDelta(t, 5.0, floats.Sum(steps), tol)
}

func TestStaticInferredStep(t *testing.T) {
	// 首项非0时补0，步长取补0后的前两个目标差值
	steps, err := Static([]float64{0.5, 1.5}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, steps)

	steps, err = Static([]float64{0, -0.25, 0.5}, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.25, 0.25, 0.25, 0.25}, steps, tol)

	_, err = Static([]float64{0, 0, 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestStaticErrors(t *testing.T) {
	_, err := Static(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyProtocol)
	_, err = Static([]float64{}, 0)
	assert.ErrorIs(t, err, ErrEmptyProtocol)
	_, err = Static([]float64{0, math.NaN()}, 1)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = Static([]float64{0, 1}, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestStaticSkipsZeroSpans(t *testing.T) {
	steps, err := Static([]float64{0, 1, 1, 1 + 1e-14, 0}, 0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, -0.5, -0.5}, steps, 1e-13)
}

func TestStaticNoDrift(t *testing.T) {
	// 0.9/0.3 的浮点误差不能产生多余的极小子步
	steps, err := Static([]float64{0, 0.9}, 0.3)
	require.NoError(t, err)
	assert.Len(t, steps, 3)
	assert.InDelta(t, 0.9, floats.Sum(steps), 1e-15)
}

func TestStaticReconstruction(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rnd.Intn(8)
		targets := make([]float64, n)
		for i := range targets {
			targets[i] = (rnd.Float64() - 0.5) * 20
		}
		maxStep := 0.05 + rnd.Float64()
		steps, err := Static(targets, maxStep)
		require.NoError(t, err)
		for _, s := range steps {
			require.LessOrEqual(t, math.Abs(s), maxStep+1e-12)
		}
		// 逐个累加能依次经过全部目标值
		pos, j := 0.0, 0
		for _, want := range targets {
			for j < len(steps) && math.Abs(pos-want) > tol {
				pos += steps[j]
				j++
			}
			require.InDelta(t, want, pos, tol, "trial %d", trial)
		}
		require.Equal(t, len(steps), j)
		require.InDelta(t, targets[len(targets)-1], floats.Sum(steps), tol)
	}
}

func TestTransient(t *testing.T) {
	steps := Transient(1000)
	require.Len(t, steps, 1000)
	for i, s := range steps {
		require.Equal(t, i+1, s)
	}
	assert.Empty(t, Transient(0))
	assert.Empty(t, Transient(-3))
}
