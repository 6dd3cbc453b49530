package analyze

import (
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opstool/algo"
	"opstool/convtest"
	"opstool/types"
)

// solveCall 一次 Analyze 调用时求解器的状态
type solveCall struct {
	size float64
	algo string
	tol  float64
	iter int
}

// scripted 按规则决定是否收敛的求解器
type scripted struct {
	algo     string
	test     convtest.Config
	inc      float64
	norm     float64
	armed    int
	reject   map[string]bool
	incErr   error
	converge func(c solveCall) bool

	solves []solveCall
	tests  []convtest.Config
	algos  []string
}

func (s *scripted) ConfigureTest(kind types.TestType, tol float64, iter, printFlag int) error {
	s.test = convtest.Config{Type: kind, Tol: tol, Iter: iter, PrintFlag: printFlag}
	s.tests = append(s.tests, s.test)
	return nil
}

func (s *scripted) ConfigureAlgorithm(name string, args ...any) error {
	if s.reject[name] {
		return errors.New("rejected")
	}
	s.algo = name
	s.algos = append(s.algos, name)
	return nil
}

func (s *scripted) SetIncrementControl(node, dof int, step float64) error {
	if s.incErr != nil {
		return s.incErr
	}
	s.inc = step
	s.armed++
	return nil
}

func (s *scripted) Analyze(dt float64) int {
	size := dt
	if dt == 0 {
		size = s.inc
	}
	c := solveCall{size: size, algo: s.algo, tol: s.test.Tol, iter: s.test.Iter}
	s.solves = append(s.solves, c)
	if s.converge == nil || s.converge(c) {
		return 0
	}
	return -3
}

func (s *scripted) LastNorm() float64 { return s.norm }

// events 记录观察者事件
type events struct {
	attempts []types.Attempt
	results  []int
	done     []types.Outcome
	failed   []types.Outcome
	closed   int
	closeErr error
}

func (e *events) AttemptStart(a types.Attempt)         { e.attempts = append(e.attempts, a) }
func (e *events) AttemptResult(_ types.Attempt, c int) { e.results = append(e.results, c) }
func (e *events) StepDone(o types.Outcome)             { e.done = append(e.done, o) }
func (e *events) StepFailed(o types.Outcome)           { e.failed = append(e.failed, o) }
func (e *events) Close() error {
	e.closed++
	return e.closeErr
}

func newController(t *testing.T, s types.Solver, mode types.Mode, opts Options, obs ...types.Observer) *Controller {
	t.Helper()
	c, err := New(s, mode, opts, obs...)
	require.NoError(t, err)
	c.SetLogger(slog.New(slog.DiscardHandler))
	return c
}

func TestNewConfiguresSolver(t *testing.T) {
	s := &scripted{}
	c := newController(t, s, types.Static, DefaultOptions())
	require.Len(t, s.tests, 1)
	assert.Equal(t, types.EnergyIncr, s.tests[0].Type)
	assert.Equal(t, 1e-10, s.tests[0].Tol)
	assert.Equal(t, 10, s.tests[0].Iter)
	assert.Equal(t, []string{"KrylovNewton"}, s.algos)
	assert.Equal(t, 40, c.Algorithm().Code)
	assert.Equal(t, s.test, c.Test())
}

func TestNewErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.AlgoTypes = []int{40, 999}
	_, err := New(&scripted{}, types.Static, opts)
	assert.ErrorIs(t, err, algo.ErrUnknownAlgo)

	opts = DefaultOptions()
	opts.Relaxation = 1
	_, err = New(&scripted{}, types.Static, opts)
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(&scripted{}, types.Mode(7), DefaultOptions())
	assert.ErrorIs(t, err, ErrWrongMode)

	_, err = New(nil, types.Static, DefaultOptions())
	assert.Error(t, err)

	// 求解器拒绝默认算法
	_, err = New(&scripted{reject: map[string]bool{"KrylovNewton": true}}, types.Static, DefaultOptions())
	assert.Error(t, err)
}

func TestBaseline(t *testing.T) {
	s := &scripted{}
	obs := &events{}
	c := newController(t, s, types.Static, DefaultOptions(), obs)

	code, err := c.StaticStep(3, 1, 0.1)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)
	assert.Equal(t, []solveCall{{0.1, "KrylovNewton", 1e-10, 10}}, s.solves)
	n, total := c.Progress()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, total)
	node, dof := c.Control()
	assert.Equal(t, 3, node)
	assert.Equal(t, 1, dof)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Steps)
	assert.Equal(t, 1, stats.Attempts)
	assert.Equal(t, 1, stats.Resolved[types.TierBaseline])

	require.Len(t, obs.attempts, 1)
	assert.Equal(t, types.TierBaseline, obs.attempts[0].Tier)
	assert.Equal(t, []int{0}, obs.results)
	require.Len(t, obs.done, 1)
	assert.Equal(t, 1, obs.done[0].Step)
	assert.Equal(t, 1, obs.done[0].Attempts)
}

func TestTierAddTestIterations(t *testing.T) {
	s := &scripted{norm: 1.0, converge: func(c solveCall) bool { return c.iter >= 100 }}
	opts := DefaultOptions()
	opts.TryAddTestTimes = true
	opts.TestIterTimesMore = []int{50, 100}
	c := newController(t, s, types.Static, opts)
	initial := c.Test()

	code, err := c.StaticStep(1, 1, 0.2)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)
	require.Len(t, s.solves, 3)
	assert.Equal(t, 10, s.solves[0].iter)
	assert.Equal(t, 50, s.solves[1].iter)
	assert.Equal(t, 100, s.solves[2].iter)
	for _, call := range s.solves {
		assert.Equal(t, 0.2, call.size)
		assert.Equal(t, 1e-10, call.tol)
	}
	// 判据恢复为初始值
	assert.Equal(t, initial, c.Test())
	assert.Equal(t, initial, s.test)
	assert.Equal(t, 1, c.Stats().Resolved[types.TierTestIter])
}

func TestTierAddTestIterationsNormGate(t *testing.T) {
	s := &scripted{norm: 1e6, converge: func(c solveCall) bool { return c.iter >= 50 || c.size < 0.15 }}
	opts := DefaultOptions()
	opts.TryAddTestTimes = true
	c := newController(t, s, types.Static, opts)

	code, err := c.StaticStep(1, 1, 0.2)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)
	for _, call := range s.solves {
		assert.Equal(t, 10, call.iter, "范数过大时不追加迭代")
	}
	assert.Equal(t, 1, c.Stats().Resolved[types.TierBisect])

	// NaN 范数同样不放行
	s = &scripted{norm: math.NaN(), converge: func(c solveCall) bool { return c.iter >= 50 }}
	c = newController(t, s, types.Static, opts)
	_, err = c.StaticStep(1, 1, 0.2)
	assert.ErrorIs(t, err, ErrNotConverged)
	for _, call := range s.solves {
		assert.Equal(t, 10, call.iter)
	}
}

func TestTierAlgorithmPersists(t *testing.T) {
	s := &scripted{converge: func(c solveCall) bool { return c.algo == "NewtonLineSearch" }}
	opts := DefaultOptions()
	opts.TryAlterAlgoTypes = true
	c := newController(t, s, types.Transient, opts)

	code, err := c.TransientStep(0.01)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)
	// KrylovNewton → Newton → NewtonLineSearch
	require.Len(t, s.solves, 3)
	assert.Equal(t, []string{"KrylovNewton", "Newton", "NewtonLineSearch"},
		[]string{s.solves[0].algo, s.solves[1].algo, s.solves[2].algo})
	assert.Equal(t, 20, c.Algorithm().Code)
	assert.Equal(t, 2, c.AlgorithmIndex())
	assert.Equal(t, "NewtonLineSearch", s.algo)

	// 下一步直接使用保留的算法
	code, err = c.TransientStep(0.01)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)
	require.Len(t, s.solves, 4)
	assert.Equal(t, "NewtonLineSearch", s.solves[3].algo)
	assert.Equal(t, 1, c.Stats().Resolved[types.TierAlgorithm])
	assert.Equal(t, 1, c.Stats().Resolved[types.TierBaseline])
}

func TestTierAlgorithmRevert(t *testing.T) {
	s := &scripted{
		reject:   map[string]bool{"BFGS": true},
		converge: func(c solveCall) bool { return math.Abs(c.size) <= 0.5 },
	}
	opts := DefaultOptions()
	opts.TryAlterAlgoTypes = true
	c := newController(t, s, types.Static, opts)

	code, err := c.StaticStep(1, 1, 1.0)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)

	// 初次 + 其余 7 个候选中被拒绝的 BFGS 跳过 + 二分 2 次
	require.Len(t, s.solves, 1+6+2)
	for _, call := range s.solves[1:7] {
		assert.NotEqual(t, "KrylovNewton", call.algo)
		assert.NotEqual(t, "BFGS", call.algo)
	}
	// 二分前恢复默认算法
	assert.Equal(t, "KrylovNewton", s.solves[7].algo)
	assert.Equal(t, "KrylovNewton", s.solves[8].algo)
	assert.Equal(t, 0, c.AlgorithmIndex())
	assert.Equal(t, 1, c.Stats().Resolved[types.TierBisect])
}

func TestBisectionConsumesRemainder(t *testing.T) {
	s := &scripted{converge: func(c solveCall) bool { return math.Abs(c.size) <= 0.3 }}
	obs := &events{}
	c := newController(t, s, types.Static, DefaultOptions(), obs)

	code, err := c.StaticStep(2, 1, -1.0)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)

	var sizes []float64
	for _, call := range s.solves {
		sizes = append(sizes, call.size)
	}
	// 失败缩小，成功后不回增
	assert.Equal(t, []float64{-1.0, -0.5, -0.25, -0.25, -0.25, -0.25}, sizes)
	assert.Equal(t, len(s.solves), s.armed)
	assert.Equal(t, 5, c.Stats().Bisections)
	require.Len(t, obs.done, 1)
	assert.Equal(t, 6, obs.done[0].Attempts)
	assert.Equal(t, -1.0, obs.done[0].Size)
}

func TestBisectionRemainderCap(t *testing.T) {
	// 成功后的下一次尝试取剩余量与上次步长的较小者
	s := &scripted{converge: func(c solveCall) bool { return c.size <= 0.4 }}
	opts := DefaultOptions()
	opts.Relaxation = 0.4
	c := newController(t, s, types.Static, opts)

	_, err := c.StaticStep(1, 1, 1.0)
	require.NoError(t, err)
	var sizes []float64
	for _, call := range s.solves {
		sizes = append(sizes, call.size)
	}
	require.Len(t, sizes, 4)
	assert.InDeltaSlice(t, []float64{1.0, 0.4, 0.4, 0.2}, sizes, 1e-12)
}

func TestBisectionFloor(t *testing.T) {
	s := &scripted{converge: func(solveCall) bool { return false }}
	obs := &events{}
	opts := DefaultOptions()
	opts.MinStep = 1e-6
	c := newController(t, s, types.Static, opts, obs)

	code, err := c.StaticStep(1, 1, 1.0)
	assert.Equal(t, types.Failure, code)
	require.ErrorIs(t, err, ErrNotConverged)
	assert.Contains(t, err.Error(), "第 1 步")

	require.NotEmpty(t, s.solves)
	for _, call := range s.solves {
		assert.GreaterOrEqual(t, math.Abs(call.size), 1e-6)
	}
	// 最后一次尝试再缩小一次即低于最小步长
	last := s.solves[len(s.solves)-1].size
	assert.Less(t, last*opts.Relaxation, 1e-6)
	assert.Len(t, s.solves, 1+19)

	require.Len(t, obs.failed, 1)
	assert.Equal(t, types.Failure, obs.failed[0].Code)
	assert.Equal(t, 1, obs.failed[0].Step)
	assert.True(t, c.Failed())

	// 失败后不再求解
	before := len(s.solves)
	code, err = c.StaticStep(1, 1, 0.1)
	assert.Equal(t, types.Failure, code)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Len(t, s.solves, before)
}

func TestTierLooseTolerance(t *testing.T) {
	s := &scripted{converge: func(c solveCall) bool { return c.tol >= 1e-9 }}
	opts := DefaultOptions()
	opts.TryLooseTestTol = true
	c := newController(t, s, types.Transient, opts)
	initial := c.Test()

	code, err := c.TransientStep(0.02)
	require.NoError(t, err)
	assert.Equal(t, types.Success, code)

	last := s.solves[len(s.solves)-1]
	assert.InDelta(t, 1e-8, last.tol, 1e-20)
	assert.Equal(t, 10, last.iter)
	// 二分未完成任何部分，放宽容差时重试整个子步
	assert.Equal(t, 0.02, last.size)
	assert.Equal(t, initial, c.Test())
	assert.Equal(t, initial, s.test)
	assert.Equal(t, 1, c.Stats().Resolved[types.TierLooseTol])
}

func TestTierLooseToleranceRemainder(t *testing.T) {
	// 二分完成一部分后卡住，放宽容差只重试剩余部分
	s := &scripted{}
	s.converge = func(c solveCall) bool {
		return c.tol >= 1e-9 || (c.size == 0.5 && len(s.solves) == 2)
	}
	opts := DefaultOptions()
	opts.TryLooseTestTol = true
	opts.LooseTestTolTo = 1e-5
	c := newController(t, s, types.Transient, opts)

	_, err := c.TransientStep(1.0)
	require.NoError(t, err)
	last := s.solves[len(s.solves)-1]
	assert.Equal(t, 1e-5, last.tol)
	assert.InDelta(t, 0.5, last.size, 1e-12)
	assert.Equal(t, 1e-10, c.Test().Tol)
}

func TestConfigRestoredOnFailure(t *testing.T) {
	s := &scripted{norm: 1, converge: func(solveCall) bool { return false }}
	opts := DefaultOptions()
	opts.TryAddTestTimes = true
	opts.TryLooseTestTol = true
	opts.TryAlterAlgoTypes = true
	opts.MinStep = 0.1
	c := newController(t, s, types.Static, opts)
	initial := c.Test()

	_, err := c.StaticStep(1, 1, 1.0)
	require.ErrorIs(t, err, ErrNotConverged)
	assert.Equal(t, initial, c.Test())
	assert.Equal(t, initial, s.test)
	assert.Equal(t, 0, c.AlgorithmIndex())
	assert.Equal(t, "KrylovNewton", s.algo)

	tiers := map[int]bool{}
	for _, call := range s.solves {
		tiers[call.iter] = true
	}
	assert.True(t, tiers[50], "追加迭代层级已尝试")
}

func TestProgressAccounting(t *testing.T) {
	s := &scripted{}
	c := newController(t, s, types.Transient, DefaultOptions())
	steps := c.TransientSplit(3)
	require.Len(t, steps, 3)

	for i := range steps {
		_, err := c.TransientStep(0.1)
		require.NoError(t, err)
		n, total := c.Progress()
		assert.Equal(t, i+1, n)
		assert.Equal(t, 3, total)
	}
	// 超出预告总数时不越界
	_, err := c.TransientStep(0.1)
	require.NoError(t, err)
	n, total := c.Progress()
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, total)
	assert.Equal(t, 4, c.Stats().Steps)
}

func TestStaticSplitInitialStep(t *testing.T) {
	opts := DefaultOptions()
	opts.InitialStep = 0.25
	c := newController(t, &scripted{}, types.Static, opts)

	steps, err := c.StaticSplit([]float64{1.0}, 0)
	require.NoError(t, err)
	assert.Len(t, steps, 4)
	_, total := c.Progress()
	assert.Equal(t, 4, total)

	steps, err = c.StaticSplit([]float64{1.0}, 0.5)
	require.NoError(t, err)
	assert.Len(t, steps, 2)

	c = newController(t, &scripted{}, types.Static, DefaultOptions())
	_, err = c.StaticSplit([]float64{5.0}, 0)
	assert.Error(t, err)
}

func TestWrongMode(t *testing.T) {
	s := &scripted{}
	c := newController(t, s, types.Transient, DefaultOptions())
	code, err := c.StaticStep(1, 1, 0.1)
	assert.Equal(t, types.Failure, code)
	assert.ErrorIs(t, err, ErrWrongMode)
	assert.Empty(t, s.solves)
	assert.False(t, c.Failed())

	c = newController(t, s, types.Static, DefaultOptions())
	_, err = c.TransientStep(0.1)
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestIncrementControlError(t *testing.T) {
	s := &scripted{incErr: errors.New("no such node")}
	c := newController(t, s, types.Static, DefaultOptions())
	code, err := c.StaticStep(9, 1, 0.1)
	assert.Equal(t, types.Failure, code)
	assert.ErrorIs(t, err, ErrNotConverged)
	assert.ErrorIs(t, err, s.incErr)
	assert.Empty(t, s.solves)
}

func TestObserverDoesNotChangeControl(t *testing.T) {
	rule := func(c solveCall) bool { return math.Abs(c.size) <= 0.3 || c.algo == "Broyden" }
	run := func(obs ...types.Observer) []solveCall {
		s := &scripted{converge: rule}
		opts := DefaultOptions()
		opts.TryAlterAlgoTypes = true
		c := newController(t, s, types.Static, opts, obs...)
		for _, inc := range []float64{0.2, 1.0, 0.7} {
			_, err := c.StaticStep(1, 1, inc)
			require.NoError(t, err)
		}
		return s.solves
	}
	assert.Equal(t, run(), run(&events{}, &events{}))
}

func TestClose(t *testing.T) {
	a := &events{}
	b := &events{closeErr: errors.New("flush failed")}
	c := newController(t, &scripted{}, types.Static, DefaultOptions(), a, b)

	err := c.Close()
	assert.ErrorIs(t, err, b.closeErr)
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)

	code, err := c.StaticStep(1, 1, 0.1)
	assert.Equal(t, types.Failure, code)
	assert.ErrorIs(t, err, ErrClosed)
}
