// Package analyze 实现自适应非线性求解控制（SmartAnalyze）。
//
// 每个子步依次尝试：初次求解 → 追加判据迭代次数 → 切换迭代算法 →
// 步长二分 → 放宽判据容差，遇到首个收敛即停止。
// 求解器的当前算法与当前判据是全局状态，控制器按 保存/尝试/恢复 的顺序修改它们。
package analyze

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"opstool/algo"
	"opstool/convtest"
	"opstool/report"
	"opstool/split"
	"opstool/types"
)

// 运行错误定义
var (
	ErrNotConverged = errors.New("分析未收敛")
	ErrAborted      = errors.New("分析已因失败终止")
	ErrWrongMode    = errors.New("分析类型不匹配")
	ErrClosed       = errors.New("控制器已关闭")
)

// Stats 运行统计
type Stats struct {
	Steps      int    // 收敛子步数
	Attempts   int    // 求解调用次数
	Resolved   [5]int // 按层级统计完成的子步，下标为 types.Tier
	Bisections int    // 二分尝试次数
}

// solveFunc 以给定步长求解一次，error 表示无法继续的错误
type solveFunc func(size float64) (int, error)

// Controller 自适应求解控制器，一个控制器只驱动一个求解器会话，不可并发使用
type Controller struct {
	solver    types.Solver
	mode      types.Mode
	opts      Options
	logger    *slog.Logger
	observers report.Multi

	test    convtest.Config // 初始判据
	active  convtest.Config // 当前设置到求解器的判据
	algos   []algo.Choice   // 候选算法
	algoIdx int             // 当前算法索引

	start     time.Time // 计时起点
	counter   int       // 已收敛子步
	total     int       // 预告的子步总数
	attempts  int       // 当前子步的求解次数
	node, dof int       // 最近的位移控制
	failed    bool
	closed    bool
	stats     Stats
}

// New 创建控制器，设置初始判据与默认算法
func New(s types.Solver, mode types.Mode, opts Options, observers ...types.Observer) (*Controller, error) {
	if s == nil {
		return nil, errors.New("求解器不能为空")
	}
	if mode != types.Transient && mode != types.Static {
		return nil, fmt.Errorf("%w: %d", ErrWrongMode, mode)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	test, err := opts.TestConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	algos, err := algo.Choices(opts.AlgoTypes, opts.UserAlgoArgs)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		solver:    s,
		mode:      mode,
		opts:      opts,
		logger:    slog.Default(),
		observers: observers,
		test:      test,
		algos:     algos,
		start:     time.Now(),
	}
	if err := c.setTest(test); err != nil {
		return nil, err
	}
	if err := c.setAlgo(0); err != nil {
		return nil, err
	}
	return c, nil
}

// SetLogger 设置日志输出
func (c *Controller) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Options 当前配置
func (c *Controller) Options() Options { return c.opts }

// Mode 分析类型
func (c *Controller) Mode() types.Mode { return c.mode }

// Test 当前设置在求解器上的判据
func (c *Controller) Test() convtest.Config { return c.active }

// Algorithm 当前算法
func (c *Controller) Algorithm() algo.Choice { return c.algos[c.algoIdx] }

// AlgorithmIndex 当前算法在候选列表中的位置
func (c *Controller) AlgorithmIndex() int { return c.algoIdx }

// Control 最近一次位移控制的节点与自由度
func (c *Controller) Control() (node, dof int) { return c.node, c.dof }

// Stats 运行统计
func (c *Controller) Stats() Stats { return c.stats }

// Elapsed 自创建起的耗时
func (c *Controller) Elapsed() time.Duration { return time.Since(c.start) }

// Failed 是否已经失败
func (c *Controller) Failed() bool { return c.failed }

// Progress 已收敛子步数与预告总数，总数未知时为0
func (c *Controller) Progress() (n, total int) {
	n = c.counter
	if c.total > 0 && n > c.total {
		n = c.total
	}
	return n, c.total
}

// StaticSplit 拆分静力协议并记录子步总数，maxStep <= 0 时使用 initialStep
func (c *Controller) StaticSplit(targets []float64, maxStep float64) ([]float64, error) {
	if maxStep <= 0 && c.opts.InitialStep > 0 {
		maxStep = c.opts.InitialStep
	}
	steps, err := split.Static(targets, maxStep)
	if err != nil {
		return nil, err
	}
	c.total = len(steps)
	return steps, nil
}

// TransientSplit 生成瞬态步序号并记录子步总数
func (c *Controller) TransientSplit(n int) []int {
	steps := split.Transient(n)
	c.total = len(steps)
	return steps
}

// TransientStep 以时间增量 dt 完成一个瞬态子步
func (c *Controller) TransientStep(dt float64) (int, error) {
	if err := c.ready(types.Transient); err != nil {
		return types.Failure, err
	}
	return c.step(dt, func(size float64) (int, error) {
		return c.solver.Analyze(size), nil
	})
}

// StaticStep 在 (node, dof) 上以位移增量 inc 完成一个静力子步
func (c *Controller) StaticStep(node, dof int, inc float64) (int, error) {
	if err := c.ready(types.Static); err != nil {
		return types.Failure, err
	}
	c.node, c.dof = node, dof
	return c.step(inc, func(size float64) (int, error) {
		if err := c.solver.SetIncrementControl(node, dof, size); err != nil {
			return types.Failure, fmt.Errorf("设置位移控制失败 (node=%d, dof=%d): %w", node, dof, err)
		}
		return c.solver.Analyze(0), nil
	})
}

// Close 释放观察者资源，可重复调用
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.observers.Close()
	if err != nil {
		c.logger.Warn("关闭观察者失败", "error", err)
	}
	return err
}

// ready 检查是否可以继续求解
func (c *Controller) ready(mode types.Mode) error {
	switch {
	case c.closed:
		return ErrClosed
	case c.failed:
		return ErrAborted
	case c.mode != mode:
		return fmt.Errorf("%w: 控制器为 %s, 调用的是 %s", ErrWrongMode, c.mode, mode)
	}
	return nil
}

// step 执行一个子步的完整回退链
func (c *Controller) step(size float64, solve solveFunc) (int, error) {
	c.attempts = 0
	tier, ok, err := c.chain(size, solve)
	outcome := types.Outcome{
		Mode:     c.mode,
		Step:     c.counter + 1,
		Total:    c.total,
		Size:     size,
		Attempts: c.attempts,
		Algo:     c.Algorithm().Code,
		Elapsed:  c.Elapsed(),
	}
	if ok {
		c.counter++
		c.stats.Steps++
		c.stats.Resolved[tier]++
		outcome.Step, _ = c.Progress()
		outcome.Code = types.Success
		c.observers.StepDone(outcome)
		return types.Success, nil
	}
	c.failed = true
	outcome.Code = types.Failure
	c.observers.StepFailed(outcome)
	if len(c.observers) == 0 {
		c.logger.Error("分析失败", "step", outcome.Step, "size", size, "elapsed", outcome.Elapsed)
	}
	if err == nil {
		err = ErrNotConverged
	} else {
		err = fmt.Errorf("%w: %w", ErrNotConverged, err)
	}
	return types.Failure, fmt.Errorf("%w (第 %d 步, 步长 %g, 耗时 %s)", err, outcome.Step, size, outcome.Elapsed.Round(time.Millisecond))
}

// chain 回退链，返回完成子步的层级
func (c *Controller) chain(size float64, solve solveFunc) (types.Tier, bool, error) {
	// 初次尝试
	code, err := c.try(types.TierBaseline, size, solve)
	if err != nil {
		return 0, false, err
	}
	if code >= 0 {
		return types.TierBaseline, true, nil
	}
	// 追加判据迭代次数
	if c.opts.TryAddTestTimes {
		ok, err := c.addTestIter(size, solve)
		if err != nil || ok {
			return types.TierTestIter, ok, err
		}
	}
	// 切换迭代算法
	if c.opts.TryAlterAlgoTypes && len(c.algos) > 1 {
		ok, err := c.alterAlgo(size, solve)
		if err != nil || ok {
			return types.TierAlgorithm, ok, err
		}
	}
	// 步长二分
	rest, ok, err := c.bisect(size, solve)
	if err != nil || ok {
		return types.TierBisect, ok, err
	}
	// 放宽判据容差
	if c.opts.TryLooseTestTol {
		ok, err := c.looseTol(rest, solve)
		if err != nil || ok {
			return types.TierLooseTol, ok, err
		}
	}
	return 0, false, nil
}

// try 以当前算法与判据求解一次
func (c *Controller) try(tier types.Tier, size float64, solve solveFunc) (int, error) {
	a := types.Attempt{
		Step:     c.counter + 1,
		Tier:     tier,
		Size:     size,
		Algo:     c.Algorithm().Code,
		TestType: c.active.Type,
		TestTol:  c.active.Tol,
		TestIter: c.active.Iter,
	}
	c.observers.AttemptStart(a)
	code, err := solve(size)
	c.attempts++
	c.stats.Attempts++
	if err != nil {
		code = types.Failure
	}
	c.observers.AttemptResult(a, code)
	return code, err
}

// addTestIter 追加判据迭代次数，仅当最近范数低于 normTol 时重试；结束后恢复初始判据
func (c *Controller) addTestIter(size float64, solve solveFunc) (ok bool, err error) {
	defer func() {
		if c.active != c.test {
			if rerr := c.setTest(c.test); rerr != nil && err == nil {
				ok, err = false, rerr
			}
		}
	}()
	for _, iter := range c.opts.TestIterTimesMore {
		norm := c.solver.LastNorm()
		if !(norm < c.opts.NormTol) {
			c.logger.Debug("范数过大, 跳过追加迭代", "norm", norm, "normTol", c.opts.NormTol)
			return false, nil
		}
		if err := c.setTest(c.test.WithIterations(iter)); err != nil {
			return false, err
		}
		code, err := c.try(types.TierTestIter, size, solve)
		if err != nil {
			return false, err
		}
		if code >= 0 {
			return true, nil
		}
	}
	return false, nil
}

// alterAlgo 依次尝试其余候选算法，成功后保留新算法，全部失败则恢复默认算法
func (c *Controller) alterAlgo(size float64, solve solveFunc) (bool, error) {
	tried := c.algoIdx
	for i := range c.algos {
		if i == tried {
			continue
		}
		if err := c.setAlgo(i); err != nil {
			c.logger.Warn("求解器拒绝算法", "algo", c.algos[i].String(), "error", err)
			continue
		}
		code, err := c.try(types.TierAlgorithm, size, solve)
		if err != nil {
			return false, err
		}
		if code >= 0 {
			c.logger.Debug("切换算法", "algo", c.algos[i].String())
			return true, nil
		}
	}
	return false, c.setAlgo(0)
}

// bisect 步长二分，返回尚未完成的剩余步长
// 成功后下一次尝试取剩余量（不超过上次成功的步长），失败则按 relaxation 缩小，
// 尝试步长低于 minStep 时失败。
func (c *Controller) bisect(size float64, solve solveFunc) (float64, bool, error) {
	remaining := size
	attempt := size * c.opts.Relaxation
	for math.Abs(remaining) > types.Epsilon {
		if math.Abs(attempt) < c.opts.MinStep {
			c.logger.Debug("二分步长低于最小步长", "attempt", attempt, "minStep", c.opts.MinStep, "remaining", remaining)
			return remaining, false, nil
		}
		c.stats.Bisections++
		code, err := c.try(types.TierBisect, attempt, solve)
		if err != nil {
			return remaining, false, err
		}
		if code >= 0 {
			remaining -= attempt
			if math.Abs(remaining) < math.Abs(attempt) {
				attempt = remaining
			}
			continue
		}
		attempt *= c.opts.Relaxation
	}
	return 0, true, nil
}

// looseTol 以放宽的容差重试一次，结束后恢复初始判据
func (c *Controller) looseTol(size float64, solve solveFunc) (ok bool, err error) {
	if err := c.setTest(c.test.WithTolerance(c.opts.LooseTol())); err != nil {
		return false, err
	}
	defer func() {
		if rerr := c.setTest(c.test); rerr != nil && err == nil {
			ok, err = false, rerr
		}
	}()
	code, err := c.try(types.TierLooseTol, size, solve)
	return code >= 0 && err == nil, err
}

// setTest 设置判据并记录
func (c *Controller) setTest(t convtest.Config) error {
	if err := t.Apply(c.solver); err != nil {
		return err
	}
	c.active = t
	return nil
}

// setAlgo 设置候选算法
func (c *Controller) setAlgo(i int) error {
	if err := algo.Apply(c.solver, c.algos[i]); err != nil {
		return err
	}
	c.algoIdx = i
	return nil
}
