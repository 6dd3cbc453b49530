package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"opstool/types"
)

// 求解结果代码
const (
	codeSetup    = -1 // 未设置位移控制等调用错误
	codeSingular = -2 // 矩阵奇异
	codeDiverged = -3 // 迭代未收敛
)

// 错误定义
var (
	ErrControl = errors.New("位移控制设置无效")
	ErrTest    = errors.New("收敛判据设置无效")
)

var _ types.Solver = (*Chain)(nil)

// test 收敛判据设置
type test struct {
	kind      types.TestType
	tol       float64
	maxIter   int
	printFlag int
}

// Chain 串联非线性弹簧链求解器
type Chain struct {
	Params
	mode   types.Mode
	logger *slog.Logger

	// 已提交状态
	u, v, a []float64
	lambda  float64
	time    float64

	test test
	algo algorithm
	once *mat.Dense // factorOnce 保存的切线

	node, dof int     // 位移控制
	inc       float64 // 位移增量
	armed     bool

	norm  float64 // 最近的判据范数
	iter  int     // 最近一次求解的迭代次数
	steps int     // 已提交的子步
}

// New 创建求解器，默认判据 NormDispIncr(1e-8, 10)，默认算法 Newton
func New(p Params, mode types.Mode) (*Chain, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if mode != types.Static && mode != types.Transient {
		return nil, fmt.Errorf("未知分析类型: %d", mode)
	}
	n := p.Springs
	c := &Chain{
		Params: p,
		mode:   mode,
		logger: slog.Default(),
		u:      make([]float64, n),
		v:      make([]float64, n),
		a:      make([]float64, n),
		test:   test{kind: types.NormDispIncr, tol: 1e-8, maxIter: 10},
	}
	c.algo, _ = parseAlgorithm("Newton")
	return c, nil
}

// SetLogger 设置迭代信息输出
func (c *Chain) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// ConfigureTest 设置收敛判据
func (c *Chain) ConfigureTest(kind types.TestType, tol float64, maxIter, printFlag int) error {
	if _, err := kind.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrTest, err)
	}
	if !(tol > 0) || math.IsInf(tol, 0) || maxIter <= 0 {
		return fmt.Errorf("%w: tol=%g maxIter=%d", ErrTest, tol, maxIter)
	}
	c.test = test{kind: kind, tol: tol, maxIter: maxIter, printFlag: printFlag}
	return nil
}

// ConfigureAlgorithm 设置迭代算法
func (c *Chain) ConfigureAlgorithm(name string, args ...any) error {
	a, err := parseAlgorithm(name, args...)
	if err != nil {
		return err
	}
	c.algo = a
	c.once = nil
	return nil
}

// SetIncrementControl 设置位移控制，节点为 1..Springs，自由度只能为 1
func (c *Chain) SetIncrementControl(node, dof int, step float64) error {
	if c.mode != types.Static {
		return fmt.Errorf("%w: 瞬态分析不使用位移控制", ErrControl)
	}
	if node < 1 || node > c.Springs || dof != 1 {
		return fmt.Errorf("%w: node=%d dof=%d", ErrControl, node, dof)
	}
	if math.IsNaN(step) || math.IsInf(step, 0) {
		return fmt.Errorf("%w: step=%v", ErrControl, step)
	}
	c.node, c.dof, c.inc, c.armed = node, dof, step, true
	return nil
}

// LastNorm 最近的判据范数
func (c *Chain) LastNorm() float64 { return c.norm }

// Analyze 求解一个增量，静力分析忽略 dt
func (c *Chain) Analyze(dt float64) int {
	var sys system
	switch c.mode {
	case types.Static:
		if !c.armed {
			c.logger.Error("未设置位移控制")
			return codeSetup
		}
		sys = c.static()
	default:
		if !(dt > 0) || math.IsInf(dt, 0) {
			c.logger.Error("时间步长无效", "dt", dt)
			return codeSetup
		}
		sys = c.transient(dt)
	}
	x, code := c.solve(sys)
	if code < 0 {
		return code
	}
	sys.commit(x)
	c.steps++
	return code
}

// Displacement 节点位移，节点 0 为固定端
func (c *Chain) Displacement(node int) float64 {
	if node <= 0 || node > len(c.u) {
		return 0
	}
	return c.u[node-1]
}

// Displacements 全部节点位移
func (c *Chain) Displacements() []float64 { return append([]float64(nil), c.u...) }

// Velocity 节点速度
func (c *Chain) Velocity(node int) float64 {
	if node <= 0 || node > len(c.v) {
		return 0
	}
	return c.v[node-1]
}

// LoadFactor 静力荷载因子（端部荷载）
func (c *Chain) LoadFactor() float64 { return c.lambda }

// Time 瞬态分析时间
func (c *Chain) Time() float64 { return c.time }

// Iterations 最近一次求解的迭代次数
func (c *Chain) Iterations() int { return c.iter }

// Steps 已提交的子步数
func (c *Chain) Steps() int { return c.steps }

// Algorithm 当前算法名称
func (c *Chain) Algorithm() string { return c.algo.name }

// SpringForce 第 i 根弹簧（连接节点 i-1 与 i）的内力
func (c *Chain) SpringForce(i int) float64 {
	if i <= 0 || i > len(c.u) {
		return 0
	}
	return c.force(i-1, deform(c.u, i-1))
}

// deform 第 i 根弹簧（下标从0）的变形
func deform(u []float64, i int) float64 {
	if i == 0 {
		return u[0]
	}
	return u[i] - u[i-1]
}

// resisting 节点抗力 R(u)
func (c *Chain) resisting(u []float64) []float64 {
	n := len(u)
	r := make([]float64, n)
	for i := 0; i < n; i++ {
		f := c.force(i, deform(u, i))
		r[i] += f
		if i > 0 {
			r[i-1] -= f
		}
	}
	return r
}

// stiffnessMatrix 组装 n x n 刚度矩阵
func (c *Chain) stiffnessMatrix(u []float64, kind tangentKind, k *mat.Dense) {
	n := len(u)
	for i := 0; i < n; i++ {
		var ks float64
		switch kind {
		case tangentInitial:
			ks = c.initial()
		case tangentSecant:
			ks = c.secant(i, deform(u, i))
		default:
			ks = c.stiffness(i, deform(u, i))
		}
		k.Set(i, i, k.At(i, i)+ks)
		if i > 0 {
			k.Set(i-1, i-1, k.At(i-1, i-1)+ks)
			k.Set(i-1, i, k.At(i-1, i)-ks)
			k.Set(i, i-1, k.At(i, i-1)-ks)
		}
	}
}
