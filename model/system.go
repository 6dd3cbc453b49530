package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"opstool/types"
)

// Newmark 平均加速度法参数
const (
	newmarkBeta  = 0.25
	newmarkGamma = 0.5
)

// system 一个增量步的非线性方程组 r(x) = 0
type system interface {
	start() []float64                                 // 初始试探值
	residual(x []float64) []float64                   // 不平衡量
	tangent(x []float64, kind tangentKind) *mat.Dense // -dr/dx
	commit(x []float64)                               // 提交收敛结果
}

// staticSystem 位移控制静力增量，未知量为 [u, λ]
type staticSystem struct {
	c      *Chain
	ctrl   int     // 控制自由度下标
	target float64 // 控制自由度目标位移
}

func (c *Chain) static() *staticSystem {
	ctrl := c.node - 1
	return &staticSystem{c: c, ctrl: ctrl, target: c.u[ctrl] + c.inc}
}

func (s *staticSystem) start() []float64 {
	return append(append([]float64(nil), s.c.u...), s.c.lambda)
}

func (s *staticSystem) residual(x []float64) []float64 {
	n := len(x) - 1
	u, lambda := x[:n], x[n]
	r := s.c.resisting(u)
	floats.Scale(-1, r)
	r[n-1] += lambda // 端部单位参考荷载
	return append(r, s.target-u[s.ctrl])
}

func (s *staticSystem) tangent(x []float64, kind tangentKind) *mat.Dense {
	n := len(x) - 1
	j := mat.NewDense(n+1, n+1, nil)
	s.c.stiffnessMatrix(x[:n], kind, j.Slice(0, n, 0, n).(*mat.Dense))
	j.Set(n-1, n, -1)
	j.Set(n, s.ctrl, 1)
	return j
}

func (s *staticSystem) commit(x []float64) {
	n := len(x) - 1
	copy(s.c.u, x[:n])
	s.c.lambda = x[n]
}

// transientSystem Newmark 时间增量，未知量为 u(t+dt)
type transientSystem struct {
	c      *Chain
	dt     float64
	c1, c2 float64   // 质量与阻尼的等效刚度系数
	load   []float64 // t+dt 时刻外荷载
}

func (c *Chain) transient(dt float64) *transientSystem {
	load := make([]float64, len(c.u))
	load[len(load)-1] = c.Amp * math.Sin(c.Omega*(c.time+dt))
	return &transientSystem{
		c:    c,
		dt:   dt,
		c1:   1 / (newmarkBeta * dt * dt),
		c2:   newmarkGamma / (newmarkBeta * dt),
		load: load,
	}
}

// kinematics 由试探位移求加速度与速度
func (s *transientSystem) kinematics(u []float64) (a, v []float64) {
	c := s.c
	n := len(u)
	a = make([]float64, n)
	v = make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = s.c1*(u[i]-c.u[i]) - c.v[i]/(newmarkBeta*s.dt) - (1/(2*newmarkBeta)-1)*c.a[i]
		v[i] = c.v[i] + s.dt*((1-newmarkGamma)*c.a[i]+newmarkGamma*a[i])
	}
	return a, v
}

func (s *transientSystem) start() []float64 { return append([]float64(nil), s.c.u...) }

func (s *transientSystem) residual(u []float64) []float64 {
	a, v := s.kinematics(u)
	r := s.c.resisting(u)
	for i := range r {
		r[i] = s.load[i] - s.c.Mass*a[i] - s.c.Damping*v[i] - r[i]
	}
	return r
}

func (s *transientSystem) tangent(u []float64, kind tangentKind) *mat.Dense {
	n := len(u)
	j := mat.NewDense(n, n, nil)
	s.c.stiffnessMatrix(u, kind, j)
	d := s.c.Mass*s.c1 + s.c.Damping*s.c2
	for i := 0; i < n; i++ {
		j.Set(i, i, j.At(i, i)+d)
	}
	return j
}

func (s *transientSystem) commit(u []float64) {
	a, v := s.kinematics(u)
	copy(s.c.u, u)
	copy(s.c.v, v)
	copy(s.c.a, a)
	s.c.time += s.dt
}

// solve 按当前算法与判据迭代求解
func (c *Chain) solve(sys system) ([]float64, int) {
	alg, t := c.algo, c.test
	x := sys.start()
	r := sys.residual(x)
	sum := make([]float64, len(x))
	form := func(kind tangentKind) *mat.Dense {
		j := sys.tangent(x, kind)
		if alg.kFactor != 1 {
			j.Scale(alg.kFactor, j)
		}
		return j
	}
	maxIter := t.maxIter
	if alg.fixedIter > 0 {
		maxIter = alg.fixedIter
	}
	perIter := t.printFlag == 1 || t.printFlag >= 4
	final := t.printFlag >= 2

	var j *mat.Dense
	var base float64
	updates := 0
	c.iter = 0
	for k := 1; k <= maxIter; k++ {
		c.iter = k
		// 切线
		switch {
		case alg.factorOnce && c.once != nil && c.once.RawMatrix().Rows == len(x):
			j = c.once
		case j == nil:
			j = form(alg.first)
			if alg.factorOnce {
				c.once = j
			}
		case alg.update != updateNone && updates >= alg.maxDim:
			j = form(alg.tangent)
			updates = 0
		case alg.update == updateNone && alg.refresh > 0 && (k-1)%alg.refresh == 0:
			j = form(alg.tangent)
		}
		dx, err := solveLinear(j, r)
		if err != nil {
			c.norm = math.Inf(1)
			c.logger.Debug("线性方程组求解失败", "iter", k, "error", err)
			return nil, codeSingular
		}
		// 线搜索
		if alg.lineSearch != "" {
			floats.Scale(c.lineSearch(sys, x, dx, r), dx)
		}
		next := make([]float64, len(x))
		floats.AddTo(next, x, dx)
		rNext := sys.residual(next)
		// 拟牛顿更新
		if alg.update != updateNone {
			y := make([]float64, len(r))
			floats.SubTo(y, r, rNext)
			quasiUpdate(j, dx, y, alg.update)
			updates++
		}
		floats.Add(sum, dx)
		// 判据
		var value float64
		switch t.kind {
		case types.NormUnbalance, types.RelativeNormUnbalance:
			value = floats.Norm(rNext, 2)
		case types.EnergyIncr, types.RelativeEnergyIncr:
			value = 0.5 * math.Abs(floats.Dot(dx, r))
		default:
			value = floats.Norm(dx, 2)
		}
		norm := value
		switch {
		case t.kind == types.RelativeTotalNormDispIncr:
			norm = relative(value, floats.Norm(sum, 2))
		case t.kind.IsRelative():
			if k == 1 {
				base = value
			}
			norm = relative(value, base)
		}
		c.norm = norm
		x, r = next, rNext
		if math.IsNaN(norm) || math.IsInf(norm, 0) || floats.HasNaN(x) {
			c.logger.Debug("迭代发散", "iter", k, "norm", norm)
			return nil, codeDiverged
		}
		if perIter {
			c.logger.Info("迭代", "test", t.kind.String(), "iter", k, "norm", norm, "tol", t.tol)
		}
		if alg.fixedIter > 0 || t.kind == types.FixedNumIter {
			continue
		}
		if norm <= t.tol {
			if final {
				c.logger.Info("收敛", "test", t.kind.String(), "iter", k, "norm", norm)
			}
			return x, types.Success
		}
	}
	if alg.fixedIter > 0 || t.kind == types.FixedNumIter {
		return x, types.Success
	}
	if final {
		c.logger.Info("未收敛", "test", t.kind.String(), "iter", maxIter, "norm", c.norm, "tol", t.tol)
	}
	return nil, codeDiverged
}

// relative 相对范数
func relative(value, base float64) float64 {
	if base == 0 {
		if value == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return value / base
}

// solveLinear 求解 j·dx = r
func solveLinear(j *mat.Dense, r []float64) ([]float64, error) {
	var lu mat.LU
	lu.Factorize(j)
	dx := mat.NewVecDense(len(r), nil)
	if err := lu.SolveVecTo(dx, false, mat.NewVecDense(len(r), r)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, err
		}
	}
	out := dx.RawVector().Data
	if floats.HasNaN(out) {
		return nil, errors.New("解向量含 NaN")
	}
	return out, nil
}

// quasiUpdate 拟牛顿切线更新，s 为位移增量，y 为对应的不平衡量减少值
func quasiUpdate(j *mat.Dense, s, y []float64, kind updateKind) {
	sv, yv := mat.NewVecDense(len(s), s), mat.NewVecDense(len(y), y)
	var js mat.VecDense
	js.MulVec(j, sv)
	switch kind {
	case updateBroyden:
		ss := floats.Dot(s, s)
		if ss < 1e-300 {
			return
		}
		var diff mat.VecDense
		diff.SubVec(yv, &js)
		j.RankOne(j, 1/ss, &diff, sv)
	case updateBFGS:
		ys := floats.Dot(y, s)
		sjs := mat.Dot(sv, &js)
		if ys <= 1e-300 || sjs <= 1e-300 {
			return
		}
		j.RankOne(j, 1/ys, yv, yv)
		j.RankOne(j, -1/sjs, &js, &js)
	}
}

// lineSearch 沿 dx 搜索步长系数 η，使 dx·r(x+η·dx) 足够小
func (c *Chain) lineSearch(sys system, x, dx, r0 []float64) float64 {
	alg := c.algo
	s0 := floats.Dot(dx, r0)
	if s0 == 0 {
		return 1
	}
	trial := make([]float64, len(x))
	s := func(eta float64) float64 {
		floats.AddScaledTo(trial, x, eta, dx)
		return floats.Dot(dx, sys.residual(trial))
	}
	clamp := func(eta float64) float64 { return math.Min(alg.maxEta, math.Max(alg.minEta, eta)) }
	done := func(v float64) bool { return math.Abs(v) <= alg.lsTol*math.Abs(s0) }

	eta, se := 1.0, s(1)
	if done(se) || math.IsNaN(se) {
		return 1
	}
	switch alg.lineSearch {
	case "Bisection":
		if s0*se > 0 {
			return 1
		}
		lo, hi := 0.0, 1.0
		for i := 0; i < alg.lsIter; i++ {
			eta = (lo + hi) / 2
			v := s(eta)
			if done(v) {
				break
			}
			if v*s0 > 0 {
				lo = eta
			} else {
				hi = eta
			}
		}
	case "Secant":
		prev, sp := 0.0, s0
		for i := 0; i < alg.lsIter && se != sp; i++ {
			next := clamp(eta - se*(eta-prev)/(se-sp))
			prev, sp = eta, se
			eta, se = next, s(next)
			if done(se) {
				break
			}
		}
	case "RegulaFalsi", "LinearInterpolated":
		if s0*se > 0 {
			return 1
		}
		lo, slo, hi, shi := 0.0, s0, 1.0, se
		for i := 0; i < alg.lsIter && shi != slo; i++ {
			eta = hi - shi*(hi-lo)/(shi-slo)
			v := s(eta)
			if done(v) {
				break
			}
			switch {
			case alg.lineSearch == "LinearInterpolated":
				lo, slo, hi, shi = hi, shi, eta, v
			case v*slo > 0:
				lo, slo = eta, v
			default:
				hi, shi = eta, v
			}
		}
	default:
		for i := 0; i < alg.lsIter && se != s0; i++ {
			eta = clamp(eta * s0 / (s0 - se))
			se = s(eta)
			if done(se) {
				break
			}
		}
	}
	return clamp(eta)
}
