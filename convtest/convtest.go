// Package convtest 描述求解器的收敛判据设置。
package convtest

import (
	"errors"
	"fmt"
	"math"

	"opstool/types"
)

// ErrInvalid 判据参数无效
var ErrInvalid = errors.New("收敛判据参数无效")

// Config 收敛判据（不可变值）
type Config struct {
	Type      types.TestType // 判据类型
	Tol       float64        // 容差
	Iter      int            // 最大迭代次数
	PrintFlag int            // 输出级别
}

// New 创建判据，容差与迭代次数必须为正
func New(kind types.TestType, tol float64, iter, printFlag int) (Config, error) {
	c := Config{Type: kind, Tol: tol, Iter: iter, PrintFlag: printFlag}
	return c, c.Validate()
}

// Validate 检查参数
func (c Config) Validate() error {
	switch {
	case !(c.Tol > 0) || math.IsInf(c.Tol, 0):
		return fmt.Errorf("%w: 容差必须大于0, 得到 %g", ErrInvalid, c.Tol)
	case c.Iter <= 0:
		return fmt.Errorf("%w: 迭代次数必须大于0, 得到 %d", ErrInvalid, c.Iter)
	}
	return nil
}

// Apply 将判据设置到求解器
func (c Config) Apply(s types.Solver) error {
	if err := s.ConfigureTest(c.Type, c.Tol, c.Iter, c.PrintFlag); err != nil {
		return fmt.Errorf("设置收敛判据 %s 失败: %w", c, err)
	}
	return nil
}

// WithTolerance 返回修改容差后的副本
func (c Config) WithTolerance(tol float64) Config {
	c.Tol = tol
	return c
}

// WithIterations 返回修改迭代次数后的副本
func (c Config) WithIterations(iter int) Config {
	c.Iter = iter
	return c
}

// String 输出判据描述
func (c Config) String() string {
	return fmt.Sprintf("%s(tol=%g, iter=%d, print=%d)", c.Type, c.Tol, c.Iter, c.PrintFlag)
}
