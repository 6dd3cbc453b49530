// Package opstool 以 SmartAnalyze 控制器驱动完整的静力或瞬态分析。
package opstool

import (
	"opstool/analyze"
)

// RunStatic 按目标位移序列进行静力分析，遇到首个失败子步即停止
func RunStatic(c *analyze.Controller, node, dof int, targets []float64, maxStep float64) error {
	defer c.Close()
	steps, err := c.StaticSplit(targets, maxStep)
	if err != nil {
		return err
	}
	for _, inc := range steps {
		if _, err := c.StaticStep(node, dof, inc); err != nil {
			return err
		}
	}
	return nil
}

// RunTransient 以固定时间增量进行 n 步瞬态分析，遇到首个失败子步即停止
func RunTransient(c *analyze.Controller, dt float64, n int) error {
	defer c.Close()
	for range c.TransientSplit(n) {
		if _, err := c.TransientStep(dt); err != nil {
			return err
		}
	}
	return nil
}
