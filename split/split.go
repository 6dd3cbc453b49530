// Package split 将加载协议拆分为不超过最大步长的子步序列。
package split

import (
	"errors"
	"fmt"
	"math"

	"opstool/types"
)

// 错误定义
var (
	ErrEmptyProtocol   = errors.New("加载协议为空")
	ErrMaxStepRequired = errors.New("单个目标值时必须指定最大步长")
	ErrInvalidStep     = errors.New("最大步长无效")
	ErrInvalidTarget   = errors.New("目标值无效")
)

// Static 静力协议拆分
// targets 为目标位移序列，首项非0时隐式补0；maxStep <= 0 表示未指定，
// 此时使用前两个目标的差值。返回带符号的子步序列，逐段累加可精确还原各目标值。
func Static(targets []float64, maxStep float64) ([]float64, error) {
	if len(targets) == 0 {
		return nil, ErrEmptyProtocol
	}
	for i, v := range targets {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: 第 %d 个目标值为 %v", ErrInvalidTarget, i, v)
		}
	}
	if math.IsNaN(maxStep) || math.IsInf(maxStep, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, maxStep)
	}
	if len(targets) == 1 && maxStep <= 0 {
		return nil, ErrMaxStepRequired
	}
	// 补充起点
	points := targets
	if targets[0] != 0 {
		points = append([]float64{0}, targets...)
	}
	// 推断步长
	if maxStep <= 0 {
		maxStep = math.Abs(points[1] - points[0])
		if maxStep < types.Epsilon {
			return nil, fmt.Errorf("%w: 无法由前两个目标值推断 (%g, %g)", ErrInvalidStep, points[0], points[1])
		}
	}
	steps := make([]float64, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		steps = appendSegment(steps, points[i], points[i+1], maxStep)
	}
	return steps, nil
}

// appendSegment 拆分一个区间 [start, end]
func appendSegment(steps []float64, start, end, maxStep float64) []float64 {
	span := end - start
	size := math.Abs(span)
	if size < types.Epsilon {
		return steps
	}
	sign := math.Copysign(1, span)
	n := int(math.Floor(size / maxStep))
	rem := size - float64(n)*maxStep
	// 按累计位置求差，避免累加漂移；极小余量并入最后一个整步
	pos := start
	for k := 1; k <= n; k++ {
		next := start + sign*float64(k)*maxStep
		if k == n && rem < types.Epsilon {
			next = end
		}
		steps = append(steps, next-pos)
		pos = next
	}
	if rem >= types.Epsilon {
		steps = append(steps, end-pos)
	}
	return steps
}

// Transient 瞬态步序号 1..n
func Transient(n int) []int {
	if n <= 0 {
		return []int{}
	}
	steps := make([]int, n)
	for i := range steps {
		steps[i] = i + 1
	}
	return steps
}
