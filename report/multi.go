// Package report 提供分析过程的观察者实现：日志、进度条、历史记录、图表与监控指标。
// 观察者只记录，不影响求解流程，输出错误只记录日志不会中断分析。
package report

import (
	"errors"

	"opstool/types"
)

// Multi 将事件依次转发给多个观察者
type Multi []types.Observer

// AttemptStart 开始一次求解
func (m Multi) AttemptStart(a types.Attempt) {
	for _, o := range m {
		o.AttemptStart(a)
	}
}

// AttemptResult 求解结果
func (m Multi) AttemptResult(a types.Attempt, code int) {
	for _, o := range m {
		o.AttemptResult(a, code)
	}
}

// StepDone 子步收敛
func (m Multi) StepDone(out types.Outcome) {
	for _, o := range m {
		o.StepDone(out)
	}
}

// StepFailed 子步失败
func (m Multi) StepFailed(out types.Outcome) {
	for _, o := range m {
		o.StepFailed(out)
	}
}

// Close 关闭全部观察者，返回合并的错误
func (m Multi) Close() error {
	var errs []error
	for _, o := range m {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
