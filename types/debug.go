package types

import (
	"fmt"
	"time"
)

// Tier 回退层级
type Tier uint

// 回退层级常量定义
const (
	TierBaseline Tier = iota // 初次尝试
	TierTestIter             // 追加判据迭代次数
	TierAlgorithm            // 切换迭代算法
	TierBisect               // 步长二分
	TierLooseTol             // 放宽判据容差
)

var tierString = [...]string{
	TierBaseline:  "baseline",
	TierTestIter:  "test-iter",
	TierAlgorithm: "algorithm",
	TierBisect:    "bisect",
	TierLooseTol:  "loose-tol",
}

// String 层级名称
func (t Tier) String() string {
	if int(t) < len(tierString) {
		return tierString[t]
	}
	return fmt.Sprintf("Tier(%d)", uint(t))
}

// Tiers 全部层级（按回退顺序）
func Tiers() []Tier {
	return []Tier{TierBaseline, TierTestIter, TierAlgorithm, TierBisect, TierLooseTol}
}

// Attempt 一次求解尝试
type Attempt struct {
	Step     int      // 当前子步序号（从1开始）
	Tier     Tier     // 所在层级
	Size     float64  // 尝试步长
	Algo     int      // 算法代码
	TestType TestType // 收敛判据
	TestTol  float64  // 判据容差
	TestIter int      // 判据迭代次数
}

// Outcome 一个子步的最终结果
type Outcome struct {
	Mode     Mode          // 分析类型
	Step     int           // 已完成子步数（失败时为失败的子步序号）
	Total    int           // 预告的子步总数，0 表示未知
	Size     float64       // 子步大小
	Code     int           // 结果代码
	Attempts int           // 本子步内的求解次数
	Algo     int           // 结束时的算法代码
	Elapsed  time.Duration // 自控制器创建起的耗时
}

// Observer 观察接口，只用于记录，不影响控制流程
type Observer interface {
	AttemptStart(a Attempt)            // 开始一次求解
	AttemptResult(a Attempt, code int) // 求解结果
	StepDone(o Outcome)                // 子步收敛
	StepFailed(o Outcome)              // 子步失败
	Close() error                      // 释放资源
}

// NopObserver 空实现，可嵌入只关心部分事件的观察者
type NopObserver struct{}

func (NopObserver) AttemptStart(Attempt)       {}
func (NopObserver) AttemptResult(Attempt, int) {}
func (NopObserver) StepDone(Outcome)           {}
func (NopObserver) StepFailed(Outcome)         {}
func (NopObserver) Close() error               { return nil }
