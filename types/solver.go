package types

// Mode 分析类型
type Mode uint

// 分析类型常量定义
const (
	Transient Mode = iota // 瞬态分析（时间步进）
	Static                // 静力分析（位移控制）
)

// String 分析类型名称
func (m Mode) String() string {
	switch m {
	case Transient:
		return "transient"
	case Static:
		return "static"
	}
	return "unknown"
}

// Solver 非线性平衡求解器接口
// 求解器本身持有全局的 当前算法/当前判据/当前时间与位移 状态，
// 控制器只通过以下原语修改这些状态。
type Solver interface {
	// ConfigureTest 设置收敛判据
	ConfigureTest(kind TestType, tol float64, maxIter, printFlag int) error

	// ConfigureAlgorithm 设置迭代算法，args 为算法相关参数
	ConfigureAlgorithm(name string, args ...any) error

	// SetIncrementControl 静力分析下设置位移控制（节点、自由度、步长）
	SetIncrementControl(node, dof int, step float64) error

	// Analyze 求解一个增量步，返回值 >=0 表示收敛，<0 表示失败。
	// 瞬态分析使用 dt 作为时间增量，静力分析忽略 dt。
	Analyze(dt float64) int

	// LastNorm 最近一次迭代的判据范数
	LastNorm() float64
}
